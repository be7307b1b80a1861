package graph

import (
	"fmt"
	"strings"
	"sync"
)

// recordingLogger captures warnings for assertions.
type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}

func (l *recordingLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, strings.TrimSpace(fmt.Sprintln(append([]any{msg}, args...)...)))
}

func (l *recordingLogger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warnings...)
}

// callRecorder counts callback invocations per node.
type callRecorder struct {
	calls []*Node
}

func (r *callRecorder) callback(n *Node) error {
	r.calls = append(r.calls, n)
	return nil
}

func (r *callRecorder) reset() { r.calls = nil }

// scale returns a rule multiplying its single int input by k.
func scale(k int) UpdateFunc {
	return func(inputs ...*Node) (any, error) {
		v, err := inputs[0].Result()
		if err != nil {
			return nil, err
		}
		return v.(int) * k, nil
	}
}

func identity(inputs ...*Node) (any, error) {
	return inputs[0].Result()
}
