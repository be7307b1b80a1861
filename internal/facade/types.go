package facade

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-facade/internal/graph"
)

// Logger defines the logging interface used by the facade.
// This allows the package to work with any logger implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Event is delivered by a Source for a subscribed remote attribute.
// Exactly one of Reading and Err is set.
type Event struct {
	Remote  string
	Reading graph.ExternalReading
	Err     error
}

// EventError is an error reported by a remote attribute.
// Reason is a short machine readable code, Desc a human readable message.
type EventError struct {
	Reason string
	Desc   string
}

// Error implements the error interface.
func (e *EventError) Error() string {
	if e.Desc == "" {
		return e.Reason
	}
	return e.Desc
}

// EventHandler receives the events of one subscription.
type EventHandler func(ev Event)

// Source delivers readings for remote attributes.
type Source interface {
	// Subscribe starts delivering events for remote to handler.
	Subscribe(remote string, handler EventHandler) error

	// Unsubscribe stops the delivery of events for remote.
	Unsubscribe(remote string) error
}

// Expander is implemented by sources that can resolve a wildcard pattern
// to a sorted list of remote attribute names.
type Expander interface {
	Expand(pattern string) ([]string, error)
}

// RemoteWriter forwards writes of proxy attributes to their remote attribute.
type RemoteWriter interface {
	WriteRemote(ctx context.Context, remote string, value any) error
}

// Change describes a new outcome for a device attribute, or for the
// device State and Status.
type Change struct {
	Device    string
	Attribute string
	Value     any
	Time      time.Time
	Quality   graph.Quality

	// Err is set when the attribute holds a fault; Value is then nil.
	Err error
}

// Publisher receives attribute changes.
//
// Publishers are called synchronously while the device is locked and
// must not call back into the device.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, change Change) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, change Change) error {
	return f(ctx, change)
}

// Hook is a user callback run after an attribute changed.
// It runs while the device is locked and must not call back into the device.
type Hook func(n *graph.Node) error

// CombinedResult is the outcome of one input of a combined attribute.
type CombinedResult struct {
	Remote  string
	Triplet graph.Triplet
	Valid   bool
	Err     error
}
