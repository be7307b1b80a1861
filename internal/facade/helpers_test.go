package facade

import (
	"context"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-facade/internal/graph"
)

// ─── Test Doubles ───────────────────────────────────────────────────────────

type testReading struct {
	value   any
	at      time.Time
	quality graph.Quality
}

func (r testReading) Value() any             { return r.value }
func (r testReading) Time() time.Time        { return r.at }
func (r testReading) Quality() graph.Quality { return r.quality }

// fakeSource stores handlers so tests can emit events, and records writes.
type fakeSource struct {
	mu       sync.Mutex
	handlers map[string]EventHandler
	catalog  []string
	writes   map[string]any
	failSub  map[string]error
	unsubs   []string
}

func newFakeSource(catalog ...string) *fakeSource {
	return &fakeSource{
		handlers: make(map[string]EventHandler),
		catalog:  catalog,
		writes:   make(map[string]any),
		failSub:  make(map[string]error),
	}
}

func (s *fakeSource) Subscribe(remote string, handler EventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failSub[remote]; err != nil {
		return err
	}
	s.handlers[remote] = handler
	return nil
}

func (s *fakeSource) Unsubscribe(remote string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, remote)
	s.unsubs = append(s.unsubs, remote)
	return nil
}

func (s *fakeSource) Expand(pattern string) ([]string, error) {
	var out []string
	for _, remote := range s.catalog {
		if ok, _ := path.Match(pattern, remote); ok {
			out = append(out, remote)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *fakeSource) WriteRemote(_ context.Context, remote string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[remote] = value
	return nil
}

func (s *fakeSource) subscribed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.handlers))
	for remote := range s.handlers {
		out = append(out, remote)
	}
	slices.Sort(out)
	return out
}

func (s *fakeSource) handler(remote string) EventHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers[remote]
}

// emit delivers a reading the way a real source would: from the caller's
// goroutine, outside of Subscribe.
func (s *fakeSource) emit(remote string, value any, stamp float64, q graph.Quality) {
	h := s.handler(remote)
	if h == nil {
		return
	}
	sec := int64(stamp)
	at := time.Unix(sec, int64((stamp-float64(sec))*1e9))
	h(Event{Remote: remote, Reading: testReading{value: value, at: at, quality: q}})
}

func (s *fakeSource) emitError(remote string, err error) {
	if h := s.handler(remote); h != nil {
		h(Event{Remote: remote, Err: err})
	}
}

// recordingPublisher keeps every published change.
type recordingPublisher struct {
	mu      sync.Mutex
	changes []Change
}

func (p *recordingPublisher) Publish(_ context.Context, c Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return nil
}

func (p *recordingPublisher) forAttribute(name string) []Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Change
	for _, c := range p.changes {
		if c.Attribute == name {
			out = append(out, c)
		}
	}
	return out
}

func (p *recordingPublisher) last(name string) (Change, bool) {
	changes := p.forAttribute(name)
	if len(changes) == 0 {
		return Change{}, false
	}
	return changes[len(changes)-1], true
}

func fixedNow() time.Time {
	return time.Unix(1700000000, 0)
}

func sumValues(values ...any) (any, error) {
	total := 0.0
	for _, v := range values {
		f, _ := v.(float64)
		total += f
	}
	return total, nil
}
