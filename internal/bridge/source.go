package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-facade/internal/facade"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/mqtt"
)

// Client is the part of *mqtt.Client used by the bridge.
type Client interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

const defaultQueueSize = 256

// Source feeds facade devices with readings received over MQTT.
//
// Messages are decoded on the paho goroutine and queued; Run delivers them
// to the device handlers. Devices lock themselves while handling an event,
// so keeping that work off the paho goroutine keeps a slow propagation
// from stalling the broker connection.
//
// Source implements facade.Source, facade.Expander and facade.RemoteWriter.
type Source struct {
	client Client
	qos    byte
	logger Logger
	now    func() time.Time

	mu       sync.Mutex
	handlers map[string]facade.EventHandler
	catalog  map[string]struct{}

	queue chan facade.Event
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithQoS sets the QoS of reading subscriptions and writes.
func WithQoS(qos byte) SourceOption {
	return func(s *Source) { s.qos = qos }
}

// WithSourceLogger sets the source logger.
func WithSourceLogger(l Logger) SourceOption {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithQueueSize sets how many readings can wait for Run.
func WithQueueSize(n int) SourceOption {
	return func(s *Source) {
		if n > 0 {
			s.queue = make(chan facade.Event, n)
		}
	}
}

// WithCatalog declares remote attributes known to exist, so that wildcard
// sources can be expanded before any reading was received.
func WithCatalog(remotes ...string) SourceOption {
	return func(s *Source) {
		for _, r := range remotes {
			s.catalog[r] = struct{}{}
		}
	}
}

// WithSourceClock sets the clock used to stamp readings without a time.
func WithSourceClock(now func() time.Time) SourceOption {
	return func(s *Source) { s.now = now }
}

// NewSource creates a Source on top of an MQTT client.
func NewSource(client Client, opts ...SourceOption) *Source {
	s := &Source{
		client:   client,
		qos:      1,
		logger:   noopLogger{},
		now:      time.Now,
		handlers: make(map[string]facade.EventHandler),
		catalog:  make(map[string]struct{}),
		queue:    make(chan facade.Event, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe starts delivering the readings of remote to handler.
// Subscribing twice to the same remote replaces the handler.
func (s *Source) Subscribe(remote string, handler facade.EventHandler) error {
	s.mu.Lock()
	_, existed := s.handlers[remote]
	s.handlers[remote] = handler
	s.mu.Unlock()
	if existed {
		return nil
	}

	if err := s.client.Subscribe(mqtt.Topics{}.FacadeReading(remote), s.qos, s.HandleMessage); err != nil {
		s.mu.Lock()
		delete(s.handlers, remote)
		s.mu.Unlock()
		return fmt.Errorf("subscribing to %s: %w", remote, err)
	}
	return nil
}

// Unsubscribe stops the delivery of the readings of remote. Readings
// already queued for it are dropped.
func (s *Source) Unsubscribe(remote string) error {
	s.mu.Lock()
	_, existed := s.handlers[remote]
	delete(s.handlers, remote)
	s.mu.Unlock()
	if !existed {
		return nil
	}
	if err := s.client.Unsubscribe(mqtt.Topics{}.FacadeReading(remote)); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", remote, err)
	}
	return nil
}

// HandleMessage decodes a reading message and queues it for Run.
// It is the mqtt.MessageHandler of every reading subscription.
func (s *Source) HandleMessage(topic string, payload []byte) error {
	remote, ok := mqtt.Topics{}.ReadingSource(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnexpectedTopic, topic)
	}

	s.mu.Lock()
	s.catalog[remote] = struct{}{}
	_, subscribed := s.handlers[remote]
	s.mu.Unlock()
	if !subscribed {
		return nil
	}

	ev, err := decodeEvent(remote, payload, s.now())
	if err != nil {
		return err
	}

	select {
	case s.queue <- ev:
		return nil
	default:
		return fmt.Errorf("%w: dropped reading of %s", ErrQueueFull, remote)
	}
}

// Run delivers queued readings until ctx is cancelled.
func (s *Source) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.queue:
			s.deliver(ev)
		}
	}
}

// Drain delivers the readings queued so far and returns how many were
// handled. It lets tests and tools run without a Run goroutine.
func (s *Source) Drain() int {
	n := 0
	for {
		select {
		case ev := <-s.queue:
			s.deliver(ev)
			n++
		default:
			return n
		}
	}
}

func (s *Source) deliver(ev facade.Event) {
	s.mu.Lock()
	handler := s.handlers[ev.Remote]
	s.mu.Unlock()
	if handler == nil {
		s.logger.Debug("dropping reading of an unsubscribed attribute", "remote", ev.Remote)
		return
	}
	handler(ev)
}

// Discover listens to every reading topic for wait and records the remote
// attributes seen, so that Expand can resolve wildcard sources. Retained
// readings arrive immediately after the subscription.
func (s *Source) Discover(ctx context.Context, wait time.Duration) error {
	topic := mqtt.Topics{}.AllFacadeReadings()
	err := s.client.Subscribe(topic, s.qos, func(topic string, _ []byte) error {
		if remote, ok := (mqtt.Topics{}).ReadingSource(topic); ok {
			s.mu.Lock()
			s.catalog[remote] = struct{}{}
			s.mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("discovering remote attributes: %w", err)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	if err := s.client.Unsubscribe(topic); err != nil {
		s.logger.Warn("ending discovery failed", "error", err)
	}
	s.logger.Info("remote attribute discovery finished", "known", len(s.Known()))
	return ctx.Err()
}

// Known returns the sorted remote attributes seen or declared so far.
func (s *Source) Known() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.catalog))
	for remote := range s.catalog {
		out = append(out, remote)
	}
	slices.Sort(out)
	return out
}

// Expand resolves a wildcard against the known remote attributes.
// Patterns use path.Match syntax, so * never crosses a slash.
func (s *Source) Expand(pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("expanding %q: %w", pattern, err)
	}
	var out []string
	for _, remote := range s.Known() {
		if ok, _ := path.Match(pattern, remote); ok {
			out = append(out, remote)
		}
	}
	return out, nil
}

// WriteRemote publishes a write request for remote. The new value comes
// back as a regular reading once the owner of the attribute applied it.
func (s *Source) WriteRemote(ctx context.Context, remote string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(writePayload{Value: value, Time: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding write to %s: %w", remote, err)
	}
	return s.client.Publish(mqtt.Topics{}.FacadeWrite(remote), payload, s.qos, false)
}
