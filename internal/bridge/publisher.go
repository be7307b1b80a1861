package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sony/gobreaker"

	"github.com/nerrad567/gray-logic-facade/internal/facade"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/mqtt"
)

// Breaker defaults.
const (
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
)

// Publisher publishes facade changes over MQTT.
//
// Attribute changes go to the event topic of the attribute. State and
// Status changes are merged into one retained message on the device state
// topic. Publishing goes through a circuit breaker: after repeated broker
// failures changes are dropped with ErrCircuitOpen until the breaker lets
// a trial publish through.
type Publisher struct {
	client  Client
	qos     byte
	logger  Logger
	breaker *gobreaker.CircuitBreaker

	mu     sync.Mutex
	states map[string]*statePayload
}

// PublisherOption configures a Publisher.
type PublisherOption func(*publisherConfig)

type publisherConfig struct {
	qos      byte
	logger   Logger
	failures uint32
	timeout  time.Duration
}

// WithPublishQoS sets the QoS of published changes.
func WithPublishQoS(qos byte) PublisherOption {
	return func(c *publisherConfig) { c.qos = qos }
}

// WithPublisherLogger sets the publisher logger.
func WithPublisherLogger(l Logger) PublisherOption {
	return func(c *publisherConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBreaker sets how many consecutive failures open the circuit and how
// long it stays open.
func WithBreaker(failures uint32, timeout time.Duration) PublisherOption {
	return func(c *publisherConfig) {
		c.failures = failures
		c.timeout = timeout
	}
}

// NewPublisher creates a Publisher on top of an MQTT client.
func NewPublisher(client Client, opts ...PublisherOption) *Publisher {
	cfg := publisherConfig{
		qos:      1,
		logger:   noopLogger{},
		failures: defaultBreakerFailures,
		timeout:  defaultBreakerTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Publisher{
		client: client,
		qos:    cfg.qos,
		logger: cfg.logger,
		states: make(map[string]*statePayload),
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mqtt-publish",
		MaxRequests: 1,
		Timeout:     cfg.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("publish circuit changed state", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return p
}

// Publish implements facade.Publisher.
func (p *Publisher) Publish(ctx context.Context, change facade.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		topic    string
		body     any
		retained bool
	)
	switch change.Attribute {
	case facade.AttributeState, facade.AttributeStatus:
		topic = mqtt.Topics{}.FacadeState(change.Device)
		body = p.mergeState(change)
		retained = true
	default:
		topic = mqtt.Topics{}.FacadeEvent(change.Device, change.Attribute)
		body = newEventPayload(change)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding change of %s: %w", change.Attribute, err)
	}

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.client.Publish(topic, payload, p.qos, retained)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, topic)
	}
	return err
}

// BreakerState returns the current circuit breaker state.
func (p *Publisher) BreakerState() gobreaker.State {
	return p.breaker.State()
}

// mergeState folds a State or Status change into the device state message.
func (p *Publisher) mergeState(change facade.Change) statePayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.states[change.Device]
	if !ok {
		st = &statePayload{Device: change.Device}
		p.states[change.Device] = st
	}
	value := fmt.Sprint(change.Value)
	if change.Attribute == facade.AttributeState {
		st.State = value
	} else {
		st.Status = value
	}
	st.Time = change.Time.UTC()
	st.EventID = newEventID(change.Time)
	return *st
}

func newEventPayload(change facade.Change) eventPayload {
	ev := eventPayload{
		EventID:   newEventID(change.Time),
		Device:    change.Device,
		Attribute: change.Attribute,
		Value:     change.Value,
		Time:      change.Time.UTC(),
		Quality:   change.Quality,
	}
	if change.Err != nil {
		ev.Value = nil
		ev.Error = change.Err.Error()
	}
	return ev
}

// newEventID returns a ULID, sortable by the change time. Times a ULID
// cannot encode, such as those before 1970, fall back to the current time.
func newEventID(at time.Time) string {
	if at.IsZero() {
		return ulid.Make().String()
	}
	id, err := ulid.New(ulid.Timestamp(at), ulid.DefaultEntropy())
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}
