package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-facade-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// mockLogger records log calls.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
	infos  []string
}

func (l *mockLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"FacadeReading", topics.FacadeReading("plant/boiler/temperature"), "graylogic/facade/reading/plant/boiler/temperature"},
		{"FacadeWrite", topics.FacadeWrite("plant/valve/position"), "graylogic/facade/write/plant/valve/position"},
		{"FacadeEvent", topics.FacadeEvent("boiler", "Temperature"), "graylogic/facade/boiler/event/Temperature"},
		{"FacadeState", topics.FacadeState("boiler"), "graylogic/facade/boiler/state"},
		{"SystemStatus", topics.SystemStatus(), "graylogic/system/status"},
		{"AllFacadeReadings", topics.AllFacadeReadings(), "graylogic/facade/reading/#"},
		{"AllFacadeEvents", topics.AllFacadeEvents("boiler"), "graylogic/facade/boiler/event/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestReadingSource(t *testing.T) {
	tests := []struct {
		topic  string
		source string
		ok     bool
	}{
		{"graylogic/facade/reading/plant/boiler/temperature", "plant/boiler/temperature", true},
		{"graylogic/facade/reading/x", "x", true},
		{"graylogic/facade/reading/", "", false},
		{"graylogic/facade/boiler/state", "", false},
		{"other/facade/reading/x", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			source, ok := Topics{}.ReadingSource(tt.topic)
			if source != tt.source || ok != tt.ok {
				t.Errorf("ReadingSource(%q) = (%q, %v), want (%q, %v)", tt.topic, source, ok, tt.source, tt.ok)
			}
		})
	}

	// Round trip with the builder.
	source, ok := Topics{}.ReadingSource(Topics{}.FacadeReading("a/b/c"))
	if !ok || source != "a/b/c" {
		t.Errorf("round trip = (%q, %v), want (a/b/c, true)", source, ok)
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "facade", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "graylogic-facade-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "facade" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want facade/secret", opts.Username, opts.Password)
	}
	if !opts.CleanSession || !opts.AutoReconnect || !opts.Order {
		t.Error("expected clean session, auto reconnect and ordered delivery")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %v, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("expected TLS 1.2 minimum")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "graylogic-facade-test")

	if !opts.WillEnabled || !opts.WillRetained || opts.WillTopic != "graylogic/system/status" {
		t.Fatalf("will = (%v, %v, %q)", opts.WillEnabled, opts.WillRetained, opts.WillTopic)
	}

	var payload statusPayload
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if payload.Status != "offline" || payload.Reason != "unexpected_disconnect" {
		t.Errorf("will payload = %+v", payload)
	}
}

func TestStatusPayloads(t *testing.T) {
	var online, offline statusPayload
	if err := json.Unmarshal(buildOnlinePayload("c1"), &online); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(buildOfflinePayload("c1"), &offline); err != nil {
		t.Fatal(err)
	}

	if online.Status != "online" || online.ClientID != "c1" || online.Reason != "" {
		t.Errorf("online payload = %+v", online)
	}
	if offline.Status != "offline" || offline.Reason != "graceful_shutdown" {
		t.Errorf("offline payload = %+v", offline)
	}
	if online.Timestamp == "" {
		t.Error("expected a timestamp")
	}
}

// =============================================================================
// Validation Tests (no broker needed)
// =============================================================================

func TestPublishValidation(t *testing.T) {
	c := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		qos     byte
		payload []byte
		want    error
	}{
		{"empty topic", "", 1, nil, ErrInvalidTopic},
		{"wildcard topic", "graylogic/facade/+/state", 1, nil, ErrInvalidTopic},
		{"invalid QoS", "graylogic/x", 3, nil, ErrInvalidQoS},
		{"too large", "graylogic/x", 1, make([]byte, maxPayloadSize+1), ErrPublishFailed},
		{"disconnected", "graylogic/x", 1, []byte("{}"), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v", err)
	}
	if err := c.Subscribe("a", 5, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 5) error = %v", err)
	}
	if err := c.Subscribe("a", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v", err)
	}
	if err := c.Subscribe("a", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v", err)
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty) error = %v", err)
	}
	if err := c.Unsubscribe("a"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe(disconnected) error = %v", err)
	}
	if c.SubscriptionCount() != 0 || c.HasSubscription("a") {
		t.Error("failed subscriptions must not be tracked")
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c := &Client{}

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestCloseWithoutConnection(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestDispatch(t *testing.T) {
	logger := &mockLogger{}
	c := &Client{}
	c.SetLogger(logger)

	var got []string
	c.dispatch(func(topic string, payload []byte) error {
		got = append(got, fmt.Sprintf("%s=%s", topic, payload))
		return nil
	}, "t/1", []byte("ok"))
	c.dispatch(func(string, []byte) error { return errors.New("bad payload") }, "t/2", nil)
	c.dispatch(func(string, []byte) error { panic("boom") }, "t/3", nil)

	if len(got) != 1 || got[0] != "t/1=ok" {
		t.Errorf("handler calls = %v", got)
	}
	if len(logger.warns) != 1 || logger.warns[0] != "MQTT handler returned error" {
		t.Errorf("warns = %v", logger.warns)
	}
	if len(logger.errors) != 1 || logger.errors[0] != "MQTT handler panic recovered" {
		t.Errorf("errors = %v", logger.errors)
	}
}

func TestDispatch_NoLogger(t *testing.T) {
	c := &Client{}
	// Must not panic without a logger.
	c.dispatch(func(string, []byte) error { panic("boom") }, "t", nil)
	c.dispatch(func(string, []byte) error { return errors.New("x") }, "t", nil)
}
