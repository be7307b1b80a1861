package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
facade:
  device: "plant/boiler/facade"
  definition: "/etc/graylogic/boiler.toml"
  clock_interval: 5
  ignored_reasons: ["API_PollThreadOutOfSync", "API_AttrNotAllowed"]
database:
  path: "/tmp/test.db"
history:
  enabled: true
  retention_days: 7
mqtt:
  broker:
    host: "broker.local"
    port: 8883
    tls: true
  qos: 2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Facade.Device != "plant/boiler/facade" {
		t.Errorf("Facade.Device = %q, want %q", cfg.Facade.Device, "plant/boiler/facade")
	}
	if got := cfg.GetClockInterval(); got != 5*time.Second {
		t.Errorf("GetClockInterval() = %v, want 5s", got)
	}
	if len(cfg.Facade.IgnoredReasons) != 2 {
		t.Errorf("Facade.IgnoredReasons = %v, want 2 entries", cfg.Facade.IgnoredReasons)
	}
	if got := cfg.GetRetention(); got != 7*24*time.Hour {
		t.Errorf("GetRetention() = %v, want 168h", got)
	}
	if cfg.MQTT.Broker.Host != "broker.local" || !cfg.MQTT.Broker.TLS {
		t.Errorf("MQTT.Broker = %+v, want broker.local with TLS", cfg.MQTT.Broker)
	}
	// Untouched sections keep their defaults.
	if cfg.MQTT.Broker.ClientID != "graylogic-facade" {
		t.Errorf("MQTT.Broker.ClientID = %q, want default", cfg.MQTT.Broker.ClientID)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Facade.Device != "facade" {
		t.Errorf("Facade.Device = %q, want %q", cfg.Facade.Device, "facade")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, `
facade:
  device: ""
`))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "facade.device is required") {
		t.Errorf("Load() error = %v, want facade.device message", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "missing device",
			mutate:  func(c *Config) { c.Facade.Device = "" },
			wantErr: "facade.device",
		},
		{
			name:    "missing definition",
			mutate:  func(c *Config) { c.Facade.Definition = "" },
			wantErr: "facade.definition",
		},
		{
			name:    "negative clock",
			mutate:  func(c *Config) { c.Facade.ClockInterval = -1 },
			wantErr: "facade.clock_interval",
		},
		{
			name: "history without database",
			mutate: func(c *Config) {
				c.History.Enabled = true
				c.Database.Path = ""
			},
			wantErr: "database.path",
		},
		{
			name: "history retention",
			mutate: func(c *Config) {
				c.History.Enabled = true
				c.History.RetentionDays = 0
			},
			wantErr: "history.retention_days",
		},
		{
			name: "history prune interval",
			mutate: func(c *Config) {
				c.History.Enabled = true
				c.History.PruneInterval = 0
			},
			wantErr: "history.prune_interval",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: "mqtt.broker.port",
		},
		{
			name: "api port",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 0
			},
			wantErr: "api.port",
		},
		{
			name: "api tls without files",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.TLS.Enabled = true
			},
			wantErr: "api.tls",
		},
		{
			name: "websocket keepalive",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.WebSocket.PongTimeout = 0
			},
			wantErr: "websocket.ping_interval",
		},
		{
			name: "api auth short secret",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Auth.Enabled = true
				c.API.Auth.JWTSecret = "short"
			},
			wantErr: "api.auth.jwt_secret",
		},
		{
			name: "api auth ttl",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Auth.Enabled = true
				c.API.Auth.JWTSecret = strings.Repeat("s", 32)
				c.API.Auth.TokenTTL = 0
			},
			wantErr: "api.auth.token_ttl",
		},
		{
			name:    "influxdb without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
		{
			name: "telemetry without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = ""
			},
			wantErr: "telemetry.endpoint",
		},
		{
			name: "telemetry interval",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Interval = 0
			},
			wantErr: "telemetry.interval",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:   "upper-case log level",
			mutate: func(c *Config) { c.Logging.Level = "DEBUG" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Facade:    FacadeConfig{ClockInterval: 3, WatchDebounce: 250},
		History:   HistoryConfig{RetentionDays: 2, PruneInterval: 15},
		Telemetry: TelemetryConfig{Interval: 20},
		API:       APIConfig{Auth: APIAuthConfig{TokenTTL: 90}},
	}

	if got := cfg.GetClockInterval(); got != 3*time.Second {
		t.Errorf("GetClockInterval() = %v, want 3s", got)
	}
	if got := cfg.GetWatchDebounce(); got != 250*time.Millisecond {
		t.Errorf("GetWatchDebounce() = %v, want 250ms", got)
	}
	if got := cfg.GetRetention(); got != 48*time.Hour {
		t.Errorf("GetRetention() = %v, want 48h", got)
	}
	if got := cfg.GetPruneInterval(); got != 15*time.Minute {
		t.Errorf("GetPruneInterval() = %v, want 15m", got)
	}
	if got := cfg.GetTelemetryInterval(); got != 20*time.Second {
		t.Errorf("GetTelemetryInterval() = %v, want 20s", got)
	}
	if got := cfg.GetTokenTTL(); got != 90*time.Minute {
		t.Errorf("GetTokenTTL() = %v, want 90m", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_FACADE_DEVICE", "env/device")
	t.Setenv("GRAYLOGIC_FACADE_DEFINITION", "/env/def.yaml")
	t.Setenv("GRAYLOGIC_FACADE_CLOCK_INTERVAL", "10")
	t.Setenv("GRAYLOGIC_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYLOGIC_TELEMETRY_ENDPOINT", "otel.local:4317")
	t.Setenv("GRAYLOGIC_API_PORT", "9090")
	t.Setenv("GRAYLOGIC_API_JWT_SECRET", "env-secret")
	t.Setenv("GRAYLOGIC_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	checks := []struct {
		name, got, want string
	}{
		{"Facade.Device", cfg.Facade.Device, "env/device"},
		{"Facade.Definition", cfg.Facade.Definition, "/env/def.yaml"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Telemetry.Endpoint", cfg.Telemetry.Endpoint, "otel.local:4317"},
		{"API.Auth.JWTSecret", cfg.API.Auth.JWTSecret, "env-secret"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if cfg.Facade.ClockInterval != 10 {
		t.Errorf("Facade.ClockInterval = %d, want 10", cfg.Facade.ClockInterval)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
}

func TestApplyEnvOverrides_BadClockInterval(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("GRAYLOGIC_FACADE_CLOCK_INTERVAL", "soon")
	applyEnvOverrides(cfg)
	if cfg.Facade.ClockInterval != 0 {
		t.Errorf("Facade.ClockInterval = %d, want default 0", cfg.Facade.ClockInterval)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Facade.Device == "" {
		t.Error("defaultConfig should have non-empty Facade.Device")
	}
	if len(cfg.Facade.IgnoredReasons) != 1 || cfg.Facade.IgnoredReasons[0] != "API_PollThreadOutOfSync" {
		t.Errorf("defaultConfig Facade.IgnoredReasons = %v", cfg.Facade.IgnoredReasons)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.History.Enabled || cfg.InfluxDB.Enabled || cfg.Telemetry.Enabled || cfg.API.Enabled {
		t.Error("defaultConfig should keep optional sinks disabled")
	}
}
