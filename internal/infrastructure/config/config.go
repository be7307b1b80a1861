package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic facade service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Facade    FacadeConfig    `yaml:"facade"`
	Database  DatabaseConfig  `yaml:"database"`
	History   HistoryConfig   `yaml:"history"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies the installation the facade runs in.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// FacadeConfig describes the facade device served by this process.
type FacadeConfig struct {
	// Device is the facade device name, used in topics and archived points.
	Device string `yaml:"device"`

	// Definition is the path to the YAML or TOML device definition.
	Definition string `yaml:"definition"`

	// Watch reloads the device when the definition file changes.
	Watch bool `yaml:"watch"`

	// WatchDebounce is the quiet period, in milliseconds, before a reload.
	WatchDebounce int `yaml:"watch_debounce"`

	// ClockInterval is the tick period of the Time attribute in seconds.
	// 0 disables the clock.
	ClockInterval int `yaml:"clock_interval"`

	// IgnoredReasons lists event error reasons that never fault an attribute.
	IgnoredReasons []string `yaml:"ignored_reasons"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HistoryConfig controls the local SQLite history of attribute changes.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`

	// RetentionDays is how long history rows are kept.
	RetentionDays int `yaml:"retention_days"`

	// PruneInterval is how often, in minutes, old rows are deleted.
	PruneInterval int `yaml:"prune_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Auth     APIAuthConfig    `yaml:"auth"`
}

// APIAuthConfig contains bearer token settings. When disabled the API is open.
type APIAuthConfig struct {
	Enabled bool `yaml:"enabled"`

	// JWTSecret signs and verifies HS256 tokens.
	// Should be set via GRAYLOGIC_API_JWT_SECRET.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL is the lifetime of issued tokens in minutes.
	TokenTTL int `yaml:"token_ttl"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings of the change stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// TelemetryConfig controls the OpenTelemetry instruments of the facade.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Meter is the instrumentation scope name.
	Meter string `yaml:"meter"`

	// Endpoint is the OTLP gRPC collector address (host:port).
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`

	// Interval is the export period in seconds.
	Interval int `yaml:"interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_FACADE_DEVICE
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Facade: FacadeConfig{
			Device:         "facade",
			Definition:     "./configs/facade.yaml",
			WatchDebounce:  500,
			IgnoredReasons: []string{"API_PollThreadOutOfSync"},
		},
		Database: DatabaseConfig{
			Path:        "./data/facade.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		History: HistoryConfig{
			RetentionDays: 30,
			PruneInterval: 60,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-facade",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Auth: APIAuthConfig{
				TokenTTL: 60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Org:           "graylogic",
			Bucket:        "facade",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Telemetry: TelemetryConfig{
			Meter:    "github.com/nerrad567/gray-logic-facade",
			Endpoint: "localhost:4317",
			Insecure: true,
			Interval: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Facade
	if v := os.Getenv("GRAYLOGIC_FACADE_DEVICE"); v != "" {
		cfg.Facade.Device = v
	}
	if v := os.Getenv("GRAYLOGIC_FACADE_DEFINITION"); v != "" {
		cfg.Facade.Definition = v
	}
	if v := os.Getenv("GRAYLOGIC_FACADE_CLOCK_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Facade.ClockInterval = n
		}
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = n
		}
	}
	if v := os.Getenv("GRAYLOGIC_API_JWT_SECRET"); v != "" {
		cfg.API.Auth.JWTSecret = v
	}

	// Telemetry
	if v := os.Getenv("GRAYLOGIC_TELEMETRY_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
	}

	// Logging
	if v := os.Getenv("GRAYLOGIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// minJWTSecretLength is the shortest accepted API signing secret.
const minJWTSecretLength = 32

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Facade.Device == "" {
		errs = append(errs, "facade.device is required")
	}
	if c.Facade.Definition == "" {
		errs = append(errs, "facade.definition is required")
	}
	if c.Facade.ClockInterval < 0 {
		errs = append(errs, "facade.clock_interval cannot be negative")
	}
	if c.Facade.WatchDebounce < 0 {
		errs = append(errs, "facade.watch_debounce cannot be negative")
	}

	// History rows live in the SQLite database.
	if c.History.Enabled {
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required when history is enabled")
		}
		if c.History.RetentionDays < 1 {
			errs = append(errs, "history.retention_days must be at least 1")
		}
		if c.History.PruneInterval < 1 {
			errs = append(errs, "history.prune_interval must be at least 1")
		}
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
			errs = append(errs, "api.tls requires cert_file and key_file")
		}
		if c.WebSocket.PingInterval < 1 || c.WebSocket.PongTimeout < 1 {
			errs = append(errs, "websocket.ping_interval and pong_timeout must be at least 1")
		}
		if c.API.Auth.Enabled {
			if len(c.API.Auth.JWTSecret) < minJWTSecretLength {
				errs = append(errs, fmt.Sprintf("api.auth.jwt_secret must be at least %d characters", minJWTSecretLength))
			}
			if c.API.Auth.TokenTTL < 1 {
				errs = append(errs, "api.auth.token_ttl must be at least 1")
			}
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, "telemetry.endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.Interval < 1 {
			errs = append(errs, "telemetry.interval must be at least 1")
		}
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, "logging.level must be one of debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetClockInterval returns the facade clock period, 0 when disabled.
func (c *Config) GetClockInterval() time.Duration {
	return time.Duration(c.Facade.ClockInterval) * time.Second
}

// GetWatchDebounce returns the definition reload debounce period.
func (c *Config) GetWatchDebounce() time.Duration {
	return time.Duration(c.Facade.WatchDebounce) * time.Millisecond
}

// GetRetention returns how long history rows are kept.
func (c *Config) GetRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

// GetPruneInterval returns how often history rows are pruned.
func (c *Config) GetPruneInterval() time.Duration {
	return time.Duration(c.History.PruneInterval) * time.Minute
}

// GetTokenTTL returns the lifetime of issued API tokens.
func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.API.Auth.TokenTTL) * time.Minute
}

// GetTelemetryInterval returns the metric export period.
func (c *Config) GetTelemetryInterval() time.Duration {
	return time.Duration(c.Telemetry.Interval) * time.Second
}
