// Package logging provides structured logging for the Gray Logic facade.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the service.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	dev := facade.New(cfg.Facade.Device, facade.WithLogger(logger.Component("facade")))
//
// Never log secrets such as the MQTT password or the InfluxDB token.
package logging
