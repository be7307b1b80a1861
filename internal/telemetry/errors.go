package telemetry

import "errors"

var (
	// ErrInstrument is returned when an instrument cannot be created.
	ErrInstrument = errors.New("telemetry: creating instrument failed")

	// ErrExporter is returned when the OTLP exporter cannot be created.
	ErrExporter = errors.New("telemetry: creating exporter failed")
)
