package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/logging"
)

const defaultInterval = 30 * time.Second

// ShutdownFunc flushes and stops the meter provider.
type ShutdownFunc func(ctx context.Context) error

// Setup installs a global meter provider exporting to the configured
// OTLP collector. When telemetry is disabled the global no-op provider is
// kept and the returned ShutdownFunc does nothing.
func Setup(ctx context.Context, cfg config.TelemetryConfig, version string) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExporter, err)
	}

	interval := defaultInterval
	if cfg.Interval > 0 {
		interval = time.Duration(cfg.Interval) * time.Second
	}
	provider := NewProvider(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), version)
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

// NewProvider creates an SDK meter provider on reader, describing the
// service with its name and version.
func NewProvider(reader sdkmetric.Reader, version string) *sdkmetric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(Resource(version)),
	)
}

// Resource describes the facade service to the collector.
func Resource(version string) *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", logging.ServiceName),
		attribute.String("service.version", version),
	)
}
