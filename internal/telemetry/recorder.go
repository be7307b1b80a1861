package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nerrad567/gray-logic-facade/internal/facade"
)

// Instrument names.
const (
	ChangesCounter      = "facade.changes"
	FaultsCounter       = "facade.faults"
	StateChangesCounter = "facade.state.changes"
	ChangeLagHistogram  = "facade.change.lag"
)

// Recorder counts facade changes. It implements facade.Publisher.
type Recorder struct {
	changes metric.Int64Counter
	faults  metric.Int64Counter
	states  metric.Int64Counter
	lag     metric.Float64Histogram
	now     func() time.Time
}

// NewRecorder creates the instruments on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	r := &Recorder{now: time.Now}
	var err error

	if r.changes, err = meter.Int64Counter(ChangesCounter,
		metric.WithDescription("Attribute changes published by the facade."),
		metric.WithUnit("{change}")); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, ChangesCounter, err)
	}
	if r.faults, err = meter.Int64Counter(FaultsCounter,
		metric.WithDescription("Attribute changes carrying a fault."),
		metric.WithUnit("{fault}")); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, FaultsCounter, err)
	}
	if r.states, err = meter.Int64Counter(StateChangesCounter,
		metric.WithDescription("Device state transitions."),
		metric.WithUnit("{transition}")); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, StateChangesCounter, err)
	}
	if r.lag, err = meter.Float64Histogram(ChangeLagHistogram,
		metric.WithDescription("Delay between a value stamp and its publication."),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, ChangeLagHistogram, err)
	}
	return r, nil
}

// Publish implements facade.Publisher.
func (r *Recorder) Publish(ctx context.Context, change facade.Change) error {
	device := attribute.String("device", change.Device)
	attr := attribute.String("attribute", change.Attribute)

	r.changes.Add(ctx, 1, metric.WithAttributes(device, attr,
		attribute.String("quality", change.Quality.String())))

	if change.Err != nil {
		r.faults.Add(ctx, 1, metric.WithAttributes(device, attr))
		return nil
	}
	if change.Attribute == facade.AttributeState {
		if state, ok := stateName(change.Value); ok {
			r.states.Add(ctx, 1, metric.WithAttributes(device, attribute.String("state", state)))
		}
	}
	if !change.Time.IsZero() {
		lag := r.now().Sub(change.Time).Seconds()
		if lag >= 0 {
			r.lag.Record(ctx, lag, metric.WithAttributes(device))
		}
	}
	return nil
}

func stateName(v any) (string, bool) {
	switch s := v.(type) {
	case facade.State:
		return s.String(), true
	case string:
		return s, true
	}
	return "", false
}
