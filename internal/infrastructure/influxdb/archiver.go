package influxdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-facade/internal/facade"
)

// Measurement is the measurement name of archived facade changes.
//
//	facade_attribute,device=boiler,attribute=temperature,quality=VALID value=21.5 1772366400000000000
const Measurement = "facade_attribute"

// PointWriter is the part of api.WriteAPI used by the archiver.
type PointWriter interface {
	WritePoint(point *write.Point)
}

// Archiver writes facade changes as InfluxDB points. It implements
// facade.Publisher.
type Archiver struct {
	writer    PointWriter
	connected func() bool
}

// NewArchiver creates an archiver on a point writer.
func NewArchiver(w PointWriter) *Archiver {
	return &Archiver{writer: w, connected: func() bool { return true }}
}

// Publish implements facade.Publisher. Changes without a value nor an
// error carry nothing to archive and are skipped.
func (a *Archiver) Publish(ctx context.Context, change facade.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !a.connected() {
		return ErrNotConnected
	}
	point, err := ChangePoint(change)
	if err != nil || point == nil {
		return err
	}
	a.writer.WritePoint(point)
	return nil
}

// ChangePoint converts a change to a point stamped with the change time.
// It returns nil for a change without a value nor an error.
func ChangePoint(change facade.Change) (*write.Point, error) {
	quality, err := change.Quality.MarshalText()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWriteFailed, change.Attribute, err)
	}
	fields := make(map[string]any, 1)
	switch {
	case change.Err != nil:
		fields["error"] = change.Err.Error()
	case change.Value != nil:
		v, err := fieldValue(change.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrWriteFailed, change.Attribute, err)
		}
		fields["value"] = v
	default:
		return nil, nil
	}

	tags := map[string]string{
		"device":    change.Device,
		"attribute": change.Attribute,
		"quality":   string(quality),
	}
	return write.NewPoint(Measurement, tags, fields, change.Time), nil
}

// fieldValue maps a value to an InfluxDB field. Numbers are stored as
// floats, arrays and maps as JSON.
func fieldValue(v any) (any, error) {
	switch n := v.(type) {
	case float64, bool, string:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case fmt.Stringer:
		return n.String(), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
