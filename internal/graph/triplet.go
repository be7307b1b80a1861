package graph

import (
	"fmt"
	"math"
	"time"
)

// Triplet is an immutable (value, stamp, quality) reading.
//
// The stamp is expressed in seconds since the Unix epoch. A triplet with a
// nil value or an INVALID quality is always normalised to (nil, stamp, INVALID).
type Triplet struct {
	value   any
	stamp   float64
	quality Quality
}

// ExternalReading is a reading as delivered by an outside source
// (an MQTT bridge, a polling driver, another device).
type ExternalReading interface {
	Value() any
	Time() time.Time
	Quality() Quality
}

// NewTriplet builds a triplet from a value, a stamp in seconds and a quality.
//
// Returns ErrInvalidTriplet if the stamp is not finite, the quality is unknown
// or the value is itself a triplet.
func NewTriplet(value any, stamp float64, quality Quality) (Triplet, error) {
	if math.IsNaN(stamp) || math.IsInf(stamp, 0) {
		return Triplet{}, fmt.Errorf("%w: stamp %v is not a finite number", ErrInvalidTriplet, stamp)
	}
	if !quality.IsKnown() {
		return Triplet{}, fmt.Errorf("%w: unknown quality %d", ErrInvalidTriplet, int(quality))
	}
	switch value.(type) {
	case Triplet, *Triplet:
		return Triplet{}, fmt.Errorf("%w: nested triplet", ErrInvalidTriplet)
	}
	if value == nil || quality == Invalid {
		return Triplet{stamp: stamp, quality: Invalid}, nil
	}
	return Triplet{value: value, stamp: stamp, quality: quality}, nil
}

// NewTripletAt builds a triplet stamped with t.
func NewTripletAt(value any, t time.Time, quality Quality) (Triplet, error) {
	return NewTriplet(value, unixSeconds(t), quality)
}

// NewTripletNow builds a triplet stamped with the current time.
func NewTripletNow(value any, quality Quality) (Triplet, error) {
	return NewTripletAt(value, time.Now(), quality)
}

// NewValue builds a VALID triplet stamped with the current time.
func NewValue(value any) (Triplet, error) {
	return NewTripletAt(value, time.Now(), Valid)
}

// MustTriplet is like NewTriplet but panics on error.
// It is intended for static data and tests.
func MustTriplet(value any, stamp float64, quality Quality) Triplet {
	t, err := NewTriplet(value, stamp, quality)
	if err != nil {
		panic(err)
	}
	return t
}

// InvalidAt returns the INVALID triplet for the given stamp.
func InvalidAt(stamp float64) Triplet {
	return Triplet{stamp: stamp, quality: Invalid}
}

// FromReading converts an external reading into a triplet.
func FromReading(r ExternalReading) (Triplet, error) {
	return NewTripletAt(r.Value(), r.Time(), r.Quality())
}

// AsTriplet returns v as a Triplet when it holds one.
func AsTriplet(v any) (Triplet, bool) {
	switch t := v.(type) {
	case Triplet:
		return t, true
	case *Triplet:
		if t != nil {
			return *t, true
		}
	}
	return Triplet{}, false
}

// Value returns the reading value, nil for an INVALID triplet.
func (t Triplet) Value() any { return t.value }

// Stamp returns the reading time in seconds since the Unix epoch.
func (t Triplet) Stamp() float64 { return t.stamp }

// Quality returns the reading quality.
func (t Triplet) Quality() Quality { return t.quality }

// Time returns the stamp as a time.Time.
func (t Triplet) Time() time.Time {
	sec, frac := math.Modf(t.stamp)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// IsValid reports whether the triplet carries a value.
func (t Triplet) IsValid() bool {
	return t.quality != Invalid
}

// Equal compares stamp, quality and value.
//
// other may be a Triplet, a *Triplet, or a three element []any or [3]any
// tuple laid out as (value, stamp, quality). Values are compared element by
// element, so []int{1, 2} equals [2]float64{1, 2}.
func (t Triplet) Equal(other any) bool {
	o, ok := AsTriplet(other)
	if !ok {
		o, ok = tripletFromTuple(other)
		if !ok {
			return false
		}
	}
	return t.stamp == o.stamp && t.quality == o.quality && valuesEqual(t.value, o.value)
}

// String implements fmt.Stringer.
func (t Triplet) String() string {
	return fmt.Sprintf("Triplet(%v, %v, %s)", t.value, t.stamp, t.quality)
}

func tripletFromTuple(v any) (Triplet, bool) {
	var tuple []any
	switch x := v.(type) {
	case []any:
		tuple = x
	case [3]any:
		tuple = x[:]
	default:
		return Triplet{}, false
	}
	if len(tuple) != 3 {
		return Triplet{}, false
	}
	stamp, ok := toFloat(tuple[1])
	if !ok {
		return Triplet{}, false
	}
	var quality Quality
	switch q := tuple[2].(type) {
	case Quality:
		quality = q
	default:
		n, ok := toFloat(q)
		if !ok || n != math.Trunc(n) {
			return Triplet{}, false
		}
		quality = Quality(n)
	}
	// Compared as given: a value paired with INVALID is not dropped.
	return Triplet{value: tuple[0], stamp: stamp, quality: quality}, true
}

func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
