package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-facade/internal/facade"
	"github.com/nerrad567/gray-logic-facade/internal/graph"
)

// readingPayload is the JSON body of a reading message.
//
//	{"value": 21.5, "time": "2026-01-02T15:04:05.123Z", "quality": "VALID"}
//	{"error": {"reason": "API_DeviceTimedOut", "desc": "device timed out"}}
//
// time defaults to the reception time and quality to VALID.
type readingPayload struct {
	Value   any           `json:"value"`
	Time    *time.Time    `json:"time,omitempty"`
	Quality string        `json:"quality,omitempty"`
	Error   *errorPayload `json:"error,omitempty"`
}

type errorPayload struct {
	Reason string `json:"reason"`
	Desc   string `json:"desc,omitempty"`
}

// reading implements graph.ExternalReading for a decoded payload.
type reading struct {
	value   any
	at      time.Time
	quality graph.Quality
}

func (r reading) Value() any             { return r.value }
func (r reading) Time() time.Time        { return r.at }
func (r reading) Quality() graph.Quality { return r.quality }

// decodeEvent turns a reading payload into a facade event for remote.
func decodeEvent(remote string, payload []byte, received time.Time) (facade.Event, error) {
	var p readingPayload
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return facade.Event{}, fmt.Errorf("%w from %s: %w", ErrInvalidPayload, remote, err)
	}

	if p.Error != nil {
		if p.Error.Reason == "" {
			return facade.Event{}, fmt.Errorf("%w from %s: error without reason", ErrInvalidPayload, remote)
		}
		return facade.Event{
			Remote: remote,
			Err:    &facade.EventError{Reason: p.Error.Reason, Desc: p.Error.Desc},
		}, nil
	}

	r := reading{value: p.Value, at: received, quality: graph.Valid}
	if p.Time != nil {
		r.at = *p.Time
	}
	if p.Quality != "" {
		q, err := graph.ParseQuality(p.Quality)
		if err != nil {
			return facade.Event{}, fmt.Errorf("%w from %s: %w", ErrInvalidPayload, remote, err)
		}
		r.quality = q
	}
	return facade.Event{Remote: remote, Reading: r}, nil
}

// eventPayload is the JSON body of an attribute change event.
type eventPayload struct {
	EventID   string        `json:"event_id"`
	Device    string        `json:"device"`
	Attribute string        `json:"attribute"`
	Value     any           `json:"value,omitempty"`
	Time      time.Time     `json:"time"`
	Quality   graph.Quality `json:"quality"`
	Error     string        `json:"error,omitempty"`
}

// statePayload is the retained JSON body of the device state topic.
type statePayload struct {
	EventID string    `json:"event_id"`
	Device  string    `json:"device"`
	State   string    `json:"state"`
	Status  string    `json:"status"`
	Time    time.Time `json:"time"`
}

// writePayload is the JSON body of a write to a remote attribute.
type writePayload struct {
	Value any       `json:"value"`
	Time  time.Time `json:"time"`
}
