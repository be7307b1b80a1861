package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-facade/internal/facade"
	"github.com/nerrad567/gray-logic-facade/internal/history"
)

// attributeView is the JSON form of a declared attribute.
type attributeView struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Description string   `json:"description,omitempty"`
	Writable    bool     `json:"writable"`
	Bind        []string `json:"bind,omitempty"`
	Remotes     []string `json:"remotes,omitempty"`
}

// readingView is the JSON form of an attribute reading.
type readingView struct {
	Name     string `json:"name"`
	HasValue bool   `json:"has_value"`
	Value    any    `json:"value,omitempty"`
	Time     string `json:"time,omitempty"`
	Quality  string `json:"quality,omitempty"`
	Error    string `json:"error,omitempty"`
}

// inputView is the JSON form of one combined attribute input.
type inputView struct {
	Remote  string `json:"remote"`
	Valid   bool   `json:"valid"`
	Value   any    `json:"value,omitempty"`
	Quality string `json:"quality,omitempty"`
	Time    string `json:"time,omitempty"`
	Error   string `json:"error,omitempty"`
}

// writeRequest is the body of PUT /attributes/{name}.
type writeRequest struct {
	Value *json.RawMessage `json:"value"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// device returns the served device or answers 503.
func (s *Server) device(w http.ResponseWriter) (*facade.Device, bool) {
	dev := s.devices.Device()
	if dev == nil {
		writeUnavailable(w, "no device is being served")
		return nil, false
	}
	return dev, true
}

// attribute resolves the {name} URL parameter to a visible attribute.
func (s *Server) attribute(w http.ResponseWriter, r *http.Request) (*facade.Device, facade.Info, bool) {
	dev, ok := s.device(w)
	if !ok {
		return nil, facade.Info{}, false
	}
	name := chi.URLParam(r, "name")
	for _, info := range dev.Attributes() {
		if info.Name == name && !info.Hidden {
			return dev, info, true
		}
	}
	writeNotFound(w, fmt.Sprintf("attribute %q not found", name))
	return nil, facade.Info{}, false
}

// handleGetDevice returns the device summary.
func (s *Server) handleGetDevice(w http.ResponseWriter, _ *http.Request) {
	dev, ok := s.device(w)
	if !ok {
		return
	}
	visible := 0
	for _, info := range dev.Attributes() {
		if !info.Hidden {
			visible++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       dev.Name(),
		"state":      dev.State().String(),
		"status":     dev.Status(),
		"connected":  dev.Connected(),
		"attributes": visible,
	})
}

// handleDeviceInfo returns the plain-text diagnostic report.
func (s *Server) handleDeviceInfo(w http.ResponseWriter, _ *http.Request) {
	dev, ok := s.device(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	w.Write([]byte(dev.Info()))
}

// handleListAttributes lists the visible attributes in declaration order.
func (s *Server) handleListAttributes(w http.ResponseWriter, _ *http.Request) {
	dev, ok := s.device(w)
	if !ok {
		return
	}
	views := make([]attributeView, 0)
	for _, info := range dev.Attributes() {
		if info.Hidden {
			continue
		}
		views = append(views, attributeView{
			Name:        info.Name,
			Kind:        info.Kind.String(),
			Description: info.Description,
			Writable:    info.Writable,
			Bind:        info.Bind,
			Remotes:     info.Remotes,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"attributes": views,
		"count":      len(views),
	})
}

// handleReadAttribute returns the current reading of an attribute.
func (s *Server) handleReadAttribute(w http.ResponseWriter, r *http.Request) {
	dev, info, ok := s.attribute(w, r)
	if !ok {
		return
	}
	reading, has, err := dev.Read(info.Name)
	view := readingView{Name: info.Name, HasValue: has}
	switch {
	case errors.Is(err, facade.ErrNotConnected):
		writeDeviceError(w, err)
		return
	case err != nil:
		view.Error = err.Error()
	case has:
		view.Value = reading.Value
		view.Time = formatTime(reading.Time)
		view.Quality = reading.Quality.String()
	}
	writeJSON(w, http.StatusOK, view)
}

// handleWriteAttribute writes a value to a writable attribute.
func (s *Server) handleWriteAttribute(w http.ResponseWriter, r *http.Request) {
	dev, info, ok := s.attribute(w, r)
	if !ok {
		return
	}

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}
	var value any
	if err := json.Unmarshal(*req.Value, &value); err != nil {
		writeBadRequest(w, "invalid value")
		return
	}

	if err := dev.Write(r.Context(), info.Name, value); err != nil {
		s.logger.Debug("attribute write rejected", "attribute", info.Name, "error", err)
		writeDeviceError(w, err)
		return
	}
	s.auditWrite(r, dev.Name(), info.Name, value)
	w.WriteHeader(http.StatusNoContent)
}

// handleAttributeInputs returns the input results of a combined attribute.
func (s *Server) handleAttributeInputs(w http.ResponseWriter, r *http.Request) {
	dev, info, ok := s.attribute(w, r)
	if !ok {
		return
	}
	if info.Kind != facade.KindCombined {
		writeBadRequest(w, fmt.Sprintf("attribute %q is not combined", info.Name))
		return
	}
	results, err := dev.CombinedResults(info.Name)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	views := make([]inputView, 0, len(results))
	for _, res := range results {
		view := inputView{Remote: res.Remote, Valid: res.Valid}
		switch {
		case res.Err != nil:
			view.Error = res.Err.Error()
		case res.Valid:
			view.Value = res.Triplet.Value()
			view.Quality = res.Triplet.Quality().String()
			view.Time = formatTime(res.Triplet.Time())
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"attribute": info.Name,
		"inputs":    views,
	})
}

// handleAttributeHistory returns recorded changes of an attribute, newest first.
//
// Query parameters:
//   - limit: 1 to history.MaxLimit, history.DefaultLimit when omitted
//   - since: a duration such as "1h" or an RFC 3339 time
func (s *Server) handleAttributeHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history is not enabled")
		return
	}
	dev, info, ok := s.attribute(w, r)
	if !ok {
		return
	}

	q := history.Query{Device: dev.Name(), Attribute: info.Name}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > history.MaxLimit {
			writeBadRequest(w, fmt.Sprintf("limit must be between 1 and %d", history.MaxLimit))
			return
		}
		q.Limit = limit
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := parseSince(raw, time.Now())
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		q.Since = since
	}

	entries, err := s.history.Query(r.Context(), q)
	if err != nil {
		s.logger.Error("history query failed", "attribute", info.Name, "error", err)
		writeInternalError(w, "history query failed")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"attribute": info.Name,
		"entries":   entries,
		"count":     len(entries),
	})
}

// parseSince accepts a look-back duration or an RFC 3339 time.
func parseSince(raw string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("since must not be negative")
		}
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("since must be a duration or an RFC 3339 time")
	}
	return t, nil
}
