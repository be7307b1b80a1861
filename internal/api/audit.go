package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-facade/internal/audit"
	"github.com/nerrad567/gray-logic-facade/internal/auth"
)

// auditSource tags entries created by this API.
const auditSource = "api"

// auditWrite records a successful attribute write. Failures are logged
// and never fail the request.
func (s *Server) auditWrite(r *http.Request, device, attribute string, value any) {
	if s.audit == nil {
		return
	}
	entry := &audit.Entry{
		Action:    audit.ActionWrite,
		Device:    device,
		Attribute: attribute,
		Source:    auditSource,
		Details:   map[string]any{"value": value},
	}
	if claims, ok := r.Context().Value(ctxKeyClaims).(*auth.Claims); ok {
		entry.Subject = claims.Subject
	}
	if id, ok := r.Context().Value(ctxKeyRequestID).(string); ok {
		entry.Details["request_id"] = id
	}
	if err := s.audit.Create(r.Context(), entry); err != nil {
		s.logger.Warn("audit write failed", "attribute", attribute, "error", err)
	}
}

// handleListAudit returns the audit trail of the served device.
//
// Query parameters: action, attribute, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "audit is not enabled")
		return
	}
	dev, ok := s.device(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	f := audit.Filter{
		Action:    q.Get("action"),
		Device:    dev.Name(),
		Attribute: q.Get("attribute"),
	}
	for _, p := range []struct {
		name string
		dst  *int
		min  int
	}{
		{"limit", &f.Limit, 1},
		{"offset", &f.Offset, 0},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < p.min {
			writeBadRequest(w, "invalid "+p.name)
			return
		}
		*p.dst = n
	}

	res, err := s.audit.List(r.Context(), f)
	if err != nil {
		s.logger.Error("audit query failed", "error", err)
		writeInternalError(w, "audit query failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
