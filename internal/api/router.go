package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-facade/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Get("/health", s.handleHealth)

		// Protected when API auth is enabled
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.requirePermission(auth.PermAttributeRead))

			r.Route("/device", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/info", s.handleDeviceInfo)
			})

			r.Route("/attributes", func(r chi.Router) {
				r.Get("/", s.handleListAttributes)

				r.Route("/{name}", func(r chi.Router) {
					r.Get("/", s.handleReadAttribute)
					r.With(s.requirePermission(auth.PermAttributeWrite)).Put("/", s.handleWriteAttribute)
					r.Get("/inputs", s.handleAttributeInputs)
					r.Get("/history", s.handleAttributeHistory)
				})
			})

			r.Get("/audit", s.handleListAudit)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if dev := s.devices.Device(); dev == nil || !dev.Connected() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
	})
}
