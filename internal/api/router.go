package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/sd", func(r chi.Router) {
		r.Get("/info", s.handleInfo)
		r.Get("/icon/{uuid}", s.handleGetIcon)
		r.Post("/icon/{uuid}", s.handleSetIcon)
	})

	// Event stream
	r.Get("/", s.handleWebSocket)

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"clients": s.hub.ClientCount(),
		"devices": len(s.devices()),
	})
}
