package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Sensor endpoints
		r.Route("/sensors", func(r chi.Router) {
			r.Get("/", s.handleListSensors)

			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetSensor)
				r.Get("/readings/{kind}", s.handleGetReading)
				r.Get("/history", s.handleGetHistory)
				r.Post("/reconnect", s.handleReconnect)
			})
		})

		// Cache settings
		r.Route("/cache", func(r chi.Router) {
			r.Get("/max-age", s.handleGetMaxCacheAge)
			r.Put("/max-age", s.handleSetMaxCacheAge)
		})

		// WebSocket reading stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"sensors": s.registry.Count(),
	})
}
