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
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/bindings", func(r chi.Router) {
			r.Get("/", s.handleListBindings)
			r.Get("/{id}", s.handleGetBinding)
		})

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetEntity)
				r.Put("/attributes/{name}", s.handleSetAttribute)
				r.Delete("/attributes/{name}", s.handleRemoveAttribute)
				r.Put("/style/{property}", s.handleSetStyle)
				r.Post("/commands", s.handleEntityCommand)
				r.Get("/events", s.handleEntityEvents)
			})
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server and hub health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.bindings.Health()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"hub":     health,
	})
}
