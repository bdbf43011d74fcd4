package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ugoku-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware(auth.PermRunRead))

			r.Get("/run", s.handleGetRun)
			r.Get("/devices", s.handleListDevices)
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{id}", s.handleGetJournalRun)
			r.Get("/audit", s.handleListAudit)
			r.Get("/ws", s.handleWebSocket)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware(auth.PermRunStop))
			r.Post("/run/stop", s.handleStopRun)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"run":     s.runs.Snapshot().State,
	})
}
