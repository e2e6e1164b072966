package web

import (
	"github.com/go-chi/chi/v5"

	"photosweep/internal/web/handlers"
)

func (s *Server) setupRoutes(deps handlers.Deps) {
	scanHandler := handlers.NewScanHandler(deps, s.jobManager, s.holder)
	groupsHandler := handlers.NewGroupsHandler(s.holder)
	confirmationsHandler := handlers.NewConfirmationsHandler(s.holder)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Scan (long-running operations)
		r.Post("/scan", scanHandler.Start)
		r.Get("/scan/{jobId}", scanHandler.Status)
		r.Get("/scan/{jobId}/events", scanHandler.Events)
		r.Delete("/scan/{jobId}", scanHandler.Cancel)

		// Review
		r.Get("/groups", groupsHandler.List)
		r.Post("/decision", groupsHandler.Decide)
		r.Post("/undo", groupsHandler.Undo)

		// Confirmations
		r.Get("/confirmations/{category}", confirmationsHandler.List)
		r.Post("/confirmations/{category}/commit", confirmationsHandler.Commit)
		r.Post("/actions/{actionId}/toggle", confirmationsHandler.Toggle)
	})
}
