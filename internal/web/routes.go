package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/tomasrezac/photo-companion/internal/database"
	"github.com/tomasrezac/photo-companion/internal/web/handlers"
)

func (s *Server) setupRoutes(coordinator handlers.ScanRunner, groups *database.GroupStore) {
	groupsHandler := handlers.NewGroupsHandler(groups)
	scanHandler := handlers.NewScanHandler(coordinator, s.jobManager)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Duplicate groups
		r.Get("/groups", groupsHandler.List)
		r.Get("/groups/{id}", groupsHandler.Get)
		r.Post("/groups/{id}/resolve", groupsHandler.Resolve)
		r.Delete("/groups/{id}/members/{photoUid}", groupsHandler.RemoveMember)

		// Scan jobs (long-running operations)
		r.Post("/scan", scanHandler.Start)
		r.Get("/scan/{jobId}", scanHandler.Status)
		r.Get("/scan/{jobId}/events", scanHandler.Events)
		r.Delete("/scan/{jobId}", scanHandler.Cancel)
	})
}
