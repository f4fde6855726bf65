package http

import (
	"net/http"

	"linkshrink/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

// SetupAPIRoutes mounts the management surface: link CRUD, search, stats,
// and maintenance.
func SetupAPIRoutes(r *chi.Mux, handler *Handler) {
	r.Use(middleware.Metrics)

	r.Get("/health", handler.HealthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/links", handler.CreateLink)
		r.Get("/links", handler.SearchLinks)
		r.Get("/links-count", handler.CountLinks)
		r.Get("/links/{key}", handler.GetLink)
		r.Patch("/links/{key}", handler.UpdateLink)
		r.Delete("/links/{key}", handler.DeleteLink)

		r.Get("/links/{key}/visits", handler.Visits)
		r.Get("/links/{key}/stats/monthly", handler.MonthlyStats)
		r.Get("/links/{key}/stats/daily", handler.DailyStats)
		r.Get("/links/{key}/stats/referers", handler.RefererStats)
		r.Get("/links/{key}/stats/user-agents", handler.UserAgentStats)

		r.Delete("/owners/{owner}/links", handler.DeleteOwnerLinks)

		r.Post("/maintenance/reconcile", handler.Reconcile)
	})
	r.Get("/r/{key}", handler.Redirect)
}

// SetupRedirectRoutes mounts the minimal hot-path surface for the dedicated
// redirect server. rateLimit may be nil when no Redis is configured.
func SetupRedirectRoutes(r *chi.Mux, handler *Handler, rateLimit func(http.Handler) http.Handler) {
	r.Use(middleware.Metrics)
	if rateLimit != nil {
		r.Use(rateLimit)
	}

	r.Get("/health", handler.HealthCheck)
	r.Get("/r/{key}", handler.Redirect)
}
