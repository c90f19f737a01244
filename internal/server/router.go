package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/weftware/weft/internal/api"
	"github.com/weftware/weft/internal/api/handlers"
	"github.com/weftware/weft/internal/api/middleware"
)

type RouterConfig struct {
	FragmentHandler   *handlers.FragmentHandler
	SearchHandler     *handlers.SearchHandler
	DecisionHandler   *handlers.DecisionHandler
	AssumptionHandler *handlers.AssumptionHandler
	GraphHandler      *handlers.GraphHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/fragments", func(r chi.Router) {
			r.Post("/", cfg.FragmentHandler.Create)
			r.Get("/", cfg.FragmentHandler.List)
			r.Get("/{id}", cfg.FragmentHandler.Get)
			r.Delete("/{id}", cfg.FragmentHandler.Delete)
			r.Get("/{id}/related", cfg.FragmentHandler.Related)
		})

		r.Post("/search", cfg.SearchHandler.Search)

		r.Route("/decisions", func(r chi.Router) {
			r.Post("/", cfg.DecisionHandler.Create)
			r.Get("/", cfg.DecisionHandler.List)
			r.Get("/{id}", cfg.DecisionHandler.Get)
		})

		r.Route("/assumptions", func(r chi.Router) {
			r.Post("/", cfg.AssumptionHandler.Create)
			r.Get("/", cfg.AssumptionHandler.List)
			r.Get("/{id}", cfg.AssumptionHandler.Get)
			r.Post("/{id}/invalidate", cfg.AssumptionHandler.Invalidate)
			r.Post("/{id}/validate", cfg.AssumptionHandler.Validate)
		})

		r.Get("/graph", cfg.GraphHandler.Get)
	})

	return r
}
