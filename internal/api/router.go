package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", h.HealthCheck)

	r.Route("/rewrites", func(r chi.Router) {
		r.Post("/", h.CreateRewrite)
		r.Get("/", h.ListRewrites)
		r.Get("/{id}", h.GetRewrite)
		r.Post("/{id}/cancel", h.CancelRewrite)
		r.Delete("/{id}", h.DeleteRewrite)
	})

	return r
}
