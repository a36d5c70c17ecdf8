package routers

import (
	"github.com/go-chi/chi/v5"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/handlers"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/metrics"
)

func HealthRoutes(router *chi.Mux, h *handlers.HealthHandler) {
	router.Get("/health", h.Health)
	router.Handle("/metrics", metrics.Handler())
}
