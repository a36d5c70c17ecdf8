package routers

import (
	"github.com/go-chi/chi/v5"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/handlers"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/middleware"
)

// InterviewRoutes mounts the JWT-authenticated recruiter surface.
func InterviewRoutes(router *chi.Mux, h *handlers.InterviewHandler, jwtSecret string) {
	router.Route("/api/v1/interviews", func(r chi.Router) {
		r.Use(middleware.JWTAuth(jwtSecret))

		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
			r.Get("/transcript", h.Transcript)
			r.Post("/token", h.RotateToken)
			r.Delete("/token", h.RevokeToken)
			r.Get("/recording-url", h.RecordingURL)
		})
	})
}
