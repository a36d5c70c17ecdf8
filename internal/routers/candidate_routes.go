package routers

import (
	"github.com/go-chi/chi/v5"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/handlers"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/middleware"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/tokens"
)

// CandidateRoutes mounts the token-authenticated candidate surface. The
// interview is implied by the token, so no id appears in the path.
func CandidateRoutes(router *chi.Mux, h *handlers.CandidateHandler, store *tokens.Store) {
	router.Route("/api/v1/candidate/interview", func(r chi.Router) {
		r.Use(middleware.TokenAuth(store))

		r.Get("/", h.Get)
		r.Post("/start", h.Start)
		r.Post("/message", h.Message)
		r.Get("/transcript", h.Transcript)
		r.Post("/complete", h.Complete)
		r.Post("/recording/upload-url", h.UploadURL)
	})
}
