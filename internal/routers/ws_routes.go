package routers

import (
	"github.com/go-chi/chi/v5"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/handlers"
)

// WSRoutes mounts the live sockets. Auth happens inside each handler: JWT
// for the events socket, interview token for the candidate sockets.
func WSRoutes(router *chi.Mux, h *handlers.WSHandler) {
	router.Get("/ws/events", h.EventsWS)
	router.Get("/ws/interview/{id}", h.TextWS)
	router.Get("/ws/voice/{id}", h.VoiceWS)
}
