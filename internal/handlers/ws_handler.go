package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/hub"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/interview"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/metrics"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/middleware"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/orchestrator"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/speech"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/tokens"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/transcript"
)

// WSHandler owns the live channels: the recruiter events socket, the text
// interview socket and the voice interview pipeline.
type WSHandler struct {
	upgrader   websocket.Upgrader
	hub        *hub.Hub
	tokens     *tokens.Store
	state      *interview.Service
	orch       *orchestrator.Orchestrator
	recognizer speech.Recognizer
	jwtSecret  string
	logger     *zap.Logger
}

func NewWSHandler(
	h *hub.Hub,
	tokenStore *tokens.Store,
	state *interview.Service,
	orch *orchestrator.Orchestrator,
	recognizer speech.Recognizer,
	jwtSecret string,
	logger *zap.Logger,
) *WSHandler {
	return &WSHandler{
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		hub:        h,
		tokens:     tokenStore,
		state:      state,
		orch:       orch,
		recognizer: recognizer,
		jwtSecret:  jwtSecret,
		logger:     logger,
	}
}

// socketSink delivers pipeline output onto one websocket connection.
// Replies and errors go out as JSON frames, synthesized audio as binary.
type socketSink struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type wsFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *socketSink) SendReply(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteJSON(wsFrame{Type: "assistant:message", Content: text})
}

func (s *socketSink) SendAudio(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (s *socketSink) SendError(code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteJSON(wsFrame{Type: "error", Code: code, Message: message})
}

func (s *socketSink) sendInterim(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteJSON(wsFrame{Type: "transcript:interim", Content: text})
}

// EventsWS is the authenticated platform-user socket. Clients are
// auto-joined to their personal channel and may request interview channels
// they own (or any, for admins).
func (w *WSHandler) EventsWS(rw http.ResponseWriter, r *http.Request) {
	claims, err := middleware.VerifyJWT(r, w.jwtSecret)
	if err != nil {
		// Browsers cannot set headers on websocket dials; accept the JWT as
		// a query parameter too.
		r.Header.Set("Authorization", "Bearer "+r.URL.Query().Get("auth"))
		claims, err = middleware.VerifyJWT(r, w.jwtSecret)
		if err != nil {
			http.Error(rw, "unauthorized", http.StatusUnauthorized)
			return
		}
	}
	userID, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if userID == "" {
		http.Error(rw, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn("events socket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	client := hub.NewClient(conn)
	w.hub.Connect(client, hub.Identity{Kind: hub.KindUser, UserID: userID, Role: role})
	defer w.hub.Disconnect(client)

	for {
		var frame struct {
			Type    string `json:"type"`
			Channel string `json:"channel"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		switch frame.Type {
		case "join":
			if err := w.hub.Join(client, frame.Channel); err != nil {
				client.Send(hub.Event{Type: "error", Payload: map[string]string{
					"code":    "unauthorized_channel",
					"message": "Not authorized for channel",
				}})
			}
		case "leave":
			w.hub.Leave(client, frame.Channel)
		}
	}
}

// authCandidate validates the bearer token against the interview embedded
// in the connection path and enforces the interview type for the channel.
func (w *WSHandler) authCandidate(rw http.ResponseWriter, r *http.Request, wantType string) *models.Interview {
	session, err := w.tokens.Validate(middleware.ExtractInterviewToken(r))
	if err != nil {
		http.Error(rw, "unauthorized", http.StatusUnauthorized)
		return nil
	}
	if session.InterviewID != chi.URLParam(r, "id") {
		http.Error(rw, "unauthorized", http.StatusUnauthorized)
		return nil
	}

	iv, err := w.state.Get(session.InterviewID)
	if err != nil {
		http.Error(rw, "unauthorized", http.StatusUnauthorized)
		return nil
	}
	if iv.Type != wantType {
		http.Error(rw, "wrong channel for interview type", http.StatusBadRequest)
		return nil
	}
	if iv.Status != models.StatusInProgress {
		http.Error(rw, "interview is not in progress", http.StatusConflict)
		return nil
	}
	return iv
}

// TextWS is the candidate socket for TEXT interviews.
func (w *WSHandler) TextWS(rw http.ResponseWriter, r *http.Request) {
	iv := w.authCandidate(rw, r, models.TypeText)
	if iv == nil {
		return
	}

	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn("text socket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sink := &socketSink{conn: conn}
	if err := w.orch.Register(iv, sink); err != nil {
		w.logger.Error("failed to register session", zap.String("interview_id", iv.ID), zap.Error(err))
		return
	}
	defer w.orch.Unregister(iv.ID)

	client := hub.NewClient(conn)
	w.hub.Connect(client, hub.Identity{Kind: hub.KindCandidate, InterviewID: iv.ID})
	defer w.hub.Disconnect(client)

	metrics.SessionOpened()
	defer metrics.SessionClosed()

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Type == "message" && frame.Content != "" {
			if err := w.orch.Submit(iv.ID, frame.Content); err != nil {
				sink.SendError("no_session", "Session is no longer active")
			}
		}
	}
}

// VoiceWS is the candidate socket for VOICE interviews: binary audio in,
// interim transcripts, assistant replies and synthesized audio out.
func (w *WSHandler) VoiceWS(rw http.ResponseWriter, r *http.Request) {
	iv := w.authCandidate(rw, r, models.TypeVoice)
	if iv == nil {
		return
	}
	if w.recognizer == nil {
		http.Error(rw, "voice transcription is not configured", http.StatusServiceUnavailable)
		return
	}

	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn("voice socket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sink := &socketSink{conn: conn}
	if err := w.orch.Register(iv, sink); err != nil {
		w.logger.Error("failed to register session", zap.String("interview_id", iv.ID), zap.Error(err))
		return
	}
	defer w.orch.Unregister(iv.ID)

	client := hub.NewClient(conn)
	w.hub.Connect(client, hub.Identity{Kind: hub.KindCandidate, InterviewID: iv.ID})
	defer w.hub.Disconnect(client)

	metrics.SessionOpened()
	defer metrics.SessionClosed()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	acc := transcript.NewAccumulator(transcript.DefaultDebounce,
		func(utterance string) {
			if err := w.orch.Submit(iv.ID, utterance); err != nil {
				sink.SendError("no_session", "Session is no longer active")
			}
		},
		sink.sendInterim,
	)
	defer func() {
		acc.Flush()
		acc.Stop()
	}()

	audio := make(chan []byte, 32)
	events := make(chan speech.TranscriptEvent, 32)

	go func() {
		defer close(events)
		if err := w.recognizer.Stream(ctx, audio, events); err != nil && ctx.Err() == nil {
			w.logger.Error("speech recognition stream failed",
				zap.String("interview_id", iv.ID), zap.Error(err))
			sink.SendError("transcription_failed", "Speech recognition failed. Please reconnect.")
		}
	}()
	go func() {
		for ev := range events {
			acc.Ingest(ev)
		}
	}()

	defer close(audio)
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		select {
		case audio <- payload:
		case <-ctx.Done():
			return
		}
	}
}
