package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/interview"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/middleware"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/objectstore"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/orchestrator"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/repositories"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/utils"
)

// CandidateHandler is the token-authenticated candidate path. Every request
// passed the token middleware; handlers still re-check interview state.
type CandidateHandler struct {
	state      *interview.Service
	orch       *orchestrator.Orchestrator
	messages   *repositories.MessageRepository
	interviews *repositories.InterviewRepository
	recordings *objectstore.Store
	logger     *zap.Logger
}

func NewCandidateHandler(
	state *interview.Service,
	orch *orchestrator.Orchestrator,
	messages *repositories.MessageRepository,
	interviews *repositories.InterviewRepository,
	recordings *objectstore.Store,
	logger *zap.Logger,
) *CandidateHandler {
	return &CandidateHandler{
		state:      state,
		orch:       orch,
		messages:   messages,
		interviews: interviews,
		recordings: recordings,
		logger:     logger,
	}
}

// Get returns the candidate's interview.
func (h *CandidateHandler) Get(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r)
	iv, err := h.state.Get(session.InterviewID)
	if err != nil {
		writeStateError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, iv)
}

// Start begins the interview. A duplicate start gets invalid_transition,
// never a second startedAt.
func (h *CandidateHandler) Start(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r)
	iv, err := h.state.Start(session.InterviewID)
	if err != nil {
		writeStateError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, iv)
}

// Message runs one text turn and returns the assistant reply.
func (h *CandidateHandler) Message(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r)

	var req models.CandidateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
			Code: "invalid_request", Message: "Message content is required",
		})
		return
	}

	iv, err := h.state.Get(session.InterviewID)
	if err != nil {
		writeStateError(w, err)
		return
	}
	if iv.Status != models.StatusInProgress {
		writeStateError(w, &interview.InvalidTransitionError{Current: iv.Status, Attempted: "message"})
		return
	}
	if iv.Type != models.TypeText {
		utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
			Code: "wrong_channel", Message: "Voice interviews use the voice channel",
		})
		return
	}

	reply, err := h.orch.TakeTurn(r.Context(), iv, strings.TrimSpace(req.Content))
	if err != nil {
		if errors.Is(err, orchestrator.ErrTurnInProgress) {
			utils.JSON(w, http.StatusConflict, models.ErrorResponse{
				Code: "turn_in_progress", Message: "The previous message is still being processed",
			})
			return
		}
		h.logger.Error("text turn failed", zap.String("interview_id", iv.ID), zap.Error(err))
		utils.JSON(w, http.StatusBadGateway, models.ErrorResponse{
			Code: "provider_failure", Message: "Failed to generate a response. Please resend your message.",
		})
		return
	}

	utils.JSON(w, http.StatusOK, models.CandidateMessageResponse{Reply: reply})
}

// Transcript returns the persisted message log, the re-sync source after a
// reconnect.
func (h *CandidateHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r)
	msgs, err := h.messages.ListByInterview(session.InterviewID)
	if err != nil {
		writeStateError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, msgs)
}

// Complete finishes the interview. Evaluation happens in the background.
func (h *CandidateHandler) Complete(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r)
	iv, err := h.state.Complete(session.InterviewID)
	if err != nil {
		writeStateError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, iv)
}

// UploadURL hands out a presigned PUT target for the interview recording.
func (h *CandidateHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r)

	if h.recordings == nil {
		utils.JSON(w, http.StatusServiceUnavailable, models.ErrorResponse{
			Code: "storage_unavailable", Message: "Recording storage is not configured",
		})
		return
	}

	url, key, err := h.recordings.GenerateUploadURL(r.Context(), session.InterviewID)
	if err != nil {
		h.logger.Error("failed to presign upload",
			zap.String("interview_id", session.InterviewID), zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code: "internal_error", Message: "Failed to generate upload URL",
		})
		return
	}
	if err := h.interviews.SetRecordingKey(session.InterviewID, key); err != nil {
		h.logger.Error("failed to store recording key",
			zap.String("interview_id", session.InterviewID), zap.Error(err))
	}

	utils.JSON(w, http.StatusOK, models.UploadURLResponse{URL: url, Key: key})
}
