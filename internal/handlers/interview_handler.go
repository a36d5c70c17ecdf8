package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/hub"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/interview"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/middleware"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/notify"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/objectstore"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/repositories"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/tokens"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/utils"
)

// InterviewHandler is the JWT-authenticated recruiter/admin surface.
type InterviewHandler struct {
	state      *interview.Service
	interviews *repositories.InterviewRepository
	messages   *repositories.MessageRepository
	tokens     *tokens.Store
	notifier   *notify.Notifier
	recordings *objectstore.Store
	baseURL    string
	tokenTTL   time.Duration
	logger     *zap.Logger
}

func NewInterviewHandler(
	state *interview.Service,
	interviews *repositories.InterviewRepository,
	messages *repositories.MessageRepository,
	tokenStore *tokens.Store,
	notifier *notify.Notifier,
	recordings *objectstore.Store,
	baseURL string,
	tokenTTL time.Duration,
	logger *zap.Logger,
) *InterviewHandler {
	return &InterviewHandler{
		state:      state,
		interviews: interviews,
		messages:   messages,
		tokens:     tokenStore,
		notifier:   notifier,
		recordings: recordings,
		baseURL:    baseURL,
		tokenTTL:   tokenTTL,
		logger:     logger,
	}
}

// Create registers an interview, issues its first token and emails the
// invite in the background.
func (h *InterviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	recruiterID, _ := middleware.GetUser(r)

	var req models.CreateInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
			Code: "invalid_request", Message: "Invalid JSON body",
		})
		return
	}
	if req.CandidateEmail == "" || req.JobRole == "" {
		utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
			Code: "invalid_request", Message: "candidateEmail and jobRole are required",
		})
		return
	}

	ivType := req.Type
	if ivType == "" {
		ivType = models.TypeText
	}
	if ivType != models.TypeText && ivType != models.TypeVoice {
		utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
			Code: "invalid_request", Message: "type must be TEXT or VOICE",
		})
		return
	}

	timeLimit := req.TimeLimitMinutes
	if timeLimit <= 0 {
		timeLimit = 30
	}
	expiresIn := time.Duration(req.ExpiresInHours) * time.Hour
	if expiresIn <= 0 {
		expiresIn = h.tokenTTL
	}

	iv := &models.Interview{
		ID:               uuid.New().String(),
		RecruiterID:      recruiterID,
		CandidateEmail:   req.CandidateEmail,
		JobRole:          req.JobRole,
		JobDescription:   req.JobDescription,
		Company:          req.Company,
		Type:             ivType,
		Status:           models.StatusPending,
		TimeLimitMinutes: timeLimit,
		ExpiresAt:        time.Now().Add(expiresIn),
	}
	if req.CandidateName != "" {
		iv.CandidateName = &req.CandidateName
	}
	if req.CandidatePhone != "" {
		iv.CandidatePhone = &req.CandidatePhone
	}
	if email := middleware.GetUserEmail(r); email != "" {
		iv.RecruiterEmail = &email
	}

	if err := h.interviews.Create(iv); err != nil {
		h.logger.Error("failed to create interview", zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code: "internal_error", Message: "Failed to create interview",
		})
		return
	}

	session, err := h.tokens.Issue(iv.ID, expiresIn)
	if err != nil {
		h.logger.Error("failed to issue interview token",
			zap.String("interview_id", iv.ID), zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code: "internal_error", Message: "Failed to issue interview token",
		})
		return
	}

	link := h.inviteLink(session.Token)
	h.notifier.SendInvite(iv.CandidateEmail, req.CandidateName, iv.JobRole, link)
	if req.CandidatePhone != "" {
		h.notifier.SendWhatsApp(req.CandidatePhone, fmt.Sprintf(
			"You have been invited to an interview for the role of %s. Join here: %s", iv.JobRole, link))
	}

	utils.JSON(w, http.StatusCreated, models.InterviewWithToken{Interview: iv, Token: session.Token})
}

// List returns the recruiter's interviews, optionally filtered by status.
func (h *InterviewHandler) List(w http.ResponseWriter, r *http.Request) {
	recruiterID, _ := middleware.GetUser(r)
	status := strings.ToUpper(r.URL.Query().Get("status"))

	out, err := h.interviews.ListByRecruiter(recruiterID, status)
	if err != nil {
		h.logger.Error("failed to list interviews", zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code: "internal_error", Message: "Failed to list interviews",
		})
		return
	}
	utils.JSON(w, http.StatusOK, out)
}

// Get returns one interview if the caller owns it or is an admin.
func (h *InterviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.authorized(w, r)
	if !ok {
		return
	}
	utils.JSON(w, http.StatusOK, iv)
}

// Transcript returns the interview's message log.
func (h *InterviewHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.authorized(w, r)
	if !ok {
		return
	}
	msgs, err := h.messages.ListByInterview(iv.ID)
	if err != nil {
		writeStateError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, msgs)
}

// Update edits interview metadata, allowed only while PENDING.
func (h *InterviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.authorized(w, r)
	if !ok {
		return
	}

	var req models.UpdateInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
			Code: "invalid_request", Message: "Invalid JSON body",
		})
		return
	}

	updated, err := h.state.UpdateMetadata(iv.ID, &req)
	if err != nil {
		writeStateError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, updated)
}

// Delete removes a PENDING interview.
func (h *InterviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.authorized(w, r)
	if !ok {
		return
	}
	if err := h.state.Delete(iv.ID); err != nil {
		writeStateError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RotateToken issues a fresh invite token. Earlier tokens stay valid until
// their own expiry; rotation only changes the advertised link.
func (h *InterviewHandler) RotateToken(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.authorized(w, r)
	if !ok {
		return
	}
	if iv.Terminal() {
		writeStateError(w, &interview.InvalidTransitionError{Current: iv.Status, Attempted: "rotate token"})
		return
	}

	session, err := h.tokens.Issue(iv.ID, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to rotate token", zap.String("interview_id", iv.ID), zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code: "internal_error", Message: "Failed to rotate token",
		})
		return
	}
	utils.JSON(w, http.StatusOK, models.InterviewWithToken{Interview: iv, Token: session.Token})
}

// RevokeToken kills every live invite token for the interview, the response
// to a leaked link. The recruiter rotates afterwards to invite again.
func (h *InterviewHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.authorized(w, r)
	if !ok {
		return
	}

	n, err := h.tokens.RevokeAll(iv.ID)
	if err != nil {
		h.logger.Error("failed to revoke tokens", zap.String("interview_id", iv.ID), zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code: "internal_error", Message: "Failed to revoke interview tokens",
		})
		return
	}
	h.logger.Info("revoked interview tokens",
		zap.String("interview_id", iv.ID), zap.Int64("count", n))
	w.WriteHeader(http.StatusNoContent)
}

// RecordingURL returns a presigned download link for the stored recording.
func (h *InterviewHandler) RecordingURL(w http.ResponseWriter, r *http.Request) {
	iv, ok := h.authorized(w, r)
	if !ok {
		return
	}
	if h.recordings == nil || iv.RecordingKey == nil {
		utils.JSON(w, http.StatusNotFound, models.ErrorResponse{
			Code: "not_found", Message: "No recording available",
		})
		return
	}

	url, err := h.recordings.GenerateDownloadURL(r.Context(), *iv.RecordingKey)
	if err != nil {
		h.logger.Error("failed to presign download", zap.String("interview_id", iv.ID), zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code: "internal_error", Message: "Failed to generate download URL",
		})
		return
	}
	utils.JSON(w, http.StatusOK, models.DownloadURLResponse{URL: url})
}

// authorized loads the interview from the path and enforces ownership.
func (h *InterviewHandler) authorized(w http.ResponseWriter, r *http.Request) (*models.Interview, bool) {
	userID, role := middleware.GetUser(r)

	iv, err := h.state.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeStateError(w, err)
		return nil, false
	}
	if iv.RecruiterID != userID && role != hub.RoleAdmin {
		utils.JSON(w, http.StatusForbidden, models.ErrorResponse{
			Code: "forbidden", Message: "You do not own this interview",
		})
		return nil, false
	}
	return iv, true
}

func (h *InterviewHandler) inviteLink(token string) string {
	return fmt.Sprintf("%s/interview?token=%s", strings.TrimRight(h.baseURL, "/"), token)
}
