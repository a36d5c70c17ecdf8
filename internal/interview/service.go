package interview

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/repositories"
)

// GracePeriod absorbs clock and network skew before an over-time interview
// is force-expired. Fixed, not per-interview configurable.
const GracePeriod = 5 * time.Minute

// Evaluator scores a finished transcript. Best-effort: completion never
// waits on it and never fails because of it.
type Evaluator interface {
	Evaluate(ctx context.Context, messages []models.InterviewMessage, jobRole string) (score float64, summary string, recommendation string, err error)
}

// Broadcaster fans interview lifecycle events out to interested channels.
type Broadcaster interface {
	BroadcastInterview(interviewID, recruiterID string, event string, payload interface{})
}

// Notifier delivers recruiter-facing notices out of band. Best-effort:
// completion never waits on delivery.
type Notifier interface {
	SendCompletionNotice(recruiterEmail, candidateEmail, jobRole string)
}

// Service owns the interview state machine.
type Service struct {
	interviews *repositories.InterviewRepository
	messages   *repositories.MessageRepository
	usage      *repositories.UsageRepository
	evaluator  Evaluator
	broadcast  Broadcaster
	notifier   Notifier
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(
	interviews *repositories.InterviewRepository,
	messages *repositories.MessageRepository,
	usage *repositories.UsageRepository,
	evaluator Evaluator,
	broadcast Broadcaster,
	notifier Notifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		interviews: interviews,
		messages:   messages,
		usage:      usage,
		evaluator:  evaluator,
		broadcast:  broadcast,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Service) Get(id string) (*models.Interview, error) {
	iv, err := s.interviews.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return iv, nil
}

// Start moves PENDING -> IN_PROGRESS and stamps startedAt exactly once.
// The conditional update makes duplicate start calls safe: the loser reads
// back the row and gets an InvalidTransitionError with the real state.
func (s *Service) Start(id string) (*models.Interview, error) {
	now := s.now()
	ok, err := s.interviews.TransitionStatus(id, models.StatusPending, models.StatusInProgress,
		map[string]interface{}{"started_at": now})
	if err != nil {
		return nil, err
	}
	if !ok {
		current, gerr := s.Get(id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &InvalidTransitionError{Current: current.Status, Attempted: "start"}
	}

	iv, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	s.emit(iv, "interview:started")
	return iv, nil
}

// Complete moves IN_PROGRESS -> COMPLETED and stamps completedAt exactly
// once. Evaluation runs afterwards in the background.
func (s *Service) Complete(id string) (*models.Interview, error) {
	now := s.now()
	ok, err := s.interviews.TransitionStatus(id, models.StatusInProgress, models.StatusCompleted,
		map[string]interface{}{"completed_at": now})
	if err != nil {
		return nil, err
	}
	if !ok {
		current, gerr := s.Get(id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &InvalidTransitionError{Current: current.Status, Attempted: "complete"}
	}

	iv, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	s.recordUsage(iv, now)
	s.emit(iv, "interview:completed")
	if s.notifier != nil && iv.RecruiterEmail != nil && *iv.RecruiterEmail != "" {
		s.notifier.SendCompletionNotice(*iv.RecruiterEmail, iv.CandidateEmail, iv.JobRole)
	}

	if s.evaluator != nil {
		go s.evaluate(iv)
	}
	return iv, nil
}

// ForceExpire is the reaper's transition. Expires a PENDING interview whose
// invitation has lapsed, or an IN_PROGRESS one past its time limit plus
// grace. Idempotent: a second call on a terminal row changes nothing.
func (s *Service) ForceExpire(iv *models.Interview, now time.Time) (bool, error) {
	switch iv.Status {
	case models.StatusPending:
		if now.Before(iv.ExpiresAt) {
			return false, nil
		}
		ok, err := s.interviews.TransitionStatus(iv.ID, models.StatusPending, models.StatusExpired,
			map[string]interface{}{"completed_at": now})
		if err != nil || !ok {
			return false, err
		}
	case models.StatusInProgress:
		if iv.StartedAt == nil {
			return false, nil
		}
		limit := time.Duration(iv.TimeLimitMinutes)*time.Minute + GracePeriod
		if now.Sub(*iv.StartedAt) <= limit {
			return false, nil
		}
		ok, err := s.interviews.TransitionStatus(iv.ID, models.StatusInProgress, models.StatusExpired,
			map[string]interface{}{"completed_at": now})
		if err != nil || !ok {
			return false, err
		}
		s.recordUsage(iv, now)
	default:
		return false, nil
	}

	iv.Status = models.StatusExpired
	s.emit(iv, "interview:expired")
	return true, nil
}

// UpdateMetadata edits interview fields, allowed only while PENDING.
func (s *Service) UpdateMetadata(id string, req *models.UpdateInterviewRequest) (*models.Interview, error) {
	updates := map[string]interface{}{}
	if req.CandidateName != nil {
		updates["candidate_name"] = *req.CandidateName
	}
	if req.JobRole != nil {
		updates["job_role"] = *req.JobRole
	}
	if req.JobDescription != nil {
		updates["job_description"] = *req.JobDescription
	}
	if req.Company != nil {
		updates["company"] = *req.Company
	}
	if req.TimeLimitMinutes != nil {
		updates["time_limit_minutes"] = *req.TimeLimitMinutes
	}
	if len(updates) == 0 {
		return s.Get(id)
	}

	ok, err := s.interviews.UpdateMetadata(id, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, gerr := s.Get(id); gerr != nil {
			return nil, gerr
		}
		return nil, ErrImmutableState
	}
	return s.Get(id)
}

// Delete removes an interview, allowed only while PENDING.
func (s *Service) Delete(id string) error {
	ok, err := s.interviews.DeletePending(id)
	if err != nil {
		return err
	}
	if !ok {
		if _, gerr := s.Get(id); gerr != nil {
			return gerr
		}
		return ErrImmutableState
	}
	return nil
}

func (s *Service) evaluate(iv *models.Interview) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	msgs, err := s.messages.ListByInterview(iv.ID)
	if err != nil {
		s.logger.Error("evaluation skipped: failed to load transcript",
			zap.String("interview_id", iv.ID), zap.Error(err))
		return
	}

	score, summary, recommendation, err := s.evaluator.Evaluate(ctx, msgs, iv.JobRole)
	if err != nil {
		s.logger.Warn("evaluation failed, leaving interview unscored",
			zap.String("interview_id", iv.ID), zap.Error(err))
		return
	}
	if err := s.interviews.SetEvaluation(iv.ID, score, summary, recommendation); err != nil {
		s.logger.Error("failed to persist evaluation",
			zap.String("interview_id", iv.ID), zap.Error(err))
		return
	}
	if s.broadcast != nil {
		s.broadcast.BroadcastInterview(iv.ID, iv.RecruiterID, "interview:evaluated", map[string]interface{}{
			"interviewId": iv.ID,
			"score":       score,
		})
	}
}

func (s *Service) recordUsage(iv *models.Interview, endedAt time.Time) {
	if s.usage == nil || iv.StartedAt == nil {
		return
	}
	minutes := int(endedAt.Sub(*iv.StartedAt).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	if err := s.usage.AddMinutes(iv.RecruiterID, minutes); err != nil {
		s.logger.Warn("failed to record usage minutes",
			zap.String("recruiter_id", iv.RecruiterID), zap.Error(err))
	}
}

func (s *Service) emit(iv *models.Interview, event string) {
	if s.broadcast == nil {
		return
	}
	s.broadcast.BroadcastInterview(iv.ID, iv.RecruiterID, event, map[string]interface{}{
		"interviewId": iv.ID,
		"status":      iv.Status,
	})
}
