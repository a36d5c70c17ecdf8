package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/interview"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/repositories"
)

// TokenRetention is how long expired sessions are kept for audit before the
// hourly sweep purges them.
const TokenRetention = 30 * 24 * time.Hour

// Reaper runs three independent sweeps on their own schedules: interview
// expiry every 15 minutes, token cleanup hourly, usage-counter reset daily.
// A failure in one sweep never aborts the others.
type Reaper struct {
	interviews *repositories.InterviewRepository
	tokens     *repositories.TokenRepository
	usage      *repositories.UsageRepository
	state      *interview.Service
	logger     *zap.Logger
	cron       *cron.Cron
}

// ReaperConfig carries the three cron schedules.
type ReaperConfig struct {
	InterviewSchedule string // default "*/15 * * * *"
	TokenSchedule     string // default "0 * * * *"
	UsageSchedule     string // default "0 0 * * *"
}

func DefaultReaperConfig() *ReaperConfig {
	return &ReaperConfig{
		InterviewSchedule: "*/15 * * * *",
		TokenSchedule:     "0 * * * *",
		UsageSchedule:     "0 0 * * *",
	}
}

func NewReaper(
	interviews *repositories.InterviewRepository,
	tokens *repositories.TokenRepository,
	usage *repositories.UsageRepository,
	state *interview.Service,
	logger *zap.Logger,
) *Reaper {
	return &Reaper{
		interviews: interviews,
		tokens:     tokens,
		usage:      usage,
		state:      state,
		logger:     logger,
		cron:       cron.New(),
	}
}

// Start registers the three schedules and starts the timer. Each sweep logs
// its own errors and never crashes the process.
func (r *Reaper) Start(config *ReaperConfig) error {
	if config == nil {
		config = DefaultReaperConfig()
	}

	if _, err := r.cron.AddFunc(config.InterviewSchedule, func() {
		if n, err := r.SweepInterviews(time.Now()); err != nil {
			r.logger.Error("interview expiry sweep failed", zap.Error(err))
		} else if n > 0 {
			r.logger.Info("interview expiry sweep", zap.Int("expired", n))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule interview sweep: %w", err)
	}

	if _, err := r.cron.AddFunc(config.TokenSchedule, func() {
		if n, err := r.SweepTokens(time.Now()); err != nil {
			r.logger.Error("token cleanup sweep failed", zap.Error(err))
		} else if n > 0 {
			r.logger.Info("token cleanup sweep", zap.Int64("purged", n))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule token sweep: %w", err)
	}

	if _, err := r.cron.AddFunc(config.UsageSchedule, func() {
		if n, err := r.ResetUsage(time.Now()); err != nil {
			r.logger.Error("usage reset sweep failed", zap.Error(err))
		} else if n > 0 {
			r.logger.Info("usage reset sweep", zap.Int64("reset", n))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule usage sweep: %w", err)
	}

	r.cron.Start()
	return nil
}

// Stop cancels all schedules at shutdown.
func (r *Reaper) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// SweepInterviews force-expires stale interviews as of now. Idempotent:
// rerunning with no newly-stale rows is a no-op.
func (r *Reaper) SweepInterviews(now time.Time) (int, error) {
	expired := 0

	pending, err := r.interviews.FindExpirablePending(now)
	if err != nil {
		return expired, err
	}
	for i := range pending {
		ok, err := r.state.ForceExpire(&pending[i], now)
		if err != nil {
			r.logger.Error("failed to expire pending interview",
				zap.String("interview_id", pending[i].ID), zap.Error(err))
			continue
		}
		if ok {
			expired++
		}
	}

	running, err := r.interviews.FindInProgress()
	if err != nil {
		return expired, err
	}
	for i := range running {
		ok, err := r.state.ForceExpire(&running[i], now)
		if err != nil {
			r.logger.Error("failed to expire running interview",
				zap.String("interview_id", running[i].ID), zap.Error(err))
			continue
		}
		if ok {
			expired++
		}
	}

	return expired, nil
}

// SweepTokens purges sessions whose expiry is past the retention window.
// Non-expired sessions are never touched, whatever their interview's state.
func (r *Reaper) SweepTokens(now time.Time) (int64, error) {
	return r.tokens.DeleteExpiredBefore(now.Add(-TokenRetention))
}

// ResetUsage zeroes the daily per-recruiter usage counters.
func (r *Reaper) ResetUsage(_ time.Time) (int64, error) {
	return r.usage.ResetAll()
}
