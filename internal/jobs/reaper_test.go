package jobs

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/interview"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/repositories"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/testhelpers"
)

func newTestReaper(t *testing.T) (*Reaper, *repositories.InterviewRepository, *repositories.TokenRepository, *repositories.UsageRepository) {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	interviews := &repositories.InterviewRepository{DB: db}
	messages := &repositories.MessageRepository{DB: db}
	tokens := &repositories.TokenRepository{DB: db}
	usage := &repositories.UsageRepository{DB: db}

	state := interview.NewService(interviews, messages, usage, nil, nil, nil, zap.NewNop())
	return NewReaper(interviews, tokens, usage, state, zap.NewNop()), interviews, tokens, usage
}

func seedInterview(t *testing.T, repo *repositories.InterviewRepository, status string, expiresAt time.Time, startedAt *time.Time) *models.Interview {
	t.Helper()
	iv := &models.Interview{
		ID:               uuid.New().String(),
		RecruiterID:      "recruiter-1",
		CandidateEmail:   "candidate@example.com",
		JobRole:          "Backend Engineer",
		Type:             models.TypeText,
		Status:           status,
		TimeLimitMinutes: 30,
		ExpiresAt:        expiresAt,
		StartedAt:        startedAt,
	}
	if err := repo.Create(iv); err != nil {
		t.Fatalf("failed to seed interview: %v", err)
	}
	return iv
}

func TestSweepInterviewsExpiresStaleRows(t *testing.T) {
	reaper, interviews, _, _ := newTestReaper(t)
	now := time.Now()

	lapsedPending := seedInterview(t, interviews, models.StatusPending, now.Add(-time.Hour), nil)
	freshPending := seedInterview(t, interviews, models.StatusPending, now.Add(time.Hour), nil)

	overtime := now.Add(-40 * time.Minute)
	overtimeRunning := seedInterview(t, interviews, models.StatusInProgress, now.Add(time.Hour), &overtime)
	inGrace := now.Add(-33 * time.Minute)
	graceRunning := seedInterview(t, interviews, models.StatusInProgress, now.Add(time.Hour), &inGrace)

	n, err := reaper.SweepInterviews(now)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	for id, want := range map[string]string{
		lapsedPending.ID:   models.StatusExpired,
		freshPending.ID:    models.StatusPending,
		overtimeRunning.ID: models.StatusExpired,
		graceRunning.ID:    models.StatusInProgress,
	} {
		got, err := interviews.GetByID(id)
		assert.NoError(t, err)
		assert.Equal(t, want, got.Status, "interview %s", id)
	}
}

func TestSweepInterviewsIdempotent(t *testing.T) {
	reaper, interviews, _, _ := newTestReaper(t)
	now := time.Now()

	seedInterview(t, interviews, models.StatusPending, now.Add(-time.Hour), nil)

	n, err := reaper.SweepInterviews(now)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = reaper.SweepInterviews(now)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSweepTokensHonorsRetention(t *testing.T) {
	reaper, _, tokens, _ := newTestReaper(t)
	now := time.Now()

	old := &models.InterviewSession{
		ID: uuid.New().String(), InterviewID: "iv-1", Token: "old-token",
		ExpiresAt: now.Add(-TokenRetention - time.Hour),
	}
	recent := &models.InterviewSession{
		ID: uuid.New().String(), InterviewID: "iv-1", Token: "recent-token",
		ExpiresAt: now.Add(-time.Hour),
	}
	live := &models.InterviewSession{
		ID: uuid.New().String(), InterviewID: "iv-1", Token: "live-token",
		ExpiresAt: now.Add(time.Hour),
	}
	for _, s := range []*models.InterviewSession{old, recent, live} {
		assert.NoError(t, tokens.Create(s))
	}

	n, err := reaper.SweepTokens(now)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = tokens.GetByToken("old-token")
	assert.Error(t, err)
	_, err = tokens.GetByToken("recent-token")
	assert.NoError(t, err)
	_, err = tokens.GetByToken("live-token")
	assert.NoError(t, err)
}

func TestResetUsageZeroesCounters(t *testing.T) {
	reaper, _, _, usage := newTestReaper(t)

	assert.NoError(t, usage.AddMinutes("recruiter-1", 45))
	assert.NoError(t, usage.AddMinutes("recruiter-2", 10))

	n, err := reaper.ResetUsage(time.Now())
	assert.NoError(t, err)
	assert.EqualValues(t, 2, n)

	c, err := usage.Get("recruiter-1")
	assert.NoError(t, err)
	assert.Equal(t, 0, c.MinutesUsed)

	// second run has nothing left to reset
	n, err = reaper.ResetUsage(time.Now())
	assert.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	reaper, _, _, _ := newTestReaper(t)
	defer reaper.Stop()

	err := reaper.Start(&ReaperConfig{
		InterviewSchedule: "not a schedule",
		TokenSchedule:     "0 * * * *",
		UsageSchedule:     "0 0 * * *",
	})
	assert.Error(t, err)
}
