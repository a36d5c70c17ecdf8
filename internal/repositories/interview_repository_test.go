package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/testhelpers"
)

func seedInterview(t *testing.T, repo *InterviewRepository, recruiterID, status string) *models.Interview {
	t.Helper()
	iv := &models.Interview{
		ID:               uuid.New().String(),
		RecruiterID:      recruiterID,
		CandidateEmail:   "candidate@example.com",
		JobRole:          "Backend Engineer",
		Type:             models.TypeText,
		Status:           status,
		TimeLimitMinutes: 30,
		ExpiresAt:        time.Now().Add(72 * time.Hour),
	}
	if err := repo.Create(iv); err != nil {
		t.Fatalf("failed to seed interview: %v", err)
	}
	return iv
}

func TestTransitionStatusConditional(t *testing.T) {
	repo := &InterviewRepository{DB: testhelpers.SetupTestDB(t)}
	iv := seedInterview(t, repo, "recruiter-1", models.StatusPending)

	ok, err := repo.TransitionStatus(iv.ID, models.StatusPending, models.StatusInProgress, nil)
	assert.NoError(t, err)
	assert.True(t, ok)

	// second transition from the same "from" state loses
	ok, err = repo.TransitionStatus(iv.ID, models.StatusPending, models.StatusInProgress, nil)
	assert.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(iv.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
}

func TestUpdateMetadataOnlyWhilePending(t *testing.T) {
	repo := &InterviewRepository{DB: testhelpers.SetupTestDB(t)}

	pending := seedInterview(t, repo, "recruiter-1", models.StatusPending)
	ok, err := repo.UpdateMetadata(pending.ID, map[string]interface{}{"job_role": "SRE"})
	assert.NoError(t, err)
	assert.True(t, ok)

	running := seedInterview(t, repo, "recruiter-1", models.StatusInProgress)
	ok, err = repo.UpdateMetadata(running.ID, map[string]interface{}{"job_role": "SRE"})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDeletePendingOnly(t *testing.T) {
	repo := &InterviewRepository{DB: testhelpers.SetupTestDB(t)}

	pending := seedInterview(t, repo, "recruiter-1", models.StatusPending)
	ok, err := repo.DeletePending(pending.ID)
	assert.NoError(t, err)
	assert.True(t, ok)

	completed := seedInterview(t, repo, "recruiter-1", models.StatusCompleted)
	ok, err = repo.DeletePending(completed.ID)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestListByRecruiterFiltersByStatus(t *testing.T) {
	repo := &InterviewRepository{DB: testhelpers.SetupTestDB(t)}

	seedInterview(t, repo, "recruiter-1", models.StatusPending)
	seedInterview(t, repo, "recruiter-1", models.StatusCompleted)
	seedInterview(t, repo, "recruiter-2", models.StatusPending)

	all, err := repo.ListByRecruiter("recruiter-1", "")
	assert.NoError(t, err)
	assert.Len(t, all, 2)

	completed, err := repo.ListByRecruiter("recruiter-1", models.StatusCompleted)
	assert.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestOwnsInterview(t *testing.T) {
	repo := &InterviewRepository{DB: testhelpers.SetupTestDB(t)}
	iv := seedInterview(t, repo, "recruiter-1", models.StatusPending)

	owns, err := repo.OwnsInterview("recruiter-1", iv.ID)
	assert.NoError(t, err)
	assert.True(t, owns)

	owns, err = repo.OwnsInterview("recruiter-2", iv.ID)
	assert.NoError(t, err)
	assert.False(t, owns)
}

func TestFindExpirablePending(t *testing.T) {
	repo := &InterviewRepository{DB: testhelpers.SetupTestDB(t)}
	now := time.Now()

	stale := seedInterview(t, repo, "recruiter-1", models.StatusPending)
	assert.NoError(t, repo.DB.Model(stale).Update("expires_at", now.Add(-time.Hour)).Error)
	seedInterview(t, repo, "recruiter-1", models.StatusPending)

	rows, err := repo.FindExpirablePending(now)
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}

func TestMessageOrderingIsStable(t *testing.T) {
	repo := &MessageRepository{DB: testhelpers.SetupTestDB(t)}

	for i, content := range []string{"one", "two", "three"} {
		assert.NoError(t, repo.Append(&models.InterviewMessage{
			ID:          uuid.New().String(),
			InterviewID: "iv-1",
			Role:        models.RoleUser,
			Content:     content,
			CreatedAt:   time.Now().Add(time.Duration(i) * time.Millisecond),
		}))
	}

	msgs, err := repo.ListByInterview("iv-1")
	assert.NoError(t, err)
	assert.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "three", msgs[2].Content)

	n, err := repo.CountByInterview("iv-1")
	assert.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestUsageCounterUpsert(t *testing.T) {
	repo := &UsageRepository{DB: testhelpers.SetupTestDB(t)}

	assert.NoError(t, repo.AddMinutes("recruiter-1", 10))
	assert.NoError(t, repo.AddMinutes("recruiter-1", 5))

	c, err := repo.Get("recruiter-1")
	assert.NoError(t, err)
	assert.Equal(t, 15, c.MinutesUsed)
}
