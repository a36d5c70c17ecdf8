package repositories

import (
	"time"

	"gorm.io/gorm"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
)

type InterviewRepository struct {
	DB *gorm.DB
}

func (r *InterviewRepository) Create(interview *models.Interview) error {
	return r.DB.Create(interview).Error
}

func (r *InterviewRepository) GetByID(id string) (*models.Interview, error) {
	var iv models.Interview
	if err := r.DB.Where("id = ?", id).First(&iv).Error; err != nil {
		return nil, err
	}
	return &iv, nil
}

func (r *InterviewRepository) ListByRecruiter(recruiterID, status string) ([]models.Interview, error) {
	var out []models.Interview
	q := r.DB.Where("recruiter_id = ?", recruiterID).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// TransitionStatus applies a single conditional status update. It returns
// true only when the row was still in the expected "from" state, so two
// racing callers can never both win the same transition.
func (r *InterviewRepository) TransitionStatus(id, from, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	tx := r.DB.Model(&models.Interview{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// UpdateMetadata writes metadata fields only while the interview is still
// PENDING. Returns false if the row has moved past PENDING.
func (r *InterviewRepository) UpdateMetadata(id string, updates map[string]interface{}) (bool, error) {
	tx := r.DB.Model(&models.Interview{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// DeletePending removes an interview only while PENDING.
func (r *InterviewRepository) DeletePending(id string) (bool, error) {
	tx := r.DB.Where("id = ? AND status = ?", id, models.StatusPending).
		Delete(&models.Interview{})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// SetEvaluation attaches a best-effort evaluation result after completion.
func (r *InterviewRepository) SetEvaluation(id string, score float64, summary, recommendation string) error {
	return r.DB.Model(&models.Interview{}).Where("id = ?", id).Updates(map[string]interface{}{
		"score":              score,
		"transcript_summary": summary,
		"recommendation":     recommendation,
	}).Error
}

// SetRecordingKey records the object-storage key of an uploaded recording.
func (r *InterviewRepository) SetRecordingKey(id, key string) error {
	return r.DB.Model(&models.Interview{}).Where("id = ?", id).
		Update("recording_key", key).Error
}

// OwnsInterview reports whether the user is the interview's recruiter.
func (r *InterviewRepository) OwnsInterview(userID, interviewID string) (bool, error) {
	var count int64
	err := r.DB.Model(&models.Interview{}).
		Where("id = ? AND recruiter_id = ?", interviewID, userID).
		Count(&count).Error
	return count == 1, err
}

// FindExpirablePending returns PENDING interviews whose invitation expiry
// has passed at now.
func (r *InterviewRepository) FindExpirablePending(now time.Time) ([]models.Interview, error) {
	var out []models.Interview
	err := r.DB.Where("status = ? AND expires_at <= ?", models.StatusPending, now).Find(&out).Error
	return out, err
}

// FindInProgress returns all interviews currently running. Per-row time
// limits are checked by the caller.
func (r *InterviewRepository) FindInProgress() ([]models.Interview, error) {
	var out []models.Interview
	err := r.DB.Where("status = ?", models.StatusInProgress).Find(&out).Error
	return out, err
}
