package repositories

import (
	"time"

	"gorm.io/gorm"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
)

type TokenRepository struct {
	DB *gorm.DB
}

func (r *TokenRepository) Create(session *models.InterviewSession) error {
	return r.DB.Create(session).Error
}

func (r *TokenRepository) GetByToken(token string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	if err := r.DB.Where("token = ?", token).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Touch updates last-seen metadata. Expiry is absolute from issuance and is
// never extended here.
func (r *TokenRepository) Touch(id string, at time.Time) error {
	return r.DB.Model(&models.InterviewSession{}).Where("id = ?", id).
		Update("last_seen_at", at).Error
}

// Revoke sets revoked_at once. Re-revoking an already revoked session is a
// no-op.
func (r *TokenRepository) Revoke(token string, at time.Time) error {
	return r.DB.Model(&models.InterviewSession{}).
		Where("token = ? AND revoked_at IS NULL", token).
		Update("revoked_at", at).Error
}

// RevokeAllForInterview sets revoked_at on every still-active session of an
// interview. Returns how many sessions were killed.
func (r *TokenRepository) RevokeAllForInterview(interviewID string, at time.Time) (int64, error) {
	tx := r.DB.Model(&models.InterviewSession{}).
		Where("interview_id = ? AND revoked_at IS NULL", interviewID).
		Update("revoked_at", at)
	return tx.RowsAffected, tx.Error
}

// DeleteExpiredBefore purges sessions whose expiry is older than the cutoff.
// Sessions are retained for audit until then, revoked or not.
func (r *TokenRepository) DeleteExpiredBefore(cutoff time.Time) (int64, error) {
	tx := r.DB.Where("expires_at <= ?", cutoff).Delete(&models.InterviewSession{})
	return tx.RowsAffected, tx.Error
}
