package repositories

import (
	"gorm.io/gorm"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
)

type MessageRepository struct {
	DB *gorm.DB
}

func (r *MessageRepository) Append(msg *models.InterviewMessage) error {
	return r.DB.Create(msg).Error
}

// ListByInterview returns the full transcript in creation order.
func (r *MessageRepository) ListByInterview(interviewID string) ([]models.InterviewMessage, error) {
	var out []models.InterviewMessage
	err := r.DB.Where("interview_id = ?", interviewID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *MessageRepository) CountByInterview(interviewID string) (int64, error) {
	var n int64
	err := r.DB.Model(&models.InterviewMessage{}).
		Where("interview_id = ?", interviewID).Count(&n).Error
	return n, err
}
