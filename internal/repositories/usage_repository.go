package repositories

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
)

type UsageRepository struct {
	DB *gorm.DB
}

// AddMinutes accumulates interview minutes for a recruiter's daily counter.
func (r *UsageRepository) AddMinutes(recruiterID string, minutes int) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recruiter_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"minutes_used": gorm.Expr("usage_counters.minutes_used + ?", minutes),
		}),
	}).Create(&models.UsageCounter{RecruiterID: recruiterID, MinutesUsed: minutes}).Error
}

func (r *UsageRepository) Get(recruiterID string) (*models.UsageCounter, error) {
	var c models.UsageCounter
	if err := r.DB.Where("recruiter_id = ?", recruiterID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ResetAll zeroes every counter. Run by the daily sweep; a second run with
// nothing to reset affects zero rows.
func (r *UsageRepository) ResetAll() (int64, error) {
	tx := r.DB.Model(&models.UsageCounter{}).
		Where("minutes_used > 0").
		Update("minutes_used", 0)
	return tx.RowsAffected, tx.Error
}
