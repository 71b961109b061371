package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type AdministrativeDeviation struct {
	ID            int       `gorm:"primary_key" json:"id"`
	DeviationType string    `gorm:"size:50;not null" json:"deviation_type"`
	Description   string    `gorm:"type:text" json:"description"`
	DetectedAt    time.Time `gorm:"not null;index" json:"detected_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ListDeviationsInPeriod returns deviations with start <= detected_at < end.
func ListDeviationsInPeriod(ctx context.Context, db *gorm.DB, start, end time.Time) ([]AdministrativeDeviation, error) {
	var results []AdministrativeDeviation
	err := db.WithContext(ctx).
		Where("detected_at >= ? AND detected_at < ?", start, end).
		Order("detected_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
