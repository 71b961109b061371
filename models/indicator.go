package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/indicator_monitor/utils"
	"gorm.io/gorm"
)

// Indicator is a targetable KPI. Code is the join key for every other table in the engine.
type Indicator struct {
	ID             int        `gorm:"primary_key" json:"id"`
	Code           string     `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Label          string     `gorm:"size:255;not null" json:"label"`
	Unit           string     `gorm:"size:20" json:"unit"`
	Frequency      string     `gorm:"size:20" json:"frequency"`
	Target         *float64   `json:"target"`
	CurrentValue   *float64   `json:"current_value"`
	LastComputedAt *time.Time `json:"last_computed_at"`
	IsActive       *bool      `gorm:"not null" json:"is_active"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i Indicator) Active() bool {
	return utils.DereferencePtr(i.IsActive)
}

var ErrIndicatorNotFound = errors.New("indicator not found")

func GetIndicatorByCode(ctx context.Context, db *gorm.DB, code string) (*Indicator, error) {
	var result Indicator
	err := db.WithContext(ctx).Where("code = ?", code).Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIndicatorNotFound
		}
		return nil, err
	}
	return &result, nil
}

func ListActiveIndicators(ctx context.Context, db *gorm.DB) ([]Indicator, error) {
	var results []Indicator
	err := db.WithContext(ctx).Where("is_active = ?", true).Order("code ASC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SaveIndicatorValue overwrites current_value only; nothing else on the row is touched.
func SaveIndicatorValue(ctx context.Context, db *gorm.DB, code string, value float64, computedAt time.Time) error {
	result := db.WithContext(ctx).Model(&Indicator{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"current_value":    value,
			"last_computed_at": computedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	// an unchanged row reports zero affected rows without clientFoundRows
	var n int64
	if err := db.WithContext(ctx).Model(&Indicator{}).Where("code = ?", code).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrIndicatorNotFound
	}
	return nil
}
