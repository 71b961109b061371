package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// NonConformity is both a fact (ratio indicators count them) and the corrective action
// the engine raises on breach.
//
// OpenAutoKey carries the indicator code while the row is an OPEN record with
// source INDICATORS, and NULL otherwise. Its unique index is what allows at most one
// open auto-generated record per indicator.
type NonConformity struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	Source        NonConformitySource `gorm:"size:30;not null;index" json:"source"`
	Type          string              `gorm:"size:50" json:"type"`
	Description   string              `gorm:"type:text;not null" json:"description"`
	Status        NonConformityStatus `gorm:"size:10;not null;index" json:"status"`
	IndicatorCode *string             `gorm:"size:50;index" json:"indicator_code"`
	OpenAutoKey   *string             `gorm:"size:50;uniqueIndex:uniq_nc_open_auto" json:"-"`
	DetectedBy    string              `gorm:"size:100" json:"detected_by"`
	FixedBy       *string             `gorm:"size:100" json:"fixed_by"`
	FixDate       *time.Time          `json:"fix_date"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (nc NonConformity) IsAutoGenerated() bool {
	return nc.Source == NonConformitySourceIndicators
}

// NewAutoNonConformity builds an OPEN, engine-generated record for indicatorCode.
func NewAutoNonConformity(indicatorCode string, ncType string, description string, detectedAt time.Time) *NonConformity {
	code := indicatorCode
	key := indicatorCode
	return &NonConformity{
		Source:        NonConformitySourceIndicators,
		Type:          ncType,
		Description:   description,
		Status:        NonConformityStatusOpen,
		IndicatorCode: &code,
		OpenAutoKey:   &key,
		DetectedBy:    "system",
		CreatedAt:     detectedAt,
	}
}

func FindOpenAutoNonConformity(ctx context.Context, tx *gorm.DB, indicatorCode string) (*NonConformity, error) {
	var result NonConformity
	err := tx.WithContext(ctx).
		Where("source = ? AND indicator_code = ? AND status = ?",
			NonConformitySourceIndicators, indicatorCode, NonConformityStatusOpen).
		Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func CreateNonConformity(ctx context.Context, tx *gorm.DB, nc *NonConformity) error {
	if nc.IsAutoGenerated() && nc.Status == NonConformityStatusOpen && nc.IndicatorCode != nil {
		key := *nc.IndicatorCode
		nc.OpenAutoKey = &key
	} else {
		nc.OpenAutoKey = nil
	}
	return tx.WithContext(ctx).Create(nc).Error
}

func ListNonConformitiesForIndicator(ctx context.Context, db *gorm.DB, indicatorCode string) ([]NonConformity, error) {
	var results []NonConformity
	err := db.WithContext(ctx).
		Where("indicator_code = ?", indicatorCode).
		Order("id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FixNonConformity is the remediation transition OPEN -> FIXED. Clearing OpenAutoKey
// lets the engine raise a fresh record on a later breach.
func FixNonConformity(ctx context.Context, db *gorm.DB, id int, fixedBy string, fixDate time.Time) (*NonConformity, error) {
	var result NonConformity
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&result).Error; err != nil {
			return err
		}
		if result.Status == NonConformityStatusFixed {
			return nil
		}
		if err := tx.Model(&NonConformity{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":        NonConformityStatusFixed,
			"fixed_by":      fixedBy,
			"fix_date":      fixDate,
			"open_auto_key": nil,
		}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Take(&result).Error
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
