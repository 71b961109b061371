package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Store exposes the gorm-backed lookups as the repository/collaborator
// contracts the engine consumes.
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) GetByCode(ctx context.Context, code string) (*Indicator, error) {
	return GetIndicatorByCode(ctx, s.DB, code)
}

func (s *Store) ListActive(ctx context.Context) ([]Indicator, error) {
	return ListActiveIndicators(ctx, s.DB)
}

func (s *Store) SaveValue(ctx context.Context, code string, value float64, computedAt time.Time) error {
	return SaveIndicatorValue(ctx, s.DB, code, value, computedAt)
}

func (s *Store) NonConformitiesForIndicator(ctx context.Context, code string) ([]NonConformity, error) {
	return ListNonConformitiesForIndicator(ctx, s.DB, code)
}

func (s *Store) TransactionsInPeriod(ctx context.Context, start, end time.Time) ([]FinancialTransaction, error) {
	return ListTransactionsInPeriod(ctx, s.DB, start, end)
}

func (s *Store) DeviationsInPeriod(ctx context.Context, start, end time.Time) ([]AdministrativeDeviation, error) {
	return ListDeviationsInPeriod(ctx, s.DB, start, end)
}

func (s *Store) ListAdministrators(ctx context.Context) ([]User, error) {
	return ListAdministrators(ctx, s.DB)
}
