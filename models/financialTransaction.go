package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type FinancialTransaction struct {
	ID              int             `gorm:"primary_key" json:"id"`
	Kind            TransactionKind `gorm:"size:20;not null;index" json:"kind"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Description     string          `gorm:"size:255" json:"description"`
	TransactionDate time.Time       `gorm:"not null;index" json:"transaction_date"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ListTransactionsInPeriod returns transactions with start <= transaction_date < end.
func ListTransactionsInPeriod(ctx context.Context, db *gorm.DB, start, end time.Time) ([]FinancialTransaction, error) {
	var results []FinancialTransaction
	err := db.WithContext(ctx).
		Where("transaction_date >= ? AND transaction_date < ?", start, end).
		Order("transaction_date ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
