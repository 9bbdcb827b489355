package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codoplex/paybridge/internal/models"
	"github.com/codoplex/paybridge/pkg/types"
)

// Service is the persistence and query surface over the payment ledger.
// All webhook-driven mutations funnel through here so the idempotency and
// status-transition rules live in one place.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

type RevenueItem struct {
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
	Count    int64           `json:"count"`
}

type Stats struct {
	Revenue             []RevenueItem `json:"revenue"`
	TransactionCount    int64         `json:"transaction_count"`
	ActiveSubscriptions int64         `json:"active_subscriptions"`
	PendingNotification int64         `json:"pending_notification"`
}

// Stats aggregates the admin dashboard numbers.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	out := &Stats{}

	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).Count(&out.TransactionCount).Error; err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("status = ? AND weebly_notified = false", types.TransactionStatusSucceeded).
		Where("type != ?", types.TransactionTypeSubscriptionRenewal).
		Count(&out.PendingNotification).Error; err != nil {
		return nil, fmt.Errorf("count pending notifications: %w", err)
	}
	var err error
	if out.ActiveSubscriptions, err = s.CountActiveSubscriptions(ctx); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("currency, SUM(amount) AS total, COUNT(*) AS count").
		Where("status = ?", types.TransactionStatusSucceeded).
		Group("currency").
		Order("currency").
		Find(&out.Revenue).Error; err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}
	return out, nil
}
