package ledger

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codoplex/paybridge/internal/models"
	"github.com/codoplex/paybridge/pkg/logctx"
	"github.com/codoplex/paybridge/pkg/tool"
	"github.com/codoplex/paybridge/pkg/types"
)

// UpsertTransaction writes a ledger row keyed by the invoice id when present,
// otherwise the payment intent id. An existing row keeps its ID, CreatedAt
// and notified flag; the status only moves along the allowed transitions.
func (s *Service) UpsertTransaction(ctx context.Context, in *models.Transaction) (*models.Transaction, error) {
	column, value, ok := in.Key()
	if !ok {
		return nil, fmt.Errorf("transaction has neither invoice id nor payment intent id")
	}

	var existing models.Transaction
	err := s.db.WithContext(ctx).Where(fmt.Sprintf("%s = ?", column), value).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		in.ID = tool.GenerateUUIDV7()
		if err := s.db.WithContext(ctx).Create(in).Error; err != nil {
			return nil, fmt.Errorf("create transaction: %w", err)
		}
		return in, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction by %s: %w", column, err)
	}

	in.ID = existing.ID
	in.CreatedAt = existing.CreatedAt
	if existing.WeeblyNotified {
		in.WeeblyNotified = true
	}
	if !existing.Status.CanTransition(in.Status) {
		logctx.FromCtx(ctx, s.log).Warnw("transaction_status_regression_ignored",
			"transaction_id", existing.ID, "from", existing.Status, "to", in.Status)
		in.Status = existing.Status
	}
	if err := s.db.WithContext(ctx).Save(in).Error; err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	return in, nil
}

func (s *Service) GetTransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &tx, nil
}

func (s *Service) GetTransactionByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.WithContext(ctx).Where("stripe_payment_intent_id = ?", paymentIntentID).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction by payment intent: %w", err)
	}
	return &tx, nil
}

// InitialTransactionBySubscription returns the oldest ledger row tied to a
// subscription, i.e. the initial checkout purchase.
func (s *Service) InitialTransactionBySubscription(ctx context.Context, stripeSubscriptionID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Order("created_at ASC").
		First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction by subscription: %w", err)
	}
	return &tx, nil
}

// LatestSucceededOneTime returns the newest succeeded one-time purchase for
// a user, product and site. Purchases are bound to the site they were made
// for and never grant elsewhere.
func (s *Service) LatestSucceededOneTime(ctx context.Context, weeblyUserID, productID, weeblySiteID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.WithContext(ctx).
		Where("weebly_user_id = ? AND product_id = ? AND weebly_site_id = ?", weeblyUserID, productID, weeblySiteID).
		Where("type = ? AND status = ?", types.TransactionTypeOneTime, types.TransactionStatusSucceeded).
		Order("created_at DESC").
		First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get one-time purchase: %w", err)
	}
	return &tx, nil
}

// UpdateTransactionStatusByPaymentIntent applies a guarded status change and
// reports whether a matching row existed.
func (s *Service) UpdateTransactionStatusByPaymentIntent(ctx context.Context, paymentIntentID string, status types.TransactionStatus) (bool, error) {
	tx, err := s.GetTransactionByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return false, err
	}
	if tx == nil {
		return false, nil
	}
	if !tx.Status.CanTransition(status) {
		logctx.FromCtx(ctx, s.log).Warnw("transaction_status_regression_ignored",
			"transaction_id", tx.ID, "from", tx.Status, "to", status)
		return true, nil
	}
	if tx.Status == status {
		return true, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", tx.ID).
		Update("status", status).Error; err != nil {
		return false, fmt.Errorf("update transaction status: %w", err)
	}
	return true, nil
}

// MarkTransactionNotified flips the notified flag. Only the notifier calls
// this, after the platform accepted the payment notification.
func (s *Service) MarkTransactionNotified(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("weebly_notified", true).Error; err != nil {
		return fmt.Errorf("mark transaction notified: %w", err)
	}
	return nil
}

type ScanTransactionsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanTransactionsResponse struct {
	Items []*models.Transaction `json:"items"`
	Total int64                 `json:"total"`
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// ScanTransactions implements the paginated admin listing with filters.
func (s *Service) ScanTransactions(ctx context.Context, req *ScanTransactionsRequest) (*ScanTransactionsResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Transaction{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	var rows []*models.Transaction
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if req.SortBy != "" {
		q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return &ScanTransactionsResponse{Items: rows, Total: total}, nil
}
