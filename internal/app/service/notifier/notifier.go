package notifier

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/codoplex/paybridge/internal/app/service/ledger"
	"github.com/codoplex/paybridge/internal/models"
	"github.com/codoplex/paybridge/internal/platform/weebly"
	"github.com/codoplex/paybridge/pkg/crypto"
	"github.com/codoplex/paybridge/pkg/logctx"
)

var (
	feeRate     = decimal.NewFromFloat(0.029)
	feeFixed    = decimal.NewFromFloat(0.30)
	payoutShare = decimal.NewFromFloat(0.30)
)

// ComputePayout applies the platform fee model: the processor takes
// 2.9% + 0.30 of gross, and the platform's payable share is 30% of the
// remainder, rounded to cents.
func ComputePayout(gross decimal.Decimal) (fee, net, payout decimal.Decimal) {
	fee = gross.Mul(feeRate).Add(feeFixed).Round(2)
	net = gross.Sub(fee)
	payout = net.Mul(payoutShare).Round(2)
	return fee, net, payout
}

type ledgerStore interface {
	GetTransactionByID(ctx context.Context, id string) (*models.Transaction, error)
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	MarkTransactionNotified(ctx context.Context, id string) error
}

type platformClient interface {
	NotifyPayment(ctx context.Context, accessToken string, n *weebly.PaymentNotification) error
}

// Service reports completed sales to the platform, at most once per
// transaction. The notified flag persists across failures so an operator can
// retry later without risking a double report.
type Service struct {
	log    *zap.SugaredLogger
	codec  crypto.Codec
	ledger ledgerStore
	weebly platformClient
}

func New(log *zap.SugaredLogger, codec crypto.Codec, led *ledger.Service, wb *weebly.Client) *Service {
	return &Service{log: log, codec: codec, ledger: led, weebly: wb}
}

// Notify reports the transaction's sale to the platform. It returns true
// only when the platform accepted the notification (now or previously has
// not); every precondition failure is a clean no-op.
func (s *Service) Notify(ctx context.Context, transactionID string) bool {
	log := logctx.FromCtx(ctx, s.log).With("transaction_id", transactionID)

	tx, err := s.ledger.GetTransactionByID(ctx, transactionID)
	if err != nil {
		log.Errorw("notify_load_failed", "err", err)
		return false
	}
	if tx == nil {
		log.Warnw("notify_transaction_missing")
		return false
	}
	if tx.WeeblyNotified {
		log.Infow("notify_skipped_already_notified")
		return false
	}
	if tx.AccessToken == nil || *tx.AccessToken == "" {
		log.Warnw("notify_skipped_no_access_token")
		return false
	}
	token, err := s.codec.Decrypt(*tx.AccessToken)
	if err != nil || token == "" {
		log.Errorw("notify_token_decrypt_failed", "err", err)
		return false
	}
	product, err := s.ledger.GetProduct(ctx, tx.ProductID)
	if err != nil || product == nil {
		log.Warnw("notify_skipped_product_missing", "product_id", tx.ProductID, "err", err)
		return false
	}

	fee, net, payout := ComputePayout(tx.Amount)
	notification := &weebly.PaymentNotification{
		Name:          product.Name,
		Method:        "purchase",
		Kind:          "single",
		Term:          "forever",
		GrossAmount:   tx.Amount.InexactFloat64(),
		PayableAmount: payout.InexactFloat64(),
		Currency:      tx.Currency,
	}
	if err := s.weebly.NotifyPayment(ctx, token, notification); err != nil {
		log.Errorw("notify_platform_rejected", "err", err)
		return false
	}
	if err := s.ledger.MarkTransactionNotified(ctx, tx.ID); err != nil {
		// the platform already accepted; surface loudly so an operator fixes
		// the flag before any replay
		log.Errorw("notify_mark_failed", "err", err)
		return true
	}
	log.Infow("notify_sent", "gross", tx.Amount, "fee", fee, "net", net, "payout", payout)
	return true
}
