package mailer

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/codoplex/paybridge/internal/models"
	"github.com/codoplex/paybridge/pkg/logctx"
)

// Mailer sends the customer lifecycle emails. Template rendering and
// delivery live behind this interface; the default implementation records
// the intent in logs so the pipeline is observable without an SMTP setup.
type Mailer interface {
	SendReceipt(ctx context.Context, tx *models.Transaction) error
	SendRenewal(ctx context.Context, tx *models.Transaction) error
	SendWelcome(ctx context.Context, sub *models.Subscription) error
}

type LogMailer struct {
	log *zap.SugaredLogger
}

func NewLogMailer(log *zap.SugaredLogger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendReceipt(ctx context.Context, tx *models.Transaction) error {
	logctx.FromCtx(ctx, m.log).Infow("email_receipt",
		"transaction_id", tx.ID, "weebly_user_id", tx.WeeblyUserID, "amount", tx.Amount, "currency", tx.Currency)
	return nil
}

func (m *LogMailer) SendRenewal(ctx context.Context, tx *models.Transaction) error {
	logctx.FromCtx(ctx, m.log).Infow("email_renewal",
		"transaction_id", tx.ID, "weebly_user_id", tx.WeeblyUserID, "amount", tx.Amount, "currency", tx.Currency)
	return nil
}

func (m *LogMailer) SendWelcome(ctx context.Context, sub *models.Subscription) error {
	logctx.FromCtx(ctx, m.log).Infow("email_welcome",
		"subscription_id", sub.ID, "weebly_user_id", sub.WeeblyUserID, "product_id", sub.ProductID)
	return nil
}

var Module = fx.Options(
	fx.Provide(func(log *zap.SugaredLogger) Mailer { return NewLogMailer(log) }),
)
