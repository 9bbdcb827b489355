package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	stripewebhook "github.com/stripe/stripe-go/v83/webhook"
	"go.uber.org/zap"

	"github.com/codoplex/paybridge/internal/app/service/ledger"
	"github.com/codoplex/paybridge/internal/app/service/mailer"
	"github.com/codoplex/paybridge/internal/app/service/notifier"
	"github.com/codoplex/paybridge/internal/models"
	"github.com/codoplex/paybridge/pkg/config"
	"github.com/codoplex/paybridge/pkg/logctx"
	"github.com/codoplex/paybridge/pkg/types"
)

// ErrSignature marks a request that failed signature verification. It is the
// only handler error that must surface as HTTP 400; everything downstream of
// a verified signature gets acked.
var ErrSignature = errors.New("invalid webhook signature")

type ledgerStore interface {
	RecordWebhookEvent(ctx context.Context, eventID, eventType string, payload []byte) (*models.WebhookEvent, bool, error)
	MarkWebhookProcessed(ctx context.Context, eventID string, handlerErr error) error
	UpsertTransaction(ctx context.Context, in *models.Transaction) (*models.Transaction, error)
	UpdateTransactionStatusByPaymentIntent(ctx context.Context, paymentIntentID string, status types.TransactionStatus) (bool, error)
	GetTransactionByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Transaction, error)
	InitialTransactionBySubscription(ctx context.Context, stripeSubscriptionID string) (*models.Transaction, error)
	UpsertSubscription(ctx context.Context, in *models.Subscription) (*models.Subscription, error)
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, stripeSubscriptionID string, status types.SubscriptionStatus) (bool, error)
	ExtendSubscriptionPeriod(ctx context.Context, stripeSubscriptionID string, start, end time.Time) error
}

type entitlementNotifier interface {
	Notify(ctx context.Context, transactionID string) bool
}

// Service reconciles provider webhook events into the ledger. Every verified
// event is recorded, dispatched at most once, and acked regardless of
// handler outcome; handler failures are persisted on the event row.
type Service struct {
	secret   string
	log      *zap.SugaredLogger
	ledger   ledgerStore
	notifier entitlementNotifier
	mailer   mailer.Mailer
}

func New(cfg *config.Config, log *zap.SugaredLogger, led *ledger.Service, notif *notifier.Service, mail mailer.Mailer) *Service {
	return &Service{
		secret:   cfg.Stripe.WebhookSecret,
		log:      log,
		ledger:   led,
		notifier: notif,
		mailer:   mail,
	}
}

type Result struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	Duplicate  bool   `json:"duplicate"`
	HandlerErr error  `json:"-"`
}

// Handle verifies, dedups, parses and dispatches one webhook delivery.
// A non-nil error means the caller must not ack (bad signature or storage
// failure); a Result with HandlerErr set means the event was recorded with
// its failure and the delivery should still be acked.
func (s *Service) Handle(ctx context.Context, payload []byte, sigHeader string) (*Result, error) {
	ev, err := stripewebhook.ConstructEventWithOptions(payload, sigHeader, s.secret, stripewebhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}

	log := logctx.FromCtx(ctx, s.log).With("event_id", ev.ID, "event_type", ev.Type)

	row, duplicate, err := s.ledger.RecordWebhookEvent(ctx, ev.ID, string(ev.Type), ev.Data.Raw)
	if err != nil {
		return nil, err
	}
	if duplicate && row.Processed {
		log.Infow("webhook_duplicate_ignored")
		return &Result{EventID: ev.ID, EventType: string(ev.Type), Duplicate: true}, nil
	}

	var handlerErr error
	parsed, parseErr := parseEvent(&ev)
	if parseErr != nil {
		handlerErr = parseErr
	} else {
		handlerErr = s.dispatch(ctx, parsed)
	}
	if handlerErr != nil {
		log.Errorw("webhook_handler_failed", "err", handlerErr)
	}
	if err := s.ledger.MarkWebhookProcessed(ctx, ev.ID, handlerErr); err != nil {
		log.Errorw("webhook_mark_processed_failed", "err", err)
	}
	return &Result{EventID: ev.ID, EventType: string(ev.Type), HandlerErr: handlerErr}, nil
}

func (s *Service) dispatch(ctx context.Context, ev *Event) error {
	switch ev.Type {
	case eventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, ev.CheckoutSession)
	case eventPaymentSucceeded:
		return s.handlePaymentIntent(ctx, ev.PaymentIntent, types.TransactionStatusSucceeded)
	case eventPaymentFailed:
		return s.handlePaymentIntent(ctx, ev.PaymentIntent, types.TransactionStatusFailed)
	case eventSubscriptionCreated:
		return s.handleSubscriptionCreated(ctx, ev.Subscription)
	case eventSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, ev.Subscription)
	case eventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, ev.Subscription)
	case eventInvoicePaid:
		return s.handleInvoicePaid(ctx, ev.Invoice)
	case eventInvoiceFailed:
		return s.handleInvoiceFailed(ctx, ev.Invoice)
	case eventChargeRefunded:
		return s.handleChargeRefunded(ctx, ev.Charge)
	default:
		logctx.FromCtx(ctx, s.log).Infow("webhook_ignored", "event_type", ev.Type)
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, ev *CheckoutSessionEvent) error {
	userID := ev.Metadata["weebly_user_id"]
	productID := ev.Metadata["product_id"]
	if userID == "" || productID == "" {
		return fmt.Errorf("checkout session %s missing weebly_user_id/product_id metadata", ev.ID)
	}

	txType := types.TransactionTypeOneTime
	if ev.Mode == "subscription" {
		txType = types.TransactionTypeSubscriptionInitial
	}
	status := types.TransactionStatusPending
	if ev.PaymentStatus == "paid" {
		status = types.TransactionStatusSucceeded
	}

	tx := &models.Transaction{
		Type:             txType,
		StripeCustomerID: ev.Customer,
		WeeblyUserID:     userID,
		ProductID:        productID,
		Amount:           decimal.New(ev.AmountTotal, -2),
		Currency:         strings.ToUpper(ev.Currency),
		Status:           status,
		Metadata:         map[string]any{"checkout_session_id": ev.ID},
	}
	if ev.PaymentIntent != "" {
		tx.StripePaymentIntentID = lo.ToPtr(ev.PaymentIntent)
	}
	if ev.Invoice != "" {
		tx.StripeInvoiceID = lo.ToPtr(ev.Invoice)
	}
	if ev.Subscription != "" {
		tx.StripeSubscriptionID = lo.ToPtr(ev.Subscription)
	}
	if siteID := ev.Metadata["weebly_site_id"]; siteID != "" {
		tx.WeeblySiteID = lo.ToPtr(siteID)
	}
	if token := ev.Metadata["access_token"]; token != "" {
		tx.AccessToken = lo.ToPtr(token)
	}
	if finalURL := ev.Metadata["final_url"]; finalURL != "" {
		tx.FinalURL = lo.ToPtr(finalURL)
	}

	saved, err := s.ledger.UpsertTransaction(ctx, tx)
	if err != nil {
		return err
	}

	if saved.Status == types.TransactionStatusSucceeded {
		// initial subscription sales are reported when the subscription
		// object arrives; only one-time purchases notify here
		if txType == types.TransactionTypeOneTime {
			s.notifier.Notify(ctx, saved.ID)
		}
		if err := s.mailer.SendReceipt(ctx, saved); err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("receipt_email_failed", "transaction_id", saved.ID, "err", err)
		}
	}
	return nil
}

func (s *Service) handlePaymentIntent(ctx context.Context, ev *PaymentIntentEvent, status types.TransactionStatus) error {
	found, err := s.ledger.UpdateTransactionStatusByPaymentIntent(ctx, ev.ID, status)
	if err != nil {
		return err
	}
	if !found {
		// checkout.session.completed may not have arrived yet; the status
		// will be captured when it does
		logctx.FromCtx(ctx, s.log).Warnw("payment_intent_without_transaction", "payment_intent_id", ev.ID)
	}
	return nil
}

func (s *Service) handleSubscriptionCreated(ctx context.Context, ev *SubscriptionEvent) error {
	userID := ev.Metadata["weebly_user_id"]
	productID := ev.Metadata["product_id"]
	if userID == "" || productID == "" {
		return fmt.Errorf("subscription %s missing weebly_user_id/product_id metadata", ev.ID)
	}

	sub := &models.Subscription{
		StripeSubscriptionID: ev.ID,
		StripeCustomerID:     ev.Customer,
		WeeblyUserID:         userID,
		ProductID:            productID,
		Status:               mapSubscriptionStatus(ev.Status),
		CurrentPeriodStart:   ev.PeriodStart(),
		CurrentPeriodEnd:     ev.PeriodEnd(),
		CancelAtPeriodEnd:    ev.CancelAtPeriodEnd,
	}
	if siteID := ev.Metadata["weebly_site_id"]; siteID != "" {
		sub.WeeblySiteID = lo.ToPtr(siteID)
	}
	if token := ev.Metadata["access_token"]; token != "" {
		sub.AccessToken = lo.ToPtr(token)
	}

	saved, err := s.ledger.UpsertSubscription(ctx, sub)
	if err != nil {
		return err
	}

	// The platform learns about the initial sale exactly once, through the
	// checkout transaction.
	if tx, err := s.ledger.InitialTransactionBySubscription(ctx, ev.ID); err == nil && tx != nil &&
		tx.Status == types.TransactionStatusSucceeded && !tx.WeeblyNotified {
		s.notifier.Notify(ctx, tx.ID)
	}
	if err := s.mailer.SendWelcome(ctx, saved); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("welcome_email_failed", "subscription_id", saved.ID, "err", err)
	}
	return nil
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, ev *SubscriptionEvent) error {
	existing, err := s.ledger.GetSubscriptionByStripeID(ctx, ev.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("subscription %s not known to ledger", ev.ID)
	}
	existing.Status = mapSubscriptionStatus(ev.Status)
	existing.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
	existing.ApplyPeriod(ev.PeriodStart(), ev.PeriodEnd())
	_, err = s.ledger.UpsertSubscription(ctx, existing)
	return err
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, ev *SubscriptionEvent) error {
	found, err := s.ledger.UpdateSubscriptionStatus(ctx, ev.ID, types.SubscriptionStatusCanceled)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("subscription %s not known to ledger", ev.ID)
	}
	return nil
}

func (s *Service) handleInvoicePaid(ctx context.Context, ev *InvoiceEvent) error {
	if ev.Subscription == "" {
		return nil
	}
	sub, err := s.ledger.GetSubscriptionByStripeID(ctx, ev.Subscription)
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("invoice %s references unknown subscription %s", ev.ID, ev.Subscription)
	}

	start, end := ev.ServicePeriod()
	if err := s.ledger.ExtendSubscriptionPeriod(ctx, ev.Subscription, start, end); err != nil {
		return err
	}

	// The creation invoice is already covered by the checkout transaction.
	if ev.BillingReason == "subscription_create" {
		return nil
	}

	renewal := &models.Transaction{
		Type:                 types.TransactionTypeSubscriptionRenewal,
		StripeInvoiceID:      lo.ToPtr(ev.ID),
		StripeSubscriptionID: lo.ToPtr(ev.Subscription),
		StripeCustomerID:     ev.Customer,
		WeeblyUserID:         sub.WeeblyUserID,
		WeeblySiteID:         sub.WeeblySiteID,
		ProductID:            sub.ProductID,
		Amount:               decimal.New(ev.AmountPaid, -2),
		Currency:             strings.ToUpper(ev.Currency),
		Status:               types.TransactionStatusSucceeded,
	}
	saved, err := s.ledger.UpsertTransaction(ctx, renewal)
	if err != nil {
		return err
	}

	// Renewals never go back to the platform notifier; the customer only
	// gets the renewal email.
	if err := s.mailer.SendRenewal(ctx, saved); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("renewal_email_failed", "transaction_id", saved.ID, "err", err)
	}
	return nil
}

func (s *Service) handleInvoiceFailed(ctx context.Context, ev *InvoiceEvent) error {
	if ev.Subscription == "" {
		return nil
	}
	found, err := s.ledger.UpdateSubscriptionStatus(ctx, ev.Subscription, types.SubscriptionStatusPastDue)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("invoice %s references unknown subscription %s", ev.ID, ev.Subscription)
	}
	return nil
}

func (s *Service) handleChargeRefunded(ctx context.Context, ev *ChargeEvent) error {
	if ev.PaymentIntent == "" {
		return fmt.Errorf("refunded charge %s has no payment intent", ev.ID)
	}
	tx, err := s.ledger.GetTransactionByPaymentIntent(ctx, ev.PaymentIntent)
	if err != nil {
		return err
	}
	if tx == nil {
		return fmt.Errorf("no transaction matches refunded charge %s (payment intent %s)", ev.ID, ev.PaymentIntent)
	}
	_, err = s.ledger.UpdateTransactionStatusByPaymentIntent(ctx, ev.PaymentIntent, types.TransactionStatusRefunded)
	return err
}

func mapSubscriptionStatus(providerStatus string) types.SubscriptionStatus {
	switch providerStatus {
	case "active":
		return types.SubscriptionStatusActive
	case "trialing":
		return types.SubscriptionStatusTrialing
	case "past_due", "unpaid":
		return types.SubscriptionStatusPastDue
	case "canceled":
		return types.SubscriptionStatusCanceled
	default:
		return types.SubscriptionStatusIncomplete
	}
}
