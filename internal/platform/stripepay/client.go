package stripepay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/customer"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/codoplex/paybridge/pkg/config"
)

// Client wraps the Stripe SDK calls the service needs. Handlers and services
// depend on this narrow surface instead of the SDK types.
type Client struct {
	log *zap.SugaredLogger
}

func New(cfg *config.Config, log *zap.SugaredLogger) *Client {
	stripe.Key = cfg.Stripe.SecretKey
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}))
	return &Client{log: log}
}

const (
	ModePayment      = "payment"
	ModeSubscription = "subscription"
)

type SessionParams struct {
	Mode       string
	PriceID    string
	CustomerID string
	SuccessURL string
	CancelURL  string
	// Surcharge adds the fixed-duty line item alongside the product.
	SurchargePriceID string
	Metadata         map[string]string
	// SubscriptionMetadata is mirrored onto the created subscription so the
	// identifiers survive into subscription.* webhook events.
	SubscriptionMetadata map[string]string
}

type CheckoutSession struct {
	ID            string
	URL           string
	PaymentStatus string
	Metadata      map[string]string
}

func (s *CheckoutSession) Paid() bool {
	return s != nil && s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
}

// FinalURL returns the post-payment redirect stored in session metadata.
func (s *CheckoutSession) FinalURL() string {
	if s == nil {
		return ""
	}
	return s.Metadata["final_url"]
}

func (c *Client) CreateCheckoutSession(ctx context.Context, p *SessionParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(p.Mode),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
	}
	params.Context = ctx
	if p.SurchargePriceID != "" {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Price: stripe.String(p.SurchargePriceID), Quantity: stripe.Int64(1),
		})
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.Mode == ModeSubscription && len(p.SubscriptionMetadata) > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: p.SubscriptionMetadata,
		}
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	c.log.Infow("checkout_session_created", "session_id", sess.ID, "mode", p.Mode)
	return fromStripeSession(sess), nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := session.Get(id, params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, nil
		}
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return fromStripeSession(sess), nil
}

func (c *Client) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	if name != "" {
		params.Name = stripe.String(name)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	cus, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	c.log.Infow("stripe_customer_created", "stripe_customer_id", cus.ID)
	return cus.ID, nil
}

func fromStripeSession(sess *stripe.CheckoutSession) *CheckoutSession {
	return &CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		PaymentStatus: string(sess.PaymentStatus),
		Metadata:      sess.Metadata,
	}
}

var Module = fx.Options(
	fx.Provide(New),
)
