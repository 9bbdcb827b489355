package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/codoplex/paybridge/internal/app/service/access"
	"github.com/codoplex/paybridge/internal/app/service/ledger"
	"github.com/codoplex/paybridge/internal/models"
	"github.com/codoplex/paybridge/internal/platform/stripepay"
	"github.com/codoplex/paybridge/pkg/config"
	"github.com/codoplex/paybridge/pkg/crypto"
	"github.com/codoplex/paybridge/pkg/logctx"
	"github.com/codoplex/paybridge/pkg/types"
)

var ErrUnknownProduct = errors.New("unknown product")

type resolver interface {
	Resolve(ctx context.Context, q access.Query) (*access.Grant, error)
}

type ledgerStore interface {
	AttachAccessToken(ctx context.Context, source types.AccessSource, recordID, encryptedToken string) error
	InsertAccessLog(ctx context.Context, weeblyUserID, weeblySiteID, productID string, source types.AccessSource) error
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	GetCustomerByWeeblyUserID(ctx context.Context, weeblyUserID string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error)
}

type paymentGateway interface {
	CreateCheckoutSession(ctx context.Context, p *stripepay.SessionParams) (*stripepay.CheckoutSession, error)
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error)
}

// Service decides whether a visitor already has access and either hands the
// credential to the matched record or starts a hosted checkout.
type Service struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	codec    crypto.Codec
	resolver resolver
	ledger   ledgerStore
	gateway  paymentGateway
}

func New(cfg *config.Config, log *zap.SugaredLogger, codec crypto.Codec, res *access.Resolver, led *ledger.Service, sp *stripepay.Client) *Service {
	return &Service{cfg: cfg, log: log, codec: codec, resolver: res, ledger: led, gateway: sp}
}

type InitiateRequest struct {
	WeeblyUserID string
	WeeblySiteID string
	ProductID    string
	// AccessToken is the plaintext OAuth credential handed over by the
	// installation flow; it is encrypted before it touches storage.
	AccessToken string
	ReturnURL   string
	Email       string
	Name        string
}

// DecideAndInitiate returns the URL the visitor should be redirected to:
// the caller's return URL when access already exists, otherwise the hosted
// checkout page.
func (s *Service) DecideAndInitiate(ctx context.Context, req *InitiateRequest) (string, error) {
	if req.WeeblyUserID == "" || req.ProductID == "" {
		return "", fmt.Errorf("weebly_user_id and product_id are required")
	}
	log := logctx.FromCtx(ctx, s.log).With("weebly_user_id", req.WeeblyUserID, "product_id", req.ProductID)

	grant, err := s.resolver.Resolve(ctx, access.Query{
		WeeblyUserID: req.WeeblyUserID,
		WeeblySiteID: req.WeeblySiteID,
		ProductID:    req.ProductID,
	})
	if err != nil {
		return "", err
	}
	if grant != nil {
		s.recordGrant(ctx, req, grant)
		return req.ReturnURL, nil
	}

	product, err := s.ledger.GetProduct(ctx, req.ProductID)
	if err != nil {
		return "", err
	}
	if product == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownProduct, req.ProductID)
	}

	customerID, err := s.ensureCustomer(ctx, req)
	if err != nil {
		// checkout can proceed without a pre-created customer
		log.Warnw("customer_create_failed", "err", err)
		customerID = ""
	}

	encToken, err := s.codec.Encrypt(req.AccessToken)
	if err != nil {
		return "", fmt.Errorf("encrypt access token: %w", err)
	}
	metadata := map[string]string{
		"weebly_user_id": req.WeeblyUserID,
		"weebly_site_id": req.WeeblySiteID,
		"product_id":     req.ProductID,
		"access_token":   encToken,
		"final_url":      req.ReturnURL,
	}

	mode := stripepay.ModePayment
	if product.Recurring {
		mode = stripepay.ModeSubscription
	}
	params := &stripepay.SessionParams{
		Mode:       mode,
		PriceID:    product.StripePriceID,
		CustomerID: customerID,
		SuccessURL: s.cfg.Server.PublicBaseURL + "/checkout?action=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.cfg.Server.PublicBaseURL + "/checkout?action=cancel",
		Metadata:   metadata,
	}
	if mode == stripepay.ModeSubscription {
		params.SubscriptionMetadata = metadata
	}
	if s.surchargeApplies(product) {
		params.SurchargePriceID = s.cfg.Stripe.SurchargePriceID
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", err
	}
	log.Infow("checkout_started", "session_id", sess.ID, "mode", mode)
	return sess.URL, nil
}

// recordGrant attaches the fresh credential to the granting record and
// writes the audit row. Neither failure blocks the redirect.
func (s *Service) recordGrant(ctx context.Context, req *InitiateRequest, grant *access.Grant) {
	log := logctx.FromCtx(ctx, s.log)
	if req.AccessToken != "" {
		if enc, err := s.codec.Encrypt(req.AccessToken); err == nil {
			if err := s.ledger.AttachAccessToken(ctx, grant.Source, grant.RecordID, enc); err != nil {
				log.Warnw("attach_access_token_failed", "source", grant.Source, "err", err)
			}
		} else {
			log.Warnw("encrypt_access_token_failed", "err", err)
		}
	}
	if err := s.ledger.InsertAccessLog(ctx, req.WeeblyUserID, req.WeeblySiteID, req.ProductID, grant.Source); err != nil {
		log.Warnw("access_log_failed", "err", err)
	}
}

func (s *Service) ensureCustomer(ctx context.Context, req *InitiateRequest) (string, error) {
	if req.Email == "" {
		return "", nil
	}
	existing, err := s.ledger.GetCustomerByWeeblyUserID(ctx, req.WeeblyUserID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.StripeCustomerID, nil
	}
	stripeID, err := s.gateway.CreateCustomer(ctx, req.Email, req.Name, map[string]string{"weebly_user_id": req.WeeblyUserID})
	if err != nil {
		return "", err
	}
	if _, err := s.ledger.CreateCustomer(ctx, &models.Customer{
		StripeCustomerID: stripeID,
		WeeblyUserID:     req.WeeblyUserID,
		Email:            req.Email,
		Name:             req.Name,
	}); err != nil {
		return "", err
	}
	return stripeID, nil
}

// surchargeApplies reports whether the fixed-duty line item must be added
// ("marca da bollo": receipts over the threshold carry a stamp duty).
func (s *Service) surchargeApplies(product *models.Product) bool {
	if s.cfg.Stripe.SurchargePriceID == "" {
		return false
	}
	threshold := decimal.NewFromFloat(s.cfg.Stripe.SurchargeThreshold)
	return product.Price.GreaterThan(threshold)
}
