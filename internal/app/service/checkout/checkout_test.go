package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codoplex/paybridge/internal/app/service/access"
	"github.com/codoplex/paybridge/internal/models"
	"github.com/codoplex/paybridge/internal/platform/stripepay"
	"github.com/codoplex/paybridge/pkg/config"
	"github.com/codoplex/paybridge/pkg/crypto"
	"github.com/codoplex/paybridge/pkg/types"
)

type fakeResolver struct {
	grant *access.Grant
	err   error
}

func (f *fakeResolver) Resolve(context.Context, access.Query) (*access.Grant, error) {
	return f.grant, f.err
}

type fakeLedger struct {
	products  map[string]*models.Product
	customers map[string]*models.Customer

	attachedSource types.AccessSource
	attachedRecord string
	attachedToken  string
	accessLogs     int
	attachErr      error
}

func (f *fakeLedger) AttachAccessToken(_ context.Context, source types.AccessSource, recordID, encryptedToken string) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attachedSource = source
	f.attachedRecord = recordID
	f.attachedToken = encryptedToken
	return nil
}

func (f *fakeLedger) InsertAccessLog(_ context.Context, _, _, _ string, _ types.AccessSource) error {
	f.accessLogs++
	return nil
}

func (f *fakeLedger) GetProduct(_ context.Context, productID string) (*models.Product, error) {
	return f.products[productID], nil
}

func (f *fakeLedger) GetCustomerByWeeblyUserID(_ context.Context, weeblyUserID string) (*models.Customer, error) {
	return f.customers[weeblyUserID], nil
}

func (f *fakeLedger) CreateCustomer(_ context.Context, c *models.Customer) (*models.Customer, error) {
	if f.customers == nil {
		f.customers = map[string]*models.Customer{}
	}
	f.customers[c.WeeblyUserID] = c
	return c, nil
}

type fakeGateway struct {
	lastParams      *stripepay.SessionParams
	sessionURL      string
	createdCustomer string
	customerErr     error
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, p *stripepay.SessionParams) (*stripepay.CheckoutSession, error) {
	f.lastParams = p
	return &stripepay.CheckoutSession{ID: "cs_1", URL: f.sessionURL}, nil
}

func (f *fakeGateway) CreateCustomer(context.Context, string, string, map[string]string) (string, error) {
	if f.customerErr != nil {
		return "", f.customerErr
	}
	f.createdCustomer = "cus_new"
	return "cus_new", nil
}

func testCheckout(t *testing.T, res resolver, led ledgerStore, gw paymentGateway) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.PublicBaseURL = "https://pay.example.com"
	cfg.Stripe.SurchargePriceID = "price_surcharge"
	cfg.Stripe.SurchargeThreshold = 77.47
	codec, err := crypto.NewAESCodec("secret", "salt")
	require.NoError(t, err)
	return &Service{cfg: cfg, log: zap.NewNop().Sugar(), codec: codec, resolver: res, ledger: led, gateway: gw}
}

func oneTimeProduct(price string) *models.Product {
	return &models.Product{
		ID:            "prod-1",
		Name:          "Pro Plan",
		Price:         decimal.RequireFromString(price),
		Currency:      "USD",
		StripePriceID: "price_1",
	}
}

func TestDecideAndInitiateExistingAccess(t *testing.T) {
	grant := &access.Grant{Source: types.AccessSourceStripeSubscription, RecordID: "sub-row-1"}
	led := &fakeLedger{}
	gw := &fakeGateway{}
	svc := testCheckout(t, &fakeResolver{grant: grant}, led, gw)

	url, err := svc.DecideAndInitiate(context.Background(), &InitiateRequest{
		WeeblyUserID: "user-1",
		WeeblySiteID: "site-1",
		ProductID:    "prod-1",
		AccessToken:  "plain-token",
		ReturnURL:    "https://app.example.com/dashboard",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/dashboard", url)

	// the credential is re-attached encrypted and the decision audited
	assert.Equal(t, types.AccessSourceStripeSubscription, led.attachedSource)
	assert.Equal(t, "sub-row-1", led.attachedRecord)
	assert.NotEmpty(t, led.attachedToken)
	assert.NotEqual(t, "plain-token", led.attachedToken)
	assert.Equal(t, 1, led.accessLogs)

	// no checkout session was started
	assert.Nil(t, gw.lastParams)
}

func TestDecideAndInitiateAttachFailureStillRedirects(t *testing.T) {
	grant := &access.Grant{Source: types.AccessSourceWhitelist, RecordID: "wl-1"}
	led := &fakeLedger{attachErr: errors.New("db down")}
	svc := testCheckout(t, &fakeResolver{grant: grant}, led, &fakeGateway{})

	url, err := svc.DecideAndInitiate(context.Background(), &InitiateRequest{
		WeeblyUserID: "user-1",
		ProductID:    "prod-1",
		AccessToken:  "plain-token",
		ReturnURL:    "https://app.example.com/dashboard",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/dashboard", url)
}

func TestDecideAndInitiateStartsCheckout(t *testing.T) {
	led := &fakeLedger{products: map[string]*models.Product{"prod-1": oneTimeProduct("25.00")}}
	gw := &fakeGateway{sessionURL: "https://checkout.stripe.com/pay/cs_1"}
	svc := testCheckout(t, &fakeResolver{}, led, gw)

	url, err := svc.DecideAndInitiate(context.Background(), &InitiateRequest{
		WeeblyUserID: "user-1",
		WeeblySiteID: "site-1",
		ProductID:    "prod-1",
		AccessToken:  "plain-token",
		ReturnURL:    "https://app.example.com/dashboard",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_1", url)

	p := gw.lastParams
	require.NotNil(t, p)
	assert.Equal(t, stripepay.ModePayment, p.Mode)
	assert.Equal(t, "price_1", p.PriceID)
	assert.Equal(t, "https://pay.example.com/checkout?action=success&session_id={CHECKOUT_SESSION_ID}", p.SuccessURL)
	assert.Equal(t, "https://pay.example.com/checkout?action=cancel", p.CancelURL)
	assert.Empty(t, p.SurchargePriceID)
	assert.Nil(t, p.SubscriptionMetadata)

	assert.Equal(t, "user-1", p.Metadata["weebly_user_id"])
	assert.Equal(t, "site-1", p.Metadata["weebly_site_id"])
	assert.Equal(t, "prod-1", p.Metadata["product_id"])
	assert.Equal(t, "https://app.example.com/dashboard", p.Metadata["final_url"])
	assert.NotEmpty(t, p.Metadata["access_token"])
	assert.NotEqual(t, "plain-token", p.Metadata["access_token"])
}

func TestDecideAndInitiateSubscriptionMode(t *testing.T) {
	product := oneTimeProduct("20.00")
	product.Recurring = true
	led := &fakeLedger{products: map[string]*models.Product{"prod-1": product}}
	gw := &fakeGateway{sessionURL: "https://checkout.stripe.com/pay/cs_1"}
	svc := testCheckout(t, &fakeResolver{}, led, gw)

	_, err := svc.DecideAndInitiate(context.Background(), &InitiateRequest{
		WeeblyUserID: "user-1",
		ProductID:    "prod-1",
		ReturnURL:    "https://app.example.com/dashboard",
	})
	require.NoError(t, err)

	p := gw.lastParams
	require.NotNil(t, p)
	assert.Equal(t, stripepay.ModeSubscription, p.Mode)
	// subscription metadata mirrors the session metadata so webhook events
	// on the subscription object carry the same identifiers
	assert.Equal(t, p.Metadata, p.SubscriptionMetadata)
}

func TestDecideAndInitiateSurcharge(t *testing.T) {
	cases := []struct {
		name  string
		price string
		want  string
	}{
		{"above threshold", "99.00", "price_surcharge"},
		{"at threshold", "77.47", ""},
		{"below threshold", "25.00", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			led := &fakeLedger{products: map[string]*models.Product{"prod-1": oneTimeProduct(tc.price)}}
			gw := &fakeGateway{}
			svc := testCheckout(t, &fakeResolver{}, led, gw)

			_, err := svc.DecideAndInitiate(context.Background(), &InitiateRequest{
				WeeblyUserID: "user-1",
				ProductID:    "prod-1",
			})
			require.NoError(t, err)
			require.NotNil(t, gw.lastParams)
			assert.Equal(t, tc.want, gw.lastParams.SurchargePriceID)
		})
	}
}

func TestDecideAndInitiateUnknownProduct(t *testing.T) {
	svc := testCheckout(t, &fakeResolver{}, &fakeLedger{}, &fakeGateway{})

	_, err := svc.DecideAndInitiate(context.Background(), &InitiateRequest{
		WeeblyUserID: "user-1",
		ProductID:    "prod-ghost",
	})
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestDecideAndInitiateRequiredFields(t *testing.T) {
	svc := testCheckout(t, &fakeResolver{}, &fakeLedger{}, &fakeGateway{})

	_, err := svc.DecideAndInitiate(context.Background(), &InitiateRequest{ProductID: "prod-1"})
	assert.Error(t, err)

	_, err = svc.DecideAndInitiate(context.Background(), &InitiateRequest{WeeblyUserID: "user-1"})
	assert.Error(t, err)
}

func TestEnsureCustomer(t *testing.T) {
	led := &fakeLedger{
		products: map[string]*models.Product{"prod-1": oneTimeProduct("25.00")},
		customers: map[string]*models.Customer{
			"user-known": {WeeblyUserID: "user-known", StripeCustomerID: "cus_known"},
		},
	}
	gw := &fakeGateway{}
	svc := testCheckout(t, &fakeResolver{}, led, gw)

	// known user reuses the stored customer
	_, err := svc.DecideAndInitiate(context.Background(), &InitiateRequest{
		WeeblyUserID: "user-known", ProductID: "prod-1", Email: "known@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_known", gw.lastParams.CustomerID)
	assert.Empty(t, gw.createdCustomer)

	// new user gets one created and persisted
	_, err = svc.DecideAndInitiate(context.Background(), &InitiateRequest{
		WeeblyUserID: "user-new", ProductID: "prod-1", Email: "new@example.com", Name: "New User",
	})
	require.NoError(t, err)
	assert.Equal(t, "cus_new", gw.lastParams.CustomerID)
	require.Contains(t, led.customers, "user-new")
	assert.Equal(t, "cus_new", led.customers["user-new"].StripeCustomerID)

	// no email means no customer, checkout proceeds anonymously
	_, err = svc.DecideAndInitiate(context.Background(), &InitiateRequest{
		WeeblyUserID: "user-anon", ProductID: "prod-1",
	})
	require.NoError(t, err)
	assert.Empty(t, gw.lastParams.CustomerID)
}

func TestEnsureCustomerFailureDoesNotBlockCheckout(t *testing.T) {
	led := &fakeLedger{products: map[string]*models.Product{"prod-1": oneTimeProduct("25.00")}}
	gw := &fakeGateway{customerErr: errors.New("stripe down")}
	svc := testCheckout(t, &fakeResolver{}, led, gw)

	_, err := svc.DecideAndInitiate(context.Background(), &InitiateRequest{
		WeeblyUserID: "user-1", ProductID: "prod-1", Email: "a@example.com",
	})
	require.NoError(t, err)
	require.NotNil(t, gw.lastParams)
	assert.Empty(t, gw.lastParams.CustomerID)
}
