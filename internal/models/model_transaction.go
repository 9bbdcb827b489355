package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/codoplex/paybridge/pkg/types"
)

// Transaction is one ledger row per Stripe payment. Identity is the invoice
// id when present (subscription cycles), otherwise the payment intent id.
// Reprocessing a provider event updates the matching row, never duplicates it.
type Transaction struct {
	ID   string                `gorm:"column:id;primary_key;type:uuid;index:idx_tx_user_id,priority:2,sort:desc" json:"id"`
	Type types.TransactionType `gorm:"column:type;type:varchar(32);not null" json:"type"`

	StripePaymentIntentID *string `gorm:"column:stripe_payment_intent_id;type:varchar(255);uniqueIndex:unique_tx_payment_intent" json:"stripe_payment_intent_id"`
	StripeInvoiceID       *string `gorm:"column:stripe_invoice_id;type:varchar(255);uniqueIndex:unique_tx_invoice" json:"stripe_invoice_id"`
	StripeSubscriptionID  *string `gorm:"column:stripe_subscription_id;type:varchar(255);index" json:"stripe_subscription_id"`
	StripeCustomerID      string  `gorm:"column:stripe_customer_id;type:varchar(255)" json:"stripe_customer_id"`

	WeeblyUserID string  `gorm:"column:weebly_user_id;type:varchar(64);not null;index:idx_tx_user_id,priority:1" json:"weebly_user_id"`
	WeeblySiteID *string `gorm:"column:weebly_site_id;type:varchar(64)" json:"weebly_site_id"`
	ProductID    string  `gorm:"column:product_id;type:varchar(64);not null;index" json:"product_id"`

	Amount   decimal.Decimal         `gorm:"column:amount;type:numeric(10,2);not null" json:"amount"`
	Currency string                  `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status   types.TransactionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`

	// AccessToken is the platform credential, encrypted at rest.
	AccessToken *string `gorm:"column:access_token;type:text" json:"-"`
	FinalURL    *string `gorm:"column:final_url;type:text" json:"final_url"`
	// WeeblyNotified flips false->true exactly once, owned by the notifier.
	WeeblyNotified bool `gorm:"column:weebly_notified;not null;default:false" json:"weebly_notified"`

	Metadata  datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}

// Key returns the business identity used for upserts.
func (t *Transaction) Key() (column string, value string, ok bool) {
	if t.StripeInvoiceID != nil && *t.StripeInvoiceID != "" {
		return "stripe_invoice_id", *t.StripeInvoiceID, true
	}
	if t.StripePaymentIntentID != nil && *t.StripePaymentIntentID != "" {
		return "stripe_payment_intent_id", *t.StripePaymentIntentID, true
	}
	return "", "", false
}
