package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/codoplex/paybridge/pkg/types"
)

// Subscription mirrors one Stripe subscription.
// Use Valid() to determine whether it currently grants access.
type Subscription struct {
	ID                   string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	StripeSubscriptionID string `gorm:"column:stripe_subscription_id;type:varchar(255);not null;uniqueIndex" json:"stripe_subscription_id"`
	StripeCustomerID     string `gorm:"column:stripe_customer_id;type:varchar(255)" json:"stripe_customer_id"`

	WeeblyUserID string  `gorm:"column:weebly_user_id;type:varchar(64);not null;index" json:"weebly_user_id"`
	WeeblySiteID *string `gorm:"column:weebly_site_id;type:varchar(64)" json:"weebly_site_id"`
	ProductID    string  `gorm:"column:product_id;type:varchar(64);not null" json:"product_id"`

	Status types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	// CurrentPeriodEnd never moves backwards while the subscription is
	// active; replayed events must not shorten paid-for access.
	CurrentPeriodStart time.Time `gorm:"column:current_period_start;default:null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time `gorm:"column:current_period_end;default:null" json:"current_period_end"`
	CancelAtPeriodEnd  bool      `gorm:"column:cancel_at_period_end;not null;default:false" json:"cancel_at_period_end"`

	AccessToken *string           `gorm:"column:access_token;type:text" json:"-"`
	Metadata    datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// Valid reports whether the subscription currently grants access. Only paid
// active subscriptions grant; trials do not.
func (s *Subscription) Valid() bool {
	return s != nil &&
		s.Status == types.SubscriptionStatusActive &&
		s.CurrentPeriodEnd.After(time.Now())
}

// ApplyPeriod updates the billing window, clamping the end so that it never
// regresses while the subscription is active.
func (s *Subscription) ApplyPeriod(start, end time.Time) {
	if !start.IsZero() {
		s.CurrentPeriodStart = start
	}
	if end.IsZero() {
		return
	}
	if s.Status == types.SubscriptionStatusActive && end.Before(s.CurrentPeriodEnd) {
		return
	}
	s.CurrentPeriodEnd = end
}
