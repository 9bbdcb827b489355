package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/codoplex/paybridge/internal/models"
	"github.com/codoplex/paybridge/pkg/tool"
	"github.com/codoplex/paybridge/pkg/types"
)

// UpsertSubscription writes a subscription row keyed by the Stripe
// subscription id. Existing rows keep ID and CreatedAt; the billing period
// is applied through ApplyPeriod so the end never regresses while active.
func (s *Service) UpsertSubscription(ctx context.Context, in *models.Subscription) (*models.Subscription, error) {
	if in.StripeSubscriptionID == "" {
		return nil, fmt.Errorf("subscription has no stripe subscription id")
	}

	var existing models.Subscription
	err := s.db.WithContext(ctx).Where("stripe_subscription_id = ?", in.StripeSubscriptionID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		in.ID = tool.GenerateUUIDV7()
		if err := s.db.WithContext(ctx).Create(in).Error; err != nil {
			return nil, fmt.Errorf("create subscription: %w", err)
		}
		return in, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}

	start, end := in.CurrentPeriodStart, in.CurrentPeriodEnd
	in.ID = existing.ID
	in.CreatedAt = existing.CreatedAt
	in.CurrentPeriodStart = existing.CurrentPeriodStart
	in.CurrentPeriodEnd = existing.CurrentPeriodEnd
	in.ApplyPeriod(start, end)
	if in.AccessToken == nil {
		in.AccessToken = existing.AccessToken
	}
	if err := s.db.WithContext(ctx).Save(in).Error; err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	return in, nil
}

func (s *Service) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

// ActiveSubscription returns a currently valid subscription for the user and
// product. Only status active grants, not trials. When matchSite is set the
// row's site id must equal siteID.
func (s *Service) ActiveSubscription(ctx context.Context, weeblyUserID, productID, siteID string, matchSite bool) (*models.Subscription, error) {
	q := s.db.WithContext(ctx).
		Where("weebly_user_id = ? AND product_id = ?", weeblyUserID, productID).
		Where("status = ?", types.SubscriptionStatusActive).
		Where("current_period_end > ?", time.Now())
	if matchSite && siteID != "" {
		q = q.Where("weebly_site_id = ?", siteID)
	}
	var sub models.Subscription
	err := q.Order("current_period_end DESC").First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active subscription: %w", err)
	}
	return &sub, nil
}

// UpdateSubscriptionStatus sets the lifecycle status and reports whether a
// matching row existed.
func (s *Service) UpdateSubscriptionStatus(ctx context.Context, stripeSubscriptionID string, status types.SubscriptionStatus) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Update("status", status)
	if res.Error != nil {
		return false, fmt.Errorf("update subscription status: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ExtendSubscriptionPeriod advances the billing window after a paid invoice.
func (s *Service) ExtendSubscriptionPeriod(ctx context.Context, stripeSubscriptionID string, start, end time.Time) error {
	sub, err := s.GetSubscriptionByStripeID(ctx, stripeSubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("subscription %s not found", stripeSubscriptionID)
	}
	sub.Status = types.SubscriptionStatusActive
	sub.ApplyPeriod(start, end)
	if err := s.db.WithContext(ctx).Save(sub).Error; err != nil {
		return fmt.Errorf("extend subscription period: %w", err)
	}
	return nil
}

func (s *Service) CountActiveSubscriptions(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("status = ? AND current_period_end > ?", types.SubscriptionStatusActive, time.Now()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count active subscriptions: %w", err)
	}
	return n, nil
}
