package access

import (
	"context"

	"github.com/codoplex/paybridge/pkg/types"
)

type whitelistSource struct{ st store }

func (s *whitelistSource) name() types.AccessSource { return types.AccessSourceWhitelist }

func (s *whitelistSource) tryResolve(ctx context.Context, q Query) (*Grant, error) {
	entry, err := s.st.ActiveWhitelistEntry(ctx, q.WeeblyUserID, q.ProductID)
	if err != nil || entry == nil {
		return nil, err
	}
	return &Grant{Source: s.name(), RecordID: entry.ID, Whitelist: entry}, nil
}

type subscriptionSource struct {
	st        store
	matchSite bool
}

func (s *subscriptionSource) name() types.AccessSource { return types.AccessSourceStripeSubscription }

func (s *subscriptionSource) tryResolve(ctx context.Context, q Query) (*Grant, error) {
	sub, err := s.st.ActiveSubscription(ctx, q.WeeblyUserID, q.ProductID, q.WeeblySiteID, s.matchSite)
	if err != nil || sub == nil {
		return nil, err
	}
	return &Grant{Source: s.name(), RecordID: sub.ID, Subscription: sub}, nil
}

// purchaseSource grants through a succeeded one-time purchase. Purchases are
// site-bound, so the query's site id must match.
type purchaseSource struct{ st store }

func (s *purchaseSource) name() types.AccessSource { return types.AccessSourceStripePurchase }

func (s *purchaseSource) tryResolve(ctx context.Context, q Query) (*Grant, error) {
	tx, err := s.st.LatestSucceededOneTime(ctx, q.WeeblyUserID, q.ProductID, q.WeeblySiteID)
	if err != nil || tx == nil {
		return nil, err
	}
	return &Grant{Source: s.name(), RecordID: tx.ID, Purchase: tx}, nil
}

// legacySource grants through the archival order table. Products without a
// legacy mapping can never match. Lifetime orders have no expiry.
type legacySource struct{ st store }

func (s *legacySource) name() types.AccessSource { return types.AccessSourceLegacyLifetime }

func (s *legacySource) tryResolve(ctx context.Context, q Query) (*Grant, error) {
	legacyID, err := s.st.LegacyProductID(ctx, q.ProductID)
	if err != nil || legacyID == "" {
		return nil, err
	}
	order, err := s.st.LatestLegacyOrder(ctx, q.WeeblyUserID, q.WeeblySiteID, legacyID)
	if err != nil || order == nil {
		return nil, err
	}
	return &Grant{Source: s.name(), RecordID: order.ID, LegacyOrder: order}, nil
}
