package access

import (
	"context"

	"go.uber.org/zap"

	"github.com/codoplex/paybridge/internal/app/service/ledger"
	"github.com/codoplex/paybridge/internal/models"
	"github.com/codoplex/paybridge/pkg/config"
	"github.com/codoplex/paybridge/pkg/logctx"
	"github.com/codoplex/paybridge/pkg/types"
)

// store is the slice of the ledger the resolver reads from.
type store interface {
	ActiveWhitelistEntry(ctx context.Context, weeblyUserID, productID string) (*models.WhitelistEntry, error)
	ActiveSubscription(ctx context.Context, weeblyUserID, productID, siteID string, matchSite bool) (*models.Subscription, error)
	LatestSucceededOneTime(ctx context.Context, weeblyUserID, productID, weeblySiteID string) (*models.Transaction, error)
	LegacyProductID(ctx context.Context, productID string) (string, error)
	LatestLegacyOrder(ctx context.Context, weeblyUserID, weeblySiteID, legacyProductID string) (*models.LegacyOrder, error)
}

type Query struct {
	WeeblyUserID string `json:"weebly_user_id"`
	WeeblySiteID string `json:"weebly_site_id"`
	ProductID    string `json:"product_id"`
}

// Grant records which source granted access. Exactly one of the detail
// fields is set, matching Source; sources never merge.
type Grant struct {
	Source types.AccessSource `json:"source"`
	// RecordID is the primary key of the granting row, used to attach the
	// platform credential afterwards.
	RecordID string `json:"record_id"`

	Whitelist    *models.WhitelistEntry `json:"whitelist,omitempty"`
	Subscription *models.Subscription   `json:"subscription,omitempty"`
	Purchase     *models.Transaction    `json:"purchase,omitempty"`
	LegacyOrder  *models.LegacyOrder    `json:"legacy_order,omitempty"`
}

// source is one entitlement strategy in the priority chain.
type source interface {
	name() types.AccessSource
	tryResolve(ctx context.Context, q Query) (*Grant, error)
}

// Resolver answers "does this user have access to this product" by asking
// each source in priority order. The first grant wins.
type Resolver struct {
	log     *zap.SugaredLogger
	sources []source
}

func New(cfg *config.Config, log *zap.SugaredLogger, led *ledger.Service) *Resolver {
	return newResolver(cfg, log, led)
}

func newResolver(cfg *config.Config, log *zap.SugaredLogger, st store) *Resolver {
	return &Resolver{
		log: log,
		sources: []source{
			&whitelistSource{st: st},
			&subscriptionSource{st: st, matchSite: cfg.Access.SubscriptionSiteMatch},
			&purchaseSource{st: st},
			&legacySource{st: st},
		},
	}
}

// Resolve returns the winning grant, or nil when no source grants access.
// Resolution never writes; audit logging is the caller's concern.
func (r *Resolver) Resolve(ctx context.Context, q Query) (*Grant, error) {
	for _, src := range r.sources {
		grant, err := src.tryResolve(ctx, q)
		if err != nil {
			return nil, err
		}
		if grant != nil {
			logctx.FromCtx(ctx, r.log).Infow("access_granted",
				"weebly_user_id", q.WeeblyUserID, "product_id", q.ProductID, "source", src.name())
			return grant, nil
		}
	}
	logctx.FromCtx(ctx, r.log).Infow("access_denied",
		"weebly_user_id", q.WeeblyUserID, "product_id", q.ProductID)
	return nil, nil
}
