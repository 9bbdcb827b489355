package types

// AccessSource identifies which entitlement record granted access.
// Sources are checked in a fixed priority order; the first match wins.
type AccessSource string

const (
	AccessSourceWhitelist          AccessSource = "whitelist"
	AccessSourceStripeSubscription AccessSource = "stripe_subscription"
	AccessSourceStripePurchase     AccessSource = "stripe_purchase"
	AccessSourceLegacyLifetime     AccessSource = "legacy_lifetime"
)

type WhitelistStatus string

const (
	WhitelistStatusActive  WhitelistStatus = "active"
	WhitelistStatusRevoked WhitelistStatus = "revoked"
)
