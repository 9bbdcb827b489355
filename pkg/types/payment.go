package types

// TransactionType classifies how a ledger row was produced.
type TransactionType string

const (
	TransactionTypeOneTime             TransactionType = "one_time"
	TransactionTypeSubscriptionInitial TransactionType = "subscription_initial"
	TransactionTypeSubscriptionRenewal TransactionType = "subscription_renewal"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSucceeded TransactionStatus = "succeeded"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// statusForward lists the allowed transaction status transitions. A status
// never moves backwards; replayed provider events must not regress a row.
var statusForward = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:   {TransactionStatusSucceeded, TransactionStatusFailed},
	TransactionStatusSucceeded: {TransactionStatusRefunded},
}

// CanTransition reports whether a transaction status may move from old to new.
// Same-status writes are allowed (idempotent replays).
func (old TransactionStatus) CanTransition(next TransactionStatus) bool {
	if old == next {
		return true
	}
	for _, s := range statusForward[old] {
		if s == next {
			return true
		}
	}
	return false
}

type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
)
