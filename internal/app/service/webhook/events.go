package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"
)

// Provider event types the reconciler acts on. Anything else is accepted,
// logged and ignored.
const (
	eventCheckoutCompleted   = "checkout.session.completed"
	eventPaymentSucceeded    = "payment_intent.succeeded"
	eventPaymentFailed       = "payment_intent.payment_failed"
	eventSubscriptionCreated = "customer.subscription.created"
	eventSubscriptionUpdated = "customer.subscription.updated"
	eventSubscriptionDeleted = "customer.subscription.deleted"
	eventInvoicePaid         = "invoice.paid"
	eventInvoiceFailed       = "invoice.payment_failed"
	eventChargeRefunded      = "charge.refunded"
)

// Event is the parsed form of a provider notification. Exactly one variant
// field is set; unrecognized event types only populate Raw.
type Event struct {
	ID   string
	Type string

	CheckoutSession *CheckoutSessionEvent
	PaymentIntent   *PaymentIntentEvent
	Subscription    *SubscriptionEvent
	Invoice         *InvoiceEvent
	Charge          *ChargeEvent
	Raw             json.RawMessage
}

// CheckoutSessionEvent carries the fields of checkout.session.completed the
// reconciler reads. Expandable references arrive as plain ids because the
// webhook payload is never expanded.
type CheckoutSessionEvent struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	PaymentIntent string            `json:"payment_intent"`
	Invoice       string            `json:"invoice"`
	Subscription  string            `json:"subscription"`
	Customer      string            `json:"customer"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

type PaymentIntentEvent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type SubscriptionEvent struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// PeriodStart resolves the billing window start, preferring the top-level
// field and falling back to the first item (newer API versions moved the
// period there).
func (e *SubscriptionEvent) PeriodStart() time.Time {
	if e.CurrentPeriodStart > 0 {
		return time.Unix(e.CurrentPeriodStart, 0)
	}
	if len(e.Items.Data) > 0 && e.Items.Data[0].CurrentPeriodStart > 0 {
		return time.Unix(e.Items.Data[0].CurrentPeriodStart, 0)
	}
	return time.Time{}
}

func (e *SubscriptionEvent) PeriodEnd() time.Time {
	if e.CurrentPeriodEnd > 0 {
		return time.Unix(e.CurrentPeriodEnd, 0)
	}
	if len(e.Items.Data) > 0 && e.Items.Data[0].CurrentPeriodEnd > 0 {
		return time.Unix(e.Items.Data[0].CurrentPeriodEnd, 0)
	}
	return time.Time{}
}

type InvoiceEvent struct {
	ID            string `json:"id"`
	Subscription  string `json:"subscription"`
	Customer      string `json:"customer"`
	AmountPaid    int64  `json:"amount_paid"`
	Currency      string `json:"currency"`
	BillingReason string `json:"billing_reason"`
	PeriodStart   int64  `json:"period_start"`
	PeriodEnd     int64  `json:"period_end"`
	Lines         struct {
		Data []struct {
			Period struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

// ServicePeriod returns the window the invoice paid for, taken from the
// first line item when present (the top-level period describes the invoice
// itself, not the service window).
func (e *InvoiceEvent) ServicePeriod() (start, end time.Time) {
	if len(e.Lines.Data) > 0 {
		p := e.Lines.Data[0].Period
		if p.End > 0 {
			return time.Unix(p.Start, 0), time.Unix(p.End, 0)
		}
	}
	if e.PeriodEnd > 0 {
		return time.Unix(e.PeriodStart, 0), time.Unix(e.PeriodEnd, 0)
	}
	return time.Time{}, time.Time{}
}

type ChargeEvent struct {
	ID             string `json:"id"`
	PaymentIntent  string `json:"payment_intent"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Refunded       bool   `json:"refunded"`
}

// parseEvent maps a verified provider event onto the tagged union.
func parseEvent(ev *stripe.Event) (*Event, error) {
	out := &Event{ID: ev.ID, Type: string(ev.Type), Raw: ev.Data.Raw}

	var target any
	switch out.Type {
	case eventCheckoutCompleted:
		out.CheckoutSession = &CheckoutSessionEvent{}
		target = out.CheckoutSession
	case eventPaymentSucceeded, eventPaymentFailed:
		out.PaymentIntent = &PaymentIntentEvent{}
		target = out.PaymentIntent
	case eventSubscriptionCreated, eventSubscriptionUpdated, eventSubscriptionDeleted:
		out.Subscription = &SubscriptionEvent{}
		target = out.Subscription
	case eventInvoicePaid, eventInvoiceFailed:
		out.Invoice = &InvoiceEvent{}
		target = out.Invoice
	case eventChargeRefunded:
		out.Charge = &ChargeEvent{}
		target = out.Charge
	default:
		return out, nil
	}

	if err := json.Unmarshal(ev.Data.Raw, target); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", out.Type, err)
	}
	return out, nil
}
