package billing

import (
	"encoding/json"
	"time"
)

// Stripe event types handled by the reconciler.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Metadata keys attached to checkout sessions and subscriptions.
const (
	MetadataAccountID = "user_id"
	MetadataPriceKey  = "price_key"
)

// Checkout session modes.
const (
	ModeSubscription = "subscription"
	ModePayment      = "payment"
)

// Outcome describes what HandleEvent did with an event.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeDropped   Outcome = "dropped"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeStale     Outcome = "stale"
)

// Event is a signature-verified processor event.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	// Object is the raw data.object of the event.
	Object json.RawMessage
	// Payload is the full request body, kept for the audit log.
	Payload []byte
}

// ProcessorSubscription is the subset of a Stripe subscription we persist.
type ProcessorSubscription struct {
	ID               string
	CustomerID       string
	Status           string
	Metadata         map[string]string
	CurrentPeriodEnd *time.Time
}

// NormalizedSubscription is the provider-agnostic shape used by the billing
// service when upserting subscription state into local tables.
type NormalizedSubscription struct {
	AccountID            string
	StripeSubscriptionID *string
	// Plan is left untouched on existing rows when nil.
	Plan             *string
	Status           string
	CurrentPeriodEnd *time.Time
	EventID          string
	EventAt          time.Time
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
}

// CheckoutSessionParams is what the processor needs to open a checkout.
type CheckoutSessionParams struct {
	CustomerID        string
	PriceID           string
	Mode              string
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	Metadata          map[string]string
}
