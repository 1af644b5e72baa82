package billing

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Processor is the subset of the payment processor API used here.
type Processor interface {
	RetrieveSubscription(ctx context.Context, id string) (*ProcessorSubscription, error)
	CreateCustomer(ctx context.Context, accountID, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionParams) (string, error)
}

// EventVerifier authenticates raw webhook deliveries.
type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (*Event, error)
}

// StripeProcessor talks to Stripe through stripe-go.
type StripeProcessor struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProcessor creates a processor for the given API key and webhook
// signing secret. backends may be nil to use the stripe-go defaults.
func NewStripeProcessor(secretKey, webhookSecret string, backends *stripe.Backends) *StripeProcessor {
	return &StripeProcessor{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
	}
}

func (p *StripeProcessor) RetrieveSubscription(ctx context.Context, id string) (*ProcessorSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, upstream("retrieve subscription", err)
	}

	out := &ProcessorSubscription{
		ID:       sub.ID,
		Status:   string(sub.Status),
		Metadata: sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil {
		var latest int64
		for _, item := range sub.Items.Data {
			if item != nil && item.CurrentPeriodEnd > latest {
				latest = item.CurrentPeriodEnd
			}
		}
		out.CurrentPeriodEnd = unixTime(latest)
	}
	return out, nil
}

func (p *StripeProcessor) CreateCustomer(ctx context.Context, accountID, email string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata(MetadataAccountID, accountID)

	c, err := p.api.Customers.New(params)
	if err != nil {
		return "", upstream("create customer", err)
	}
	return c.ID, nil
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, in CheckoutSessionParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(in.CustomerID),
		Mode:     stripe.String(in.Mode),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
	}
	params.Context = ctx
	if in.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(in.ClientReferenceID)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.Mode == ModeSubscription {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: copyMetadata(in.Metadata),
		}
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", upstream("create checkout session", err)
	}
	if s.URL == "" {
		return "", upstream("create checkout session", errors.New("session has no url"))
	}
	return s.URL, nil
}

// ConstructEvent verifies the Stripe-Signature header against payload. API
// version mismatches between the account and stripe-go are tolerated since
// only a few stable fields are read from the payload.
func (p *StripeProcessor) ConstructEvent(payload []byte, signature string) (*Event, error) {
	if signature == "" {
		return nil, ErrMissingSignature
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrSignatureInvalid, err)
	}

	out := &Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Created: time.Unix(ev.Created, 0).UTC(),
		Payload: payload,
	}
	if ev.Data != nil {
		out.Object = ev.Data.Raw
	}
	return out, nil
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
