package models

import "time"

// Billing provider constants used across billing-related models.
const (
	BillingProviderStripe = "stripe"
)

const (
	BillingStatusActive     = "active"
	BillingStatusTrialing   = "trialing"
	BillingStatusPastDue    = "past_due"
	BillingStatusCanceled   = "canceled"
	BillingStatusIncomplete = "incomplete"
	BillingStatusUnpaid     = "unpaid"
	BillingStatusPaused     = "paused"
)

// Subscription mirrors the Stripe-side plan state of one account. There is
// exactly one row per account; webhooks upsert it keyed by AccountID and
// canceled rows are kept for audit.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	AccountID            string     `gorm:"type:varchar(128);not null;uniqueIndex:ux_subscriptions_account" json:"account_id"`
	StripeSubscriptionID *string    `gorm:"type:varchar(191);default:null;index" json:"stripe_subscription_id,omitempty"`
	Plan                 *string    `gorm:"type:varchar(50);default:null" json:"plan,omitempty"`
	Status               string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	CurrentPeriodEnd     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	LastEventID          string     `gorm:"type:varchar(191);not null;default:''" json:"last_event_id"`
	LastEventAt          *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PlanOr returns the stored plan or def when none is set.
func (s *Subscription) PlanOr(def string) string {
	if s == nil || s.Plan == nil || *s.Plan == "" {
		return def
	}
	return *s.Plan
}
