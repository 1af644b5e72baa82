package models

import "time"

// CustomerMapping links a local account to its Stripe customer. Rows are
// created on first checkout and never updated afterwards.
type CustomerMapping struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	AccountID        string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_customer_mappings_account" json:"account_id"`
	StripeCustomerID string    `gorm:"type:varchar(191);not null;index" json:"stripe_customer_id"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}
