package models

import (
	"time"

	"github.com/studypass/billing/pkg/types"

	"gorm.io/datatypes"
)

// Subscription is the per-user billing record. There is exactly one row per
// user; it is never hard-deleted, only transitioned between statuses.
type Subscription struct {
	ID           string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID       string                   `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex" json:"user_id"`
	Tier         types.Tier               `gorm:"column:tier;type:varchar(32);not null" json:"tier"`
	BillingCycle types.BillingCycle       `gorm:"column:billing_cycle;type:varchar(32);not null" json:"billing_cycle"`
	Status       types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	// Amount is the recurring charge in minor currency units.
	Amount   int64  `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency string `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	// RenewalDate is in the future while the subscription is active.
	RenewalDate *time.Time `gorm:"column:renewal_date;default:null;index" json:"renewal_date"`
	CancelledAt *time.Time `gorm:"column:cancelled_at;default:null" json:"cancelled_at"`
	PausedAt    *time.Time `gorm:"column:paused_at;default:null" json:"paused_at"`
	AutoRenew   bool       `gorm:"column:auto_renew;not null;default:false" json:"auto_renew"`
	// Reminder flags gate the 7-day/1-day renewal reminders to at most one send each.
	Reminder7Sent bool    `gorm:"column:reminder7_sent;not null;default:false" json:"reminder7_sent"`
	Reminder1Sent bool    `gorm:"column:reminder1_sent;not null;default:false" json:"reminder1_sent"`
	LastPaymentID *string `gorm:"column:last_payment_id;type:uuid;default:null" json:"last_payment_id"`
	// ExternalRecurringChargeID is the provider-side handle for recurring billing.
	ExternalRecurringChargeID *string `gorm:"column:external_recurring_charge_id;type:varchar(128);default:null;index" json:"external_recurring_charge_id"`
	FailedPaymentAttempts     int     `gorm:"column:failed_payment_attempts;not null;default:0" json:"failed_payment_attempts"`
	PromoCode                 *string `gorm:"column:promo_code;type:varchar(64);default:null" json:"promo_code"`
	DiscountPercentage        *int    `gorm:"column:discount_percentage;default:null" json:"discount_percentage"`
	// PendingSync records a provider side effect committed locally but not yet
	// acknowledged remotely; the scheduler retries it until it clears.
	PendingSync types.PendingSyncAction `gorm:"column:pending_sync;type:varchar(32);not null;default:''" json:"pending_sync"`
	// Extra stores additional JSON data (for example the cancellation reason).
	Extra     datatypes.JSON `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// Active reports whether the subscription currently grants its tier.
func (s *Subscription) Active() bool {
	return s != nil && s.Status == types.SubscriptionStatusActive
}

// RenewalDue reports whether the renewal date falls within d of now.
func (s *Subscription) RenewalDue(now time.Time, d time.Duration) bool {
	if s == nil || s.RenewalDate == nil {
		return false
	}
	return s.RenewalDate.After(now) && s.RenewalDate.Sub(now) <= d
}
