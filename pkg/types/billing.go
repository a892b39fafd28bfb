package types

type Tier string

const (
	TierFree         Tier = "free"
	TierPremium      Tier = "premium"
	TierProfessional Tier = "professional"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPremium, TierProfessional:
		return true
	}
	return false
}

// Paid reports whether the tier is billed.
func (t Tier) Paid() bool {
	return t == TierPremium || t == TierProfessional
}

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleAnnual  BillingCycle = "annual"
)

func (c BillingCycle) Valid() bool {
	return c == BillingCycleMonthly || c == BillingCycleAnnual
}

// Months is the number of calendar months one billing period covers.
func (c BillingCycle) Months() int {
	if c == BillingCycleAnnual {
		return 12
	}
	return 1
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type RefundStatus string

const (
	RefundStatusNone    RefundStatus = ""
	RefundStatusPending RefundStatus = "pending"
	RefundStatusSettled RefundStatus = "settled"
)

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonCreate     SubscriptionChangeReason = "create"
	SubscriptionChangeReasonUpdate     SubscriptionChangeReason = "update"
	SubscriptionChangeReasonTierChange SubscriptionChangeReason = "tierChange"
	SubscriptionChangeReasonRenewal    SubscriptionChangeReason = "renewal"
	SubscriptionChangeReasonCancel     SubscriptionChangeReason = "cancel"
	SubscriptionChangeReasonPause      SubscriptionChangeReason = "pause"
	SubscriptionChangeReasonExpire     SubscriptionChangeReason = "expire"
	SubscriptionChangeReasonRefund     SubscriptionChangeReason = "refund"
)

// PendingSyncAction marks an external provider side effect that has been
// committed locally but not yet acknowledged by the payment provider.
type PendingSyncAction string

const (
	PendingSyncNone             PendingSyncAction = ""
	PendingSyncPlanUpdate       PendingSyncAction = "plan_update"
	PendingSyncDisableRecurring PendingSyncAction = "disable_recurring"
)

// WebhookEvent names the provider event types the reconciler understands.
type WebhookEvent string

const (
	WebhookEventChargeCompleted       WebhookEvent = "charge.completed"
	WebhookEventChargeRefunded        WebhookEvent = "charge.refunded"
	WebhookEventSubscriptionCharged   WebhookEvent = "subscription.charged"
	WebhookEventSubscriptionCancelled WebhookEvent = "subscription.cancelled"
)
