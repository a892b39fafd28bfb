package notifier

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Notifier is the outbound notification collaborator. Sends are
// fire-and-forget; a failed send must never abort a billing operation.
type Notifier interface {
	SubscriptionCreated(ctx context.Context, userID string, tier string)
	PaymentConfirmation(ctx context.Context, userID string, amount int64, currency string)
	RenewalReminder(ctx context.Context, userID string, renewalDate time.Time, daysLeft int)
	RefundInitiated(ctx context.Context, userID, paymentID string)
	SubscriptionCancelled(ctx context.Context, userID, reason string)
}

// LogNotifier is the default implementation: it records every send in the
// service log. The real delivery channel (email/campaign service) is an
// external collaborator plugged in behind the same interface.
type LogNotifier struct {
	log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) Notifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SubscriptionCreated(ctx context.Context, userID string, tier string) {
	n.log.Infow("notify_subscription_created", "user_id", userID, "tier", tier)
}

func (n *LogNotifier) PaymentConfirmation(ctx context.Context, userID string, amount int64, currency string) {
	n.log.Infow("notify_payment_confirmation", "user_id", userID, "amount", amount, "currency", currency)
}

func (n *LogNotifier) RenewalReminder(ctx context.Context, userID string, renewalDate time.Time, daysLeft int) {
	n.log.Infow("notify_renewal_reminder", "user_id", userID, "renewal_date", renewalDate, "days_left", daysLeft)
}

func (n *LogNotifier) RefundInitiated(ctx context.Context, userID, paymentID string) {
	n.log.Infow("notify_refund_initiated", "user_id", userID, "payment_id", paymentID)
}

func (n *LogNotifier) SubscriptionCancelled(ctx context.Context, userID, reason string) {
	n.log.Infow("notify_subscription_cancelled", "user_id", userID, "reason", reason)
}

var Module = fx.Options(
	fx.Provide(NewLogNotifier),
)
