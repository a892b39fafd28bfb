package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/studypass/billing/internal/app/service/entitlement"
	"github.com/studypass/billing/internal/app/service/notifier"
	"github.com/studypass/billing/internal/app/service/usage"
	"github.com/studypass/billing/internal/models"
	"github.com/studypass/billing/internal/platform/flowpay"
	"github.com/studypass/billing/pkg/apperr"
	cfgpkg "github.com/studypass/billing/pkg/config"
	"github.com/studypass/billing/pkg/logctx"
	"github.com/studypass/billing/pkg/tool"
	"github.com/studypass/billing/pkg/types"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RecurringGateway is the slice of the payment provider the ledger needs for
// best-effort plan sync. Satisfied by *flowpay.Client.
type RecurringGateway interface {
	UpdateRecurringCharge(ctx context.Context, id string, upd *flowpay.RecurringChargeUpdate) error
	DisableRecurringCharge(ctx context.Context, id string) error
}

type Service struct {
	cfg     *cfgpkg.Config
	db      *gorm.DB
	log     *zap.SugaredLogger
	ent     *entitlement.Service
	usage   *usage.Service
	gateway RecurringGateway
	notif   notifier.Notifier
}

func NewService(cfg *cfgpkg.Config, db *gorm.DB, log *zap.SugaredLogger, ent *entitlement.Service, um *usage.Service, gw RecurringGateway, notif notifier.Notifier) *Service {
	return &Service{cfg: cfg, db: db, log: log, ent: ent, usage: um, gateway: gw, notif: notif}
}

type CreateRequest struct {
	UserID             string             `json:"user_id"`
	Tier               types.Tier         `json:"tier"`
	BillingCycle       types.BillingCycle `json:"billing_cycle"`
	PromoCode          *string            `json:"promo_code"`
	DiscountPercentage *int               `json:"discount_percentage"`
}

type UpdateRequest struct {
	Tier         *types.Tier         `json:"tier"`
	BillingCycle *types.BillingCycle `json:"billing_cycle"`
	AutoRenew    *bool               `json:"auto_renew"`
}

// ProrationResult is informational only; the delta is not auto-charged.
type ProrationResult struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func discounted(amount int64, pct *int) int64 {
	if pct == nil || *pct <= 0 || *pct > 100 {
		return amount
	}
	return amount * int64(100-*pct) / 100
}

func providerInterval(cycle types.BillingCycle) string {
	if cycle == types.BillingCycleAnnual {
		return "annually"
	}
	return "monthly"
}

// priceFor resolves the recurring amount/currency for a tier and cycle.
// The free tier bills nothing and needs no configured plan.
func (s *Service) priceFor(tier types.Tier, cycle types.BillingCycle) (int64, string, error) {
	if !tier.Paid() {
		return 0, "USD", nil
	}
	plan := s.cfg.GetPlanPrice(tier, cycle)
	if plan == nil {
		return 0, "", apperr.Validationf("no plan configured for %s/%s", tier, cycle)
	}
	return plan.Amount, plan.Currency, nil
}

// Create opens the per-user subscription row and provisions usage counters
// for the tier's entitlements.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.Subscription, error) {
	if req == nil || req.UserID == "" {
		return nil, apperr.Validationf("user_id is required")
	}
	if !req.Tier.Valid() {
		return nil, apperr.Validationf("unrecognized tier: %s", req.Tier)
	}
	if !req.BillingCycle.Valid() {
		return nil, apperr.Validationf("unrecognized billing cycle: %s", req.BillingCycle)
	}

	var existing models.Subscription
	err := s.db.WithContext(ctx).Where("user_id = ?", req.UserID).First(&existing).Error
	if err == nil {
		return nil, apperr.Conflictf("subscription already exists for user %s", req.UserID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing subscription: %w", err)
	}

	amount, currency, err := s.priceFor(req.Tier, req.BillingCycle)
	if err != nil {
		return nil, err
	}

	grants, err := s.ent.GetFeaturesForTier(ctx, req.Tier)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	renewal := now.AddDate(0, req.BillingCycle.Months(), 0)
	sub := &models.Subscription{
		ID:                 tool.GenerateUUIDV7(),
		UserID:             req.UserID,
		Tier:               req.Tier,
		BillingCycle:       req.BillingCycle,
		Status:             types.SubscriptionStatusActive,
		Amount:             discounted(amount, req.DiscountPercentage),
		Currency:           currency,
		RenewalDate:        &renewal,
		AutoRenew:          req.Tier.Paid(),
		PromoCode:          req.PromoCode,
		DiscountPercentage: req.DiscountPercentage,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			// A concurrent create for the same user loses the race on the
			// user_id unique index; report it like the pre-check would have.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflictf("subscription already exists for user %s", req.UserID)
			}
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		return s.usage.ProvisionForTier(ctx, tx, req.UserID, grants)
	})
	if err != nil {
		return nil, err
	}

	s.logChange(ctx, nil, sub, types.SubscriptionChangeReasonCreate)
	go s.notif.SubscriptionCreated(ctx, sub.UserID, string(sub.Tier))
	return sub, nil
}

// Update applies plan changes. A tier change computes proration against the
// remaining cycle and fully resets the user's usage counters. Provider-side
// plan sync is committed locally first and reconciled best-effort (retried by
// the scheduler while pending_sync is set).
func (s *Service) Update(ctx context.Context, subscriptionID string, req *UpdateRequest) (*models.Subscription, *ProrationResult, error) {
	if req == nil {
		return nil, nil, apperr.Validationf("empty update")
	}
	if req.Tier != nil && !req.Tier.Valid() {
		return nil, nil, apperr.Validationf("unrecognized tier: %s", *req.Tier)
	}
	if req.BillingCycle != nil && !req.BillingCycle.Valid() {
		return nil, nil, apperr.Validationf("unrecognized billing cycle: %s", *req.BillingCycle)
	}

	sub, err := s.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, nil, err
	}
	before := *sub

	tierChanged := req.Tier != nil && *req.Tier != sub.Tier
	cycleChanged := req.BillingCycle != nil && *req.BillingCycle != sub.BillingCycle

	var proration *ProrationResult
	if tierChanged || cycleChanged {
		tier := sub.Tier
		if req.Tier != nil {
			tier = *req.Tier
		}
		cycle := sub.BillingCycle
		if req.BillingCycle != nil {
			cycle = *req.BillingCycle
		}
		amount, currency, err := s.priceFor(tier, cycle)
		if err != nil {
			return nil, nil, err
		}
		amount = discounted(amount, sub.DiscountPercentage)

		if sub.RenewalDate != nil {
			proration = &ProrationResult{
				Amount:   ComputeProration(sub.Amount, amount, *sub.RenewalDate, time.Now()),
				Currency: currency,
			}
		}

		sub.Tier = tier
		sub.BillingCycle = cycle
		sub.Amount = amount
		sub.Currency = currency
		if sub.ExternalRecurringChargeID != nil {
			sub.PendingSync = types.PendingSyncPlanUpdate
		}
	}
	if req.AutoRenew != nil {
		sub.AutoRenew = *req.AutoRenew
	}

	reason := types.SubscriptionChangeReasonUpdate
	if tierChanged {
		reason = types.SubscriptionChangeReasonTierChange
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(sub).Error; err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}
		if tierChanged {
			grants, err := s.ent.GetFeaturesForTier(ctx, sub.Tier)
			if err != nil {
				return err
			}
			// Tier change resets every counter, not a per-feature proration.
			return s.usage.ProvisionForTier(ctx, tx, sub.UserID, grants)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logChange(ctx, &before, sub, reason)

	if sub.PendingSync == types.PendingSyncPlanUpdate {
		s.attemptSync(ctx, sub)
	}
	return sub, proration, nil
}

// Cancel transitions the subscription to cancelled and best-effort disables
// the provider-side recurring charge.
func (s *Service) Cancel(ctx context.Context, subscriptionID, reason string) (*models.Subscription, error) {
	return s.cancel(ctx, subscriptionID, reason, true, types.SubscriptionChangeReasonCancel)
}

// CancelForRefund is the cancellation cascade of a refund request. Same
// mechanics as Cancel but the change log records the refund as the cause.
func (s *Service) CancelForRefund(ctx context.Context, subscriptionID, reason string) (*models.Subscription, error) {
	return s.cancel(ctx, subscriptionID, reason, true, types.SubscriptionChangeReasonRefund)
}

// MarkCancelledFromProvider handles a provider-initiated cancellation: the
// subscription is located by its recurring-charge handle and no disable call
// is pushed back to the provider.
func (s *Service) MarkCancelledFromProvider(ctx context.Context, recurringChargeID, reason string) (*models.Subscription, error) {
	sub, err := s.GetByRecurringChargeID(ctx, recurringChargeID)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, sub.ID, reason, false, types.SubscriptionChangeReasonCancel)
}

func (s *Service) cancel(ctx context.Context, subscriptionID, reason string, disableRemote bool, logReason types.SubscriptionChangeReason) (*models.Subscription, error) {
	sub, err := s.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := validateTransition(sub.Status, types.SubscriptionStatusCancelled); err != nil {
		return nil, err
	}
	before := *sub

	now := time.Now()
	sub.Status = types.SubscriptionStatusCancelled
	sub.CancelledAt = &now
	sub.AutoRenew = false
	sub.Extra = mergeExtra(sub.Extra, map[string]any{"cancel_reason": reason})
	if disableRemote && sub.ExternalRecurringChargeID != nil {
		sub.PendingSync = types.PendingSyncDisableRecurring
	}

	if err := s.db.WithContext(ctx).Save(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	s.logChange(ctx, &before, sub, logReason)
	go s.notif.SubscriptionCancelled(ctx, sub.UserID, reason)

	if sub.PendingSync == types.PendingSyncDisableRecurring {
		s.attemptSync(ctx, sub)
	}
	return sub, nil
}

// Pause suspends an active subscription. There is no resume transition; a
// paused subscription can only be cancelled.
func (s *Service) Pause(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	sub, err := s.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := validateTransition(sub.Status, types.SubscriptionStatusPaused); err != nil {
		return nil, err
	}
	before := *sub

	now := time.Now()
	sub.Status = types.SubscriptionStatusPaused
	sub.PausedAt = &now
	if err := s.db.WithContext(ctx).Save(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to pause subscription: %w", err)
	}
	s.logChange(ctx, &before, sub, types.SubscriptionChangeReasonPause)
	return sub, nil
}

// RenewalPass extends the subscription after a verified successful payment.
// The next renewal date is computed from max(now, current renewal date) so an
// early renewal does not compound.
func (s *Service) RenewalPass(ctx context.Context, subscriptionID, paymentID string) (*models.Subscription, error) {
	sub, err := s.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := validateTransition(sub.Status, types.SubscriptionStatusActive); err != nil {
		return nil, err
	}
	before := *sub

	now := time.Now()
	base := now
	if sub.RenewalDate != nil && sub.RenewalDate.After(now) {
		base = *sub.RenewalDate
	}
	next := base.AddDate(0, sub.BillingCycle.Months(), 0)

	sub.Status = types.SubscriptionStatusActive
	sub.RenewalDate = &next
	sub.LastPaymentID = &paymentID
	sub.FailedPaymentAttempts = 0
	sub.Reminder7Sent = false
	sub.Reminder1Sent = false

	grants, err := s.ent.GetFeaturesForTier(ctx, sub.Tier)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(sub).Error; err != nil {
			return fmt.Errorf("failed to extend subscription: %w", err)
		}
		return s.usage.ProvisionForTier(ctx, tx, sub.UserID, grants)
	})
	if err != nil {
		return nil, err
	}

	s.logChange(ctx, &before, sub, types.SubscriptionChangeReasonRenewal)
	return sub, nil
}

// AttachRecurringCharge stores the provider handle created after the first
// successful charge.
func (s *Service) AttachRecurringCharge(ctx context.Context, subscriptionID, recurringChargeID string) error {
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", subscriptionID).
		Update("external_recurring_charge_id", recurringChargeID)
	if res.Error != nil {
		return fmt.Errorf("failed to attach recurring charge: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFoundf("subscription not found: %s", subscriptionID)
	}
	return nil
}

// RecordFailedAttempt bumps the failed-payment counter.
func (s *Service) RecordFailedAttempt(ctx context.Context, subscriptionID string) error {
	return s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", subscriptionID).
		Update("failed_payment_attempts", gorm.Expr("failed_payment_attempts + 1")).Error
}

// ExpireOverdue moves active subscriptions whose renewal date passed more
// than grace ago, without a successful charge, to expired.
func (s *Service) ExpireOverdue(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	var subs []*models.Subscription
	if err := s.db.WithContext(ctx).
		Where("status = ? AND renewal_date IS NOT NULL AND renewal_date < ?", types.SubscriptionStatusActive, now.Add(-grace)).
		Find(&subs).Error; err != nil {
		return 0, fmt.Errorf("failed to list overdue subscriptions: %w", err)
	}

	var expired int64
	for _, sub := range subs {
		before := *sub
		sub.Status = types.SubscriptionStatusExpired
		if err := s.db.WithContext(ctx).Save(sub).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to expire subscription %s: %v", sub.ID, err)
			continue
		}
		s.logChange(ctx, &before, sub, types.SubscriptionChangeReasonExpire)
		expired++
	}
	return expired, nil
}

// RetryPendingSyncs re-runs provider side effects that failed earlier.
// Invoked by the scheduler.
func (s *Service) RetryPendingSyncs(ctx context.Context) (int, error) {
	var subs []*models.Subscription
	if err := s.db.WithContext(ctx).
		Where("pending_sync <> ''").
		Limit(100).
		Find(&subs).Error; err != nil {
		return 0, fmt.Errorf("failed to list pending syncs: %w", err)
	}
	done := 0
	for _, sub := range subs {
		if s.attemptSync(ctx, sub) {
			done++
		}
	}
	return done, nil
}

// attemptSync pushes the pending provider side effect. On success the durable
// flag clears; on failure it stays set for the scheduler to retry.
func (s *Service) attemptSync(ctx context.Context, sub *models.Subscription) bool {
	if sub.ExternalRecurringChargeID == nil || sub.PendingSync == types.PendingSyncNone {
		return false
	}
	var err error
	switch sub.PendingSync {
	case types.PendingSyncPlanUpdate:
		err = s.gateway.UpdateRecurringCharge(ctx, *sub.ExternalRecurringChargeID, &flowpay.RecurringChargeUpdate{
			Amount:   sub.Amount,
			Interval: providerInterval(sub.BillingCycle),
		})
	case types.PendingSyncDisableRecurring:
		err = s.gateway.DisableRecurringCharge(ctx, *sub.ExternalRecurringChargeID)
	default:
		return false
	}
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("provider sync failed, will retry",
			"subscription_id", sub.ID, "action", sub.PendingSync, "err", err)
		return false
	}
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", sub.ID).
		Update("pending_sync", types.PendingSyncNone).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to clear pending sync for %s: %v", sub.ID, err)
		return false
	}
	sub.PendingSync = types.PendingSyncNone
	return true
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("subscription not found: %s", id)
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

func (s *Service) GetByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("no subscription for user %s", userID)
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

func (s *Service) GetByRecurringChargeID(ctx context.Context, recurringChargeID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where("external_recurring_charge_id = ?", recurringChargeID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("no subscription for recurring charge %s", recurringChargeID)
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

// logChange writes the change log asynchronously; errors are logged, never returned.
func (s *Service) logChange(ctx context.Context, before, after *models.Subscription, reason types.SubscriptionChangeReason) {
	go func() {
		entry := &models.SubscriptionLog{
			ID:     tool.GenerateUUIDV7(),
			UserID: after.UserID,
			Reason: reason,
			Before: datatypes.NewJSONType(before),
			After:  datatypes.NewJSONType(after),
			Extra:  datatypes.JSONMap{},
		}
		if err := s.db.Save(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save subscription log: %v", err)
		}
	}()
}

func mergeExtra(extra datatypes.JSON, fields map[string]any) datatypes.JSON {
	m := map[string]any{}
	if len(extra) > 0 {
		_ = json.Unmarshal(extra, &m)
	}
	for k, v := range fields {
		m[k] = v
	}
	b, err := json.Marshal(m)
	if err != nil {
		return extra
	}
	return datatypes.JSON(b)
}
