package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/studypass/billing/internal/app/service/notifier"
	"github.com/studypass/billing/internal/app/service/subscription"
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
	"gorm.io/gorm/clause"
)

type Service struct {
	cfg    *cfgpkg.Config
	db     *gorm.DB
	log    *zap.SugaredLogger
	gw     Gateway
	ledger *subscription.Service
	notif  notifier.Notifier
}

func NewService(cfg *cfgpkg.Config, db *gorm.DB, log *zap.SugaredLogger, gw Gateway, ledger *subscription.Service, notif notifier.Notifier) *Service {
	return &Service{cfg: cfg, db: db, log: log, gw: gw, ledger: ledger, notif: notif}
}

func newReference() string {
	return "SPB-" + tool.GenerateUUIDV7()
}

func (s *Service) descriptor(p *models.Payment) *ChargeDescriptor {
	return &ChargeDescriptor{
		PaymentID:         p.ID,
		ExternalReference: p.ExternalReference,
		Amount:            p.Amount,
		Currency:          p.Currency,
		Customer:          Customer{Name: p.CustomerName, Email: p.CustomerEmail, Phone: p.CustomerPhone},
		Meta:              map[string]string{"subscription_id": p.SubscriptionID},
	}
}

// CreatePaymentRecord persists a pending Payment before any external charge
// attempt and returns the descriptor the client completes out of band.
func (s *Service) CreatePaymentRecord(ctx context.Context, req *CreatePaymentRequest) (*ChargeDescriptor, error) {
	if req == nil || req.SubscriptionID == "" {
		return nil, apperr.Validationf("subscription_id is required")
	}
	if req.Amount <= 0 {
		return nil, apperr.Validationf("amount must be positive")
	}
	if req.Currency == "" {
		return nil, apperr.Validationf("currency is required")
	}

	sub, err := s.ledger.GetByID(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if req.UserID != "" && sub.UserID != req.UserID {
		return nil, apperr.Validationf("subscription does not belong to user")
	}

	p := &models.Payment{
		ID:                tool.GenerateUUIDV7(),
		UserID:            sub.UserID,
		SubscriptionID:    sub.ID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Status:            types.PaymentStatusPending,
		ExternalReference: newReference(),
		Description:       req.Description,
		CustomerName:      req.Customer.Name,
		CustomerEmail:     req.Customer.Email,
		CustomerPhone:     req.Customer.Phone,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return s.descriptor(p), nil
}

// VerifyPayment confirms a charge against the provider's verify API.
// Idempotent: a payment already completed for the same external transaction
// id short-circuits without re-extending the subscription or re-notifying.
// A provider error leaves the payment untouched, so retrying is always safe.
func (s *Service) VerifyPayment(ctx context.Context, paymentID, externalTransactionID string) (*models.Payment, error) {
	if paymentID == "" || externalTransactionID == "" {
		return nil, apperr.Validationf("payment_id and external_transaction_id are required")
	}

	p, err := s.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status == types.PaymentStatusCompleted {
		return p, nil
	}

	data, err := s.gw.VerifyTransaction(ctx, externalTransactionID)
	if err != nil {
		return nil, err
	}

	if !data.Successful() || data.Amount < p.Amount || data.Currency != p.Currency {
		p.Status = types.PaymentStatusFailed
		if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
			return nil, fmt.Errorf("failed to mark payment failed: %w", err)
		}
		if err := s.ledger.RecordFailedAttempt(ctx, p.SubscriptionID); err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to record failed attempt: %v", err)
		}
		return p, nil
	}

	now := time.Now()
	p.Status = types.PaymentStatusCompleted
	p.ExternalTransactionID = &externalTransactionID
	p.CompletedAt = &now
	if methodJSON, err := json.Marshal(map[string]any{
		"payment_type": data.PaymentType,
		"authorization": data.Authorization,
	}); err == nil {
		p.PaymentMethod = datatypes.JSON(methodJSON)
	}
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, fmt.Errorf("failed to complete payment: %w", err)
	}

	sub, err := s.ledger.RenewalPass(ctx, p.SubscriptionID, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to extend subscription: %w", err)
	}

	// First successful charge with a saved authorization registers the
	// provider-side recurring charge. Best-effort.
	if sub.ExternalRecurringChargeID == nil && data.Authorization != nil && data.Authorization.Token != "" {
		s.registerRecurringCharge(ctx, sub, p, data.Authorization.Token)
	}

	go s.notif.PaymentConfirmation(ctx, p.UserID, p.Amount, p.Currency)
	return p, nil
}

func (s *Service) registerRecurringCharge(ctx context.Context, sub *models.Subscription, p *models.Payment, token string) {
	rc, err := s.gw.CreateRecurringCharge(ctx, &flowpay.RecurringChargeRequest{
		Token:    token,
		TxRef:    p.ExternalReference,
		Email:    p.CustomerEmail,
		Amount:   sub.Amount,
		Currency: sub.Currency,
		Interval: map[types.BillingCycle]string{types.BillingCycleAnnual: "annually", types.BillingCycleMonthly: "monthly"}[sub.BillingCycle],
	})
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("failed to register recurring charge", "subscription_id", sub.ID, "err", err)
		return
	}
	if err := s.ledger.AttachRecurringCharge(ctx, sub.ID, rc.ID); err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to attach recurring charge %s: %v", rc.ID, err)
	}
}

// RequestRefund starts a provider refund for a completed payment and cascades
// an immediate cancellation of the owning subscription. The cancellation is
// not conditional on the refund settling.
func (s *Service) RequestRefund(ctx context.Context, paymentID, reason string) (*models.Payment, error) {
	p, err := s.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !p.Refundable() {
		return nil, apperr.Conflict(fmt.Sprintf("payment %s is not refundable in status %s", p.ID, p.Status), ErrNotRefundable)
	}
	if p.ExternalTransactionID == nil {
		return nil, apperr.Conflict("payment has no external transaction", ErrNotRefundable)
	}

	if err := s.gw.Refund(ctx, *p.ExternalTransactionID, p.Amount); err != nil {
		return nil, err
	}

	p.RefundStatus = types.RefundStatusPending
	p.RefundReason = &reason
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, fmt.Errorf("failed to mark refund pending: %w", err)
	}

	go s.notif.RefundInitiated(ctx, p.UserID, p.ID)

	if _, err := s.ledger.CancelForRefund(ctx, p.SubscriptionID, "refund_requested"); err != nil {
		// Best-effort cascade: the refund is already in flight.
		logctx.FromCtx(ctx, s.log).Errorw("refund cascade cancel failed", "payment_id", p.ID, "err", err)
	}
	return p, nil
}

// MarkRefundSettled records the provider's confirmation that a refund went
// through. Idempotent: a redelivered confirmation is a no-op.
func (s *Service) MarkRefundSettled(ctx context.Context, externalTransactionID string) (*models.Payment, error) {
	p, err := s.GetByExternalTransactionID(ctx, externalTransactionID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFoundf("no payment for refunded transaction %s", externalTransactionID)
	}
	if p.RefundStatus == types.RefundStatusSettled {
		return p, nil
	}

	now := time.Now()
	p.Status = types.PaymentStatusRefunded
	p.RefundStatus = types.RefundStatusSettled
	p.RefundedAt = &now
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, fmt.Errorf("failed to settle refund: %w", err)
	}
	return p, nil
}

// RetryPayment resets a non-completed payment to pending and hands back a
// fresh charge descriptor reusing the same payment id. Capped at
// models.MaxPaymentRetries attempts inclusive.
func (s *Service) RetryPayment(ctx context.Context, paymentID string) (*ChargeDescriptor, error) {
	p, err := s.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status == types.PaymentStatusCompleted {
		return nil, apperr.Conflictf("payment %s is already completed", p.ID)
	}
	if p.RetryCount >= models.MaxPaymentRetries {
		return nil, apperr.Conflict(fmt.Sprintf("payment %s exceeded %d retries", p.ID, models.MaxPaymentRetries), ErrRetryLimitExceeded)
	}

	p.Status = types.PaymentStatusPending
	p.RetryCount++
	p.ExternalReference = newReference()
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, fmt.Errorf("failed to reset payment for retry: %w", err)
	}
	return s.descriptor(p), nil
}

// CreateForProviderCharge lazily creates a payment row for a
// provider-initiated charge (recurring billing) the server never pre-created.
func (s *Service) CreateForProviderCharge(ctx context.Context, sub *models.Subscription, data *flowpay.TransactionData) (*models.Payment, error) {
	ref := data.TxRef
	if ref == "" {
		ref = newReference()
	}
	p := &models.Payment{
		ID:                tool.GenerateUUIDV7(),
		UserID:            sub.UserID,
		SubscriptionID:    sub.ID,
		Amount:            data.Amount,
		Currency:          data.Currency,
		Status:            types.PaymentStatusPending,
		ExternalReference: ref,
		Description:       "provider-initiated recurring charge",
		CustomerName:      data.Customer.Name,
		CustomerEmail:     data.Customer.Email,
		CustomerPhone:     data.Customer.Phone,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment for provider charge: %w", err)
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("payment not found: %s", id)
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &p, nil
}

// GetByExternalTransactionID returns nil, nil when no payment matches.
func (s *Service) GetByExternalTransactionID(ctx context.Context, externalTransactionID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).Where("external_transaction_id = ?", externalTransactionID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment by transaction id: %w", err)
	}
	return &p, nil
}

// GetByReference returns nil, nil when no payment matches the tx_ref.
func (s *Service) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).Where("external_reference = ?", reference).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment by reference: %w", err)
	}
	return &p, nil
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// ScanPayments implements paginated admin listing with filters.
func (s *Service) ScanPayments(ctx context.Context, req *ScanPaymentsRequest) (*ScanPaymentsResponse, error) {
	if req == nil {
		return nil, apperr.Validationf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Payment{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count payments: %w", err)
	}

	var rows []*models.Payment
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if req.SortBy != "" {
		q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	return &ScanPaymentsResponse{Items: rows, Total: total}, nil
}
