package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/studypass/billing/internal/models"
	"github.com/studypass/billing/pkg/types"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service produces billing summaries for the admin surface.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

type BillingSummary struct {
	ActiveByTier     map[types.Tier]int64 `json:"active_by_tier"`
	TotalSubscribers int64                `json:"total_subscribers"`
	CompletedRevenue int64                `json:"completed_revenue"`
	RefundedCount    int64                `json:"refunded_count"`
	From             time.Time            `json:"from"`
	To               time.Time            `json:"to"`
}

// Summary aggregates subscription and payment counts over [from, to).
func (s *Service) Summary(ctx context.Context, from, to time.Time) (*BillingSummary, error) {
	out := &BillingSummary{ActiveByTier: map[types.Tier]int64{}, From: from, To: to}

	type tierCount struct {
		Tier  types.Tier
		Count int64
	}
	var tiers []tierCount
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Select("tier, count(*) as count").
		Where("status = ?", types.SubscriptionStatusActive).
		Group("tier").
		Scan(&tiers).Error; err != nil {
		return nil, fmt.Errorf("failed to count active subscriptions: %w", err)
	}
	for _, t := range tiers {
		out.ActiveByTier[t.Tier] = t.Count
		out.TotalSubscribers += t.Count
	}

	var revenue *int64
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select("sum(amount)").
		Where("status = ? AND completed_at >= ? AND completed_at < ?", types.PaymentStatusCompleted, from, to).
		Scan(&revenue).Error; err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	if revenue != nil {
		out.CompletedRevenue = *revenue
	}

	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("refund_status <> '' AND updated_at >= ? AND updated_at < ?", from, to).
		Count(&out.RefundedCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count refunds: %w", err)
	}

	return out, nil
}

// Module exposes the statistics service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
