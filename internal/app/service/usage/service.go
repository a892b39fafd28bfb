package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studypass/billing/internal/app/service/entitlement"
	"github.com/studypass/billing/internal/models"
	"github.com/studypass/billing/pkg/apperr"
	"github.com/studypass/billing/pkg/logctx"
	"github.com/studypass/billing/pkg/tool"
	"github.com/studypass/billing/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

func upgradeHint(tier types.Tier) string {
	switch tier {
	case types.TierFree:
		return "upgrade to premium to raise this limit"
	case types.TierPremium:
		return "upgrade to professional to raise this limit"
	default:
		return "limit resets at the end of the current usage window"
	}
}

// CheckAndIncrement consumes one usage slot for (userID, featureKey).
// The quota check and the increment are a single conditional UPDATE so that
// concurrent calls against one remaining slot cannot both succeed.
func (s *Service) CheckAndIncrement(ctx context.Context, userID, featureKey string) (*models.PremiumFeatureUsage, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("no active subscription for user %s", userID)
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.PremiumFeatureUsage{}).
		Where("user_id = ? AND feature_key = ?", userID, featureKey).
		Where("usage_limit IS NULL OR usage_count < usage_limit").
		Updates(map[string]any{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to increment usage: %w", res.Error)
	}

	var row models.PremiumFeatureUsage
	if err := s.db.WithContext(ctx).Where("user_id = ? AND feature_key = ?", userID, featureKey).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("feature not enabled: %s", featureKey)
		}
		return nil, fmt.Errorf("failed to load usage row: %w", err)
	}

	if res.RowsAffected == 0 {
		// Row exists but the conditional update matched nothing: quota is spent.
		return nil, apperr.QuotaExceeded(
			fmt.Sprintf("usage limit reached for %s", featureKey),
			upgradeHint(sub.Tier),
		)
	}

	return &row, nil
}

// GetUsageHistory lists usage rows for a user, newest activity first.
// featureKey is optional; page is 1-based.
func (s *Service) GetUsageHistory(ctx context.Context, userID, featureKey string, page, pageSize int) ([]*models.PremiumFeatureUsage, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	q := s.db.WithContext(ctx).Model(&models.PremiumFeatureUsage{}).Where("user_id = ?", userID)
	if featureKey != "" {
		q = q.Where("feature_key = ?", featureKey)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count usage rows: %w", err)
	}

	var rows []*models.PremiumFeatureUsage
	if err := q.Order("last_used_at desc NULLS LAST").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list usage rows: %w", err)
	}
	return rows, total, nil
}

// rowsForGrants materializes one zeroed counter row per grant, snapshotting
// the tier limit at provisioning time.
func rowsForGrants(userID string, grants []*entitlement.FeatureGrant, now time.Time) []*models.PremiumFeatureUsage {
	rows := make([]*models.PremiumFeatureUsage, 0, len(grants))
	for _, g := range grants {
		rows = append(rows, &models.PremiumFeatureUsage{
			ID:         tool.GenerateUUIDV7(),
			UserID:     userID,
			FeatureID:  g.FeatureID,
			FeatureKey: g.FeatureKey,
			UsageLimit: g.UsageLimit,
			ResetDate:  now.Add(models.UsageResetWindow),
		})
	}
	return rows
}

// ProvisionForTier replaces the user's usage rows with fresh counters for the
// given grants. Called on subscription create and on every tier change, which
// is also what implements the full usage-counter reset.
func (s *Service) ProvisionForTier(ctx context.Context, tx *gorm.DB, userID string, grants []*entitlement.FeatureGrant) error {
	if tx == nil {
		tx = s.db
	}
	if err := tx.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.PremiumFeatureUsage{}).Error; err != nil {
		return fmt.Errorf("failed to clear usage rows: %w", err)
	}
	if len(grants) == 0 {
		return nil
	}

	rows := rowsForGrants(userID, grants, time.Now())
	if err := tx.WithContext(ctx).Create(rows).Error; err != nil {
		return fmt.Errorf("failed to provision usage rows: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("usage rows provisioned", "user_id", userID, "features", len(rows))
	return nil
}

// ResetExpiredCounters zeroes counters and advances reset dates for every
// user holding an active subscription. Blanket semantics keep the job
// idempotent per run.
func (s *Service) ResetExpiredCounters(ctx context.Context, now time.Time) (int64, error) {
	sub := s.db.Model(&models.Subscription{}).Select("user_id").Where("status = ?", types.SubscriptionStatusActive)
	res := s.db.WithContext(ctx).Model(&models.PremiumFeatureUsage{}).
		Where("user_id IN (?)", sub).
		Where("reset_date <= ?", now).
		Updates(map[string]any{
			"usage_count": 0,
			"reset_date":  gorm.Expr("reset_date + interval '30 days'"),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reset usage counters: %w", res.Error)
	}
	return res.RowsAffected, nil
}
