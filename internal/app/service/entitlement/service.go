package entitlement

import (
	"context"
	"fmt"

	"github.com/studypass/billing/internal/models"
	"github.com/studypass/billing/pkg/apperr"
	"github.com/studypass/billing/pkg/tool"
	"github.com/studypass/billing/pkg/types"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FeatureGrant is the resolved entitlement for one feature under a tier.
// A nil UsageLimit means unlimited.
type FeatureGrant struct {
	FeatureID  string `json:"feature_id"`
	FeatureKey string `json:"feature_key"`
	UsageLimit *int64 `json:"usage_limit"`
}

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// GetFeaturesForTier projects the feature catalog onto a tier: every feature
// the tier may access, with the tier's limit snapshot. Read-only.
func (s *Service) GetFeaturesForTier(ctx context.Context, tier types.Tier) ([]*FeatureGrant, error) {
	if !tier.Valid() {
		return nil, apperr.Validationf("unrecognized tier: %s", tier)
	}

	var features []*models.PremiumFeature
	if err := s.db.WithContext(ctx).Order("feature_key asc").Find(&features).Error; err != nil {
		return nil, fmt.Errorf("failed to load feature catalog: %w", err)
	}

	grants := make([]*FeatureGrant, 0, len(features))
	for _, f := range features {
		access, limit := f.AccessForTier(tier)
		if !access {
			continue
		}
		grants = append(grants, &FeatureGrant{FeatureID: f.ID, FeatureKey: f.FeatureKey, UsageLimit: limit})
	}
	return grants, nil
}

// defaultFeatures seeds a fresh deployment with the study-abroad catalog.
// FirstOrCreate keeps the seed idempotent across restarts.
var defaultFeatures = []*models.PremiumFeature{
	{
		FeatureKey: "ai_sop_review", Name: "AI SOP Review", Category: "ai",
		FreeAccess: true, FreeLimit: lo.ToPtr(int64(1)),
		PremiumAccess: true, PremiumLimit: lo.ToPtr(int64(10)),
		ProfessionalAccess: true,
	},
	{
		FeatureKey: "university_shortlist", Name: "University Shortlist Builder", Category: "catalog",
		FreeAccess: true, FreeLimit: lo.ToPtr(int64(3)),
		PremiumAccess: true, PremiumLimit: lo.ToPtr(int64(25)),
		ProfessionalAccess: true,
	},
	{
		FeatureKey: "visa_checklist", Name: "Visa Document Checklist", Category: "documents",
		PremiumAccess: true, PremiumLimit: lo.ToPtr(int64(5)),
		ProfessionalAccess: true,
	},
	{
		FeatureKey: "counsellor_session", Name: "Counsellor Session", Category: "support",
		PremiumAccess: true, PremiumLimit: lo.ToPtr(int64(2)),
		ProfessionalAccess: true, ProfessionalLimit: lo.ToPtr(int64(8)),
	},
}

// SeedDefaultFeatures inserts missing catalog rows on startup.
func SeedDefaultFeatures(log *zap.SugaredLogger, db *gorm.DB) error {
	for _, f := range defaultFeatures {
		row := *f
		row.ID = tool.GenerateUUIDV7()
		if err := db.Where("feature_key = ?", row.FeatureKey).FirstOrCreate(&row).Error; err != nil {
			return fmt.Errorf("failed to seed feature %s: %w", row.FeatureKey, err)
		}
	}
	log.Infow("feature catalog seeded", "features", len(defaultFeatures))
	return nil
}
