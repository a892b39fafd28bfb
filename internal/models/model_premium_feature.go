package models

import (
	"time"

	"github.com/studypass/billing/pkg/types"
)

// PremiumFeature is a catalog row describing one metered feature and its
// per-tier access flags and limits. A nil limit means unlimited.
type PremiumFeature struct {
	ID         string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	FeatureKey string `gorm:"column:feature_key;type:varchar(64);not null;uniqueIndex" json:"feature_key"`
	Name       string `gorm:"column:name;type:varchar(128);not null" json:"name"`
	Category   string `gorm:"column:category;type:varchar(64);not null" json:"category"`

	FreeAccess         bool   `gorm:"column:free_access;not null;default:false" json:"free_access"`
	FreeLimit          *int64 `gorm:"column:free_limit;default:null" json:"free_limit"`
	PremiumAccess      bool   `gorm:"column:premium_access;not null;default:false" json:"premium_access"`
	PremiumLimit       *int64 `gorm:"column:premium_limit;default:null" json:"premium_limit"`
	ProfessionalAccess bool   `gorm:"column:professional_access;not null;default:false" json:"professional_access"`
	ProfessionalLimit  *int64 `gorm:"column:professional_limit;default:null" json:"professional_limit"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PremiumFeature) TableName() string {
	return "premium_feature"
}

// AccessForTier returns whether the tier may use the feature and its limit.
func (f *PremiumFeature) AccessForTier(tier types.Tier) (bool, *int64) {
	switch tier {
	case types.TierFree:
		return f.FreeAccess, f.FreeLimit
	case types.TierPremium:
		return f.PremiumAccess, f.PremiumLimit
	case types.TierProfessional:
		return f.ProfessionalAccess, f.ProfessionalLimit
	}
	return false, nil
}
