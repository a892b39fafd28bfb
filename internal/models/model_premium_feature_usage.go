package models

import "time"

// UsageResetWindow is the fixed window after which usage counters reset.
const UsageResetWindow = 30 * 24 * time.Hour

// PremiumFeatureUsage is the per-(user, feature) quota counter. UsageLimit is
// a snapshot of the tier limit at provisioning time; nil means unlimited.
// Invariant: UsageCount never exceeds a non-nil UsageLimit.
type PremiumFeatureUsage struct {
	ID         string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID     string `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:idx_usage_user_feature,priority:1" json:"user_id"`
	FeatureID  string `gorm:"column:feature_id;type:uuid;not null;uniqueIndex:idx_usage_user_feature,priority:2" json:"feature_id"`
	FeatureKey string `gorm:"column:feature_key;type:varchar(64);not null;index" json:"feature_key"`
	UsageCount int64  `gorm:"column:usage_count;type:bigint;not null;default:0" json:"usage_count"`
	UsageLimit *int64 `gorm:"column:usage_limit;default:null" json:"usage_limit"`
	ResetDate  time.Time  `gorm:"column:reset_date;not null" json:"reset_date"`
	LastUsedAt *time.Time `gorm:"column:last_used_at;default:null;index" json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (PremiumFeatureUsage) TableName() string {
	return "premium_feature_usage"
}

// Remaining returns slots left, or nil when unlimited.
func (u *PremiumFeatureUsage) Remaining() *int64 {
	if u == nil || u.UsageLimit == nil {
		return nil
	}
	r := *u.UsageLimit - u.UsageCount
	if r < 0 {
		r = 0
	}
	return &r
}
