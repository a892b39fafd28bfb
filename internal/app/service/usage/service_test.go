package usage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/studypass/billing/internal/app/service/entitlement"
	"github.com/studypass/billing/internal/models"
	"github.com/studypass/billing/pkg/apperr"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewService(db, zap.NewNop().Sugar()), mock, sqlDB
}

func subscriptionRows(tier string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "tier", "status"}).
		AddRow("sub-1", "user-1", tier, "active")
}

func usageRows(count int64, limit *int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "feature_id", "feature_key", "usage_count", "usage_limit"}).
		AddRow("usage-1", "user-1", "feat-1", "ai_sop_review", count, limit)
}

func TestCheckAndIncrement_Succeeds(t *testing.T) {
	svc, mock, sqlDB := newMockService(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "subscription" WHERE user_id = \$1`).
		WithArgs("user-1", 1).
		WillReturnRows(subscriptionRows("premium"))
	mock.ExpectExec(`UPDATE "premium_feature_usage" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	limit := int64(10)
	mock.ExpectQuery(`SELECT \* FROM "premium_feature_usage" WHERE user_id = \$1 AND feature_key = \$2`).
		WithArgs("user-1", "ai_sop_review", 1).
		WillReturnRows(usageRows(5, &limit))

	row, err := svc.CheckAndIncrement(context.Background(), "user-1", "ai_sop_review")
	require.NoError(t, err)
	require.Equal(t, int64(5), row.UsageCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAndIncrement_QuotaSpent(t *testing.T) {
	svc, mock, sqlDB := newMockService(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "subscription" WHERE user_id = \$1`).
		WithArgs("user-1", 1).
		WillReturnRows(subscriptionRows("free"))
	// Conditional update matches nothing: the row exists but the limit is spent.
	mock.ExpectExec(`UPDATE "premium_feature_usage" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	limit := int64(1)
	mock.ExpectQuery(`SELECT \* FROM "premium_feature_usage" WHERE user_id = \$1 AND feature_key = \$2`).
		WithArgs("user-1", "ai_sop_review", 1).
		WillReturnRows(usageRows(1, &limit))

	_, err := svc.CheckAndIncrement(context.Background(), "user-1", "ai_sop_review")
	require.Error(t, err)
	require.Equal(t, apperr.KindQuotaExceeded, apperr.KindOf(err))

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	require.Contains(t, ae.UpgradeHint, "premium")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAndIncrement_NoSubscription(t *testing.T) {
	svc, mock, sqlDB := newMockService(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "subscription" WHERE user_id = \$1`).
		WithArgs("user-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.CheckAndIncrement(context.Background(), "user-1", "ai_sop_review")
	require.Error(t, err)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAndIncrement_FeatureNotEnabled(t *testing.T) {
	svc, mock, sqlDB := newMockService(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "subscription" WHERE user_id = \$1`).
		WithArgs("user-1", 1).
		WillReturnRows(subscriptionRows("free"))
	mock.ExpectExec(`UPDATE "premium_feature_usage" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "premium_feature_usage" WHERE user_id = \$1 AND feature_key = \$2`).
		WithArgs("user-1", "visa_checklist", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.CheckAndIncrement(context.Background(), "user-1", "visa_checklist")
	require.Error(t, err)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRowsForGrants_MirrorsEntitlements(t *testing.T) {
	now := time.Now()
	grants := []*entitlement.FeatureGrant{
		{FeatureID: "feat-1", FeatureKey: "ai_sop_review", UsageLimit: lo.ToPtr(int64(10))},
		{FeatureID: "feat-2", FeatureKey: "university_shortlist", UsageLimit: nil},
	}

	rows := rowsForGrants("user-1", grants, now)
	// One counter row per grant, zeroed, with the tier limit snapshotted.
	require.Len(t, rows, len(grants))
	for i, g := range grants {
		require.NotEmpty(t, rows[i].ID)
		require.Equal(t, "user-1", rows[i].UserID)
		require.Equal(t, g.FeatureID, rows[i].FeatureID)
		require.Equal(t, g.FeatureKey, rows[i].FeatureKey)
		require.Equal(t, g.UsageLimit, rows[i].UsageLimit)
		require.Zero(t, rows[i].UsageCount)
		require.True(t, rows[i].ResetDate.Equal(now.Add(models.UsageResetWindow)))
	}
}

func TestProvisionForTier_ReplacesCounters(t *testing.T) {
	svc, mock, sqlDB := newMockService(t)
	defer sqlDB.Close()

	grants := []*entitlement.FeatureGrant{
		{FeatureID: "feat-1", FeatureKey: "visa_checklist", UsageLimit: lo.ToPtr(int64(5))},
	}

	mock.ExpectExec(`DELETE FROM "premium_feature_usage" WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "premium_feature_usage"`).
		WillReturnRows(sqlmock.NewRows([]string{"usage_count"}).AddRow(0))

	require.NoError(t, svc.ProvisionForTier(context.Background(), nil, "user-1", grants))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisionForTier_NoGrantsClearsOnly(t *testing.T) {
	svc, mock, sqlDB := newMockService(t)
	defer sqlDB.Close()

	mock.ExpectExec(`DELETE FROM "premium_feature_usage" WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, svc.ProvisionForTier(context.Background(), nil, "user-1", nil))
	// No insert happens when the tier grants nothing.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetExpiredCounters(t *testing.T) {
	svc, mock, sqlDB := newMockService(t)
	defer sqlDB.Close()

	mock.ExpectExec(`UPDATE "premium_feature_usage" SET`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := svc.ResetExpiredCounters(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
