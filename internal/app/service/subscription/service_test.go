package subscription

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/studypass/billing/internal/app/service/entitlement"
	"github.com/studypass/billing/internal/app/service/usage"
	"github.com/studypass/billing/pkg/apperr"
	cfgpkg "github.com/studypass/billing/pkg/config"
	"github.com/studypass/billing/pkg/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type stubNotifier struct{}

func (stubNotifier) SubscriptionCreated(context.Context, string, string)        {}
func (stubNotifier) PaymentConfirmation(context.Context, string, int64, string) {}
func (stubNotifier) RenewalReminder(context.Context, string, time.Time, int)    {}
func (stubNotifier) RefundInitiated(context.Context, string, string)            {}
func (stubNotifier) SubscriptionCancelled(context.Context, string, string)      {}

func newMockLedger(t *testing.T) (*Service, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	log := zap.NewNop().Sugar()
	cfg := &cfgpkg.Config{Plans: []*types.PlanPrice{
		{Tier: types.TierPremium, Cycle: types.BillingCycleMonthly, Amount: 2499, Currency: "NGN"},
	}}
	svc := NewService(cfg, db, log, entitlement.NewService(db, log), usage.NewService(db, log), nil, stubNotifier{})
	return svc, mock, sqlDB
}

func ledgerRows(status, cycle string, renewal time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "tier", "billing_cycle", "status", "amount", "currency",
		"renewal_date", "failed_payment_attempts", "reminder7_sent", "reminder1_sent",
	}).AddRow("sub-1", "user-1", "premium", cycle, status, 2499, "NGN", renewal, 2, true, true)
}

func TestCreate_Validation(t *testing.T) {
	svc := &Service{}

	cases := []*CreateRequest{
		nil,
		{Tier: types.TierPremium, BillingCycle: types.BillingCycleMonthly},
		{UserID: "user-1", Tier: "platinum", BillingCycle: types.BillingCycleMonthly},
		{UserID: "user-1", Tier: types.TierPremium, BillingCycle: "weekly"},
	}
	for _, req := range cases {
		_, err := svc.Create(context.Background(), req)
		require.Error(t, err)
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}
}

func TestCreate_ConcurrentDuplicateMapsToConflict(t *testing.T) {
	svc, mock, sqlDB := newMockLedger(t)
	defer sqlDB.Close()

	// The pre-check sees no row; the insert then loses the race on the
	// user_id unique index.
	mock.ExpectQuery(`SELECT \* FROM "subscription" WHERE user_id = \$1`).
		WithArgs("user-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "premium_feature"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "subscription"`).
		WillReturnError(gorm.ErrDuplicatedKey)
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), &CreateRequest{
		UserID:       "user-1",
		Tier:         types.TierPremium,
		BillingCycle: types.BillingCycleMonthly,
	})
	require.Error(t, err)
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenewalPass_ExtendsFromUnexpiredRenewalDate(t *testing.T) {
	svc, mock, sqlDB := newMockLedger(t)
	defer sqlDB.Close()

	oldRenewal := time.Now().Add(10 * 24 * time.Hour).Truncate(time.Second)
	mock.ExpectQuery(`SELECT \* FROM "subscription" WHERE id = \$1`).
		WithArgs("sub-1", 1).
		WillReturnRows(ledgerRows("active", "monthly", oldRenewal))
	mock.ExpectQuery(`SELECT \* FROM "premium_feature"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "subscription" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "premium_feature_usage" WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	sub, err := svc.RenewalPass(context.Background(), "sub-1", "pay-9")
	require.NoError(t, err)
	// An early charge extends from the unexpired renewal date, not from now,
	// so the user keeps the days already paid for.
	require.True(t, sub.RenewalDate.Equal(oldRenewal.AddDate(0, 1, 0)))
	require.False(t, sub.Reminder7Sent)
	require.False(t, sub.Reminder1Sent)
	require.Zero(t, sub.FailedPaymentAttempts)
	require.Equal(t, "pay-9", *sub.LastPaymentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenewalPass_RevivesExpiredSubscription(t *testing.T) {
	svc, mock, sqlDB := newMockLedger(t)
	defer sqlDB.Close()

	staleRenewal := time.Now().AddDate(0, -4, 0)
	mock.ExpectQuery(`SELECT \* FROM "subscription" WHERE id = \$1`).
		WithArgs("sub-1", 1).
		WillReturnRows(ledgerRows("expired", "monthly", staleRenewal))
	mock.ExpectQuery(`SELECT \* FROM "premium_feature"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "subscription" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "premium_feature_usage" WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	sub, err := svc.RenewalPass(context.Background(), "sub-1", "pay-9")
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusActive, sub.Status)
	// A lapsed renewal date restarts the cycle from now.
	require.WithinDuration(t, time.Now().AddDate(0, 1, 0), *sub.RenewalDate, time.Minute)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenewalPass_RejectsCancelled(t *testing.T) {
	svc, mock, sqlDB := newMockLedger(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "subscription" WHERE id = \$1`).
		WithArgs("sub-1", 1).
		WillReturnRows(ledgerRows("cancelled", "monthly", time.Now()))

	_, err := svc.RenewalPass(context.Background(), "sub-1", "pay-9")
	require.Error(t, err)
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelForRefund_CancelsSubscription(t *testing.T) {
	svc, mock, sqlDB := newMockLedger(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "subscription" WHERE id = \$1`).
		WithArgs("sub-1", 1).
		WillReturnRows(ledgerRows("active", "monthly", time.Now().Add(24*time.Hour)))
	mock.ExpectExec(`UPDATE "subscription" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sub, err := svc.CancelForRefund(context.Background(), "sub-1", "refund_requested")
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusCancelled, sub.Status)
	require.False(t, sub.AutoRenew)
	require.NotNil(t, sub.CancelledAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscounted(t *testing.T) {
	require.Equal(t, int64(2499), discounted(2499, nil))
	require.Equal(t, int64(2499), discounted(2499, lo.ToPtr(0)))
	require.Equal(t, int64(1250), discounted(2500, lo.ToPtr(50)))
	require.Equal(t, int64(0), discounted(2499, lo.ToPtr(100)))
	// Out-of-range percentages are ignored rather than inverted.
	require.Equal(t, int64(2499), discounted(2499, lo.ToPtr(120)))
	require.Equal(t, int64(2499), discounted(2499, lo.ToPtr(-10)))
}

func TestProviderInterval(t *testing.T) {
	require.Equal(t, "monthly", providerInterval(types.BillingCycleMonthly))
	require.Equal(t, "annually", providerInterval(types.BillingCycleAnnual))
}

func TestMergeExtra(t *testing.T) {
	out := mergeExtra(datatypes.JSON(`{"promo":"LAUNCH"}`), map[string]any{"cancel_reason": "too expensive"})

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	require.Equal(t, "LAUNCH", m["promo"])
	require.Equal(t, "too expensive", m["cancel_reason"])

	out = mergeExtra(nil, map[string]any{"cancel_reason": "refund_requested"})
	require.NoError(t, json.Unmarshal(out, &m))
	require.Equal(t, "refund_requested", m["cancel_reason"])
}
