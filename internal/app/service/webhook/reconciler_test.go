package webhook

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/studypass/billing/internal/app/service/payment"
	"github.com/studypass/billing/internal/app/service/webhooklog"
	"github.com/studypass/billing/internal/platform/flowpay"
	"github.com/studypass/billing/pkg/apperr"
	cfgpkg "github.com/studypass/billing/pkg/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newTestReconciler(secretHash string) *Reconciler {
	cfg := &cfgpkg.Config{}
	cfg.FlowPay.SecretHash = secretHash
	return NewReconciler(cfg, zap.NewNop().Sugar(), nil, nil, nil)
}

type countingGateway struct {
	verifyCalls int
}

func (g *countingGateway) VerifyTransaction(_ context.Context, _ string) (*flowpay.TransactionData, error) {
	g.verifyCalls++
	return nil, apperr.Gateway("verify should not have been reached", nil)
}

func (g *countingGateway) CreateRecurringCharge(_ context.Context, _ *flowpay.RecurringChargeRequest) (*flowpay.RecurringCharge, error) {
	panic("not used")
}

func (g *countingGateway) Refund(_ context.Context, _ string, _ int64) error {
	panic("not used")
}

type nopNotifier struct{}

func (nopNotifier) SubscriptionCreated(context.Context, string, string)        {}
func (nopNotifier) PaymentConfirmation(context.Context, string, int64, string) {}
func (nopNotifier) RenewalReminder(context.Context, string, time.Time, int)    {}
func (nopNotifier) RefundInitiated(context.Context, string, string)            {}
func (nopNotifier) SubscriptionCancelled(context.Context, string, string)      {}

// newChargeReconciler wires a reconciler over a real payment service backed
// by a mock database, so delivery handling runs the full resolution path.
func newChargeReconciler(t *testing.T) (*Reconciler, *countingGateway, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	log := zap.NewNop().Sugar()
	cfg := &cfgpkg.Config{}
	cfg.FlowPay.SecretHash = "expected-hash"
	gw := &countingGateway{}
	payments := payment.NewService(cfg, db, log, gw, nil, nopNotifier{})
	return NewReconciler(cfg, log, payments, nil, webhooklog.New(db, log)), gw, mock, sqlDB
}

func settledPaymentRows(refundStatus string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "subscription_id", "amount", "currency", "status",
		"external_transaction_id", "refund_status",
	}).AddRow("pay-1", "user-1", "sub-1", 2499, "NGN", "completed", "ext-1", refundStatus)
}

func TestHandleEvent_RejectsBadSignature(t *testing.T) {
	r := newTestReconciler("expected-hash")

	err := r.HandleEvent(context.Background(), "wrong-hash", []byte(`{"event":"charge.completed"}`))
	require.Error(t, err)
	require.Equal(t, apperr.KindSignature, apperr.KindOf(err))
}

func TestHandleEvent_RejectsMissingSignature(t *testing.T) {
	r := newTestReconciler("expected-hash")

	err := r.HandleEvent(context.Background(), "", []byte(`{"event":"charge.completed"}`))
	require.Error(t, err)
	require.Equal(t, apperr.KindSignature, apperr.KindOf(err))
}

func TestHandleEvent_RejectsWhenNoSecretConfigured(t *testing.T) {
	// An unset secret must fail closed, not accept everything.
	r := newTestReconciler("")

	err := r.HandleEvent(context.Background(), "", []byte(`{"event":"charge.completed"}`))
	require.Error(t, err)
	require.Equal(t, apperr.KindSignature, apperr.KindOf(err))
}

func TestHandleEvent_RejectsMalformedBody(t *testing.T) {
	r := newTestReconciler("expected-hash")

	err := r.HandleEvent(context.Background(), "expected-hash", []byte(`{not json`))
	require.Error(t, err)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestHandleEvent_RedeliveredChargeShortCircuits(t *testing.T) {
	r, gw, mock, sqlDB := newChargeReconciler(t)
	defer sqlDB.Close()

	body := []byte(`{"event":"charge.completed","data":{"id":"ext-1","tx_ref":"SPB-1","status":"successful","amount":2499,"currency":"NGN"}}`)

	// Both deliveries resolve to a payment already settled for this
	// transaction id, so the renewal extension happened exactly once.
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`SELECT \* FROM "payment" WHERE external_transaction_id = \$1`).
			WithArgs("ext-1", 1).
			WillReturnRows(settledPaymentRows(""))
		require.NoError(t, r.HandleEvent(context.Background(), "expected-hash", body))
	}

	// Neither delivery reached the provider or touched the subscription.
	require.Zero(t, gw.verifyCalls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleEvent_ChargeRefundedSettlesPayment(t *testing.T) {
	r, gw, mock, sqlDB := newChargeReconciler(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "payment" WHERE external_transaction_id = \$1`).
		WithArgs("ext-1", 1).
		WillReturnRows(settledPaymentRows("pending"))
	mock.ExpectExec(`UPDATE "payment" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := []byte(`{"event":"charge.refunded","data":{"id":"ext-1"}}`)
	require.NoError(t, r.HandleEvent(context.Background(), "expected-hash", body))
	require.Zero(t, gw.verifyCalls)
	require.NoError(t, mock.ExpectationsWereMet())
}
