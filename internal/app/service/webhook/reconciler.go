package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"time"

	"github.com/studypass/billing/internal/app/service/payment"
	"github.com/studypass/billing/internal/app/service/subscription"
	"github.com/studypass/billing/internal/app/service/webhooklog"
	"github.com/studypass/billing/internal/models"
	"github.com/studypass/billing/internal/platform/flowpay"
	"github.com/studypass/billing/pkg/apperr"
	cfgpkg "github.com/studypass/billing/pkg/config"
	"github.com/studypass/billing/pkg/logctx"
	"github.com/studypass/billing/pkg/types"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// SignatureHeader carries the shared-secret hash the provider attaches to
// every delivery. It is the sole authentication gate on the endpoint.
const SignatureHeader = "verif-hash"

// Event is the provider webhook payload.
type Event struct {
	Event types.WebhookEvent `json:"event"`
	Data  EventData          `json:"data"`
}

type EventData struct {
	ID            string                 `json:"id"`
	TxRef         string                 `json:"tx_ref"`
	Status        string                 `json:"status"`
	Amount        int64                  `json:"amount"`
	Currency      string                 `json:"currency"`
	Customer      flowpay.Customer       `json:"customer"`
	Meta          map[string]any         `json:"meta"`
	Authorization *flowpay.Authorization `json:"authorization,omitempty"`
}

// Reconciler maps inbound provider events onto Payment/Subscription
// mutations. Deliveries are at-least-once; every effect must be idempotent.
type Reconciler struct {
	cfg      *cfgpkg.Config
	log      *zap.SugaredLogger
	payments *payment.Service
	ledger   *subscription.Service
	events   *webhooklog.Service
}

func NewReconciler(cfg *cfgpkg.Config, log *zap.SugaredLogger, payments *payment.Service, ledger *subscription.Service, events *webhooklog.Service) *Reconciler {
	return &Reconciler{cfg: cfg, log: log, payments: payments, ledger: ledger, events: events}
}

// HandleEvent authenticates and applies one provider event. The signature
// check runs before the body is parsed or any record looked up.
func (r *Reconciler) HandleEvent(ctx context.Context, signature string, body []byte) (resErr error) {
	secret := r.cfg.FlowPay.SecretHash
	if secret == "" || subtle.ConstantTimeCompare([]byte(signature), []byte(secret)) != 1 {
		return apperr.Signaturef("webhook signature mismatch")
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return apperr.Validationf("malformed webhook body: %v", err)
	}

	received := &models.WebhookEventLog{
		Event:                 string(ev.Event),
		ExternalTransactionID: ev.Data.ID,
		EventTime:             time.Now(),
		Data:                  datatypes.JSON(body),
		Status:                models.WebhookEventLogStatusReceived,
	}
	if tid, ok := ctx.Value("traceID").(string); ok {
		received.TraceID = tid
	}
	r.events.Save(ctx, received)

	defer func() {
		status := models.WebhookEventLogStatusHandled
		resMap := map[string]any{}
		if resErr != nil {
			status = models.WebhookEventLogStatusHandleFailed
			resMap["error"] = resErr.Error()
		}
		resBytes, _ := json.Marshal(resMap)
		r.events.Save(ctx, &models.WebhookEventLog{
			Event:                 string(ev.Event),
			TraceID:               received.TraceID,
			ExternalTransactionID: ev.Data.ID,
			EventTime:             time.Now(),
			Data:                  datatypes.JSON(body),
			Result:                lo.ToPtr(datatypes.JSON(resBytes)),
			Status:                status,
		})
	}()

	switch ev.Event {
	case types.WebhookEventChargeCompleted, types.WebhookEventSubscriptionCharged:
		return r.reconcileCharge(ctx, &ev.Data)
	case types.WebhookEventChargeRefunded:
		return r.reconcileRefund(ctx, &ev.Data)
	case types.WebhookEventSubscriptionCancelled:
		return r.reconcileCancellation(ctx, &ev.Data)
	default:
		logctx.FromCtx(ctx, r.log).Infow("webhook_event_ignored", "event", ev.Event)
		return nil
	}
}

// reconcileCharge resolves the target payment by external transaction id,
// then by the embedded tx_ref, then lazily creates a row from the
// subscription in the event meta (provider-initiated recurring charges the
// server never pre-created), and delegates to VerifyPayment.
func (r *Reconciler) reconcileCharge(ctx context.Context, data *EventData) error {
	p, err := r.payments.GetByExternalTransactionID(ctx, data.ID)
	if err != nil {
		return err
	}
	if p == nil && data.TxRef != "" {
		if p, err = r.payments.GetByReference(ctx, data.TxRef); err != nil {
			return err
		}
	}
	if p == nil {
		subID, _ := data.Meta["subscription_id"].(string)
		if subID == "" {
			return apperr.NotFoundf("no payment or subscription for transaction %s", data.ID)
		}
		sub, err := r.ledger.GetByID(ctx, subID)
		if err != nil {
			return err
		}
		if p, err = r.payments.CreateForProviderCharge(ctx, sub, &flowpay.TransactionData{
			ID:       data.ID,
			TxRef:    data.TxRef,
			Status:   data.Status,
			Amount:   data.Amount,
			Currency: data.Currency,
			Customer: data.Customer,
		}); err != nil {
			return err
		}
	}

	// Redelivered event for a settled payment: done already, do nothing.
	if p.Status == types.PaymentStatusCompleted {
		logctx.FromCtx(ctx, r.log).Infow("webhook_duplicate_delivery", "payment_id", p.ID, "transaction_id", data.ID)
		return nil
	}

	_, err = r.payments.VerifyPayment(ctx, p.ID, data.ID)
	return err
}

// reconcileRefund settles a refund the provider confirmed out of band. The
// subscription cascade already ran when the refund was requested.
func (r *Reconciler) reconcileRefund(ctx context.Context, data *EventData) error {
	p, err := r.payments.MarkRefundSettled(ctx, data.ID)
	if err != nil {
		return err
	}
	logctx.FromCtx(ctx, r.log).Infow("refund_settled", "payment_id", p.ID, "transaction_id", data.ID)
	return nil
}

func (r *Reconciler) reconcileCancellation(ctx context.Context, data *EventData) error {
	_, err := r.ledger.MarkCancelledFromProvider(ctx, data.ID, "provider_cancelled")
	return err
}
