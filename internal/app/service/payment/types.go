package payment

import (
	"context"

	"github.com/studypass/billing/internal/models"
	"github.com/studypass/billing/internal/platform/flowpay"
	"github.com/studypass/billing/pkg/types"
)

// Gateway is the slice of the payment provider the adapter needs.
// Satisfied by *flowpay.Client.
type Gateway interface {
	VerifyTransaction(ctx context.Context, externalTransactionID string) (*flowpay.TransactionData, error)
	CreateRecurringCharge(ctx context.Context, req *flowpay.RecurringChargeRequest) (*flowpay.RecurringCharge, error)
	Refund(ctx context.Context, externalTransactionID string, amount int64) error
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CreatePaymentRequest struct {
	UserID         string   `json:"-"`
	SubscriptionID string   `json:"subscription_id"`
	Amount         int64    `json:"amount"`
	Currency       string   `json:"currency"`
	Description    string   `json:"description"`
	Customer       Customer `json:"customer"`
}

// ChargeDescriptor is the provider-agnostic handle the client uses to
// complete the charge out of band.
type ChargeDescriptor struct {
	PaymentID         string            `json:"payment_id"`
	ExternalReference string            `json:"external_reference"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	Customer          Customer          `json:"customer"`
	Meta              map[string]string `json:"meta"`
}

// Scan payment request/response, used by the admin list pages.
type ScanPaymentsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanPaymentsResponse struct {
	Items []*models.Payment `json:"items"`
	Total int64             `json:"total"`
}
