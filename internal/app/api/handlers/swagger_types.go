package handlers

import (
	"time"

	"github.com/studypass/billing/internal/app/service/payment"
	"github.com/studypass/billing/internal/app/service/statistics"
	"github.com/studypass/billing/pkg/response"
	types "github.com/studypass/billing/pkg/types"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespScanPayments wraps ScanPaymentsResponse in the standard envelope.
type RespScanPayments struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    payment.ScanPaymentsResponse `json:"data"`
}

// RespBillingSummary wraps BillingSummary in the standard envelope.
type RespBillingSummary struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    statistics.BillingSummary `json:"data"`
}

// SwaggerSubscription is a simplified view of models.Subscription for documentation purposes.
type SwaggerSubscription struct {
	ID                string                   `json:"id"`
	UserID            string                   `json:"user_id"`
	Tier              types.Tier               `json:"tier"`
	Status            types.SubscriptionStatus `json:"status"`
	BillingCycle      types.BillingCycle       `json:"billing_cycle"`
	RenewalDate       time.Time                `json:"renewal_date"`
	AutoRenew         bool                     `json:"auto_renew"`
	RecurringChargeID *string                  `json:"recurring_charge_id"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}
