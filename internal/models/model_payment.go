package models

import (
	"time"

	"github.com/studypass/billing/pkg/types"

	"gorm.io/datatypes"
)

// MaxPaymentRetries caps RetryPayment attempts, inclusive of the first retry.
const MaxPaymentRetries = 3

// Payment is an append-only billing attempt. Rows are created before any
// external charge and are only ever mutated by verify/refund/retry.
type Payment struct {
	ID             string              `gorm:"column:id;type:uuid;primary_key;index:idx_payment_user_id,priority:2,sort:desc" json:"id"`
	UserID         string              `gorm:"column:user_id;type:varchar(64);not null;index:idx_payment_user_id,priority:1" json:"user_id"`
	SubscriptionID string              `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	Amount         int64               `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency       string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status         types.PaymentStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	// ExternalTransactionID is the provider transaction id, unique once verified.
	ExternalTransactionID *string `gorm:"column:external_transaction_id;type:varchar(128);default:null;uniqueIndex" json:"external_transaction_id"`
	// ExternalReference is the tx_ref handed to the provider at charge time.
	ExternalReference string `gorm:"column:external_reference;type:varchar(128);not null;uniqueIndex" json:"external_reference"`
	Description       string `gorm:"column:description;type:varchar(256)" json:"description"`
	CustomerName      string `gorm:"column:customer_name;type:varchar(128)" json:"customer_name"`
	CustomerEmail     string `gorm:"column:customer_email;type:varchar(128)" json:"customer_email"`
	CustomerPhone     string `gorm:"column:customer_phone;type:varchar(32)" json:"customer_phone"`
	// PaymentMethod stores provider card/channel metadata filled on verify.
	PaymentMethod datatypes.JSON     `gorm:"column:payment_method;type:jsonb;default:'{}'" json:"payment_method"`
	RefundStatus  types.RefundStatus `gorm:"column:refund_status;type:varchar(32);not null;default:''" json:"refund_status"`
	RefundReason  *string            `gorm:"column:refund_reason;type:varchar(256);default:null" json:"refund_reason"`
	RefundedAt    *time.Time         `gorm:"column:refunded_at;default:null" json:"refunded_at"`
	RetryCount    int                `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	CompletedAt   *time.Time         `gorm:"column:completed_at;default:null" json:"completed_at"`
	Extra         datatypes.JSON     `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payment"
}

// Refundable reports whether a refund may be requested for this payment.
func (p *Payment) Refundable() bool {
	return p != nil && p.Status == types.PaymentStatusCompleted && p.RefundStatus == types.RefundStatusNone
}
