package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookEventLogStatus string

const (
	WebhookEventLogStatusReceived     WebhookEventLogStatus = "received"
	WebhookEventLogStatusHandled      WebhookEventLogStatus = "handled"
	WebhookEventLogStatusHandleFailed WebhookEventLogStatus = "handle_failed"
)

// WebhookEventLog is an audit row for every inbound provider event, written
// on receipt and again after handling. Used for troubleshooting redeliveries.
type WebhookEventLog struct {
	ID                    string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Event                 string                `gorm:"column:event;type:varchar(64);not null" json:"event"`
	UserID                *string               `gorm:"column:user_id;type:varchar(64)" json:"user_id"`
	TraceID               string                `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	ExternalTransactionID string                `gorm:"column:external_transaction_id;type:varchar(128);index" json:"external_transaction_id"`
	EventTime             time.Time             `gorm:"column:event_time" json:"event_time"`
	Data                  datatypes.JSON        `gorm:"column:data;type:jsonb" json:"data"`
	Result                *datatypes.JSON       `gorm:"column:result;type:jsonb" json:"result"`
	Status                WebhookEventLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

func (WebhookEventLog) TableName() string { return "webhook_event_log" }
