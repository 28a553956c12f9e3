package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/reconciler/pkg/types"
)

type PaymentNotificationLogStatus string

const (
	PaymentNotificationLogStatusReceived     PaymentNotificationLogStatus = "received"
	PaymentNotificationLogStatusHandled      PaymentNotificationLogStatus = "handled"
	PaymentNotificationLogStatusIgnored      PaymentNotificationLogStatus = "ignored"
	PaymentNotificationLogStatusHandleFailed PaymentNotificationLogStatus = "handle_failed"
)

// PaymentNotificationLog keeps every raw webhook delivery for audit and replay.
type PaymentNotificationLog struct {
	ID         string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ProviderID types.PaymentProvider `gorm:"column:provider_id;type:varchar(64);not null" json:"provider_id"`
	// NotificationID is the push message id or the signed notification uuid.
	NotificationID   string                       `gorm:"column:notification_id;type:varchar(128);index:idx_notification_log_notification_id" json:"notification_id"`
	NotificationType string                       `gorm:"column:notification_type;type:varchar(64)" json:"notification_type"`
	PurchaseID       *string                      `gorm:"column:purchase_id;type:uuid" json:"purchase_id"`
	TraceID          string                       `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	TransactionID    string                       `gorm:"column:transaction_id;type:varchar(128)" json:"transaction_id"`
	NotificationTime time.Time                    `gorm:"column:notification_time" json:"notification_time"`
	Data             datatypes.JSON               `gorm:"column:data;type:jsonb" json:"data"`
	Result           *datatypes.JSON              `gorm:"column:result;type:jsonb" json:"result"`
	Status           PaymentNotificationLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt        time.Time                    `json:"created_at"`
	UpdatedAt        time.Time                    `json:"updated_at"`
}

func (PaymentNotificationLog) TableName() string { return "payment_notification_log" }
