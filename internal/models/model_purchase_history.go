package models

import (
	"time"

	"github.com/fatflowers/reconciler/pkg/types"
)

// PurchaseHistory is an insert-only ledger row recording one accepted
// transition of a purchase.
type PurchaseHistory struct {
	ID               string                 `gorm:"column:id;type:uuid;primary_key" json:"id"`
	PurchaseID       string                 `gorm:"column:purchase_id;type:uuid;not null;index:idx_purchase_history_purchase_id" json:"purchase_id"`
	Status           types.PurchaseStatus   `gorm:"column:status;type:varchar(32);not null" json:"status"`
	TransactionID    string                 `gorm:"column:transaction_id;type:varchar(128)" json:"transaction_id"`
	Source           types.TransitionSource `gorm:"column:source;type:varchar(32);not null" json:"source"`
	NotificationType string                 `gorm:"column:notification_type;type:varchar(64)" json:"notification_type,omitempty"`
	// IdempotencyKey is purchase_id:transaction_id:event.
	IdempotencyKey    string     `gorm:"column:idempotency_key;type:varchar(320);not null;uniqueIndex:uq_purchase_history_idempotency_key" json:"idempotency_key"`
	TotalTransactions int64      `gorm:"column:total_transactions;not null;default:0" json:"total_transactions"`
	EndsAfter         *time.Time `gorm:"column:ends_after;default:null" json:"ends_after"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (PurchaseHistory) TableName() string { return "purchase_history" }
