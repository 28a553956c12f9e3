package models

import (
	"time"

	"github.com/fatflowers/reconciler/pkg/types"
)

// Purchase is the local record of one subscription purchase attempt. Its ID is
// the correlation token handed to the store.
type Purchase struct {
	ID         string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID     string                `gorm:"column:user_id;type:varchar(64);not null;index:idx_purchase_user_id;uniqueIndex:uq_purchase_completed,priority:1,where:status = 'completed';uniqueIndex:uq_purchase_started,priority:1,where:status = 'started'" json:"user_id"`
	ProductID  string                `gorm:"column:product_id;type:varchar(64);not null;uniqueIndex:uq_purchase_completed,priority:2,where:status = 'completed';uniqueIndex:uq_purchase_started,priority:2,where:status = 'started'" json:"product_id"`
	ProviderID types.PaymentProvider `gorm:"column:provider_id;type:varchar(64);not null" json:"provider_id"`
	// ReceiptData is the last receipt or purchase token presented for this purchase.
	ReceiptData string `gorm:"column:receipt_data;type:text" json:"-"`
	// ReceiptHash is the sha256 of ReceiptData, used to find a purchase by Play purchase token.
	ReceiptHash string `gorm:"column:receipt_hash;type:varchar(64);index:idx_purchase_receipt_hash" json:"-"`
	// TransactionID App Store: original transaction id; Play: latest order id.
	TransactionID     *string              `gorm:"column:transaction_id;type:varchar(128);index:idx_purchase_transaction_id" json:"transaction_id"`
	StartedAt         *time.Time           `gorm:"column:started_at;default:null" json:"started_at"`
	EndsAfter         *time.Time           `gorm:"column:ends_after;default:null" json:"ends_after"`
	TotalTransactions int64                `gorm:"column:total_transactions;not null;default:0" json:"total_transactions"`
	Status            types.PurchaseStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Version           int64                `gorm:"column:version;not null;default:0" json:"-"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

func (Purchase) TableName() string { return "purchase" }

// ValidWindow reports whether the entitlement window is either unset or
// ordered.
func (p *Purchase) ValidWindow() bool {
	if p == nil || p.StartedAt == nil || p.EndsAfter == nil {
		return true
	}
	return p.EndsAfter.After(*p.StartedAt)
}

func (p *Purchase) GetTransactionID() string {
	if p == nil || p.TransactionID == nil {
		return ""
	}
	return *p.TransactionID
}

// Entitled reports whether the purchase grants access at now.
func (p *Purchase) Entitled(now time.Time) bool {
	if p == nil || p.Status != types.PurchaseStatusCompleted || p.EndsAfter == nil {
		return false
	}
	return now.Before(*p.EndsAfter)
}
