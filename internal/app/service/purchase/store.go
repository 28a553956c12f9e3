package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/pkg/types"
)

// lockPurchase re-reads the row inside tx. Postgres takes a row lock; other
// dialects rely on the version check in savePurchase.
func lockPurchase(ctx context.Context, tx *gorm.DB, id string) (*models.Purchase, error) {
	q := tx.WithContext(ctx)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var p models.Purchase
	if err := q.Where("id = ?", id).Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("failed to load purchase: %w", err)
	}
	return &p, nil
}

// savePurchase writes the mutable columns guarded by the version read with
// the row and bumps the version.
func savePurchase(ctx context.Context, tx *gorm.DB, p *models.Purchase, now time.Time) error {
	if !p.ValidWindow() {
		return fmt.Errorf("refusing to save purchase %s with ends_after <= started_at", p.ID)
	}
	res := tx.WithContext(ctx).Model(&models.Purchase{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]interface{}{
			"status":             p.Status,
			"receipt_data":       p.ReceiptData,
			"receipt_hash":       p.ReceiptHash,
			"transaction_id":     p.TransactionID,
			"started_at":         p.StartedAt,
			"ends_after":         p.EndsAfter,
			"total_transactions": p.TotalTransactions,
			"version":            p.Version + 1,
			"updated_at":         now,
		})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrAlreadyPurchased
		}
		return fmt.Errorf("failed to save purchase: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

func findByStatus(ctx context.Context, tx *gorm.DB, userID, productID string, status types.PurchaseStatus) (*models.Purchase, error) {
	var p models.Purchase
	err := tx.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND status = ?", userID, productID, status).
		Order("created_at DESC").
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s purchase: %w", status, err)
	}
	return &p, nil
}
