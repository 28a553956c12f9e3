// Package history is the append-only purchase ledger.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/pkg/tool"
	"github.com/fatflowers/reconciler/pkg/types"
)

var ErrDuplicateEntry = errors.New("history entry already recorded")

type Entry struct {
	PurchaseID    string
	Status        types.PurchaseStatus
	TransactionID string
	Source        types.TransitionSource
	// Event names what caused the transition: a store notification type, or
	// the target status for client actions.
	Event             string
	TotalTransactions int64
	EndsAfter         *time.Time
}

// IdempotencyKey derives the key that makes a transition recordable once.
func IdempotencyKey(purchaseID, transactionID, event string) string {
	return strings.Join([]string{purchaseID, transactionID, event}, ":")
}

func (e Entry) event() string {
	if e.Event != "" {
		return e.Event
	}
	return string(e.Status)
}

func (e Entry) Key() string { return IdempotencyKey(e.PurchaseID, e.TransactionID, e.event()) }

type Ledger interface {
	Append(ctx context.Context, tx *gorm.DB, e Entry) (*models.PurchaseHistory, error)
	Exists(ctx context.Context, tx *gorm.DB, key string) (bool, error)
	List(ctx context.Context, purchaseID string) ([]*models.PurchaseHistory, error)
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Append inserts one row. A key collision is reported as ErrDuplicateEntry
// without aborting the surrounding transaction.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, e Entry) (*models.PurchaseHistory, error) {
	row := &models.PurchaseHistory{
		ID:                tool.GenerateUUIDV7(),
		PurchaseID:        e.PurchaseID,
		Status:            e.Status,
		TransactionID:     e.TransactionID,
		Source:            e.Source,
		IdempotencyKey:    e.Key(),
		TotalTransactions: e.TotalTransactions,
		EndsAfter:         e.EndsAfter,
	}
	if e.Source == types.TransitionSourceNotification {
		row.NotificationType = e.Event
	}

	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "idempotency_key"}}, DoNothing: true}).
		Create(row)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, row.IdempotencyKey)
		}
		return nil, fmt.Errorf("failed to append history: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, row.IdempotencyKey)
	}
	return row, nil
}

func (s *Service) Exists(ctx context.Context, tx *gorm.DB, key string) (bool, error) {
	var n int64
	if err := tx.WithContext(ctx).Model(&models.PurchaseHistory{}).Where("idempotency_key = ?", key).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check history: %w", err)
	}
	return n > 0, nil
}

// List returns the ledger of one purchase, oldest first.
func (s *Service) List(ctx context.Context, purchaseID string) ([]*models.PurchaseHistory, error) {
	var rows []*models.PurchaseHistory
	err := s.db.WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return rows, nil
}

var Module = fx.Options(
	fx.Provide(NewService),
	fx.Provide(func(s *Service) Ledger { return s }),
)
