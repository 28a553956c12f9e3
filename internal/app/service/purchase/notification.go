package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/fatflowers/reconciler/internal/app/service/history"
	"github.com/fatflowers/reconciler/internal/app/service/receipt"
	"github.com/fatflowers/reconciler/internal/app/service/tokenauth"
	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/pkg/logctx"
	"github.com/fatflowers/reconciler/pkg/tool"
	"github.com/fatflowers/reconciler/pkg/types"
)

// Notification is a decoded store event matched to a local purchase.
type Notification struct {
	Provider   types.PaymentProvider
	PurchaseID string
	Category   types.NotificationCategory
	// Type is the store's notification type, e.g. DID_RENEW.
	Type string
	// EventTransactionID identifies the store transaction the event is
	// about. When empty the validated receipt's transaction id is used.
	EventTransactionID string
	// ReceiptData overrides the stored receipt for re-validation.
	ReceiptData string
}

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDropped   Outcome = "dropped"
	OutcomeDuplicate Outcome = "duplicate"
)

var (
	// errDuplicate rolls back a transition whose ledger key already exists.
	errDuplicate         = errors.New("duplicate transition")
	errIllegalTransition = errors.New("illegal transition")
)

// ApplyNotification re-validates the purchase with its store and applies the
// event. Events that cannot be trusted or cannot be applied are dropped with
// a warning and a nil error; only store outages and database failures are
// returned, so the delivery is retried.
func (s *Service) ApplyNotification(ctx context.Context, n Notification) (Outcome, error) {
	return s.apply(ctx, n, types.TransitionSourceNotification)
}

func (s *Service) apply(ctx context.Context, n Notification, source types.TransitionSource) (Outcome, error) {
	log := logctx.FromCtx(ctx, s.log).With("purchase_id", n.PurchaseID, "notification_type", n.Type, "category", n.Category, "source", source)

	target, ok := n.Category.TargetStatus()
	if !ok {
		log.Infow("notification_ignored")
		return OutcomeIgnored, nil
	}

	var current models.Purchase
	if err := s.db.WithContext(ctx).Where("id = ?", n.PurchaseID).Take(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnw("notification_dropped", "reason", "purchase not found")
			return OutcomeDropped, nil
		}
		return "", fmt.Errorf("failed to load purchase: %w", err)
	}
	if n.Provider != "" && n.Provider != current.ProviderID {
		log.Warnw("notification_dropped", "reason", "provider mismatch", "provider_id", n.Provider)
		return OutcomeDropped, nil
	}
	if !current.Status.CanTransitionTo(target) {
		log.Warnw("notification_dropped", "reason", "illegal transition", "from", current.Status, "to", target)
		return OutcomeDropped, nil
	}

	receiptData := lo.Ternary(n.ReceiptData != "", n.ReceiptData, current.ReceiptData)
	req := receipt.ReceiptRequest{Provider: current.ProviderID, ProductID: current.ProductID, Receipt: receiptData}
	var (
		r   *receipt.Receipt
		err error
	)
	if target == types.PurchaseStatusCompleted {
		r, err = s.validator.Validate(ctx, req)
	} else {
		r, err = s.validator.Inspect(ctx, req)
	}
	if err != nil {
		if errors.Is(err, receipt.ErrUnexpectedStore) {
			log.Errorw("notification_store_unavailable", "err", err)
			return "", err
		}
		log.Warnw("notification_dropped", "reason", "receipt rejected", "err", err)
		return OutcomeDropped, nil
	}

	eventTx := lo.Ternary(n.EventTransactionID != "", n.EventTransactionID, r.TransactionID)
	renewal := n.Category == types.NotificationCategoryRenewal

	var (
		p        *models.Purchase
		previous types.PurchaseStatus
		changed  bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = lockPurchase(ctx, tx, n.PurchaseID)
		if err != nil {
			return err
		}
		previous = p.Status
		if !p.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: %s -> %s", errIllegalTransition, p.Status, target)
		}
		if target == types.PurchaseStatusCompleted && p.Status != types.PurchaseStatusCompleted {
			completed, err := findByStatus(ctx, tx, p.UserID, p.ProductID, types.PurchaseStatusCompleted)
			if err != nil {
				return err
			}
			if completed != nil && completed.ID != p.ID {
				return fmt.Errorf("%w: completed by %s", ErrAlreadyPurchased, completed.ID)
			}
		}
		if err := s.auth.Authenticate(ctx, tx, p, r.CorrelationToken); err != nil {
			return err
		}

		key := history.IdempotencyKey(p.ID, eventTx, n.Type)
		seen, err := s.ledger.Exists(ctx, tx, key)
		if err != nil {
			return err
		}
		if seen {
			return errDuplicate
		}

		p.Status = target
		if r.HasWindow() {
			p.StartedAt = lo.ToPtr(r.StartAt)
			p.EndsAfter = lo.ToPtr(r.EndAt)
		}
		if r.TransactionID != "" {
			p.TransactionID = lo.ToPtr(r.TransactionID)
		}
		if n.ReceiptData != "" {
			p.ReceiptData = n.ReceiptData
			p.ReceiptHash = tool.SHA256Hex(n.ReceiptData)
		}
		if renewal {
			p.TotalTransactions++
		}
		if err := savePurchase(ctx, tx, p, s.now()); err != nil {
			return err
		}

		changed = previous != target || renewal
		if !changed {
			return nil
		}
		_, err = s.ledger.Append(ctx, tx, history.Entry{
			PurchaseID:        p.ID,
			Status:            p.Status,
			TransactionID:     eventTx,
			Source:            source,
			Event:             n.Type,
			TotalTransactions: p.TotalTransactions,
			EndsAfter:         p.EndsAfter,
		})
		if errors.Is(err, history.ErrDuplicateEntry) {
			return errDuplicate
		}
		return err
	})

	switch {
	case err == nil:
	case errors.Is(err, errDuplicate):
		log.Infow("notification_duplicate", "transaction_id", eventTx)
		return OutcomeDuplicate, nil
	case errors.Is(err, errIllegalTransition):
		log.Warnw("notification_dropped", "reason", "illegal transition", "err", err)
		return OutcomeDropped, nil
	case errors.Is(err, ErrAlreadyPurchased):
		log.Warnw("notification_dropped", "reason", "product already completed by another purchase", "err", err)
		return OutcomeDropped, nil
	case errors.Is(err, tokenauth.ErrTokenBelongsToOtherUser):
		log.Warnw("notification_dropped", "reason", "correlation token rejected", "err", err)
		return OutcomeDropped, nil
	default:
		return "", err
	}

	log.Infow("notification_applied",
		"from", previous, "to", p.Status, "transaction_id", eventTx, "total_transactions", p.TotalTransactions, "ends_after", p.EndsAfter)
	if changed {
		s.afterTransition(ctx, p, previous, source)
	}
	return OutcomeApplied, nil
}

// Reconcile checks a purchase against its store and brings the local status
// in line. It is the entry point for externally scheduled sweeps.
func (s *Service) Reconcile(ctx context.Context, purchaseID string) (*models.Purchase, Outcome, error) {
	var p models.Purchase
	if err := s.db.WithContext(ctx).Where("id = ?", purchaseID).Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrPurchaseNotFound
		}
		return nil, "", fmt.Errorf("failed to load purchase: %w", err)
	}
	switch p.Status {
	case types.PurchaseStatusCompleted, types.PurchaseStatusPaused, types.PurchaseStatusExpired:
	default:
		return &p, OutcomeIgnored, nil
	}

	r, err := s.validator.Inspect(ctx, receipt.ReceiptRequest{Provider: p.ProviderID, ProductID: p.ProductID, Receipt: p.ReceiptData})
	if err != nil {
		if errors.Is(err, receipt.ErrUnexpectedStore) {
			return &p, "", err
		}
		logctx.FromCtx(ctx, s.log).Warnw("reconcile_receipt_rejected", "purchase_id", p.ID, "err", err)
		return &p, OutcomeDropped, nil
	}

	category := types.NotificationCategoryActive
	if r.Lapse != nil || !r.HasWindow() || !s.now().Before(r.EndAt) {
		category = types.NotificationCategoryExpired
	}
	target, _ := category.TargetStatus()
	if target == p.Status && target != types.PurchaseStatusCompleted {
		return &p, OutcomeIgnored, nil
	}
	if category == types.NotificationCategoryActive && p.Status == types.PurchaseStatusCompleted &&
		p.EndsAfter != nil && p.EndsAfter.Equal(r.EndAt) {
		return &p, OutcomeIgnored, nil
	}

	outcome, err := s.apply(ctx, Notification{
		Provider:           p.ProviderID,
		PurchaseID:         p.ID,
		Category:           category,
		Type:               reconcileEvent(target, r.EndAt),
		EventTransactionID: r.TransactionID,
	}, types.TransitionSourceReconcile)
	if err != nil {
		return &p, "", err
	}
	var fresh models.Purchase
	if err := s.db.WithContext(ctx).Where("id = ?", purchaseID).Take(&fresh).Error; err != nil {
		return &p, outcome, fmt.Errorf("failed to reload purchase: %w", err)
	}
	return &fresh, outcome, nil
}

// reconcileEvent names a sweep result per subscription period so repeated
// sweeps of the same period are idempotent.
func reconcileEvent(target types.PurchaseStatus, end time.Time) string {
	var ms int64
	if !end.IsZero() {
		ms = end.UnixMilli()
	}
	return fmt.Sprintf("RECONCILE_%s_%d", target, ms)
}

// FindByReceipt looks a purchase up by the receipt or purchase token it was
// completed with.
func (s *Service) FindByReceipt(ctx context.Context, provider types.PaymentProvider, receiptData string) (*models.Purchase, error) {
	var p models.Purchase
	err := s.db.WithContext(ctx).
		Where("provider_id = ? AND receipt_hash = ?", provider, tool.SHA256Hex(receiptData)).
		Order("updated_at DESC").
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find purchase by receipt: %w", err)
	}
	return &p, nil
}

// FindByTransactionID skips canceled purchases.
func (s *Service) FindByTransactionID(ctx context.Context, provider types.PaymentProvider, transactionID string) (*models.Purchase, error) {
	var p models.Purchase
	err := s.db.WithContext(ctx).
		Where("provider_id = ? AND transaction_id = ? AND status <> ?", provider, transactionID, types.PurchaseStatusCanceled).
		Order("updated_at DESC").
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find purchase by transaction: %w", err)
	}
	return &p, nil
}
