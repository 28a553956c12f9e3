package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/reconciler/internal/app/service/events"
	"github.com/fatflowers/reconciler/internal/app/service/history"
	"github.com/fatflowers/reconciler/internal/app/service/receipt"
	"github.com/fatflowers/reconciler/internal/app/service/tokenauth"
	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/pkg/config"
	"github.com/fatflowers/reconciler/pkg/logctx"
	"github.com/fatflowers/reconciler/pkg/metrics"
	"github.com/fatflowers/reconciler/pkg/tool"
	"github.com/fatflowers/reconciler/pkg/types"
)

// Service owns the purchase lifecycle. Every transition re-reads the row in
// a transaction, checks it against the transition table and appends to the
// ledger before commit.
type Service struct {
	cfg       *config.Config
	log       *zap.SugaredLogger
	db        *gorm.DB
	validator receipt.Validator
	auth      tokenauth.Authenticator
	ledger    history.Ledger
	publisher events.Publisher
	metrics   *metrics.Recorder
	now       func() time.Time
}

func NewService(
	cfg *config.Config,
	log *zap.SugaredLogger,
	db *gorm.DB,
	validator receipt.Validator,
	auth tokenauth.Authenticator,
	ledger history.Ledger,
	publisher events.Publisher,
	rec *metrics.Recorder,
) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		cfg:       cfg,
		log:       log,
		db:        db,
		validator: validator,
		auth:      auth,
		ledger:    ledger,
		publisher: publisher,
		metrics:   rec,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start returns the user's open attempt for the product or creates one.
func (s *Service) Start(ctx context.Context, userID, productID string, provider types.PaymentProvider) (*models.Purchase, error) {
	if !provider.Valid() {
		return nil, fmt.Errorf("%w: provider %q", receipt.ErrUnknownProduct, provider)
	}
	if s.cfg.GetPaymentItem(provider, productID) == nil {
		return nil, fmt.Errorf("%w: %s/%s", receipt.ErrUnknownProduct, provider, productID)
	}

	var (
		result  *models.Purchase
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		completed, err := findByStatus(ctx, tx, userID, productID, types.PurchaseStatusCompleted)
		if err != nil {
			return err
		}
		if completed != nil {
			return ErrAlreadyPurchased
		}
		started, err := findByStatus(ctx, tx, userID, productID, types.PurchaseStatusStarted)
		if err != nil {
			return err
		}
		if started != nil {
			result = started
			return nil
		}

		p := &models.Purchase{
			ID:         tool.GenerateUUIDV7(),
			UserID:     userID,
			ProductID:  productID,
			ProviderID: provider,
			Status:     types.PurchaseStatusStarted,
		}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if _, err := s.ledger.Append(ctx, tx, history.Entry{
			PurchaseID: p.ID,
			Status:     p.Status,
			Source:     types.TransitionSourceClient,
		}); err != nil {
			return err
		}
		result, created = p, true
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// a concurrent Start won the partial unique index
		started, ferr := findByStatus(ctx, s.db, userID, productID, types.PurchaseStatusStarted)
		if ferr == nil && started != nil {
			return started, nil
		}
		return nil, ErrConcurrentUpdate
	}
	if err != nil {
		return nil, err
	}

	if created {
		logctx.FromCtx(ctx, s.log).Infow("purchase_started", "purchase_id", result.ID, "user_id", userID, "product_id", productID, "provider_id", provider)
		s.afterTransition(ctx, result, "", types.TransitionSourceClient)
	}
	return result, nil
}

// Cancel abandons a started attempt.
func (s *Service) Cancel(ctx context.Context, userID, purchaseID string) (*models.Purchase, error) {
	var p *models.Purchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = lockPurchase(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return ErrPurchaseNotFound
		}
		if !p.Status.CanTransitionTo(types.PurchaseStatusCanceled) {
			return fmt.Errorf("%w: status is %s", ErrInvalidCancelTarget, p.Status)
		}
		p.Status = types.PurchaseStatusCanceled
		if err := savePurchase(ctx, tx, p, s.now()); err != nil {
			return err
		}
		_, err = s.ledger.Append(ctx, tx, history.Entry{
			PurchaseID: p.ID,
			Status:     p.Status,
			Source:     types.TransitionSourceClient,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("purchase_canceled", "purchase_id", p.ID, "user_id", userID)
	s.afterTransition(ctx, p, types.PurchaseStatusStarted, types.TransitionSourceClient)
	return p, nil
}

// Complete validates the receipt with the store and, when the correlation
// token matches, moves the attempt to completed. Any failure leaves the row
// as it was.
func (s *Service) Complete(ctx context.Context, userID, purchaseID, receiptData string) (*models.Purchase, error) {
	current, err := s.Get(ctx, userID, purchaseID)
	if err != nil {
		return nil, err
	}
	if current.Status != types.PurchaseStatusStarted {
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidCompleteTarget, current.Status)
	}

	r, err := s.validator.Validate(ctx, receipt.ReceiptRequest{
		Provider:  current.ProviderID,
		ProductID: current.ProductID,
		Receipt:   receiptData,
	})
	if err != nil {
		logctx.FromCtx(ctx, s.log).Infow("purchase_receipt_rejected", "purchase_id", purchaseID, "err", err)
		return nil, err
	}

	var p *models.Purchase
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = lockPurchase(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		if p.Status != types.PurchaseStatusStarted {
			return fmt.Errorf("%w: status is %s", ErrInvalidCompleteTarget, p.Status)
		}
		completed, err := findByStatus(ctx, tx, p.UserID, p.ProductID, types.PurchaseStatusCompleted)
		if err != nil {
			return err
		}
		if completed != nil && completed.ID != p.ID {
			return ErrAlreadyPurchased
		}
		if err := s.auth.Authenticate(ctx, tx, p, r.CorrelationToken); err != nil {
			return err
		}

		p.Status = types.PurchaseStatusCompleted
		p.ReceiptData = receiptData
		p.ReceiptHash = tool.SHA256Hex(receiptData)
		p.TransactionID = lo.ToPtr(r.TransactionID)
		p.StartedAt = lo.ToPtr(r.StartAt)
		p.EndsAfter = lo.ToPtr(r.EndAt)
		p.TotalTransactions++
		if err := savePurchase(ctx, tx, p, s.now()); err != nil {
			return err
		}
		_, err = s.ledger.Append(ctx, tx, history.Entry{
			PurchaseID:        p.ID,
			Status:            p.Status,
			TransactionID:     r.TransactionID,
			Source:            types.TransitionSourceClient,
			TotalTransactions: p.TotalTransactions,
			EndsAfter:         p.EndsAfter,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("purchase_completed",
		"purchase_id", p.ID, "user_id", p.UserID, "transaction_id", r.TransactionID, "ends_after", p.EndsAfter)
	s.afterTransition(ctx, p, types.PurchaseStatusStarted, types.TransitionSourceClient)
	return p, nil
}

// Get returns a purchase owned by userID.
func (s *Service) Get(ctx context.Context, userID, purchaseID string) (*models.Purchase, error) {
	if !tool.IsUUID(purchaseID) {
		return nil, ErrPurchaseNotFound
	}
	var p models.Purchase
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", purchaseID, userID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return &p, nil
}

// List returns every purchase of the user, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]*models.Purchase, error) {
	var rows []*models.Purchase
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	return rows, nil
}

func (s *Service) History(ctx context.Context, userID, purchaseID string) ([]*models.PurchaseHistory, error) {
	if _, err := s.Get(ctx, userID, purchaseID); err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, purchaseID)
}

// HistoryOf returns the ledger of any purchase. It is meant for operators.
func (s *Service) HistoryOf(ctx context.Context, purchaseID string) ([]*models.PurchaseHistory, error) {
	if !tool.IsUUID(purchaseID) {
		return nil, ErrPurchaseNotFound
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Purchase{}).Where("id = ?", purchaseID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	if n == 0 {
		return nil, ErrPurchaseNotFound
	}
	return s.ledger.List(ctx, purchaseID)
}

// afterTransition runs once the transaction committed.
func (s *Service) afterTransition(ctx context.Context, p *models.Purchase, previous types.PurchaseStatus, source types.TransitionSource) {
	s.metrics.ObserveTransition(previous, p.Status, source)
	if err := s.publisher.PublishPurchaseChanged(ctx, events.NewPurchaseChanged(p, previous, source)); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("purchase_event_publish_failed", "purchase_id", p.ID, "status", p.Status, "err", err)
	}
}
