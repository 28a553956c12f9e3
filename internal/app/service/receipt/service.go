package receipt

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/androidpublisher/v3"

	"github.com/fatflowers/reconciler/internal/platform/apple/apple_iap"
	"github.com/fatflowers/reconciler/pkg/config"
	"github.com/fatflowers/reconciler/pkg/logctx"
	"github.com/fatflowers/reconciler/pkg/metrics"
	"github.com/fatflowers/reconciler/pkg/types"
)

type AppleClient interface {
	VerifyReceipt(ctx context.Context, receiptData string) (*apple_iap.VerifyReceiptResponse, error)
}

type GoogleClient interface {
	GetSubscription(ctx context.Context, subscriptionID, purchaseToken string) (*androidpublisher.SubscriptionPurchase, error)
}

type Service struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	apple   AppleClient
	google  GoogleClient
	metrics *metrics.Recorder
}

// NewService wires the store clients. A nil client marks that store as not
// configured.
func NewService(cfg *config.Config, log *zap.SugaredLogger, apple AppleClient, google GoogleClient, rec *metrics.Recorder) *Service {
	return &Service{cfg: cfg, log: log, apple: apple, google: google, metrics: rec}
}

func (s *Service) Validate(ctx context.Context, req ReceiptRequest) (*Receipt, error) {
	return s.verify(ctx, req, true)
}

func (s *Service) Inspect(ctx context.Context, req ReceiptRequest) (*Receipt, error) {
	return s.verify(ctx, req, false)
}

func (s *Service) verify(ctx context.Context, req ReceiptRequest, strict bool) (*Receipt, error) {
	item := s.cfg.GetPaymentItem(req.Provider, req.ProductID)
	if item == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownProduct, req.Provider, req.ProductID)
	}

	var (
		r   *Receipt
		err error
	)
	switch req.Provider {
	case types.PaymentProviderApple:
		r, err = s.verifyApple(ctx, req.Receipt, strict)
	case types.PaymentProviderGoogle:
		r, err = s.verifyGoogle(ctx, item.ProviderItemID, req.Receipt, strict)
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q", ErrUnexpectedStore, req.Provider)
	}
	if err != nil {
		return nil, err
	}

	if !r.HasWindow() {
		if strict {
			return nil, fmt.Errorf("%w: start=%s end=%s", ErrInvalidWindow, r.StartAt, r.EndAt)
		}
		logctx.FromCtx(ctx, s.log).Warnw("receipt_window_ignored",
			"provider", req.Provider, "transaction_id", r.TransactionID, "start_at", r.StartAt, "end_at", r.EndAt)
		r.StartAt, r.EndAt = time.Time{}, time.Time{}
	}
	return r, nil
}

func (s *Service) verifyApple(ctx context.Context, receiptData string, strict bool) (*Receipt, error) {
	if s.apple == nil {
		return nil, fmt.Errorf("%w: app store is not configured", ErrUnexpectedStore)
	}

	start := time.Now()
	res, err := s.apple.VerifyReceipt(ctx, receiptData)
	if err != nil {
		s.metrics.ObserveStoreCall(types.PaymentProviderApple, "error", start)
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedStore, err)
	}
	s.metrics.ObserveStoreCall(types.PaymentProviderApple, "ok", start)

	r := &Receipt{Provider: types.PaymentProviderApple}
	var graceEnd time.Time
	if pending := res.PendingRenewal(); pending != nil {
		if pending.ExpirationIntent != "" {
			if strict {
				return nil, fmt.Errorf("%w: expiration_intent=%s", ErrSubscriptionCancelled, pending.ExpirationIntent)
			}
			r.Lapse = ErrSubscriptionCancelled
		}
		if ts, ok := apple_iap.ParseMillis(pending.GracePeriodExpiresDateMs); ok {
			graceEnd = ts
		}
	}

	latest := res.LatestReceipt()
	if latest == nil {
		return nil, ErrNoPurchaseInReceipt
	}
	if latest.AppAccountToken == "" {
		return nil, ErrNoCorrelationToken
	}

	r.CorrelationToken = latest.AppAccountToken
	r.TransactionID = latest.OriginalTransactionId
	if ts, ok := apple_iap.ParseMillis(latest.PurchaseDateMs); ok {
		r.StartAt = ts
	}
	if ts, ok := apple_iap.ParseMillis(latest.ExpiresDateMs); ok {
		r.EndAt = ts
	}
	if !graceEnd.IsZero() {
		r.EndAt = graceEnd
	}
	return r, nil
}

func (s *Service) verifyGoogle(ctx context.Context, subscriptionID, token string, strict bool) (*Receipt, error) {
	if s.google == nil {
		return nil, fmt.Errorf("%w: play store is not configured", ErrUnexpectedStore)
	}

	start := time.Now()
	sub, err := s.google.GetSubscription(ctx, subscriptionID, token)
	if err != nil {
		s.metrics.ObserveStoreCall(types.PaymentProviderGoogle, "error", start)
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedStore, err)
	}
	s.metrics.ObserveStoreCall(types.PaymentProviderGoogle, "ok", start)

	r := &Receipt{Provider: types.PaymentProviderGoogle}
	if sub.PaymentState == nil || *sub.PaymentState == 0 {
		if strict {
			return nil, ErrPaymentNotYetReceived
		}
		r.Lapse = ErrPaymentNotYetReceived
	}
	// cancelReason 0 means "cancelled by user", so a user cancellation is
	// recognised by its timestamp.
	if sub.CancelReason > 0 || sub.UserCancellationTimeMillis > 0 {
		if strict {
			return nil, fmt.Errorf("%w: cancel_reason=%d", ErrSubscriptionCancelled, sub.CancelReason)
		}
		if r.Lapse == nil {
			r.Lapse = ErrSubscriptionCancelled
		}
	}
	if sub.ObfuscatedExternalAccountId == "" {
		return nil, ErrNoCorrelationToken
	}

	r.CorrelationToken = sub.ObfuscatedExternalAccountId
	r.TransactionID = sub.OrderId
	startMillis := sub.StartTimeMillis
	if sub.AutoResumeTimeMillis > 0 {
		startMillis = sub.AutoResumeTimeMillis
	}
	if startMillis > 0 {
		r.StartAt = time.UnixMilli(startMillis).UTC()
	}
	if sub.ExpiryTimeMillis > 0 {
		r.EndAt = time.UnixMilli(sub.ExpiryTimeMillis).UTC()
	}
	return r, nil
}
