package notification_handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fatflowers/reconciler/internal/app/service/notification_log"
	"github.com/fatflowers/reconciler/internal/app/service/purchase"
	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/internal/platform/apple/apple_notification"
	"github.com/fatflowers/reconciler/internal/platform/google/play"
	"github.com/fatflowers/reconciler/pkg/logctx"
	"github.com/fatflowers/reconciler/pkg/metrics"
	"github.com/fatflowers/reconciler/pkg/types"
)

// Outcomes recorded for deliveries that never reach the purchase service.
const (
	outcomeMalformed = "malformed"
	outcomeNotFound  = "not_found"
	outcomeFailed    = "failed"
)

// Handler turns raw webhook bodies into purchase transitions. It returns an
// error only when the delivery should be retried by the store.
type Handler struct {
	log       *zap.SugaredLogger
	purchases PurchaseService
	decoder   *apple_notification.Decoder
	deduper   Deduper
	audit     notification_log.Recorder
	metrics   *metrics.Recorder

	// packageName and bundleID reject deliveries for other apps when set.
	packageName string
	bundleID    string
}

// Options configures a Handler. Decoder is required for HandleApple.
type Options struct {
	Log         *zap.SugaredLogger
	Purchases   PurchaseService
	Decoder     *apple_notification.Decoder
	Deduper     Deduper
	Audit       notification_log.Recorder
	Metrics     *metrics.Recorder
	PackageName string
	BundleID    string
}

func NewHandler(opts Options) *Handler {
	h := &Handler{
		log:         opts.Log,
		purchases:   opts.Purchases,
		decoder:     opts.Decoder,
		deduper:     opts.Deduper,
		audit:       opts.Audit,
		metrics:     opts.Metrics,
		packageName: opts.PackageName,
		bundleID:    opts.BundleID,
	}
	if h.log == nil {
		h.log = zap.NewNop().Sugar()
	}
	if h.deduper == nil {
		h.deduper = NoopDeduper{}
	}
	return h
}

// HandleGoogle processes a Pub/Sub push body carrying a developer notification.
func (h *Handler) HandleGoogle(ctx context.Context, body []byte) error {
	log := logctx.FromCtx(ctx, h.log).With("provider", types.PaymentProviderGoogle)
	logID := h.received(ctx, types.PaymentProviderGoogle, body)

	msg, n, err := play.DecodePushMessage(body)
	if err != nil {
		log.Warnw("notification_malformed", "error", err)
		h.finish(ctx, types.PaymentProviderGoogle, logID, models.PaymentNotificationLogStatusIgnored, "", outcomeMalformed, err)
		return nil
	}
	parser := &GoogleNotificationParser{Message: msg, Notification: n}
	if n.SubscriptionNotification == nil {
		// test and one-time product notifications carry nothing to reconcile
		log.Infow("notification_ignored", "notification_id", parser.GetNotificationID(), "test", n.TestNotification != nil)
		h.finish(ctx, types.PaymentProviderGoogle, logID, models.PaymentNotificationLogStatusIgnored, "", string(purchase.OutcomeIgnored), nil)
		return nil
	}
	if h.packageName != "" && n.PackageName != h.packageName {
		log.Warnw("notification_package_mismatch", "package_name", n.PackageName, "expected", h.packageName)
		h.finish(ctx, types.PaymentProviderGoogle, logID, models.PaymentNotificationLogStatusIgnored, "", string(purchase.OutcomeDropped), nil)
		return nil
	}
	return h.process(ctx, log, parser, logID)
}

// HandleApple processes an App Store Server Notification V2 body.
func (h *Handler) HandleApple(ctx context.Context, body []byte) error {
	log := logctx.FromCtx(ctx, h.log).With("provider", types.PaymentProviderApple)
	logID := h.received(ctx, types.PaymentProviderApple, body)

	var req apple_notification.AppStoreServerRequest
	if err := json.Unmarshal(body, &req); err != nil || req.SignedPayload == "" {
		if err == nil {
			err = errors.New("missing signedPayload")
		}
		log.Warnw("notification_malformed", "error", err)
		h.finish(ctx, types.PaymentProviderApple, logID, models.PaymentNotificationLogStatusIgnored, "", outcomeMalformed, err)
		return nil
	}
	n, err := h.decoder.Decode(req.SignedPayload)
	if err != nil {
		log.Warnw("notification_rejected", "error", err)
		h.finish(ctx, types.PaymentProviderApple, logID, models.PaymentNotificationLogStatusIgnored, "", outcomeMalformed, err)
		return nil
	}
	parser := &AppleNotificationParser{Notification: n}
	if n.IsTestNotification {
		log.Infow("notification_ignored", "notification_id", parser.GetNotificationID(), "test", true)
		h.finish(ctx, types.PaymentProviderApple, logID, models.PaymentNotificationLogStatusIgnored, "", string(purchase.OutcomeIgnored), nil)
		return nil
	}
	if h.bundleID != "" && parser.GetApp() != h.bundleID {
		log.Warnw("notification_bundle_mismatch", "bundle_id", parser.GetApp(), "expected", h.bundleID)
		h.finish(ctx, types.PaymentProviderApple, logID, models.PaymentNotificationLogStatusIgnored, "", string(purchase.OutcomeDropped), nil)
		return nil
	}
	return h.process(ctx, log, parser, logID)
}

func (h *Handler) process(ctx context.Context, log *zap.SugaredLogger, parser NotificationParser, logID string) error {
	provider := parser.GetProvider()
	id := parser.GetNotificationID()
	log = log.With("notification_id", id, "notification_type", parser.GetNotificationType())

	if parser.GetCategory() == types.NotificationCategoryIgnored {
		log.Infow("notification_ignored")
		h.finish(ctx, provider, logID, models.PaymentNotificationLogStatusIgnored, "", string(purchase.OutcomeIgnored), nil)
		return nil
	}
	if !h.deduper.Claim(ctx, provider, id) {
		log.Infow("notification_redelivered")
		h.finish(ctx, provider, logID, models.PaymentNotificationLogStatusIgnored, "", string(purchase.OutcomeDuplicate), nil)
		return nil
	}

	p, err := parser.FindPurchase(ctx, h.purchases)
	if errors.Is(err, purchase.ErrPurchaseNotFound) {
		log.Infow("notification_purchase_not_found", "lookup_key", parser.GetLookupKey())
		h.finish(ctx, provider, logID, models.PaymentNotificationLogStatusIgnored, "", outcomeNotFound, nil)
		return nil
	}
	if err != nil {
		h.deduper.Release(ctx, provider, id)
		log.Errorw("notification_lookup_failed", "error", err)
		h.finish(ctx, provider, logID, models.PaymentNotificationLogStatusHandleFailed, "", outcomeFailed, err)
		return fmt.Errorf("failed to find purchase: %w", err)
	}

	outcome, err := h.purchases.ApplyNotification(ctx, parser.BuildNotification(p))
	if err != nil {
		h.deduper.Release(ctx, provider, id)
		log.Errorw("notification_apply_failed", "purchase_id", p.ID, "error", err)
		h.finish(ctx, provider, logID, models.PaymentNotificationLogStatusHandleFailed, p.ID, outcomeFailed, err)
		return fmt.Errorf("failed to apply notification: %w", err)
	}

	status := models.PaymentNotificationLogStatusHandled
	if outcome != purchase.OutcomeApplied {
		status = models.PaymentNotificationLogStatusIgnored
	}
	log.Infow("notification_handled", "purchase_id", p.ID, "outcome", outcome)
	h.finish(ctx, provider, logID, status, p.ID, string(outcome), nil)
	return nil
}

func (h *Handler) received(ctx context.Context, provider types.PaymentProvider, body []byte) string {
	if h.audit == nil {
		return ""
	}
	return h.audit.Received(ctx, &models.PaymentNotificationLog{
		ProviderID: provider,
		Data:       notification_log.RawData(body),
	})
}

type result struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) finish(ctx context.Context, provider types.PaymentProvider, logID string, status models.PaymentNotificationLogStatus, purchaseID, outcome string, err error) {
	h.metrics.ObserveNotification(provider, outcome)
	if h.audit == nil {
		return
	}
	r := result{Outcome: outcome}
	if err != nil {
		r.Error = err.Error()
	}
	h.audit.Finish(ctx, logID, status, purchaseID, r)
}
