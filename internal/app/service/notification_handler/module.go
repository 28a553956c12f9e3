package notification_handler

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/reconciler/internal/app/service/notification_log"
	"github.com/fatflowers/reconciler/internal/app/service/purchase"
	"github.com/fatflowers/reconciler/internal/platform/apple/apple_notification"
	"github.com/fatflowers/reconciler/pkg/config"
	"github.com/fatflowers/reconciler/pkg/metrics"
)

func newDecoder(cfg *config.Config, log *zap.SugaredLogger) (*apple_notification.Decoder, error) {
	var opts []apple_notification.Option
	if cfg.AppleIAP.RootCertPEM != "" {
		opts = append(opts, apple_notification.WithRootCertificate(cfg.AppleIAP.RootCertPEM))
	}
	if cfg.AppleIAP.SkipNotificationVerification {
		if cfg.Env == config.EnvProd {
			return nil, fmt.Errorf("apple notification verification can't be skipped in %s", cfg.Env)
		}
		log.Warnw("apple_notification_verification_disabled")
		opts = append(opts, apple_notification.WithoutVerification())
	}
	d, err := apple_notification.NewDecoder(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build apple notification decoder: %w", err)
	}
	return d, nil
}

type handlerParams struct {
	fx.In

	Cfg       *config.Config
	Log       *zap.SugaredLogger
	Purchases PurchaseService
	Decoder   *apple_notification.Decoder
	Deduper   Deduper
	Audit     notification_log.Recorder
	Metrics   *metrics.Recorder
}

func newHandler(p handlerParams) *Handler {
	return NewHandler(Options{
		Log:         p.Log,
		Purchases:   p.Purchases,
		Decoder:     p.Decoder,
		Deduper:     p.Deduper,
		Audit:       p.Audit,
		Metrics:     p.Metrics,
		PackageName: p.Cfg.GooglePlay.PackageName,
		BundleID:    p.Cfg.AppleIAP.BundleID,
	})
}

// Module exposes the webhook handler via Fx.
var Module = fx.Options(
	fx.Provide(func(s *purchase.Service) PurchaseService { return s }),
	fx.Provide(newDecoder),
	fx.Provide(func(client *goredis.Client, cfg *config.Config, log *zap.SugaredLogger) Deduper {
		return NewDeduper(client, cfg, log)
	}),
	fx.Provide(newHandler),
)
