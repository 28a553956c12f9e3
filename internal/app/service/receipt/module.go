package receipt

import (
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fatflowers/reconciler/internal/platform/apple/apple_iap"
	"github.com/fatflowers/reconciler/internal/platform/google/play"
	"github.com/fatflowers/reconciler/pkg/config"
)

// newHTTPClient is shared by both stores; the transport pools connections.
func newHTTPClient(cfg *config.Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16
	return &http.Client{Timeout: cfg.Store.RequestTimeout, Transport: transport}
}

func newLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.Store.RatePerSecond <= 0 {
		return nil
	}
	burst := cfg.Store.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.Store.RatePerSecond), burst)
}

func newAppleClient(cfg *config.Config, log *zap.SugaredLogger, httpCli *http.Client) AppleClient {
	if cfg.AppleIAP.SharedSecret == "" {
		log.Warnw("app store receipt validation disabled, no shared secret configured")
		return nil
	}
	return apple_iap.NewClient(apple_iap.Options{
		HTTPClient:   httpCli,
		SharedSecret: cfg.AppleIAP.SharedSecret,
		Sandbox:      !cfg.AppleIAP.IsProd && cfg.Env == config.EnvDev,
		Limiter:      newLimiter(cfg),
	})
}

func newGoogleClient(cfg *config.Config, log *zap.SugaredLogger, httpCli *http.Client) (GoogleClient, error) {
	key, err := cfg.GooglePlay.ServiceAccountKey()
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		log.Warnw("play store receipt validation disabled, no service account configured")
		return nil, nil
	}
	c, err := play.NewClient(key, httpCli, cfg.GooglePlay.PackageName, newLimiter(cfg))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Module exposes the receipt validator via Fx.
var Module = fx.Options(
	fx.Provide(newHTTPClient, newAppleClient, newGoogleClient),
	fx.Provide(NewService),
	fx.Provide(func(s *Service) Validator { return s }),
)
