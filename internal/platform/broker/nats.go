package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/reconciler/pkg/config"
)

// NewNATS returns nil when no url is configured.
func NewNATS(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*nats.Conn, error) {
	if cfg.NATS.URL == "" {
		l.Infow("nats disabled, no url configured")
		return nil, nil
	}
	conn, err := nats.Connect(cfg.NATS.URL,
		nats.Name("reconciler"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			l.Warnw("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Infow("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	l.Infow("connected to nats", "url", conn.ConnectedUrl())
	return conn, nil
}

func registerNATSClose(lc fx.Lifecycle, l *zap.SugaredLogger, conn *nats.Conn) {
	if conn == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			l.Infow("draining nats connection")
			return conn.Drain()
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewNATS),
	fx.Invoke(registerNATSClose),
)
