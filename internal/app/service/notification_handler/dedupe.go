package notification_handler

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fatflowers/reconciler/pkg/config"
	"github.com/fatflowers/reconciler/pkg/logctx"
	"github.com/fatflowers/reconciler/pkg/types"
)

// Deduper drops webhook redeliveries before they reach the store APIs.
// The ledger idempotency key stays the source of truth; a claim only saves
// the round trip.
type Deduper interface {
	// Claim reports whether the delivery is new.
	Claim(ctx context.Context, provider types.PaymentProvider, id string) bool
	// Release forgets a claim so a retried delivery is processed again.
	Release(ctx context.Context, provider types.PaymentProvider, id string)
}

type RedisDeduper struct {
	client *goredis.Client
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewRedisDeduper(client *goredis.Client, ttl time.Duration, log *zap.SugaredLogger) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl, log: log}
}

func dedupeKey(provider types.PaymentProvider, id string) string {
	return fmt.Sprintf("notification:%s:%s", provider, id)
}

// Claim fails open: when redis is unavailable the delivery is processed.
func (d *RedisDeduper) Claim(ctx context.Context, provider types.PaymentProvider, id string) bool {
	if id == "" {
		return true
	}
	ok, err := d.client.SetNX(ctx, dedupeKey(provider, id), time.Now().Unix(), d.ttl).Result()
	if err != nil {
		logctx.FromCtx(ctx, d.log).Warnw("notification_dedupe_unavailable", "provider", provider, "notification_id", id, "error", err)
		return true
	}
	return ok
}

func (d *RedisDeduper) Release(ctx context.Context, provider types.PaymentProvider, id string) {
	if id == "" {
		return
	}
	if err := d.client.Del(ctx, dedupeKey(provider, id)).Err(); err != nil {
		logctx.FromCtx(ctx, d.log).Warnw("notification_dedupe_release_failed", "provider", provider, "notification_id", id, "error", err)
	}
}

type NoopDeduper struct{}

func (NoopDeduper) Claim(context.Context, types.PaymentProvider, string) bool { return true }
func (NoopDeduper) Release(context.Context, types.PaymentProvider, string) {}

// NewDeduper uses redis when a client is configured.
func NewDeduper(client *goredis.Client, cfg *config.Config, log *zap.SugaredLogger) Deduper {
	if client == nil {
		return NoopDeduper{}
	}
	return NewRedisDeduper(client, cfg.Redis.DedupeTTL, log)
}
