package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/pkg/config"
	"github.com/fatflowers/reconciler/pkg/logctx"
	"github.com/fatflowers/reconciler/pkg/types"
)

// PurchaseChanged is published after every committed transition.
type PurchaseChanged struct {
	PurchaseID        string                 `json:"purchase_id"`
	UserID            string                 `json:"user_id"`
	ProductID         string                 `json:"product_id"`
	ProviderID        types.PaymentProvider  `json:"provider_id"`
	Status            types.PurchaseStatus   `json:"status"`
	PreviousStatus    types.PurchaseStatus   `json:"previous_status,omitempty"`
	TotalTransactions int64                  `json:"total_transactions"`
	EndsAfter         *time.Time             `json:"ends_after,omitempty"`
	Source            types.TransitionSource `json:"source"`
	OccurredAt        time.Time              `json:"occurred_at"`
}

func NewPurchaseChanged(p *models.Purchase, previous types.PurchaseStatus, source types.TransitionSource) *PurchaseChanged {
	return &PurchaseChanged{
		PurchaseID:        p.ID,
		UserID:            p.UserID,
		ProductID:         p.ProductID,
		ProviderID:        p.ProviderID,
		Status:            p.Status,
		PreviousStatus:    previous,
		TotalTransactions: p.TotalTransactions,
		EndsAfter:         p.EndsAfter,
		Source:            source,
		OccurredAt:        time.Now().UTC(),
	}
}

type Publisher interface {
	PublishPurchaseChanged(ctx context.Context, ev *PurchaseChanged) error
}

// Conn is the part of *nats.Conn used for publishing.
type Conn interface {
	Publish(subj string, data []byte) error
}

type NATSPublisher struct {
	conn    Conn
	subject string
	log     *zap.SugaredLogger
}

func NewNATSPublisher(conn Conn, subject string, log *zap.SugaredLogger) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject, log: log}
}

func (p *NATSPublisher) PublishPurchaseChanged(ctx context.Context, ev *PurchaseChanged) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal purchase event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish message to NATS: %w", err)
	}
	logctx.FromCtx(ctx, p.log).Debugw("purchase_event_published", "subject", p.subject, "purchase_id", ev.PurchaseID, "status", ev.Status)
	return nil
}

type NoopPublisher struct{}

func (NoopPublisher) PublishPurchaseChanged(context.Context, *PurchaseChanged) error { return nil }

// NewPublisher publishes over NATS when a connection is available.
func NewPublisher(conn *nats.Conn, cfg *config.Config, log *zap.SugaredLogger) Publisher {
	if conn == nil {
		return NoopPublisher{}
	}
	return NewNATSPublisher(conn, cfg.NATS.Subject, log)
}

var Module = fx.Options(
	fx.Provide(NewPublisher),
)
