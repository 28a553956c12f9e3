package notification_log

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/pkg/logctx"
	"github.com/fatflowers/reconciler/pkg/tool"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Recorder keeps the audit trail of webhook deliveries. Failures are logged,
// never returned, so auditing cannot block a delivery.
type Recorder interface {
	Received(ctx context.Context, entry *models.PaymentNotificationLog) string
	Finish(ctx context.Context, id string, status models.PaymentNotificationLogStatus, purchaseID string, result any)
}

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Received inserts the delivery with status received and returns its id.
func (s *Service) Received(ctx context.Context, entry *models.PaymentNotificationLog) string {
	if entry == nil {
		return ""
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	if entry.Status == "" {
		entry.Status = models.PaymentNotificationLogStatusReceived
	}
	if entry.NotificationTime.IsZero() {
		entry.NotificationTime = time.Now()
	}
	if entry.TraceID == "" {
		entry.TraceID = logctx.TraceID(ctx)
	}
	if len(entry.Data) == 0 {
		entry.Data = datatypes.JSON("{}")
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to save notification log: %v", err)
	}
	return entry.ID
}

func (s *Service) Finish(ctx context.Context, id string, status models.PaymentNotificationLogStatus, purchaseID string, result any) {
	if id == "" {
		return
	}
	updates := map[string]interface{}{"status": status}
	if purchaseID != "" {
		updates["purchase_id"] = purchaseID
	}
	if result != nil {
		b, err := json.Marshal(result)
		if err == nil {
			updates["result"] = datatypes.JSON(b)
		}
	}
	if err := s.db.WithContext(ctx).Model(&models.PaymentNotificationLog{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to update notification log: %v", err)
	}
}

// RawData wraps a body that may not be JSON so it fits the data column.
func RawData(body []byte) datatypes.JSON {
	if json.Valid(body) {
		return datatypes.JSON(body)
	}
	b, _ := json.Marshal(map[string]string{"raw": string(body)})
	return datatypes.JSON(b)
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Provide(func(s *Service) Recorder { return s }),
)
