package notification_handler

import (
	"context"

	"github.com/fatflowers/reconciler/internal/app/service/purchase"
	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/pkg/types"
)

// NotificationParser is a decoded delivery from one store.
type NotificationParser interface {
	GetProvider() types.PaymentProvider
	// GetNotificationID is the store's delivery id used for dedupe.
	GetNotificationID() string
	GetNotificationType() string
	GetCategory() types.NotificationCategory
	// GetLookupKey is the value the purchase is found by, for logging.
	GetLookupKey() string
	// GetApp is the package name or bundle id the delivery is for.
	GetApp() string
	FindPurchase(ctx context.Context, purchases PurchaseService) (*models.Purchase, error)
	BuildNotification(p *models.Purchase) purchase.Notification
}

type PurchaseService interface {
	ApplyNotification(ctx context.Context, n purchase.Notification) (purchase.Outcome, error)
	FindByReceipt(ctx context.Context, provider types.PaymentProvider, receiptData string) (*models.Purchase, error)
	FindByTransactionID(ctx context.Context, provider types.PaymentProvider, transactionID string) (*models.Purchase, error)
}
