package notification_handler

import (
	"context"

	"github.com/fatflowers/reconciler/internal/app/service/purchase"
	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/internal/platform/apple/apple_notification"
	"github.com/fatflowers/reconciler/pkg/types"
)

type AppleNotificationParser struct {
	Notification *apple_notification.AppStoreServerNotification
}

func (p *AppleNotificationParser) GetProvider() types.PaymentProvider {
	return types.PaymentProviderApple
}

func (p *AppleNotificationParser) GetNotificationID() string {
	return p.Notification.Payload.NotificationUUID
}

// GetNotificationType joins type and subtype, e.g. DID_FAIL_TO_RENEW.GRACE_PERIOD.
func (p *AppleNotificationParser) GetNotificationType() string {
	payload := p.Notification.Payload
	if payload.Subtype == "" {
		return payload.NotificationType
	}
	return payload.NotificationType + "." + payload.Subtype
}

func (p *AppleNotificationParser) GetCategory() types.NotificationCategory {
	if p.Notification.IsTestNotification {
		return types.NotificationCategoryIgnored
	}
	return AppleCategory(p.Notification.Payload.NotificationType, p.Notification.Payload.Subtype)
}

func (p *AppleNotificationParser) GetLookupKey() string {
	return p.Notification.OriginalTransactionID()
}

func (p *AppleNotificationParser) GetApp() string { return p.Notification.Payload.Data.BundleId }

func (p *AppleNotificationParser) FindPurchase(ctx context.Context, purchases PurchaseService) (*models.Purchase, error) {
	return purchases.FindByTransactionID(ctx, types.PaymentProviderApple, p.GetLookupKey())
}

func (p *AppleNotificationParser) BuildNotification(m *models.Purchase) purchase.Notification {
	n := purchase.Notification{
		Provider:   types.PaymentProviderApple,
		PurchaseID: m.ID,
		Category:   p.GetCategory(),
		Type:       p.GetNotificationType(),
	}
	if p.Notification.TransactionInfo != nil {
		n.EventTransactionID = p.Notification.TransactionInfo.TransactionId
	}
	return n
}
