package notification_handler

import (
	"context"

	"github.com/fatflowers/reconciler/internal/app/service/purchase"
	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/internal/platform/google/play"
	"github.com/fatflowers/reconciler/pkg/types"
)

type GoogleNotificationParser struct {
	Message      *play.PushMessage
	Notification *play.DeveloperNotification
}

func (p *GoogleNotificationParser) GetProvider() types.PaymentProvider {
	return types.PaymentProviderGoogle
}

func (p *GoogleNotificationParser) GetNotificationID() string { return p.Message.Message.ID() }

func (p *GoogleNotificationParser) GetNotificationType() string {
	if p.Notification.SubscriptionNotification == nil {
		return ""
	}
	return play.NotificationTypeName(p.Notification.SubscriptionNotification.NotificationType)
}

func (p *GoogleNotificationParser) GetCategory() types.NotificationCategory {
	if p.Notification.SubscriptionNotification == nil {
		return types.NotificationCategoryIgnored
	}
	return GoogleCategory(p.Notification.SubscriptionNotification.NotificationType)
}

func (p *GoogleNotificationParser) GetLookupKey() string {
	if p.Notification.SubscriptionNotification == nil {
		return ""
	}
	return p.Notification.SubscriptionNotification.PurchaseToken
}

func (p *GoogleNotificationParser) GetApp() string { return p.Notification.PackageName }

func (p *GoogleNotificationParser) FindPurchase(ctx context.Context, purchases PurchaseService) (*models.Purchase, error) {
	return purchases.FindByReceipt(ctx, types.PaymentProviderGoogle, p.GetLookupKey())
}

func (p *GoogleNotificationParser) BuildNotification(m *models.Purchase) purchase.Notification {
	return purchase.Notification{
		Provider:    types.PaymentProviderGoogle,
		PurchaseID:  m.ID,
		Category:    p.GetCategory(),
		Type:        p.GetNotificationType(),
		ReceiptData: p.GetLookupKey(),
	}
}
