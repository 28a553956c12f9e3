package notification_handler

import (
	"github.com/awa/go-iap/playstore"

	"github.com/fatflowers/reconciler/pkg/types"
)

// AppleCategory maps an App Store Server Notification V2 type and subtype.
// https://developer.apple.com/documentation/appstoreservernotifications/notificationtype
func AppleCategory(notificationType, subtype string) types.NotificationCategory {
	switch notificationType {
	case "SUBSCRIBED":
		if subtype == "RESUBSCRIBE" {
			return types.NotificationCategoryRenewal
		}
		return types.NotificationCategoryActive
	case "DID_RENEW":
		return types.NotificationCategoryRenewal
	case "RENEWAL_EXTENDED", "REFUND_REVERSED":
		return types.NotificationCategoryActive
	case "DID_FAIL_TO_RENEW":
		// still entitled while the store retries billing
		if subtype == "GRACE_PERIOD" {
			return types.NotificationCategoryActive
		}
		return types.NotificationCategoryExpired
	case "EXPIRED", "GRACE_PERIOD_EXPIRED", "REFUND", "REVOKE":
		return types.NotificationCategoryExpired
	default:
		return types.NotificationCategoryIgnored
	}
}

// GoogleCategory maps a real-time developer notification type.
// https://developer.android.com/google/play/billing/rtdn-reference
func GoogleCategory(t playstore.SubscriptionNotificationType) types.NotificationCategory {
	switch t {
	case playstore.SubscriptionNotificationTypeRecovered,
		playstore.SubscriptionNotificationTypeRenewed:
		return types.NotificationCategoryRenewal
	case playstore.SubscriptionNotificationTypePurchased,
		playstore.SubscriptionNotificationTypeGracePeriod,
		playstore.SubscriptionNotificationTypeRestarted,
		playstore.SubscriptionNotificationTypeDeferred:
		return types.NotificationCategoryActive
	case playstore.SubscriptionNotificationTypeCanceled,
		playstore.SubscriptionNotificationTypeAccountHold,
		playstore.SubscriptionNotificationTypeRevoked,
		playstore.SubscriptionNotificationTypeExpired:
		return types.NotificationCategoryExpired
	case playstore.SubscriptionNotificationTypePaused:
		return types.NotificationCategoryPaused
	default:
		return types.NotificationCategoryIgnored
	}
}
