package apple_notification

import "github.com/golang-jwt/jwt"

// NotificationHeader is the JWS header of every App Store signed value.
type NotificationHeader struct {
	Alg string   `json:"alg"`
	X5c []string `json:"x5c"`
}

// AppStoreServerRequest is the body App Store Server Notifications V2 posts.
type AppStoreServerRequest struct {
	SignedPayload string `json:"signedPayload"`
}

type NotificationData struct {
	AppAppleId            int64  `json:"appAppleId,omitempty"`
	BundleId              string `json:"bundleId"`
	BundleVersion         string `json:"bundleVersion,omitempty"`
	Environment           string `json:"environment"`
	SignedTransactionInfo string `json:"signedTransactionInfo,omitempty"`
	SignedRenewalInfo     string `json:"signedRenewalInfo,omitempty"`
	Status                int32  `json:"status,omitempty"`
}

type NotificationPayload struct {
	jwt.StandardClaims
	NotificationType string           `json:"notificationType"`
	Subtype          string           `json:"subtype,omitempty"`
	NotificationUUID string           `json:"notificationUUID"`
	Version          string           `json:"version,omitempty"`
	SignedDate       int64            `json:"signedDate,omitempty"`
	Data             NotificationData `json:"data"`
}

// https://developer.apple.com/documentation/appstoreserverapi/jwstransactiondecodedpayload
type TransactionInfo struct {
	jwt.StandardClaims
	TransactionId               string `json:"transactionId"`
	OriginalTransactionId       string `json:"originalTransactionId"`
	WebOrderLineItemId          string `json:"webOrderLineItemId,omitempty"`
	BundleId                    string `json:"bundleId"`
	ProductId                   string `json:"productId"`
	SubscriptionGroupIdentifier string `json:"subscriptionGroupIdentifier,omitempty"`
	PurchaseDate                int64  `json:"purchaseDate,omitempty"`
	OriginalPurchaseDate        int64  `json:"originalPurchaseDate,omitempty"`
	ExpiresDate                 int64  `json:"expiresDate,omitempty"`
	Quantity                    int32  `json:"quantity,omitempty"`
	Type                        string `json:"type,omitempty"`
	AppAccountToken             string `json:"appAccountToken,omitempty"`
	InAppOwnershipType          string `json:"inAppOwnershipType,omitempty"`
	SignedDate                  int64  `json:"signedDate,omitempty"`
	RevocationReason            *int32 `json:"revocationReason,omitempty"`
	RevocationDate              int64  `json:"revocationDate,omitempty"`
	IsUpgraded                  bool   `json:"isUpgraded,omitempty"`
	Environment                 string `json:"environment,omitempty"`
	Currency                    string `json:"currency,omitempty"`
	Price                       int64  `json:"price,omitempty"`
}

// https://developer.apple.com/documentation/appstoreserverapi/jwsrenewalinfodecodedpayload
type RenewalInfo struct {
	jwt.StandardClaims
	ExpirationIntent       int32  `json:"expirationIntent,omitempty"`
	OriginalTransactionId  string `json:"originalTransactionId"`
	AutoRenewProductId     string `json:"autoRenewProductId,omitempty"`
	ProductId              string `json:"productId"`
	AutoRenewStatus        int32  `json:"autoRenewStatus"`
	IsInBillingRetryPeriod bool   `json:"isInBillingRetryPeriod,omitempty"`
	GracePeriodExpiresDate int64  `json:"gracePeriodExpiresDate,omitempty"`
	SignedDate             int64  `json:"signedDate,omitempty"`
	Environment            string `json:"environment,omitempty"`
	RenewalDate            int64  `json:"renewalDate,omitempty"`
}

// AppStoreServerNotification is a decoded signed payload with its nested
// transaction and renewal info.
type AppStoreServerNotification struct {
	Payload            *NotificationPayload
	TransactionInfo    *TransactionInfo
	RenewalInfo        *RenewalInfo
	IsTestNotification bool
	IsSandbox          bool
}

// OriginalTransactionID is empty for test notifications.
func (n *AppStoreServerNotification) OriginalTransactionID() string {
	if n == nil || n.TransactionInfo == nil {
		return ""
	}
	return n.TransactionInfo.OriginalTransactionId
}
