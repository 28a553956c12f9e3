package play

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/awa/go-iap/playstore"
)

var (
	ErrMalformedEnvelope     = errors.New("malformed push envelope")
	ErrMalformedData         = errors.New("push message data is not base64")
	ErrMalformedNotification = errors.New("push message data is not a developer notification")
)

// PushMessage is the Pub/Sub push request body.
type PushMessage struct {
	Message      PushMessageBody `json:"message"`
	Subscription string          `json:"subscription"`
}

type PushMessageBody struct {
	Data        string            `json:"data"`
	MessageID   string            `json:"message_id,omitempty"`
	MessageId   string            `json:"messageId,omitempty"`
	PublishTime string            `json:"publish_time,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// ID returns the Pub/Sub message id, accepting either spelling.
func (m PushMessageBody) ID() string {
	if m.MessageID != "" {
		return m.MessageID
	}
	return m.MessageId
}

// DeveloperNotification is the real-time developer notification carried in
// the message data. The V2 shape has pointer members, so an absent
// subscriptionNotification decodes to nil.
type (
	DeveloperNotification    = playstore.DeveloperNotificationV2
	SubscriptionNotification = playstore.SubscriptionNotification
	TestNotification         = playstore.TestNotification
)

// DecodePushMessage splits a push body into its envelope and notification.
// The returned error wraps one of the Err* sentinels.
func DecodePushMessage(body []byte) (*PushMessage, *DeveloperNotification, error) {
	var msg PushMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if msg.Message.Data == "" {
		return &msg, nil, fmt.Errorf("%w: empty data", ErrMalformedEnvelope)
	}
	data, err := base64.StdEncoding.DecodeString(msg.Message.Data)
	if err != nil {
		return &msg, nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	var n DeveloperNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return &msg, nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	return &msg, &n, nil
}

// EncodePushMessage wraps n the way Pub/Sub delivers it.
func EncodePushMessage(n *DeveloperNotification, messageID string, publishTime time.Time, subscription string) ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&PushMessage{
		Message: PushMessageBody{
			Data:        base64.StdEncoding.EncodeToString(data),
			MessageID:   messageID,
			PublishTime: publishTime.UTC().Format(time.RFC3339Nano),
		},
		Subscription: subscription,
	})
}

// notificationTypeNames follows the RTDN documentation.
var notificationTypeNames = map[playstore.SubscriptionNotificationType]string{
	playstore.SubscriptionNotificationTypeRecovered:            "SUBSCRIPTION_RECOVERED",
	playstore.SubscriptionNotificationTypeRenewed:              "SUBSCRIPTION_RENEWED",
	playstore.SubscriptionNotificationTypeCanceled:             "SUBSCRIPTION_CANCELED",
	playstore.SubscriptionNotificationTypePurchased:            "SUBSCRIPTION_PURCHASED",
	playstore.SubscriptionNotificationTypeAccountHold:          "SUBSCRIPTION_ON_HOLD",
	playstore.SubscriptionNotificationTypeGracePeriod:          "SUBSCRIPTION_IN_GRACE_PERIOD",
	playstore.SubscriptionNotificationTypeRestarted:            "SUBSCRIPTION_RESTARTED",
	playstore.SubscriptionNotificationTypePriceChangeConfirmed: "SUBSCRIPTION_PRICE_CHANGE_CONFIRMED",
	playstore.SubscriptionNotificationTypeDeferred:             "SUBSCRIPTION_DEFERRED",
	playstore.SubscriptionNotificationTypePaused:               "SUBSCRIPTION_PAUSED",
	playstore.SubscriptionNotificationTypePauseScheduleChanged: "SUBSCRIPTION_PAUSE_SCHEDULE_CHANGED",
	playstore.SubscriptionNotificationTypeRevoked:              "SUBSCRIPTION_REVOKED",
	playstore.SubscriptionNotificationTypeExpired:              "SUBSCRIPTION_EXPIRED",
}

// NotificationTypeName returns the documented name, or the number for types
// this service does not know.
func NotificationTypeName(t playstore.SubscriptionNotificationType) string {
	if name, ok := notificationTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SUBSCRIPTION_NOTIFICATION_%d", int(t))
}
