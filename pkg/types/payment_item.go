package types

type PaymentProvider string

const (
	PaymentProviderApple  PaymentProvider = "apple"
	PaymentProviderGoogle PaymentProvider = "google"
)

func (p PaymentProvider) Valid() bool {
	return p == PaymentProviderApple || p == PaymentProviderGoogle
}

type PaymentItemType string

const (
	PaymentItemTypeAutoRenewableSubscription PaymentItemType = "auto_renewable_subscription"
)

// PaymentItem maps a local product to the product id registered with a store.
type PaymentItem struct {
	ID             string          `json:"id" mapstructure:"id"`
	ProviderID     PaymentProvider `json:"provider_id" mapstructure:"provider_id"`
	ProviderItemID string          `json:"provider_item_id" mapstructure:"provider_item_id"`
	Type           PaymentItemType `json:"type" mapstructure:"type"`
}

func (item *PaymentItem) Renewable() bool {
	return item != nil && (item.Type == PaymentItemTypeAutoRenewableSubscription || item.Type == "")
}
