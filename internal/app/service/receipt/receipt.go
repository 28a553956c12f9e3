package receipt

import (
	"context"
	"errors"
	"time"

	"github.com/fatflowers/reconciler/pkg/types"
)

var (
	// ErrUnexpectedStore means the store could not be reached or answered
	// with something other than a verdict. Callers may retry.
	ErrUnexpectedStore       = errors.New("unexpected store response")
	ErrNoPurchaseInReceipt   = errors.New("no purchase in receipt")
	ErrNoCorrelationToken    = errors.New("receipt has no correlation token")
	ErrSubscriptionCancelled = errors.New("subscription cancelled")
	ErrPaymentNotYetReceived = errors.New("payment not yet received")
	ErrInvalidWindow         = errors.New("receipt has no valid subscription window")
	ErrUnknownProduct        = errors.New("unknown product")
)

type ReceiptRequest struct {
	Provider types.PaymentProvider
	// ProductID is the configured product id, not the store's.
	ProductID string
	// Receipt is the App Store receipt blob or the Play purchase token.
	Receipt string
}

// Receipt is the store-independent result of a verification. Times are UTC.
type Receipt struct {
	Provider         types.PaymentProvider
	CorrelationToken string
	TransactionID    string
	StartAt          time.Time
	EndAt            time.Time
	// Lapse is set by Inspect when the store reports the subscription as
	// cancelled or unpaid. It is always nil on receipts returned by Validate.
	Lapse error
}

// HasWindow reports whether both window ends are known and ordered.
func (r *Receipt) HasWindow() bool {
	return r != nil && !r.StartAt.IsZero() && r.EndAt.After(r.StartAt)
}

// Validator verifies receipts against the store that issued them.
type Validator interface {
	// Validate fails on the first problem found in the receipt.
	Validate(ctx context.Context, req ReceiptRequest) (*Receipt, error)
	// Inspect tolerates lapsed subscriptions, recording the reason on
	// Receipt.Lapse, and drops an unordered window instead of failing.
	Inspect(ctx context.Context, req ReceiptRequest) (*Receipt, error)
}
