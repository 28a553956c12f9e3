package apple_iap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/awa/go-iap/appstore"
	"golang.org/x/time/rate"
)

// Verifier is the part of appstore.Client used here. Verify posts to the
// production URL and retries once against sandbox on status 21007.
type Verifier interface {
	Verify(ctx context.Context, reqBody appstore.IAPRequest, result interface{}) error
}

type Options struct {
	HTTPClient   *http.Client
	SharedSecret string
	// Sandbox sends every request to the sandbox endpoint.
	Sandbox bool
	Limiter *rate.Limiter
	// ProductionURL and SandboxURL override the App Store endpoints.
	ProductionURL string
	SandboxURL    string
}

type Client struct {
	verifier     Verifier
	sharedSecret string
	limiter      *rate.Limiter
}

func NewClient(opts Options) *Client {
	httpCli := opts.HTTPClient
	if httpCli == nil {
		httpCli = &http.Client{Timeout: 10 * time.Second}
	}
	iap := appstore.NewWithClient(httpCli)
	if opts.ProductionURL != "" {
		iap.ProductionURL = opts.ProductionURL
	}
	if opts.SandboxURL != "" {
		iap.SandboxURL = opts.SandboxURL
	}
	if opts.Sandbox {
		iap.ProductionURL = iap.SandboxURL
	}
	return NewClientWithVerifier(iap, opts.SharedSecret, opts.Limiter)
}

func NewClientWithVerifier(v Verifier, sharedSecret string, limiter *rate.Limiter) *Client {
	return &Client{verifier: v, sharedSecret: sharedSecret, limiter: limiter}
}

// ReceiptInfo is one entry of latest_receipt_info.
type ReceiptInfo struct {
	OriginalPurchaseDateMs string `json:"original_purchase_date_ms"`
	InAppOwnershipType     string `json:"in_app_ownership_type"`
	AppAccountToken        string `json:"app_account_token"`
	Quantity               string `json:"quantity"`
	ProductId              string `json:"product_id"`
	TransactionId          string `json:"transaction_id"`
	OriginalTransactionId  string `json:"original_transaction_id"`
	WebOrderLineItemId     string `json:"web_order_line_item_id"`
	IsTrialPeriod          string `json:"is_trial_period"`
	PurchaseDateMs         string `json:"purchase_date_ms"`
	ExpiresDateMs          string `json:"expires_date_ms"`
	CancellationDateMs     string `json:"cancellation_date_ms"`
}

// PendingRenewalInfo is one entry of pending_renewal_info.
type PendingRenewalInfo struct {
	AutoRenewProductId       string `json:"auto_renew_product_id"`
	AutoRenewStatus          string `json:"auto_renew_status"`
	ExpirationIntent         string `json:"expiration_intent"`
	GracePeriodExpiresDateMs string `json:"grace_period_expires_date_ms"`
	IsInBillingRetryPeriod   string `json:"is_in_billing_retry_period"`
	OriginalTransactionId    string `json:"original_transaction_id"`
	ProductId                string `json:"product_id"`
}

type VerifyReceiptResponse struct {
	Status             int                   `json:"status"`
	Environment        string                `json:"environment"`
	IsRetryable        bool                  `json:"is-retryable"`
	LatestReceiptInfo  []*ReceiptInfo        `json:"latest_receipt_info"`
	PendingRenewalInfo []*PendingRenewalInfo `json:"pending_renewal_info"`
}

// LatestReceipt returns the newest entry, nil when the receipt has none.
func (r *VerifyReceiptResponse) LatestReceipt() *ReceiptInfo {
	if r == nil || len(r.LatestReceiptInfo) == 0 {
		return nil
	}
	return r.LatestReceiptInfo[0]
}

func (r *VerifyReceiptResponse) PendingRenewal() *PendingRenewalInfo {
	if r == nil || len(r.PendingRenewalInfo) == 0 {
		return nil
	}
	return r.PendingRenewalInfo[0]
}

var ErrStatus = errors.New("app store returned non-zero status")

// VerifyReceipt calls verifyReceipt with exclude-old-transactions set. A
// non-zero final status is reported as ErrStatus together with the decoded
// response.
func (c *Client) VerifyReceipt(ctx context.Context, receiptData string) (*VerifyReceiptResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("app store rate limit wait: %w", err)
		}
	}

	var result VerifyReceiptResponse
	err := c.verifier.Verify(ctx, appstore.IAPRequest{
		ReceiptData:            receiptData,
		Password:               c.sharedSecret,
		ExcludeOldTransactions: true,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to verify receipt: %w", err)
	}
	if result.Status != 0 {
		return &result, fmt.Errorf("%w: %d", ErrStatus, result.Status)
	}
	return &result, nil
}

// ParseMillis parses a decimal epoch-millisecond string. Empty or zero
// values report false.
func ParseMillis(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
