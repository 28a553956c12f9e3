package play

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/awa/go-iap/playstore"
	"golang.org/x/time/rate"
	"google.golang.org/api/androidpublisher/v3"
)

// SubscriptionVerifier is the part of playstore.Client used here.
type SubscriptionVerifier interface {
	VerifySubscription(ctx context.Context, packageName string, subscriptionID string, purchaseToken string) (*androidpublisher.SubscriptionPurchase, error)
}

type Client struct {
	verifier    SubscriptionVerifier
	packageName string
	limiter     *rate.Limiter
}

// NewClient builds a Developer API client from a service account key.
func NewClient(jsonKey []byte, httpCli *http.Client, packageName string, limiter *rate.Limiter) (*Client, error) {
	if len(jsonKey) == 0 {
		return nil, errors.New("google play service account key is empty")
	}
	if httpCli == nil {
		httpCli = http.DefaultClient
	}
	ps, err := playstore.NewWithClient(jsonKey, httpCli)
	if err != nil {
		return nil, fmt.Errorf("failed to create play store client: %w", err)
	}
	return NewClientWithVerifier(ps, packageName, limiter), nil
}

func NewClientWithVerifier(v SubscriptionVerifier, packageName string, limiter *rate.Limiter) *Client {
	return &Client{verifier: v, packageName: packageName, limiter: limiter}
}

func (c *Client) PackageName() string { return c.packageName }

// GetSubscription calls purchases.subscriptions.get for the configured package.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID, purchaseToken string) (*androidpublisher.SubscriptionPurchase, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("play store rate limit wait: %w", err)
		}
	}
	res, err := c.verifier.VerifySubscription(ctx, c.packageName, subscriptionID, purchaseToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if res == nil {
		return nil, errors.New("play store returned an empty subscription")
	}
	return res, nil
}
