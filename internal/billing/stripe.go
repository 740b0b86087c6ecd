// Package billing keeps the premium flag in the ledger in step with Stripe
// subscriptions.
package billing

import (
	"context"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// SubscriptionChecker answers whether a Stripe customer currently pays.
type SubscriptionChecker interface {
	HasActiveSubscription(ctx context.Context, customerID string) (bool, error)
}

// StripeClient queries the Stripe REST API with its own key.
type StripeClient struct {
	api *client.API
}

func NewStripeClient(secretKey string) *StripeClient {
	return &StripeClient{api: client.New(secretKey, nil)}
}

func (c *StripeClient) HasActiveSubscription(ctx context.Context, customerID string) (bool, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(20)

	it := c.api.Subscriptions.List(params)
	for it.Next() {
		if Active(it.Subscription().Status) {
			return true, nil
		}
	}
	return false, it.Err()
}

// Active reports whether a subscription in this status grants premium.
func Active(status stripe.SubscriptionStatus) bool {
	return status == stripe.SubscriptionStatusActive || status == stripe.SubscriptionStatusTrialing
}
