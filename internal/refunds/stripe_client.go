package refunds

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/refund"

	pkgstripe "github.com/miravelle/modora-backend/pkg/stripe"
)

// StripeRefundClient exposes the subset of Stripe operations required by the refund service.
type StripeRefundClient interface {
	Create(ctx context.Context, paymentIntentID string, amountCents *int64, metadata map[string]string) (*stripe.Refund, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the provided Stripe client so the refund service can be tested.
func NewStripeClient(api *pkgstripe.Client) StripeRefundClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

// Create requests a refund against the captured payment. Amount is omitted
// for full refunds so the gateway's own charge amount stays authoritative.
func (w *stripeClientWrapper) Create(ctx context.Context, paymentIntentID string, amountCents *int64, metadata map[string]string) (*stripe.Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if amountCents != nil {
		params.Amount = stripe.Int64(*amountCents)
	}
	for key, value := range metadata {
		params.AddMetadata(key, value)
	}
	return refund.New(params)
}
