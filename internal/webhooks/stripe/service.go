package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/miravelle/modora-backend/pkg/errors"
	"github.com/miravelle/modora-backend/pkg/logger"
)

type paymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentIntentID string) error
}

type refundEventHandler interface {
	HandleRefundSucceeded(ctx context.Context, refundID string) error
	HandleRefundFailed(ctx context.Context, refundID string) error
}

// ServiceParams collects the dependencies the webhook service needs.
type ServiceParams struct {
	Orders  paymentConfirmer
	Refunds refundEventHandler
	Guard   *IdempotencyGuard
	Logger  *logger.Logger
}

// Service normalizes inbound gateway events into lifecycle transitions. The
// same normalized paths are reachable through the manual fallback methods
// for environments the gateway cannot call back into.
type Service struct {
	orders  paymentConfirmer
	refunds refundEventHandler
	guard   *IdempotencyGuard
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.Refunds == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refunds service required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		orders:  params.Orders,
		refunds: params.Refunds,
		guard:   params.Guard,
		logg:    params.Logger,
	}, nil
}

// HandleEvent dispatches one verified gateway event. Duplicate deliveries
// and unknown event types are acknowledged without touching any order.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	seen, err := s.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook idempotency check")
	}
	if seen {
		s.logg.Info(ctx, fmt.Sprintf("duplicate stripe event %s skipped", event.ID))
		return nil
	}

	if err := s.dispatch(ctx, event); err != nil {
		// release the mark so the gateway's retry is not swallowed
		if delErr := s.guard.Delete(ctx, event.ID); delErr != nil {
			s.logg.Error(ctx, "release idempotency mark", delErr)
		}
		return err
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.confirmFromSession(ctx, &session)

	case stripe.EventTypeCheckoutSessionExpired:
		s.logg.Info(ctx, fmt.Sprintf("checkout session expired (event %s)", event.ID))
		return nil

	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode charge event")
		}
		return s.applyRefunds(ctx, &charge)

	default:
		s.logg.Info(ctx, fmt.Sprintf("unhandled stripe event type %s ignored", event.Type))
		return nil
	}
}

func (s *Service) confirmFromSession(ctx context.Context, session *stripe.CheckoutSession) error {
	rawOrderID := session.Metadata["order_id"]
	if rawOrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session has no order_id metadata")
	}
	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse order_id metadata")
	}
	if session.PaymentIntent == nil || session.PaymentIntent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session has no payment intent")
	}
	return s.orders.ConfirmPayment(ctx, orderID, session.PaymentIntent.ID)
}

func (s *Service) applyRefunds(ctx context.Context, charge *stripe.Charge) error {
	if charge.Refunds == nil || len(charge.Refunds.Data) == 0 {
		s.logg.Info(ctx, "charge.refunded event carried no refunds, skipping")
		return nil
	}
	for _, refund := range charge.Refunds.Data {
		if refund == nil || refund.ID == "" {
			continue
		}
		var err error
		switch refund.Status {
		case stripe.RefundStatusSucceeded:
			err = s.refunds.HandleRefundSucceeded(ctx, refund.ID)
		case stripe.RefundStatusFailed:
			err = s.refunds.HandleRefundFailed(ctx, refund.ID)
		default:
			s.logg.Info(ctx, fmt.Sprintf("refund %s in status %s ignored", refund.ID, refund.Status))
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ManualConfirmPayment is the operator fallback for the checkout completion
// event, bypassing signature verification but not the status re-checks.
func (s *Service) ManualConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentIntentID string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	s.logg.Warn(ctx, fmt.Sprintf("manual payment confirmation invoked for order %s", orderID))
	return s.orders.ConfirmPayment(ctx, orderID, paymentIntentID)
}

// ManualRefundResult is the operator fallback for the refund result events.
func (s *Service) ManualRefundResult(ctx context.Context, refundID string, succeeded bool) error {
	s.logg.Warn(ctx, fmt.Sprintf("manual refund result invoked for refund %s (succeeded=%t)", refundID, succeeded))
	if succeeded {
		return s.refunds.HandleRefundSucceeded(ctx, refundID)
	}
	return s.refunds.HandleRefundFailed(ctx, refundID)
}
