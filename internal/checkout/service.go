package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/miravelle/modora-backend/internal/orders"
	"github.com/miravelle/modora-backend/pkg/config"
	"github.com/miravelle/modora-backend/pkg/db/models"
	"github.com/miravelle/modora-backend/pkg/enums"
	pkgerrors "github.com/miravelle/modora-backend/pkg/errors"
	"github.com/miravelle/modora-backend/pkg/logger"
)

const checkoutCurrency = string(stripe.CurrencyUSD)

// Session is the checkout handle returned to the client.
type Session struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// Service asks the payment gateway for a checkout handle on a pending
// order. Confirmation arrives later through the webhook path; nothing is
// deducted or transitioned here.
type Service interface {
	CreateSession(ctx context.Context, orderID, userID uuid.UUID) (*Session, error)
}

type service struct {
	repo   orders.Repository
	stripe StripeCheckoutClient
	logg   *logger.Logger
	cfg    config.StripeConfig
}

// NewService builds the checkout service.
func NewService(repo orders.Repository, client StripeCheckoutClient, logg *logger.Logger, cfg config.StripeConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   repo,
		stripe: client,
		logg:   logg,
		cfg:    cfg,
	}, nil
}

func (s *service) CreateSession(ctx context.Context, orderID, userID uuid.UUID) (*Session, error) {
	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := orders.EnsureStatus(order, "start checkout", enums.OrderStatusPending); err != nil {
		return nil, err
	}
	if len(order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(s.cfg.SuccessURL),
		CancelURL:     stripe.String(s.cfg.CancelURL),
		CustomerEmail: stripe.String(order.ShippingEmail),
		LineItems:     buildLineItems(order),
	}
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("user_id", order.UserID.String())

	result, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe: create checkout session")
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), fmt.Sprintf("checkout session %s created", result.ID))
	return &Session{SessionID: result.ID, URL: result.URL}, nil
}

func buildLineItems(order *models.Order) []*stripe.CheckoutSessionLineItemParams {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items)+1)
	for _, item := range order.Items {
		name := item.ProductName
		if item.ProductSize != nil && *item.ProductSize != "" {
			name = fmt.Sprintf("%s (%s)", name, *item.ProductSize)
		}
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(checkoutCurrency),
				UnitAmount: stripe.Int64(int64(item.UnitPriceCents)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
		})
	}
	if order.ShippingFeeCents > 0 {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(checkoutCurrency),
				UnitAmount: stripe.Int64(int64(order.ShippingFeeCents)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Shipping"),
				},
			},
		})
	}
	return items
}
