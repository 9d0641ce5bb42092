package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/miravelle/modora-backend/pkg/db/models"
	"github.com/miravelle/modora-backend/pkg/enums"
	"github.com/miravelle/modora-backend/pkg/pagination"
)

// CreateOrderInput carries the shipping snapshot captured at checkout. The
// cart supplies the lines; nothing here is recomputed later.
type CreateOrderInput struct {
	ShippingName    string  `json:"shipping_name" validate:"required"`
	ShippingPhone   string  `json:"shipping_phone" validate:"required"`
	ShippingEmail   string  `json:"shipping_email" validate:"required,email"`
	ShippingAddress string  `json:"shipping_address" validate:"required"`
	Note            *string `json:"note,omitempty"`
}

// OrderSummary exposes the aggregated fields returned in order listings.
type OrderSummary struct {
	ID               uuid.UUID         `json:"id"`
	Status           enums.OrderStatus `json:"status"`
	SubtotalCents    int               `json:"subtotal_cents"`
	ShippingFeeCents int               `json:"shipping_fee_cents"`
	TotalAmountCents int               `json:"total_amount_cents"`
	TotalItems       int               `json:"total_items"`
	UserEmail        string            `json:"user_email,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	DeliveredAt      *time.Time        `json:"delivered_at,omitempty"`
}

// OrderList wraps one page of order summaries plus page metadata.
type OrderList struct {
	Orders []OrderSummary  `json:"orders"`
	Page   pagination.Page `json:"page"`
}

func summarize(order models.Order, email string) OrderSummary {
	totalItems := 0
	for _, item := range order.Items {
		totalItems += item.Quantity
	}
	return OrderSummary{
		ID:               order.ID,
		Status:           order.Status,
		SubtotalCents:    order.SubtotalCents,
		ShippingFeeCents: order.ShippingFeeCents,
		TotalAmountCents: order.TotalAmountCents,
		TotalItems:       totalItems,
		UserEmail:        email,
		CreatedAt:        order.CreatedAt,
		DeliveredAt:      order.DeliveredAt,
	}
}
