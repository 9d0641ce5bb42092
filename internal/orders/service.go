package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/miravelle/modora-backend/internal/cart"
	"github.com/miravelle/modora-backend/internal/inventory"
	"github.com/miravelle/modora-backend/pkg/config"
	"github.com/miravelle/modora-backend/pkg/db/models"
	"github.com/miravelle/modora-backend/pkg/enums"
	pkgerrors "github.com/miravelle/modora-backend/pkg/errors"
	"github.com/miravelle/modora-backend/pkg/logger"
	"github.com/miravelle/modora-backend/pkg/pagination"
)

// Service drives the order lifecycle: creation from the cart, user and
// admin transitions, and the payment-confirmation edge that deducts stock.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*models.Order, error)
	GetForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	AdminGet(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	AdminList(ctx context.Context, params pagination.Params, filters Filters) (*OrderList, error)
	UserCancel(ctx context.Context, orderID, userID uuid.UUID, reason string) (*models.Order, error)
	UserConfirmDelivered(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	AdminUpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentIntentID string) error
}

type service struct {
	repo     Repository
	carts    cart.Repository
	tx       txRunner
	ledger   inventory.Ledger
	refunds  RefundInitiator
	logg     *logger.Logger
	shipping config.ShippingConfig
	now      func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(
	repo Repository,
	carts cart.Repository,
	tx txRunner,
	ledger inventory.Ledger,
	refunds RefundInitiator,
	logg *logger.Logger,
	shipping config.ShippingConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if refunds == nil {
		return nil, fmt.Errorf("refund initiator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		carts:    carts,
		tx:       tx,
		ledger:   ledger,
		refunds:  refunds,
		logg:     logg,
		shipping: shipping,
		now:      time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validateShipping(input); err != nil {
		return nil, err
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts.WithTx(tx)
		userCart, err := cartRepo.FindByUser(ctx, userID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(userCart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		subtotal := 0
		lines := make([]inventory.Line, 0, len(userCart.Items))
		items := make([]models.OrderItem, 0, len(userCart.Items))
		for _, ci := range userCart.Items {
			// Products deleted since the cart was built drop out silently.
			if ci.Product == nil {
				s.logg.Warn(ctx, fmt.Sprintf("cart item %s references a missing product, skipping", ci.ID))
				continue
			}
			unitPrice := ci.Product.PriceCents
			if ci.Product.SalePriceCents != nil {
				unitPrice = *ci.Product.SalePriceCents
			}
			var sizeName *string
			if ci.ProductSize != nil {
				sizeName = &ci.ProductSize.Size
			}
			lineTotal := unitPrice * ci.Quantity
			subtotal += lineTotal

			lines = append(lines, inventory.Line{
				ProductID:     ci.ProductID,
				ProductSizeID: ci.ProductSizeID,
				ProductName:   ci.Product.Name,
				Size:          sizeName,
				Quantity:      ci.Quantity,
			})
			productID := ci.ProductID
			items = append(items, models.OrderItem{
				ID:             uuid.New(),
				ProductID:      &productID,
				ProductName:    ci.Product.Name,
				ProductImage:   ci.Product.ImageURL,
				ProductSize:    sizeName,
				Quantity:       ci.Quantity,
				UnitPriceCents: unitPrice,
				TotalCents:     lineTotal,
			})
		}

		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		shortages, err := s.ledger.Check(ctx, tx, lines)
		if err != nil {
			return err
		}
		if len(shortages) > 0 {
			parts := make([]string, 0, len(shortages))
			for _, shortage := range shortages {
				parts = append(parts, shortage.String())
			}
			return pkgerrors.Newf(pkgerrors.CodeConflict, "insufficient stock: %s", strings.Join(parts, "; "))
		}

		shippingFee := 0
		if subtotal < s.shipping.FreeThresholdCents {
			shippingFee = s.shipping.FeeCents
		}

		order := &models.Order{
			ID:               uuid.New(),
			UserID:           userID,
			ShippingName:     input.ShippingName,
			ShippingPhone:    input.ShippingPhone,
			ShippingEmail:    input.ShippingEmail,
			ShippingAddress:  input.ShippingAddress,
			Note:             input.Note,
			SubtotalCents:    subtotal,
			ShippingFeeCents: shippingFee,
			TotalAmountCents: subtotal + shippingFee,
			Status:           enums.OrderStatusPending,
		}

		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create order")
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create order items")
		}
		if err := cartRepo.ClearItems(ctx, userCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: clear cart")
		}

		order.Items = items
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, created.ID.String()), "order created")
	return created, nil
}

func (s *service) GetForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	rows, total, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	list := &OrderList{
		Orders: make([]OrderSummary, 0, len(rows)),
		Page:   pagination.NewPage(params, total),
	}
	for _, row := range rows {
		list.Orders = append(list.Orders, summarize(row, ""))
	}
	return list, nil
}

func (s *service) AdminGet(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) AdminList(ctx context.Context, params pagination.Params, filters Filters) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", *filters.Status)
	}

	rows, total, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	userIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.UserID)
	}
	emails, err := s.repo.FindUserEmails(ctx, userIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user emails")
	}

	list := &OrderList{
		Orders: make([]OrderSummary, 0, len(rows)),
		Page:   pagination.NewPage(params, total),
	}
	for _, row := range rows {
		list.Orders = append(list.Orders, summarize(row, emails[row.UserID]))
	}
	return list, nil
}

// UserCancel dispatches on the order's current status: cancel outright while
// money has not moved, fall through to the refund flow once it has, and
// convert a cancel on a delivered order into a return request.
func (s *service) UserCancel(ctx context.Context, orderID, userID uuid.UUID, reason string) (*models.Order, error) {
	order, err := s.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	switch {
	case order.Status == enums.OrderStatusPending:
		return s.cancel(ctx, orderID)

	case order.Status == enums.OrderStatusConfirmed && order.PaymentIntentID == nil:
		return s.cancel(ctx, orderID)

	case order.Status == enums.OrderStatusConfirmed:
		return s.refunds.CreateRefund(ctx, orderID, reason, nil)

	case order.Status == enums.OrderStatusProcessing:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is being prepared, please contact support to cancel")

	case order.Status == enums.OrderStatusShipped:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot cancel an order that has shipped")

	case order.Status == enums.OrderStatusDelivered:
		return s.refunds.RequestReturn(ctx, orderID, userID, reason)

	case IsCancelFinal(order.Status):
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is already %s", order.Status)

	default:
		return nil, EnsureStatus(order, "cancel order", enums.OrderStatusPending, enums.OrderStatusConfirmed, enums.OrderStatusDelivered)
	}
}

func (s *service) cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := EnsureStatus(order, "cancel order", enums.OrderStatusPending, enums.OrderStatusConfirmed); err != nil {
			return err
		}
		if order.Status == enums.OrderStatusConfirmed && order.PaymentIntentID != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has a captured payment, cancellation must go through a refund")
		}
		if err := repo.Update(ctx, orderID, map[string]any{"status": enums.OrderStatusCancelled}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: cancel order")
		}
		order.Status = enums.OrderStatusCancelled
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order cancelled")
	return out, nil
}

func (s *service) UserConfirmDelivered(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if _, err := s.GetForUser(ctx, orderID, userID); err != nil {
		return nil, err
	}

	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := EnsureStatus(order, "confirm delivery", enums.OrderStatusShipped); err != nil {
			return err
		}
		deliveredAt := s.now()
		updates := map[string]any{
			"status":       enums.OrderStatusDelivered,
			"delivered_at": deliveredAt,
		}
		if err := repo.Update(ctx, orderID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: confirm delivery")
		}
		order.Status = enums.OrderStatusDelivered
		order.DeliveredAt = &deliveredAt
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdminUpdateStatus is the operator override: any valid status may be set.
// Moving a CONFIRMED order straight to CANCELLED or REFUNDED returns its
// deducted stock as part of the same transaction.
func (s *service) AdminUpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status)
	}

	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == status {
			out = order
			return nil
		}

		previous := order.Status
		now := s.now()
		updates := map[string]any{"status": status}
		if status == enums.OrderStatusShipped && order.ShippedAt == nil {
			updates["shipped_at"] = now
			shippedAt := now
			order.ShippedAt = &shippedAt
		}
		if status == enums.OrderStatusDelivered && order.DeliveredAt == nil {
			updates["delivered_at"] = now
			deliveredAt := now
			order.DeliveredAt = &deliveredAt
		}

		if err := repo.Update(ctx, orderID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order status")
		}

		if previous == enums.OrderStatusConfirmed &&
			(status == enums.OrderStatusCancelled || status == enums.OrderStatusRefunded) {
			if err := s.ledger.Rollback(ctx, tx, StockLines(order)); err != nil {
				return err
			}
		}

		order.Status = status
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), fmt.Sprintf("order status set to %s", status))
	return out, nil
}

// ConfirmPayment applies the gateway's checkout confirmation: it stores the
// payment correlation id and deducts stock exactly once. Replays and
// confirmations for orders no longer PENDING are acknowledged as no-ops.
func (s *service) ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentIntentID string) error {
	if paymentIntentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		orderCtx := s.logg.WithOrderID(ctx, orderID.String())
		if order.Status == enums.OrderStatusConfirmed {
			s.logg.Info(orderCtx, "payment already confirmed, skipping")
			return nil
		}
		if order.Status != enums.OrderStatusPending {
			s.logg.Warn(orderCtx, fmt.Sprintf("payment confirmation ignored for order in status %s", order.Status))
			return nil
		}

		updates := map[string]any{
			"status":            enums.OrderStatusConfirmed,
			"payment_intent_id": paymentIntentID,
		}
		if err := repo.Update(ctx, orderID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: confirm payment")
		}

		if err := s.ledger.Deduct(ctx, tx, StockLines(order)); err != nil {
			return err
		}

		s.logg.Info(orderCtx, "payment confirmed, stock deducted")
		return nil
	})
}

func validateShipping(input CreateOrderInput) error {
	missing := []string{}
	if strings.TrimSpace(input.ShippingName) == "" {
		missing = append(missing, "shipping_name")
	}
	if strings.TrimSpace(input.ShippingPhone) == "" {
		missing = append(missing, "shipping_phone")
	}
	if strings.TrimSpace(input.ShippingEmail) == "" {
		missing = append(missing, "shipping_email")
	}
	if strings.TrimSpace(input.ShippingAddress) == "" {
		missing = append(missing, "shipping_address")
	}
	if len(missing) > 0 {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}
