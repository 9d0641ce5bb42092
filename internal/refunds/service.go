package refunds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/miravelle/modora-backend/internal/inventory"
	"github.com/miravelle/modora-backend/internal/orders"
	"github.com/miravelle/modora-backend/pkg/config"
	"github.com/miravelle/modora-backend/pkg/db/models"
	"github.com/miravelle/modora-backend/pkg/enums"
	pkgerrors "github.com/miravelle/modora-backend/pkg/errors"
	"github.com/miravelle/modora-backend/pkg/logger"
	"github.com/miravelle/modora-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ShipmentEvidenceInput is the bundle the user submits when the approved
// return physically ships back.
type ShipmentEvidenceInput struct {
	Photos           []string `json:"photos"`
	Video            *string  `json:"video,omitempty"`
	Description      string   `json:"description"`
	ShippingProvider *string  `json:"shipping_provider,omitempty"`
	TrackingNumber   *string  `json:"tracking_number,omitempty"`
}

// Service sequences the return-evidence workflow and the external refund
// request/confirmation cycle. Stock rollback and REFUNDED finalization only
// happen once the gateway confirms, never optimistically.
type Service interface {
	orders.RefundInitiator
	ApproveReturn(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	RejectReturn(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error)
	UserConfirmShipped(ctx context.Context, orderID, userID uuid.UUID, input ShipmentEvidenceInput) (*models.Order, error)
	AdminConfirmReceived(ctx context.Context, orderID uuid.UUID, qcNotes *string) (*models.Order, error)
	AdminConfirmRefund(ctx context.Context, orderID uuid.UUID, amount *decimal.Decimal) (*models.Order, error)
	RejectQC(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error)
	HandleRefundSucceeded(ctx context.Context, refundID string) error
	HandleRefundFailed(ctx context.Context, refundID string) error
	RefundStatus(ctx context.Context, orderID, userID uuid.UUID) (*RefundStatusView, error)
}

// RefundStatusView reports whether a refund exists on an order and, when it
// does, the gateway details recorded so far.
type RefundStatusView struct {
	OrderID           uuid.UUID         `json:"order_id"`
	Status            enums.OrderStatus `json:"status"`
	HasRefund         bool              `json:"has_refund"`
	RefundID          *string           `json:"refund_id,omitempty"`
	RefundAmountCents *int              `json:"refund_amount_cents,omitempty"`
	RefundReason      *string           `json:"refund_reason,omitempty"`
	RefundedAt        *time.Time        `json:"refunded_at,omitempty"`
}

// ServiceParams collects the dependencies the refund service needs.
type ServiceParams struct {
	OrderRepo         orders.Repository
	TransactionRunner txRunner
	Ledger            inventory.Ledger
	StripeClient      StripeRefundClient
	Logger            *logger.Logger
	Returns           config.ReturnsConfig
}

type service struct {
	repo    orders.Repository
	tx      txRunner
	ledger  inventory.Ledger
	stripe  StripeRefundClient
	logg    *logger.Logger
	returns config.ReturnsConfig
	now     func() time.Time
}

// NewService builds the refund/return orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.OrderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.StripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.OrderRepo,
		tx:      params.TransactionRunner,
		ledger:  params.Ledger,
		stripe:  params.StripeClient,
		logg:    params.Logger,
		returns: params.Returns,
		now:     time.Now,
	}, nil
}

// CreateRefund starts the direct refund path for a paid order. A nil amount
// refunds the full charge; the gateway's own amount stays authoritative.
func (s *service) CreateRefund(ctx context.Context, orderID uuid.UUID, reason string, amountCents *int) (*models.Order, error) {
	if reason == "" {
		reason = "requested_by_customer"
	}

	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := orders.EnsureStatus(order, "refund order", enums.OrderStatusConfirmed, enums.OrderStatusProcessing); err != nil {
			return err
		}
		if amountCents != nil {
			if *amountCents <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
			}
			if *amountCents > order.TotalAmountCents {
				return pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds order total")
			}
		}

		recorded := order.TotalAmountCents
		if amountCents != nil {
			recorded = *amountCents
		}
		updated, err := s.issueRefund(ctx, repo, order, amountCents, recorded, reason, nil)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RequestReturn records a return request on a delivered order, enforcing
// ownership and the return window.
func (s *service) RequestReturn(ctx context.Context, orderID, userID uuid.UUID, reason string) (*models.Order, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUser(ctx, orderID, userID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := orders.EnsureStatus(order, "request a return", enums.OrderStatusDelivered); err != nil {
			return err
		}

		deliveredAt := order.UpdatedAt
		if order.DeliveredAt != nil {
			deliveredAt = *order.DeliveredAt
		}
		days := int(s.now().Sub(deliveredAt).Hours() / 24)
		if days > s.returns.WindowDays {
			return pkgerrors.Newf(
				pkgerrors.CodeValidation,
				"return window expired, order was delivered %d days ago",
				days,
			)
		}

		requestedAt := s.now()
		updates := map[string]any{
			"status":              enums.OrderStatusReturnRequested,
			"return_requested_at": requestedAt,
		}
		if err := repo.Update(ctx, orderID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: request return")
		}
		order.Status = enums.OrderStatusReturnRequested
		order.ReturnRequestedAt = &requestedAt
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if reason != "" {
		s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), fmt.Sprintf("return requested: %s", reason))
	}
	return out, nil
}

// ApproveReturn moves a requested return forward. It deliberately does not
// refund anything yet; the money moves only after the item ships back and
// passes inspection.
func (s *service) ApproveReturn(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, "approve return",
		[]enums.OrderStatus{enums.OrderStatusReturnRequested},
		func(order *models.Order) map[string]any {
			return map[string]any{"status": enums.OrderStatusReturnApproved}
		},
		enums.OrderStatusReturnApproved,
	)
}

// RejectReturn sends the order back to DELIVERED and clears the request.
func (s *service) RejectReturn(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	return s.transition(ctx, orderID, "reject return",
		[]enums.OrderStatus{enums.OrderStatusReturnRequested},
		func(order *models.Order) map[string]any {
			return map[string]any{
				"status":              enums.OrderStatusDelivered,
				"return_requested_at": nil,
				"qc_notes":            reason,
			}
		},
		enums.OrderStatusDelivered,
	)
}

// UserConfirmShipped stores the evidence bundle once the user hands the
// return to a carrier.
func (s *service) UserConfirmShipped(ctx context.Context, orderID, userID uuid.UUID, input ShipmentEvidenceInput) (*models.Order, error) {
	if len(input.Photos) < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "At least 1 photo is required")
	}
	if len(input.Photos) > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Maximum 5 photos allowed")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a condition description is required")
	}

	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUser(ctx, orderID, userID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := orders.EnsureStatus(order, "confirm return shipment", enums.OrderStatusReturnApproved); err != nil {
			return err
		}

		shippedAt := s.now()
		updates := map[string]any{
			"status":                      enums.OrderStatusReturnShipping,
			"return_evidence_photos":      types.StringList(input.Photos),
			"return_evidence_video":       input.Video,
			"return_evidence_description": input.Description,
			"return_shipping_provider":    input.ShippingProvider,
			"return_tracking_number":      input.TrackingNumber,
			"return_shipped_at":           shippedAt,
		}
		if err := repo.Update(ctx, orderID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: confirm return shipment")
		}
		order.Status = enums.OrderStatusReturnShipping
		order.ReturnShippedAt = &shippedAt
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdminConfirmReceived records receipt of the returned item and immediately
// opens the refund for the subtotal. The shipping fee is always withheld.
func (s *service) AdminConfirmReceived(ctx context.Context, orderID uuid.UUID, qcNotes *string) (*models.Order, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := orders.EnsureStatus(order, "confirm return received", enums.OrderStatusReturnShipping); err != nil {
			return err
		}

		receivedAt := s.now()
		amount := order.SubtotalCents
		extra := map[string]any{
			"return_received_at": receivedAt,
			"qc_notes":           qcNotes,
		}
		updated, err := s.issueRefund(ctx, repo, order, &amount, amount, "requested_by_customer", extra)
		if err != nil {
			return err
		}
		updated.ReturnReceivedAt = &receivedAt
		out = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdminConfirmRefund is the manual QC path: the item was received and held,
// and an operator now approves a refund of at most the subtotal. Amount is
// in dollars and defaults to the full subtotal.
func (s *service) AdminConfirmRefund(ctx context.Context, orderID uuid.UUID, amount *decimal.Decimal) (*models.Order, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := orders.EnsureStatus(order, "confirm refund", enums.OrderStatusReturnReceived); err != nil {
			return err
		}

		amountCents := order.SubtotalCents
		if amount != nil {
			amountCents = int(amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
		}
		if amountCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
		}
		if amountCents > order.SubtotalCents {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds order subtotal")
		}

		updated, err := s.issueRefund(ctx, repo, order, &amountCents, amountCents, "requested_by_customer", nil)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RejectQC fails the inspection of a received return. No refund is issued.
func (s *service) RejectQC(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	return s.transition(ctx, orderID, "reject quality control",
		[]enums.OrderStatus{enums.OrderStatusReturnReceived},
		func(order *models.Order) map[string]any {
			return map[string]any{
				"status":   enums.OrderStatusReturnRejected,
				"qc_notes": reason,
			}
		},
		enums.OrderStatusReturnRejected,
	)
}

// HandleRefundSucceeded finalizes REFUNDED and restores stock once the
// gateway confirms. Unknown refund ids and orders no longer REFUND_PENDING
// are treated as replays and acknowledged.
func (s *service) HandleRefundSucceeded(ctx context.Context, refundID string) error {
	if refundID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByRefundID(ctx, refundID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				s.logg.Info(ctx, fmt.Sprintf("refund %s does not match any order, skipping", refundID))
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by refund")
		}

		orderCtx := s.logg.WithOrderID(ctx, order.ID.String())
		if order.Status != enums.OrderStatusRefundPending {
			s.logg.Info(orderCtx, fmt.Sprintf("refund confirmation for order in status %s ignored", order.Status))
			return nil
		}

		refundedAt := s.now()
		updates := map[string]any{
			"status":      enums.OrderStatusRefunded,
			"refunded_at": refundedAt,
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: finalize refund")
		}

		if err := s.ledger.Rollback(ctx, tx, orders.StockLines(order)); err != nil {
			return err
		}

		s.logg.Info(orderCtx, "refund confirmed, stock restored")
		return nil
	})
}

// HandleRefundFailed reverts a pending refund to CONFIRMED. Stock is
// untouched because it was never restored.
func (s *service) HandleRefundFailed(ctx context.Context, refundID string) error {
	if refundID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByRefundID(ctx, refundID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				s.logg.Info(ctx, fmt.Sprintf("refund %s does not match any order, skipping", refundID))
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by refund")
		}

		orderCtx := s.logg.WithOrderID(ctx, order.ID.String())
		if order.Status != enums.OrderStatusRefundPending {
			s.logg.Info(orderCtx, fmt.Sprintf("refund failure for order in status %s ignored", order.Status))
			return nil
		}

		if err := repo.Update(ctx, order.ID, map[string]any{"status": enums.OrderStatusConfirmed}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: revert refund")
		}

		s.logg.Warn(orderCtx, "gateway reported refund failure, order reverted to confirmed")
		return nil
	})
}

// RefundStatus returns the refund details recorded on the caller's order.
// Orders belonging to other users read as not found.
func (s *service) RefundStatus(ctx context.Context, orderID, userID uuid.UUID) (*RefundStatusView, error) {
	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	view := &RefundStatusView{
		OrderID:   order.ID,
		Status:    order.Status,
		HasRefund: order.RefundID != nil && *order.RefundID != "",
	}
	if view.HasRefund {
		view.RefundID = order.RefundID
		view.RefundAmountCents = order.RefundAmountCents
		view.RefundReason = order.RefundReason
		view.RefundedAt = order.RefundedAt
	}
	return view, nil
}

// issueRefund is the single gateway-refund primitive every refund path goes
// through. The gateway call runs before any row is touched; a gateway error
// leaves the order exactly as loaded.
func (s *service) issueRefund(
	ctx context.Context,
	repo orders.Repository,
	order *models.Order,
	gatewayAmount *int,
	recordedAmount int,
	reason string,
	extraUpdates map[string]any,
) (*models.Order, error) {
	if order.PaymentIntentID == nil || *order.PaymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no captured payment to refund")
	}

	var amount64 *int64
	if gatewayAmount != nil {
		v := int64(*gatewayAmount)
		amount64 = &v
	}
	result, err := s.stripe.Create(ctx, *order.PaymentIntentID, amount64, map[string]string{
		"order_id": order.ID.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe: create refund")
	}

	updates := map[string]any{
		"status":              enums.OrderStatusRefundPending,
		"refund_id":           result.ID,
		"refund_amount_cents": recordedAmount,
		"refund_reason":       reason,
	}
	for key, value := range extraUpdates {
		updates[key] = value
	}
	if err := repo.Update(ctx, order.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: record refund")
	}

	order.Status = enums.OrderStatusRefundPending
	refundID := result.ID
	order.RefundID = &refundID
	order.RefundAmountCents = &recordedAmount
	order.RefundReason = &reason

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), fmt.Sprintf("refund %s requested for %d cents", result.ID, recordedAmount))
	return order, nil
}

// transition is the shared guard-then-update step for edges with no gateway
// involvement.
func (s *service) transition(
	ctx context.Context,
	orderID uuid.UUID,
	op string,
	allowed []enums.OrderStatus,
	buildUpdates func(order *models.Order) map[string]any,
	next enums.OrderStatus,
) (*models.Order, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := orders.EnsureStatus(order, op, allowed...); err != nil {
			return err
		}
		if err := repo.Update(ctx, orderID, buildUpdates(order)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: "+op)
		}
		order.Status = next
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) load(ctx context.Context, repo orders.Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
