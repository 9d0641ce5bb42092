package orders

import (
	"strings"

	"github.com/miravelle/modora-backend/internal/inventory"
	"github.com/miravelle/modora-backend/pkg/db/models"
	"github.com/miravelle/modora-backend/pkg/enums"
	pkgerrors "github.com/miravelle/modora-backend/pkg/errors"
)

// EnsureStatus is the precondition guard every transition runs against the
// freshly loaded row before mutating. It returns a typed state-conflict error
// naming the current and required statuses.
func EnsureStatus(order *models.Order, op string, allowed ...enums.OrderStatus) error {
	for _, status := range allowed {
		if order.Status == status {
			return nil
		}
	}
	return pkgerrors.Newf(
		pkgerrors.CodeStateConflict,
		"cannot %s: order is %s, must be %s",
		op, order.Status, statusList(allowed),
	)
}

// IsCancelFinal reports whether the status already terminates the cancel
// path, so a user cancel gets the "already" wording instead of a transition
// rejection.
func IsCancelFinal(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusCancelled,
		enums.OrderStatusReturnRequested,
		enums.OrderStatusReturnApproved,
		enums.OrderStatusReturnShipping,
		enums.OrderStatusReturnReceived,
		enums.OrderStatusReturnRejected,
		enums.OrderStatusRefundPending,
		enums.OrderStatusRefunded:
		return true
	}
	return false
}

// StockLines maps an order's line items onto the ledger lines used for
// deduction and rollback.
func StockLines(order *models.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		if item.ProductID == nil {
			continue
		}
		line := inventory.Line{
			ProductID:   *item.ProductID,
			ProductName: item.ProductName,
			Size:        item.ProductSize,
			Quantity:    item.Quantity,
		}
		lines = append(lines, line)
	}
	return lines
}

func statusList(statuses []enums.OrderStatus) string {
	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, string(status))
	}
	return strings.Join(parts, " or ")
}
