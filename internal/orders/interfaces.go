package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/miravelle/modora-backend/pkg/db/models"
	"github.com/miravelle/modora-backend/pkg/enums"
	"github.com/miravelle/modora-backend/pkg/pagination"
)

// Repository defines persistence operations for the order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByIDForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	FindByRefundID(ctx context.Context, refundID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, int64, error)
	List(ctx context.Context, params pagination.Params, filters Filters) ([]models.Order, int64, error)
	FindShippedBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FindUserEmails(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error)
}

// Filters narrows admin order listings.
type Filters struct {
	Status *enums.OrderStatus
}

// RefundInitiator starts the refund flow paths that order cancellation can
// fall through to. Implemented by the refunds service.
type RefundInitiator interface {
	CreateRefund(ctx context.Context, orderID uuid.UUID, reason string, amountCents *int) (*models.Order, error)
	RequestReturn(ctx context.Context, orderID, userID uuid.UUID, reason string) (*models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
