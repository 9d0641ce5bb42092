package orders

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/miravelle/modora-backend/api/middleware"
	internalorders "github.com/miravelle/modora-backend/internal/orders"
	"github.com/miravelle/modora-backend/pkg/db/models"
	"github.com/miravelle/modora-backend/pkg/enums"
	"github.com/miravelle/modora-backend/pkg/logger"
	"github.com/miravelle/modora-backend/pkg/pagination"
)

type stubOrderService struct {
	cancelOrderID uuid.UUID
	cancelUserID  uuid.UUID
	cancelReason  string
	cancelCalled  bool
}

func (s *stubOrderService) Create(ctx context.Context, userID uuid.UUID, input internalorders.CreateOrderInput) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderService) GetForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderService) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	return &internalorders.OrderList{}, nil
}

func (s *stubOrderService) AdminGet(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderService) AdminList(ctx context.Context, params pagination.Params, filters internalorders.Filters) (*internalorders.OrderList, error) {
	return &internalorders.OrderList{}, nil
}

func (s *stubOrderService) UserCancel(ctx context.Context, orderID, userID uuid.UUID, reason string) (*models.Order, error) {
	s.cancelCalled = true
	s.cancelOrderID = orderID
	s.cancelUserID = userID
	s.cancelReason = reason
	return &models.Order{ID: orderID, UserID: userID, Status: enums.OrderStatusCancelled}, nil
}

func (s *stubOrderService) UserConfirmDelivered(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: orderID, Status: enums.OrderStatusDelivered}, nil
}

func (s *stubOrderService) AdminUpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	return &models.Order{ID: orderID, Status: status}, nil
}

func (s *stubOrderService) ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentIntentID string) error {
	return nil
}

func cancelRequestFor(t *testing.T, orderID, userID uuid.UUID, body string) *http.Request {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", nil)
	} else {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", strings.NewReader(body))
	}
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderId", orderID.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	ctx = middleware.WithUserID(ctx, userID.String())
	return req.WithContext(ctx)
}

func TestCancelWithoutBody(t *testing.T) {
	orderID := uuid.New()
	userID := uuid.New()
	svc := &stubOrderService{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	rec := httptest.NewRecorder()
	Cancel(svc, logg).ServeHTTP(rec, cancelRequestFor(t, orderID, userID, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for bodyless cancel got %d: %s", rec.Code, rec.Body.String())
	}
	if !svc.cancelCalled {
		t.Fatal("expected cancel to reach the service")
	}
	if svc.cancelReason != "" {
		t.Fatalf("expected empty reason got %q", svc.cancelReason)
	}
	if svc.cancelOrderID != orderID || svc.cancelUserID != userID {
		t.Fatalf("unexpected identifiers %s/%s", svc.cancelOrderID, svc.cancelUserID)
	}
}

func TestCancelPassesReasonThrough(t *testing.T) {
	orderID := uuid.New()
	userID := uuid.New()
	svc := &stubOrderService{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	rec := httptest.NewRecorder()
	Cancel(svc, logg).ServeHTTP(rec, cancelRequestFor(t, orderID, userID, `{"reason":"wrong size"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.cancelReason != "wrong size" {
		t.Fatalf("expected reason passed through got %q", svc.cancelReason)
	}
}
