package refunds

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/miravelle/modora-backend/internal/inventory"
	"github.com/miravelle/modora-backend/internal/orders"
	"github.com/miravelle/modora-backend/pkg/config"
	"github.com/miravelle/modora-backend/pkg/db/models"
	"github.com/miravelle/modora-backend/pkg/enums"
	pkgerrors "github.com/miravelle/modora-backend/pkg/errors"
	"github.com/miravelle/modora-backend/pkg/logger"
	"github.com/miravelle/modora-backend/pkg/pagination"
)

type stubOrdersRepo struct {
	order        *models.Order
	orderUpdates map[string]any
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) orders.Repository {
	return s
}

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	return order, nil
}

func (s *stubOrdersRepo) CreateItems(ctx context.Context, items []models.OrderItem) error {
	return nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) FindByIDForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID || s.order.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) FindByRefundID(ctx context.Context, refundID string) (*models.Order, error) {
	if s.order == nil || s.order.RefundID == nil || *s.order.RefundID != refundID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubOrdersRepo) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, int64, error) {
	return nil, 0, nil
}

func (s *stubOrdersRepo) List(ctx context.Context, params pagination.Params, filters orders.Filters) ([]models.Order, int64, error) {
	return nil, 0, nil
}

func (s *stubOrdersRepo) FindShippedBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrdersRepo) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	if s.order == nil || s.order.ID != orderID {
		return gorm.ErrRecordNotFound
	}
	s.orderUpdates = updates
	if v, ok := updates["status"].(enums.OrderStatus); ok {
		s.order.Status = v
	}
	if v, ok := updates["refund_id"].(string); ok {
		s.order.RefundID = &v
	}
	return nil
}

func (s *stubOrdersRepo) FindUserEmails(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	return map[uuid.UUID]string{}, nil
}

type stubLedger struct {
	deductCalls   [][]inventory.Line
	rollbackCalls [][]inventory.Line
}

func (s *stubLedger) Check(ctx context.Context, tx *gorm.DB, lines []inventory.Line) ([]inventory.Shortage, error) {
	return nil, nil
}

func (s *stubLedger) Deduct(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error {
	s.deductCalls = append(s.deductCalls, lines)
	return nil
}

func (s *stubLedger) Rollback(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error {
	s.rollbackCalls = append(s.rollbackCalls, lines)
	return nil
}

type refundCall struct {
	paymentIntentID string
	amountCents     *int64
	metadata        map[string]string
}

type fakeStripeClient struct {
	refund *stripe.Refund
	err    error
	calls  []refundCall
}

func (f *fakeStripeClient) Create(ctx context.Context, paymentIntentID string, amountCents *int64, metadata map[string]string) (*stripe.Refund, error) {
	f.calls = append(f.calls, refundCall{paymentIntentID: paymentIntentID, amountCents: amountCents, metadata: metadata})
	if f.err != nil {
		return nil, f.err
	}
	if f.refund != nil {
		return f.refund, nil
	}
	return &stripe.Refund{ID: "re_test", Status: stripe.RefundStatusPending}, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestService(t *testing.T, repo *stubOrdersRepo, ledger *stubLedger, gateway *fakeStripeClient, now time.Time) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		OrderRepo:         repo,
		TransactionRunner: stubTxRunner{},
		Ledger:            ledger,
		StripeClient:      gateway,
		Logger:            testLogger(),
		Returns:           config.ReturnsConfig{WindowDays: 7, AutoDeliverAfterDays: 14},
	})
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	svc.(*service).now = func() time.Time { return now }
	return svc
}

func paidOrder(status enums.OrderStatus) *models.Order {
	pi := "pi_123"
	productID := uuid.New()
	return &models.Order{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		Status:           status,
		SubtotalCents:    500,
		ShippingFeeCents: 1000,
		TotalAmountCents: 1500,
		PaymentIntentID:  &pi,
		Items: []models.OrderItem{
			{ID: uuid.New(), ProductID: &productID, ProductName: "Linen Shirt", Quantity: 1},
		},
	}
}

func TestCreateRefundFullAmount(t *testing.T) {
	repo := &stubOrdersRepo{order: paidOrder(enums.OrderStatusConfirmed)}
	gateway := &fakeStripeClient{refund: &stripe.Refund{ID: "re_1"}}
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, &stubLedger{}, gateway, now)

	order, err := svc.CreateRefund(context.Background(), repo.order.ID, "", nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusRefundPending {
		t.Fatalf("expected refund_pending got %s", order.Status)
	}
	if order.RefundID == nil || *order.RefundID != "re_1" {
		t.Fatalf("refund id not recorded: %+v", order.RefundID)
	}
	if order.RefundAmountCents == nil || *order.RefundAmountCents != 1500 {
		t.Fatalf("expected full total recorded, got %+v", order.RefundAmountCents)
	}
	if order.RefundReason == nil || *order.RefundReason != "requested_by_customer" {
		t.Fatalf("expected default reason, got %+v", order.RefundReason)
	}
	if len(gateway.calls) != 1 {
		t.Fatalf("expected one gateway call got %d", len(gateway.calls))
	}
	// nil amount lets the gateway refund the full charge.
	if gateway.calls[0].amountCents != nil {
		t.Fatalf("expected nil gateway amount got %d", *gateway.calls[0].amountCents)
	}
	if gateway.calls[0].paymentIntentID != "pi_123" {
		t.Fatalf("unexpected payment intent %q", gateway.calls[0].paymentIntentID)
	}
}

func TestCreateRefundWithoutCapturedPayment(t *testing.T) {
	order := paidOrder(enums.OrderStatusConfirmed)
	order.PaymentIntentID = nil
	repo := &stubOrdersRepo{order: order}
	gateway := &fakeStripeClient{}
	svc := newTestService(t, repo, &stubLedger{}, gateway, time.Now())

	_, err := svc.CreateRefund(context.Background(), order.ID, "", nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
	if len(gateway.calls) != 0 {
		t.Fatal("gateway must not be called")
	}
}

func TestCreateRefundAmountExceedsTotal(t *testing.T) {
	repo := &stubOrdersRepo{order: paidOrder(enums.OrderStatusConfirmed)}
	svc := newTestService(t, repo, &stubLedger{}, &fakeStripeClient{}, time.Now())

	amount := 2000
	_, err := svc.CreateRefund(context.Background(), repo.order.ID, "", &amount)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCreateRefundWrongStatus(t *testing.T) {
	repo := &stubOrdersRepo{order: paidOrder(enums.OrderStatusPending)}
	svc := newTestService(t, repo, &stubLedger{}, &fakeStripeClient{}, time.Now())

	_, err := svc.CreateRefund(context.Background(), repo.order.ID, "", nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCreateRefundGatewayFailureLeavesOrderUntouched(t *testing.T) {
	repo := &stubOrdersRepo{order: paidOrder(enums.OrderStatusConfirmed)}
	gateway := &fakeStripeClient{err: errors.New("stripe is down")}
	svc := newTestService(t, repo, &stubLedger{}, gateway, time.Now())

	_, err := svc.CreateRefund(context.Background(), repo.order.ID, "", nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("unexpected error %v", err)
	}
	if repo.orderUpdates != nil {
		t.Fatalf("no row update expected, got %+v", repo.orderUpdates)
	}
	if repo.order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("status must not change, got %s", repo.order.Status)
	}
}

func TestRequestReturnWithinWindow(t *testing.T) {
	now := time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)
	deliveredAt := now.Add(-3 * 24 * time.Hour)
	order := paidOrder(enums.OrderStatusDelivered)
	order.DeliveredAt = &deliveredAt
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubLedger{}, &fakeStripeClient{}, now)

	out, err := svc.RequestReturn(context.Background(), order.ID, order.UserID, "wrong size")
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if out.Status != enums.OrderStatusReturnRequested {
		t.Fatalf("expected return_requested got %s", out.Status)
	}
	if out.ReturnRequestedAt == nil {
		t.Fatal("expected return_requested_at set")
	}
}

func TestRequestReturnWindowExpired(t *testing.T) {
	now := time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)
	deliveredAt := now.Add(-10 * 24 * time.Hour)
	order := paidOrder(enums.OrderStatusDelivered)
	order.DeliveredAt = &deliveredAt
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubLedger{}, &fakeStripeClient{}, now)

	_, err := svc.RequestReturn(context.Background(), order.ID, order.UserID, "wrong size")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
	if typed.Message() != "return window expired, order was delivered 10 days ago" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestRequestReturnFallsBackToUpdatedAt(t *testing.T) {
	now := time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)
	order := paidOrder(enums.OrderStatusDelivered)
	order.DeliveredAt = nil
	order.UpdatedAt = now.Add(-2 * 24 * time.Hour)
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubLedger{}, &fakeStripeClient{}, now)

	out, err := svc.RequestReturn(context.Background(), order.ID, order.UserID, "")
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if out.Status != enums.OrderStatusReturnRequested {
		t.Fatalf("expected return_requested got %s", out.Status)
	}
}

func TestRequestReturnOwnership(t *testing.T) {
	order := paidOrder(enums.OrderStatusDelivered)
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubLedger{}, &fakeStripeClient{}, time.Now())

	_, err := svc.RequestReturn(context.Background(), order.ID, uuid.New(), "")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestApproveReturnDoesNotRefund(t *testing.T) {
	order := paidOrder(enums.OrderStatusReturnRequested)
	repo := &stubOrdersRepo{order: order}
	gateway := &fakeStripeClient{}
	svc := newTestService(t, repo, &stubLedger{}, gateway, time.Now())

	out, err := svc.ApproveReturn(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if out.Status != enums.OrderStatusReturnApproved {
		t.Fatalf("expected return_approved got %s", out.Status)
	}
	if len(gateway.calls) != 0 {
		t.Fatal("approval must not touch the gateway")
	}
}

func TestRejectReturnRestoresDelivered(t *testing.T) {
	order := paidOrder(enums.OrderStatusReturnRequested)
	requestedAt := time.Now()
	order.ReturnRequestedAt = &requestedAt
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubLedger{}, &fakeStripeClient{}, time.Now())

	out, err := svc.RejectReturn(context.Background(), order.ID, "insufficient evidence")
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if out.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered got %s", out.Status)
	}
	if v, ok := repo.orderUpdates["return_requested_at"]; !ok || v != nil {
		t.Fatalf("expected return_requested_at cleared, got %+v", repo.orderUpdates)
	}
	if repo.orderUpdates["qc_notes"] != "insufficient evidence" {
		t.Fatalf("expected rejection reason recorded, got %+v", repo.orderUpdates["qc_notes"])
	}
}

func TestUserConfirmShippedPhotoValidation(t *testing.T) {
	order := paidOrder(enums.OrderStatusReturnApproved)
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubLedger{}, &fakeStripeClient{}, time.Now())

	_, err := svc.UserConfirmShipped(context.Background(), order.ID, order.UserID, ShipmentEvidenceInput{
		Description: "boxed and sealed",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Message() != "At least 1 photo is required" {
		t.Fatalf("unexpected error %v", err)
	}

	_, err = svc.UserConfirmShipped(context.Background(), order.ID, order.UserID, ShipmentEvidenceInput{
		Photos:      []string{"1", "2", "3", "4", "5", "6"},
		Description: "boxed and sealed",
	})
	typed = pkgerrors.As(err)
	if typed == nil || typed.Message() != "Maximum 5 photos allowed" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestUserConfirmShippedStoresEvidence(t *testing.T) {
	order := paidOrder(enums.OrderStatusReturnApproved)
	repo := &stubOrdersRepo{order: order}
	now := time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, repo, &stubLedger{}, &fakeStripeClient{}, now)

	provider := "UPS"
	out, err := svc.UserConfirmShipped(context.Background(), order.ID, order.UserID, ShipmentEvidenceInput{
		Photos:           []string{"https://cdn.example.com/p1.jpg"},
		Description:      "unworn, tags attached",
		ShippingProvider: &provider,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if out.Status != enums.OrderStatusReturnShipping {
		t.Fatalf("expected return_shipping got %s", out.Status)
	}
	if out.ReturnShippedAt == nil || !out.ReturnShippedAt.Equal(now) {
		t.Fatalf("unexpected return_shipped_at %+v", out.ReturnShippedAt)
	}
	if repo.orderUpdates["return_evidence_description"] != "unworn, tags attached" {
		t.Fatalf("evidence not stored: %+v", repo.orderUpdates)
	}
}

func TestAdminConfirmReceivedRefundsSubtotalOnly(t *testing.T) {
	order := paidOrder(enums.OrderStatusReturnShipping)
	repo := &stubOrdersRepo{order: order}
	gateway := &fakeStripeClient{refund: &stripe.Refund{ID: "re_sub"}}
	svc := newTestService(t, repo, &stubLedger{}, gateway, time.Now())

	out, err := svc.AdminConfirmReceived(context.Background(), order.ID, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if out.Status != enums.OrderStatusRefundPending {
		t.Fatalf("expected refund_pending got %s", out.Status)
	}
	if len(gateway.calls) != 1 {
		t.Fatalf("expected one gateway call got %d", len(gateway.calls))
	}
	// The shipping fee stays with the house: 500 subtotal, never the 1500 total.
	if gateway.calls[0].amountCents == nil || *gateway.calls[0].amountCents != 500 {
		t.Fatalf("unexpected gateway amount %+v", gateway.calls[0].amountCents)
	}
	if out.RefundAmountCents == nil || *out.RefundAmountCents != 500 {
		t.Fatalf("unexpected recorded amount %+v", out.RefundAmountCents)
	}
}

func TestAdminConfirmRefundCapsAtSubtotal(t *testing.T) {
	order := paidOrder(enums.OrderStatusReturnReceived)
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubLedger{}, &fakeStripeClient{}, time.Now())

	amount := decimal.NewFromFloat(20.00)
	_, err := svc.AdminConfirmRefund(context.Background(), order.ID, &amount)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestAdminConfirmRefundPartialAmount(t *testing.T) {
	order := paidOrder(enums.OrderStatusReturnReceived)
	repo := &stubOrdersRepo{order: order}
	gateway := &fakeStripeClient{refund: &stripe.Refund{ID: "re_partial"}}
	svc := newTestService(t, repo, &stubLedger{}, gateway, time.Now())

	amount := decimal.NewFromFloat(3.00)
	out, err := svc.AdminConfirmRefund(context.Background(), order.ID, &amount)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(gateway.calls) != 1 || gateway.calls[0].amountCents == nil || *gateway.calls[0].amountCents != 300 {
		t.Fatalf("unexpected gateway calls %+v", gateway.calls)
	}
	if out.RefundAmountCents == nil || *out.RefundAmountCents != 300 {
		t.Fatalf("unexpected recorded amount %+v", out.RefundAmountCents)
	}
}

func TestRejectQC(t *testing.T) {
	order := paidOrder(enums.OrderStatusReturnReceived)
	repo := &stubOrdersRepo{order: order}
	gateway := &fakeStripeClient{}
	svc := newTestService(t, repo, &stubLedger{}, gateway, time.Now())

	out, err := svc.RejectQC(context.Background(), order.ID, "item damaged by customer")
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if out.Status != enums.OrderStatusReturnRejected {
		t.Fatalf("expected return_rejected got %s", out.Status)
	}
	if len(gateway.calls) != 0 {
		t.Fatal("rejection must not refund")
	}
}

func TestHandleRefundSucceededRestoresStock(t *testing.T) {
	order := paidOrder(enums.OrderStatusRefundPending)
	refundID := "re_done"
	order.RefundID = &refundID
	repo := &stubOrdersRepo{order: order}
	ledger := &stubLedger{}
	svc := newTestService(t, repo, ledger, &fakeStripeClient{}, time.Now())

	if err := svc.HandleRefundSucceeded(context.Background(), refundID); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.order.Status != enums.OrderStatusRefunded {
		t.Fatalf("expected refunded got %s", repo.order.Status)
	}
	if len(ledger.rollbackCalls) != 1 {
		t.Fatalf("expected one rollback got %d", len(ledger.rollbackCalls))
	}

	// Replay: the order is already REFUNDED, nothing more happens.
	if err := svc.HandleRefundSucceeded(context.Background(), refundID); err != nil {
		t.Fatalf("replay should be a no-op, got %v", err)
	}
	if len(ledger.rollbackCalls) != 1 {
		t.Fatalf("stock restored twice: %d calls", len(ledger.rollbackCalls))
	}
}

func TestHandleRefundSucceededUnknownRefund(t *testing.T) {
	repo := &stubOrdersRepo{}
	svc := newTestService(t, repo, &stubLedger{}, &fakeStripeClient{}, time.Now())

	if err := svc.HandleRefundSucceeded(context.Background(), "re_unknown"); err != nil {
		t.Fatalf("unknown refund must be acknowledged, got %v", err)
	}
}

func TestHandleRefundFailedRevertsToConfirmed(t *testing.T) {
	order := paidOrder(enums.OrderStatusRefundPending)
	refundID := "re_fail"
	order.RefundID = &refundID
	repo := &stubOrdersRepo{order: order}
	ledger := &stubLedger{}
	svc := newTestService(t, repo, ledger, &fakeStripeClient{}, time.Now())

	if err := svc.HandleRefundFailed(context.Background(), refundID); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if repo.order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed got %s", repo.order.Status)
	}
	if len(ledger.rollbackCalls) != 0 {
		t.Fatal("failed refunds must not restore stock")
	}
	// The refund correlation id is kept for the retry.
	if repo.order.RefundID == nil || *repo.order.RefundID != refundID {
		t.Fatalf("refund id must survive the revert, got %+v", repo.order.RefundID)
	}
}

func TestCancelRefundReturnRoundTrip(t *testing.T) {
	// CONFIRMED -> REFUND_PENDING -> REFUNDED with stock restored at the end.
	order := paidOrder(enums.OrderStatusConfirmed)
	repo := &stubOrdersRepo{order: order}
	ledger := &stubLedger{}
	gateway := &fakeStripeClient{refund: &stripe.Refund{ID: "re_round"}}
	svc := newTestService(t, repo, ledger, gateway, time.Now())

	if _, err := svc.CreateRefund(context.Background(), order.ID, "changed my mind", nil); err != nil {
		t.Fatalf("create refund: %v", err)
	}
	if repo.order.Status != enums.OrderStatusRefundPending {
		t.Fatalf("expected refund_pending got %s", repo.order.Status)
	}
	if len(ledger.rollbackCalls) != 0 {
		t.Fatal("stock must not be restored before gateway confirmation")
	}

	if err := svc.HandleRefundSucceeded(context.Background(), "re_round"); err != nil {
		t.Fatalf("handle succeeded: %v", err)
	}
	if repo.order.Status != enums.OrderStatusRefunded {
		t.Fatalf("expected refunded got %s", repo.order.Status)
	}
	if len(ledger.rollbackCalls) != 1 {
		t.Fatalf("expected stock restored once got %d", len(ledger.rollbackCalls))
	}
}

func TestRefundStatusWithoutRefund(t *testing.T) {
	order := paidOrder(enums.OrderStatusDelivered)
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubLedger{}, &fakeStripeClient{}, time.Now())

	view, err := svc.RefundStatus(context.Background(), order.ID, order.UserID)
	if err != nil {
		t.Fatalf("refund status: %v", err)
	}
	if view.HasRefund {
		t.Fatal("order without refund reported has_refund")
	}
	if view.RefundID != nil || view.RefundAmountCents != nil {
		t.Fatalf("expected empty refund fields, got %+v", view)
	}
	if view.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered got %s", view.Status)
	}
}

func TestRefundStatusReportsRecordedRefund(t *testing.T) {
	order := paidOrder(enums.OrderStatusRefunded)
	refundID := "re_42"
	amount := 500
	reason := "requested_by_customer"
	refundedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	order.RefundID = &refundID
	order.RefundAmountCents = &amount
	order.RefundReason = &reason
	order.RefundedAt = &refundedAt
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubLedger{}, &fakeStripeClient{}, time.Now())

	view, err := svc.RefundStatus(context.Background(), order.ID, order.UserID)
	if err != nil {
		t.Fatalf("refund status: %v", err)
	}
	if !view.HasRefund {
		t.Fatal("expected has_refund")
	}
	if view.RefundID == nil || *view.RefundID != refundID {
		t.Fatalf("expected refund id %s got %+v", refundID, view.RefundID)
	}
	if view.RefundAmountCents == nil || *view.RefundAmountCents != amount {
		t.Fatalf("expected amount %d got %+v", amount, view.RefundAmountCents)
	}
	if view.RefundedAt == nil || !view.RefundedAt.Equal(refundedAt) {
		t.Fatalf("expected refunded_at %s got %+v", refundedAt, view.RefundedAt)
	}
}

func TestRefundStatusOwnership(t *testing.T) {
	order := paidOrder(enums.OrderStatusRefunded)
	repo := &stubOrdersRepo{order: order}
	svc := newTestService(t, repo, &stubLedger{}, &fakeStripeClient{}, time.Now())

	_, err := svc.RefundStatus(context.Background(), order.ID, uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign order, got %v", err)
	}
}
