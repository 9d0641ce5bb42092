package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/miravelle/modora-backend/pkg/enums"
	"github.com/miravelle/modora-backend/pkg/types"
)

// Order is the single source of truth for the checkout, delivery and
// return/refund lifecycle. The shipping snapshot and totals are captured at
// creation and never recomputed afterwards.
type Order struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null"`

	ShippingName    string  `gorm:"column:shipping_name;not null"`
	ShippingPhone   string  `gorm:"column:shipping_phone;not null"`
	ShippingEmail   string  `gorm:"column:shipping_email;not null"`
	ShippingAddress string  `gorm:"column:shipping_address;not null"`
	Note            *string `gorm:"column:note"`

	SubtotalCents    int               `gorm:"column:subtotal_cents;not null"`
	ShippingFeeCents int               `gorm:"column:shipping_fee_cents;not null"`
	TotalAmountCents int               `gorm:"column:total_amount_cents;not null"`
	Status           enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`

	// PaymentIntentID is set once when the gateway confirms the checkout and
	// is the refund target from then on.
	PaymentIntentID *string `gorm:"column:payment_intent_id"`

	RefundID          *string    `gorm:"column:refund_id"`
	RefundAmountCents *int       `gorm:"column:refund_amount_cents"`
	RefundReason      *string    `gorm:"column:refund_reason"`
	RefundedAt        *time.Time `gorm:"column:refunded_at"`

	ReturnRequestedAt         *time.Time       `gorm:"column:return_requested_at"`
	ReturnEvidencePhotos      types.StringList `gorm:"column:return_evidence_photos;type:jsonb"`
	ReturnEvidenceVideo       *string          `gorm:"column:return_evidence_video"`
	ReturnEvidenceDescription *string          `gorm:"column:return_evidence_description"`
	ReturnShippingProvider    *string          `gorm:"column:return_shipping_provider"`
	ReturnTrackingNumber      *string          `gorm:"column:return_tracking_number"`
	ReturnShippedAt           *time.Time       `gorm:"column:return_shipped_at"`
	ReturnReceivedAt          *time.Time       `gorm:"column:return_received_at"`
	QCNotes                   *string          `gorm:"column:qc_notes"`

	ShippedAt   *time.Time `gorm:"column:shipped_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
