package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the per-user pre-order state. It is created lazily on first access
// and its items are hard-deleted when an order is created from it.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// CartItem references a product plus an optional size with a cached unit
// price. The cached price is advisory; order creation re-reads the catalog.
type CartItem struct {
	ID             uuid.UUID    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID         uuid.UUID    `gorm:"column:cart_id;type:uuid;not null"`
	ProductID      uuid.UUID    `gorm:"column:product_id;type:uuid;not null"`
	ProductSizeID  *uuid.UUID   `gorm:"column:product_size_id;type:uuid"`
	Quantity       int          `gorm:"column:quantity;not null"`
	UnitPriceCents int          `gorm:"column:unit_price_cents;not null;default:0"`
	Product        *Product     `gorm:"foreignKey:ProductID"`
	ProductSize    *ProductSize `gorm:"foreignKey:ProductSizeID"`
	CreatedAt      time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}
