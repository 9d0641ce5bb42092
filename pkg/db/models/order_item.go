package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is the immutable line snapshot taken at checkout time. Catalog
// price changes never touch rows that already exist.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	ProductID      *uuid.UUID `gorm:"column:product_id;type:uuid"`
	ProductName    string     `gorm:"column:product_name;not null"`
	ProductImage   *string    `gorm:"column:product_image"`
	ProductSize    *string    `gorm:"column:product_size"`
	Quantity       int        `gorm:"column:quantity;not null"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	TotalCents     int        `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
