package models

import (
	"time"

	"github.com/google/uuid"
)

// Product carries the catalog fields the lifecycle engine reads (price,
// stock) plus the denormalized display fields copied onto order items.
// Catalog CRUD lives outside this service.
type Product struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string    `gorm:"column:name;not null"`
	ImageURL       *string   `gorm:"column:image_url"`
	PriceCents     int       `gorm:"column:price_cents;not null"`
	SalePriceCents *int      `gorm:"column:sale_price_cents"`
	// Stock is the product-level counter used when the product has no size
	// variants. Out-of-band corrections may drive it negative.
	Stock     int           `gorm:"column:stock;not null;default:0"`
	Sizes     []ProductSize `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductSize is the per-size stock counter for sized products.
type ProductSize struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Size          string    `gorm:"column:size;not null"`
	StockQuantity int       `gorm:"column:stock_quantity;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
