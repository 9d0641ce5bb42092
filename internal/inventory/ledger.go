package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/miravelle/modora-backend/pkg/db/models"
	pkgerrors "github.com/miravelle/modora-backend/pkg/errors"
	"github.com/miravelle/modora-backend/pkg/logger"
)

// Line identifies one stock counter plus the quantity an order holds
// against it. The per-size counter is selected by ProductSizeID when known,
// or by (ProductID, Size) for order lines that only snapshot the size name.
// With neither, the product-level counter is used.
type Line struct {
	ProductID     uuid.UUID
	ProductSizeID *uuid.UUID
	ProductName   string
	Size          *string
	Quantity      int
}

// Shortage describes one line whose counter cannot cover the requested
// quantity at check time.
type Shortage struct {
	ProductName string
	Size        *string
	Requested   int
	Available   int
}

func (s Shortage) String() string {
	if s.Size != nil {
		return fmt.Sprintf("%s (size %s): only %d left", s.ProductName, *s.Size, s.Available)
	}
	return fmt.Sprintf("%s: only %d left", s.ProductName, s.Available)
}

// Ledger adjusts stock counters inside order transactions. Check runs at
// order creation; Deduct runs at payment confirmation; Rollback runs when a
// paid order is cancelled or refunded before delivery.
type Ledger interface {
	Check(ctx context.Context, tx *gorm.DB, lines []Line) ([]Shortage, error)
	Deduct(ctx context.Context, tx *gorm.DB, lines []Line) error
	Rollback(ctx context.Context, tx *gorm.DB, lines []Line) error
}

type ledger struct {
	logg *logger.Logger
}

// NewLedger builds the stock ledger.
func NewLedger(logg *logger.Logger) (Ledger, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ledger{logg: logg}, nil
}

func (l *ledger) Check(ctx context.Context, tx *gorm.DB, lines []Line) ([]Shortage, error) {
	var shortages []Shortage
	for _, line := range lines {
		available, err := l.available(ctx, tx, line)
		if err != nil {
			return nil, err
		}
		if available < line.Quantity {
			shortages = append(shortages, Shortage{
				ProductName: line.ProductName,
				Size:        line.Size,
				Requested:   line.Quantity,
				Available:   available,
			})
		}
	}
	return shortages, nil
}

// Deduct subtracts each line's quantity from its counter. A counter that
// goes negative is logged and left as-is; a single bad line never blocks the
// payment confirmation that triggered the deduction.
func (l *ledger) Deduct(ctx context.Context, tx *gorm.DB, lines []Line) error {
	for _, line := range lines {
		if err := l.adjust(ctx, tx, line, -line.Quantity); err != nil {
			lineCtx := l.logg.WithFields(ctx, map[string]any{
				"product_id": line.ProductID.String(),
				"quantity":   line.Quantity,
			})
			l.logg.Warn(lineCtx, fmt.Sprintf("stock deduction failed for %s: %v", line.ProductName, err))
			continue
		}
		available, err := l.available(ctx, tx, line)
		if err != nil {
			continue
		}
		if available < 0 {
			lineCtx := l.logg.WithFields(ctx, map[string]any{
				"product_id": line.ProductID.String(),
				"stock":      available,
			})
			l.logg.Warn(lineCtx, fmt.Sprintf("stock for %s went negative after deduction", line.ProductName))
		}
	}
	return nil
}

// Rollback returns each line's quantity to its counter. Failures are logged
// and skipped so one missing product cannot abort a cancellation.
func (l *ledger) Rollback(ctx context.Context, tx *gorm.DB, lines []Line) error {
	for _, line := range lines {
		if err := l.adjust(ctx, tx, line, line.Quantity); err != nil {
			lineCtx := l.logg.WithFields(ctx, map[string]any{
				"product_id": line.ProductID.String(),
				"quantity":   line.Quantity,
			})
			l.logg.Warn(lineCtx, fmt.Sprintf("stock rollback failed for %s: %v", line.ProductName, err))
		}
	}
	return nil
}

func (l *ledger) available(ctx context.Context, tx *gorm.DB, line Line) (int, error) {
	if query, ok := sizeQuery(line); ok {
		var size models.ProductSize
		if err := query(tx.WithContext(ctx)).Select("stock_quantity").First(&size).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return 0, pkgerrors.Newf(pkgerrors.CodeNotFound, "product size not found for %s", line.ProductName)
			}
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product size stock")
		}
		return size.StockQuantity, nil
	}

	var product models.Product
	if err := tx.WithContext(ctx).Select("stock").Where("id = ?", line.ProductID).First(&product).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, pkgerrors.Newf(pkgerrors.CodeNotFound, "product not found for %s", line.ProductName)
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stock")
	}
	return product.Stock, nil
}

func (l *ledger) adjust(ctx context.Context, tx *gorm.DB, line Line, delta int) error {
	if query, ok := sizeQuery(line); ok {
		res := query(tx.WithContext(ctx).Model(&models.ProductSize{})).
			UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("product size not found for %s", line.ProductName)
		}
		return nil
	}

	res := tx.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", line.ProductID).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %s not found", line.ProductID)
	}
	return nil
}

// sizeQuery resolves how to address the per-size counter, preferring the
// size row id over the snapshotted (product, size name) pair.
func sizeQuery(line Line) (func(*gorm.DB) *gorm.DB, bool) {
	if line.ProductSizeID != nil {
		id := *line.ProductSizeID
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("id = ?", id)
		}, true
	}
	if line.Size != nil && *line.Size != "" {
		productID, size := line.ProductID, *line.Size
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("product_id = ? AND size = ?", productID, size)
		}, true
	}
	return nil, false
}
