package inventory

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/miravelle/modora-backend/pkg/db/models"
	"github.com/miravelle/modora-backend/pkg/logger"
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  image_url TEXT,
  price_cents INTEGER NOT NULL,
  sale_price_cents INTEGER,
  stock INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	productSizes := `
CREATE TABLE IF NOT EXISTS product_sizes (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  size TEXT NOT NULL,
  stock_quantity INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(products).Error)
	require.NoError(t, db.Exec(productSizes).Error)
	return db
}

func testLedger(t *testing.T) Ledger {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "inventory-test", Output: io.Discard})
	ledger, err := NewLedger(logg)
	require.NoError(t, err)
	return ledger
}

func seedProduct(t *testing.T, db *gorm.DB, stock int) models.Product {
	t.Helper()
	product := models.Product{
		ID:         uuid.New(),
		Name:       "Canvas Tote",
		PriceCents: 2500,
		Stock:      stock,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func seedProductSize(t *testing.T, db *gorm.DB, productID uuid.UUID, size string, stock int) models.ProductSize {
	t.Helper()
	ps := models.ProductSize{
		ID:            uuid.New(),
		ProductID:     productID,
		Size:          size,
		StockQuantity: stock,
	}
	require.NoError(t, db.Create(&ps).Error)
	return ps
}

func TestCheckReportsShortages(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := testLedger(t)
	ctx := context.Background()

	product := seedProduct(t, db, 2)
	sized := seedProduct(t, db, 0)
	size := seedProductSize(t, db, sized.ID, "M", 1)
	sizeName := "M"

	shortages, err := ledger.Check(ctx, db, []Line{
		{ProductID: product.ID, ProductName: product.Name, Quantity: 5},
		{ProductID: sized.ID, ProductSizeID: &size.ID, ProductName: sized.Name, Size: &sizeName, Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, shortages, 2)

	assert.Equal(t, 5, shortages[0].Requested)
	assert.Equal(t, 2, shortages[0].Available)
	assert.Contains(t, shortages[1].String(), "size M")
	assert.Equal(t, "Canvas Tote (size M): only 1 left", shortages[1].String())
}

func TestCheckPassesWhenStockCovers(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := testLedger(t)

	product := seedProduct(t, db, 10)
	shortages, err := ledger.Check(context.Background(), db, []Line{
		{ProductID: product.ID, ProductName: product.Name, Quantity: 10},
	})
	require.NoError(t, err)
	assert.Empty(t, shortages)
}

func TestCheckMissingProduct(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := testLedger(t)

	_, err := ledger.Check(context.Background(), db, []Line{
		{ProductID: uuid.New(), ProductName: "Ghost", Quantity: 1},
	})
	require.Error(t, err)
}

func TestDeductSubtractsCounters(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := testLedger(t)
	ctx := context.Background()

	product := seedProduct(t, db, 5)
	sized := seedProduct(t, db, 0)
	size := seedProductSize(t, db, sized.ID, "L", 4)

	err := ledger.Deduct(ctx, db, []Line{
		{ProductID: product.ID, ProductName: product.Name, Quantity: 2},
		{ProductID: sized.ID, ProductSizeID: &size.ID, ProductName: sized.Name, Quantity: 3},
	})
	require.NoError(t, err)

	var gotProduct models.Product
	require.NoError(t, db.First(&gotProduct, "id = ?", product.ID).Error)
	assert.Equal(t, 3, gotProduct.Stock)

	var gotSize models.ProductSize
	require.NoError(t, db.First(&gotSize, "id = ?", size.ID).Error)
	assert.Equal(t, 1, gotSize.StockQuantity)
}

func TestDeductAllowsNegativeStock(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := testLedger(t)

	product := seedProduct(t, db, 1)
	err := ledger.Deduct(context.Background(), db, []Line{
		{ProductID: product.ID, ProductName: product.Name, Quantity: 4},
	})
	require.NoError(t, err)

	var got models.Product
	require.NoError(t, db.First(&got, "id = ?", product.ID).Error)
	assert.Equal(t, -3, got.Stock)
}

func TestDeductSkipsMissingProducts(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := testLedger(t)

	product := seedProduct(t, db, 5)
	err := ledger.Deduct(context.Background(), db, []Line{
		{ProductID: uuid.New(), ProductName: "Ghost", Quantity: 1},
		{ProductID: product.ID, ProductName: product.Name, Quantity: 2},
	})
	require.NoError(t, err)

	var got models.Product
	require.NoError(t, db.First(&got, "id = ?", product.ID).Error)
	assert.Equal(t, 3, got.Stock)
}

func TestRollbackRestoresCounters(t *testing.T) {
	db := setupInventoryTestDB(t)
	ledger := testLedger(t)
	ctx := context.Background()

	product := seedProduct(t, db, 3)
	sized := seedProduct(t, db, 0)
	size := seedProductSize(t, db, sized.ID, "S", 0)

	err := ledger.Rollback(ctx, db, []Line{
		{ProductID: product.ID, ProductName: product.Name, Quantity: 2},
		{ProductID: sized.ID, ProductSizeID: &size.ID, ProductName: sized.Name, Quantity: 1},
	})
	require.NoError(t, err)

	var gotProduct models.Product
	require.NoError(t, db.First(&gotProduct, "id = ?", product.ID).Error)
	assert.Equal(t, 5, gotProduct.Stock)

	var gotSize models.ProductSize
	require.NoError(t, db.First(&gotSize, "id = ?", size.ID).Error)
	assert.Equal(t, 1, gotSize.StockQuantity)
}
