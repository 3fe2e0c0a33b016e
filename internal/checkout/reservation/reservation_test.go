package reservation

import (
	"bytes"
	"context"
	"sort"
	"testing"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestReserveStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productA := seedProduct(t, db, "Ceramic Mug", 5)
	productB := seedProduct(t, db, "Desk Lamp", 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := ReserveStock(ctx, tx, []StockRequest{
			{ProductID: productA, Qty: 3},
			{ProductID: productB, Qty: 1},
			{ProductID: productA, Qty: 2},
		})
		if err != nil {
			return err
		}
		if len(locked) != 2 {
			t.Fatalf("expected 2 locked rows, got %d", len(locked))
		}
		if locked[productA] == nil || locked[productA].Name != "Ceramic Mug" {
			t.Fatalf("locked row missing for %s", productA)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	assertStock(t, db, productA, 0)
	assertStock(t, db, productB, 0)
}

func TestReserveStockShortfallRollsBackEverything(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productA := seedProduct(t, db, "Ceramic Mug", 5)
	productB := seedProduct(t, db, "Desk Lamp", 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := ReserveStock(ctx, tx, []StockRequest{
			{ProductID: productA, Qty: 4},
			{ProductID: productB, Qty: 2},
		})
		return err
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	// The first decrement must have rolled back with the transaction.
	assertStock(t, db, productA, 5)
	assertStock(t, db, productB, 1)
}

func TestReserveStockInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, "Ceramic Mug", 5)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := ReserveStock(ctx, tx, []StockRequest{{ProductID: product, Qty: 0}})
		return err
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReserveStockLocksInProductIDOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ids := []uuid.UUID{
		seedProduct(t, db, "Ceramic Mug", 5),
		seedProduct(t, db, "Desk Lamp", 5),
		seedProduct(t, db, "Wall Clock", 5),
	}

	var lockOrder []uuid.UUID
	err := db.Callback().Query().After("gorm:query").Register("capture_lock_order", func(d *gorm.DB) {
		if d.Statement.Table != "products" || len(d.Statement.Vars) == 0 {
			return
		}
		switch v := d.Statement.Vars[0].(type) {
		case uuid.UUID:
			lockOrder = append(lockOrder, v)
		case string:
			if id, err := uuid.Parse(v); err == nil {
				lockOrder = append(lockOrder, id)
			}
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	// Present the requests in descending id order; the rows must still be
	// locked ascending so two concurrent checkouts over the same products
	// cannot wait on each other in a cycle.
	requests := make([]StockRequest, 0, len(ids))
	sorted := append([]uuid.UUID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i][:], sorted[j][:]) < 0 })
	for i := len(sorted) - 1; i >= 0; i-- {
		requests = append(requests, StockRequest{ProductID: sorted[i], Qty: 1})
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := ReserveStock(ctx, tx, requests)
		return err
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if len(lockOrder) != len(sorted) {
		t.Fatalf("expected %d lock reads, saw %d", len(sorted), len(lockOrder))
	}
	for i := range sorted {
		if lockOrder[i] != sorted[i] {
			t.Fatalf("lock order %v, want ascending %v", lockOrder, sorted)
		}
	}

	// The caller's slice must not be reordered under it.
	if requests[0].ProductID != sorted[len(sorted)-1] {
		t.Fatal("input slice was mutated")
	}
}

func TestReleaseStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, "Ceramic Mug", 2)

	err := db.Transaction(func(tx *gorm.DB) error {
		return ReleaseStock(ctx, tx, []StockRequest{{ProductID: product, Qty: 3}})
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	assertStock(t, db, product, 5)
}

func seedProduct(t *testing.T, db *gorm.DB, name string, stock int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:            uuid.New(),
		SellerID:      uuid.New(),
		Name:          name,
		Price:         decimal.RequireFromString("49.99"),
		StockQuantity: stock,
		IsActive:      true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func assertStock(t *testing.T, db *gorm.DB, productID uuid.UUID, want int) {
	t.Helper()
	var product models.Product
	if err := db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.StockQuantity != want {
		t.Fatalf("product %s stock = %d, want %d", productID, product.StockQuantity, want)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reservation_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("migrate products: %v", err)
	}
	return db
}
