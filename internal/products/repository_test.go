package product

import (
	"context"
	"testing"
	"time"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestListActivePaginates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	sellerID := uuid.New()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		product := models.Product{
			ID:            uuid.New(),
			SellerID:      sellerID,
			Name:          "Widget",
			Price:         decimal.RequireFromString("10.00"),
			StockQuantity: 3,
			IsActive:      true,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(&product).Error; err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}
	inactive := models.Product{
		ID:       uuid.New(),
		SellerID: sellerID,
		Name:     "Hidden",
		Price:    decimal.RequireFromString("10.00"),
		IsActive: false,
	}
	if err := db.Create(&inactive).Error; err != nil {
		t.Fatalf("seed inactive: %v", err)
	}

	first, err := repo.ListActive(ctx, pagination.Params{Limit: 3}, ListFilters{})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Products) != 3 || first.NextCursor == "" {
		t.Fatalf("unexpected first page: %d items, cursor %q", len(first.Products), first.NextCursor)
	}

	second, err := repo.ListActive(ctx, pagination.Params{Limit: 3, Cursor: first.NextCursor}, ListFilters{})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Products) != 2 || second.NextCursor != "" {
		t.Fatalf("unexpected second page: %d items, cursor %q", len(second.Products), second.NextCursor)
	}

	seen := map[uuid.UUID]bool{}
	for _, p := range append(first.Products, second.Products...) {
		if p.Name == "Hidden" {
			t.Fatal("inactive product leaked into listing")
		}
		if seen[p.ID] {
			t.Fatalf("product %s returned twice", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestListActiveFiltersBySeller(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	sellerA := uuid.New()
	sellerB := uuid.New()

	for _, sellerID := range []uuid.UUID{sellerA, sellerB} {
		product := models.Product{
			ID:       uuid.New(),
			SellerID: sellerID,
			Name:     "Widget",
			Price:    decimal.RequireFromString("10.00"),
			IsActive: true,
		}
		if err := db.Create(&product).Error; err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}

	list, err := repo.ListActive(ctx, pagination.Params{}, ListFilters{SellerID: &sellerA})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Products) != 1 || list.Products[0].SellerID != sellerA {
		t.Fatalf("unexpected filtered result: %+v", list.Products)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("migrate products: %v", err)
	}
	return db
}
