package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/internal/coupons"
	product "github.com/vendorahq/vendora-backend/internal/products"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	"github.com/vendorahq/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
)

func TestAddItemCreatesCartAndUpserts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	customerID := uuid.New()
	p := seedProduct(t, db, "100.00", 10, true)

	if err := svc.AddItem(ctx, customerID, p.ID, 2); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := svc.AddItem(ctx, customerID, p.ID, 3); err != nil {
		t.Fatalf("add item again: %v", err)
	}

	view, err := svc.Get(ctx, customerID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(view.Cart.Items) != 1 {
		t.Fatalf("expected a single merged line, got %d", len(view.Cart.Items))
	}
	if view.Cart.Items[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", view.Cart.Items[0].Quantity)
	}
	if !view.Subtotal.Equal(decimal.RequireFromString("500.00")) {
		t.Fatalf("unexpected subtotal %s", view.Subtotal)
	}
}

func TestAddItemValidatesProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	customerID := uuid.New()

	if err := svc.AddItem(ctx, customerID, uuid.New(), 1); pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for missing product, got %v", err)
	}

	inactive := seedProduct(t, db, "50.00", 10, false)
	if err := svc.AddItem(ctx, customerID, inactive.ID, 1); pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for inactive product, got %v", err)
	}

	scarce := seedProduct(t, db, "50.00", 2, true)
	if err := svc.AddItem(ctx, customerID, scarce.ID, 3); pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for insufficient stock, got %v", err)
	}
	if err := svc.AddItem(ctx, customerID, scarce.ID, 0); pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}
}

func TestGetUsesDiscountPrice(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	customerID := uuid.New()

	discounted := seedProduct(t, db, "200.00", 10, true)
	sale := decimal.RequireFromString("150.00")
	if err := db.Model(&models.Product{}).Where("id = ?", discounted.ID).
		Update("discount_price", sale).Error; err != nil {
		t.Fatalf("set discount price: %v", err)
	}

	if err := svc.AddItem(ctx, customerID, discounted.ID, 2); err != nil {
		t.Fatalf("add item: %v", err)
	}

	view, err := svc.Get(ctx, customerID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if !view.Subtotal.Equal(decimal.RequireFromString("300.00")) {
		t.Fatalf("subtotal should use discount price, got %s", view.Subtotal)
	}
}

func TestRemoveItem(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	customerID := uuid.New()
	p := seedProduct(t, db, "75.00", 5, true)

	if err := svc.AddItem(ctx, customerID, p.ID, 1); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := svc.RemoveItem(ctx, customerID, p.ID); err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if err := svc.RemoveItem(ctx, customerID, p.ID); pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for absent line, got %v", err)
	}

	view, err := svc.Get(ctx, customerID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(view.Cart.Items) != 0 {
		t.Fatalf("cart should be empty, has %d items", len(view.Cart.Items))
	}
}

func TestApplyCouponComputesDiscount(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	customerID := uuid.New()
	p := seedProduct(t, db, "100.00", 10, true)
	seedCoupon(t, db, models.Coupon{
		Code:          "SAVE10",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: decimal.RequireFromString("10"),
	})

	if err := svc.AddItem(ctx, customerID, p.ID, 3); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := svc.ApplyCoupon(ctx, customerID, "SAVE10"); err != nil {
		t.Fatalf("apply coupon: %v", err)
	}

	view, err := svc.Get(ctx, customerID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if view.Cart.CouponID == nil {
		t.Fatal("coupon should be attached to the cart")
	}
	if !view.Discount.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("unexpected discount %s", view.Discount)
	}
	if !view.Total.Equal(decimal.RequireFromString("270.00")) {
		t.Fatalf("unexpected total %s", view.Total)
	}
}

func TestApplyCouponRejectsIneligibleCart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	customerID := uuid.New()
	p := seedProduct(t, db, "100.00", 10, true)
	seedCoupon(t, db, models.Coupon{
		Code:              "BIGSPEND",
		DiscountType:      enums.DiscountTypeFixed,
		DiscountValue:     decimal.RequireFromString("50.00"),
		MinPurchaseAmount: decimal.RequireFromString("500.00"),
	})
	expired := seedCoupon(t, db, models.Coupon{
		Code:          "EXPIRED",
		DiscountType:  enums.DiscountTypeFixed,
		DiscountValue: decimal.RequireFromString("50.00"),
	})
	if err := db.Model(&models.Coupon{}).Where("id = ?", expired.ID).
		Update("valid_to", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("expire coupon: %v", err)
	}

	if err := svc.AddItem(ctx, customerID, p.ID, 1); err != nil {
		t.Fatalf("add item: %v", err)
	}

	if err := svc.ApplyCoupon(ctx, customerID, "BIGSPEND"); pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict below minimum purchase, got %v", err)
	}
	if err := svc.ApplyCoupon(ctx, customerID, "EXPIRED"); pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for expired coupon, got %v", err)
	}
	if err := svc.ApplyCoupon(ctx, customerID, "NOSUCH"); pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown code, got %v", err)
	}

	view, err := svc.Get(ctx, customerID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if view.Cart.CouponID != nil {
		t.Fatal("no coupon should have been attached")
	}
}

func TestRemoveCoupon(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	customerID := uuid.New()
	p := seedProduct(t, db, "600.00", 5, true)
	seedCoupon(t, db, models.Coupon{
		Code:          "FLAT100",
		DiscountType:  enums.DiscountTypeFixed,
		DiscountValue: decimal.RequireFromString("100.00"),
	})

	if err := svc.AddItem(ctx, customerID, p.ID, 1); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := svc.ApplyCoupon(ctx, customerID, "FLAT100"); err != nil {
		t.Fatalf("apply coupon: %v", err)
	}
	if err := svc.RemoveCoupon(ctx, customerID); err != nil {
		t.Fatalf("remove coupon: %v", err)
	}

	view, err := svc.Get(ctx, customerID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if view.Cart.CouponID != nil {
		t.Fatal("coupon should be detached")
	}
	if !view.Discount.IsZero() {
		t.Fatalf("discount should be zero, got %s", view.Discount)
	}
}

func seedProduct(t *testing.T, db *gorm.DB, price string, stock int, active bool) models.Product {
	t.Helper()
	p := models.Product{
		ID:            uuid.New(),
		SellerID:      uuid.New(),
		Name:          "Widget",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      active,
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func seedCoupon(t *testing.T, db *gorm.DB, coupon models.Coupon) models.Coupon {
	t.Helper()
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	coupon.IsActive = true
	if coupon.ValidFrom.IsZero() {
		coupon.ValidFrom = time.Now().Add(-time.Hour)
	}
	if coupon.ValidTo.IsZero() {
		coupon.ValidTo = time.Now().Add(time.Hour)
	}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return coupon
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), product.NewRepository(db), coupons.NewRepository(db))
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Cart{}, &models.CartItem{}, &models.Product{}, &models.Coupon{}); err != nil {
		t.Fatalf("migrate cart: %v", err)
	}
	return db
}
