package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type couponFinder interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
}

// Service exposes cart mutation and read operations.
type Service interface {
	Get(ctx context.Context, customerID uuid.UUID) (*CartView, error)
	AddItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, customerID, productID uuid.UUID) error
	ApplyCoupon(ctx context.Context, customerID uuid.UUID, code string) error
	RemoveCoupon(ctx context.Context, customerID uuid.UUID) error
}

// CartView is the cart plus derived pricing returned to the API.
type CartView struct {
	Cart     *models.Cart    `json:"cart"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

type service struct {
	repo     Repository
	products productLoader
	coupons  couponFinder
	now      func() time.Time
}

// NewService builds the cart service.
func NewService(repo Repository, products productLoader, coupons couponFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon finder required")
	}
	return &service{
		repo:     repo,
		products: products,
		coupons:  coupons,
		now:      time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, customerID uuid.UUID) (*CartView, error) {
	cart, err := s.findOrCreate(ctx, customerID)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, item := range cart.Items {
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			continue
		}
		subtotal = subtotal.Add(product.EffectivePrice().Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	discount := decimal.Zero
	if cart.CouponID != nil {
		if coupon, err := s.coupons.FindByID(ctx, *cart.CouponID); err == nil {
			discount = coupon.DiscountAmount(subtotal)
		}
	}

	return &CartView{
		Cart:     cart,
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}, nil
}

func (s *service) AddItem(ctx context.Context, customerID, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return pkgerrors.New(pkgerrors.CodeConflict, "product is not available")
	}
	if product.StockQuantity < quantity {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").WithDetails(map[string]any{
			"product_name": product.Name,
			"available":    product.StockQuantity,
		})
	}

	cart, err := s.findOrCreate(ctx, customerID)
	if err != nil {
		return err
	}

	existing, err := s.repo.FindItem(ctx, cart.ID, productID)
	if err == gorm.ErrRecordNotFound {
		return s.repo.CreateItem(ctx, &models.CartItem{
			ID:        uuid.New(),
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  quantity,
		})
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	return s.repo.UpdateItemQuantity(ctx, existing.ID, existing.Quantity+quantity)
}

func (s *service) RemoveItem(ctx context.Context, customerID, productID uuid.UUID) error {
	cart, err := s.findOrCreate(ctx, customerID)
	if err != nil {
		return err
	}
	item, err := s.repo.FindItem(ctx, cart.ID, productID)
	if err == gorm.ErrRecordNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	return s.repo.DeleteItem(ctx, item.ID)
}

func (s *service) ApplyCoupon(ctx context.Context, customerID uuid.UUID, code string) error {
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if !coupon.IsRedeemable(s.now()) {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon is not redeemable")
	}

	view, err := s.Get(ctx, customerID)
	if err != nil {
		return err
	}
	if view.Subtotal.LessThan(coupon.MinPurchaseAmount) {
		return pkgerrors.New(pkgerrors.CodeConflict, "cart total below coupon minimum").WithDetails(map[string]any{
			"minimum":  coupon.MinPurchaseAmount,
			"subtotal": view.Subtotal,
		})
	}
	id := coupon.ID
	return s.repo.SetCoupon(ctx, view.Cart.ID, &id)
}

func (s *service) RemoveCoupon(ctx context.Context, customerID uuid.UUID) error {
	cart, err := s.findOrCreate(ctx, customerID)
	if err != nil {
		return err
	}
	return s.repo.SetCoupon(ctx, cart.ID, nil)
}

func (s *service) findOrCreate(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	cart, err := s.repo.FindByCustomer(ctx, customerID)
	if err == gorm.ErrRecordNotFound {
		cart = &models.Cart{ID: uuid.New(), CustomerID: customerID}
		if cerr := s.repo.Create(ctx, cart); cerr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, cerr, "create cart")
		}
		return cart, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}
