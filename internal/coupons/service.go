package coupons

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

// Service validates coupons and resolves their discount for a cart total.
type Service interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	Validate(ctx context.Context, id uuid.UUID, cartTotal decimal.Decimal) (*models.Coupon, decimal.Decimal, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a coupon service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return s.repo.FindByCode(ctx, code)
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return s.repo.FindByID(ctx, id)
}

// Validate re-checks redeemability at spend time. A coupon that passed at
// attach time can still expire or run out of uses before checkout.
func (s *service) Validate(ctx context.Context, id uuid.UUID, cartTotal decimal.Decimal) (*models.Coupon, decimal.Decimal, error) {
	coupon, err := s.repo.FindByID(ctx, id)
	if err == gorm.ErrRecordNotFound {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	if err != nil {
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if !coupon.IsRedeemable(s.now()) {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeConflict, "coupon is not redeemable")
	}
	if cartTotal.LessThan(coupon.MinPurchaseAmount) {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeConflict, "cart total below coupon minimum").WithDetails(map[string]any{
			"minimum":  coupon.MinPurchaseAmount,
			"subtotal": cartTotal,
		})
	}
	return coupon, coupon.DiscountAmount(cartTotal), nil
}
