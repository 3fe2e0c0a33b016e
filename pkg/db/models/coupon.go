package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// Coupon is a discount code applied to a cart at checkout.
type Coupon struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code              string             `gorm:"column:code;uniqueIndex;not null"`
	DiscountType      enums.DiscountType `gorm:"column:discount_type;type:discount_type;not null"`
	DiscountValue     decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinPurchaseAmount decimal.Decimal    `gorm:"column:min_purchase_amount;type:numeric(12,2);not null;default:0"`
	ValidFrom         time.Time          `gorm:"column:valid_from;not null"`
	ValidTo           time.Time          `gorm:"column:valid_to;not null"`
	IsActive          bool               `gorm:"column:is_active;not null;default:true"`
	UsageLimit        *int               `gorm:"column:usage_limit"`
	UsedCount         int                `gorm:"column:used_count;not null;default:0"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// DiscountAmount computes the discount for a cart total. Totals below the
// minimum purchase earn nothing; fixed discounts never exceed the total.
func (c Coupon) DiscountAmount(cartTotal decimal.Decimal) decimal.Decimal {
	if cartTotal.LessThan(c.MinPurchaseAmount) {
		return decimal.Zero
	}
	if c.DiscountType == enums.DiscountTypeFixed {
		if c.DiscountValue.GreaterThan(cartTotal) {
			return cartTotal
		}
		return c.DiscountValue
	}
	return c.DiscountValue.Div(decimal.NewFromInt(100)).Mul(cartTotal).Round(2)
}

// IsRedeemable reports whether the coupon can be attached at the given time.
func (c Coupon) IsRedeemable(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return false
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return false
	}
	return true
}
