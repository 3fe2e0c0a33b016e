package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// OrderItem is a per-seller line item with snapshotted product data.
type OrderItem struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      *uuid.UUID            `gorm:"column:product_id;type:uuid"`
	SellerID       uuid.UUID             `gorm:"column:seller_id;type:uuid;not null;index"`
	ProductName    string                `gorm:"column:product_name;not null"`
	UnitPrice      decimal.Decimal       `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity       int                   `gorm:"column:quantity;not null"`
	Status         enums.OrderItemStatus `gorm:"column:status;type:order_item_status;not null;default:'pending'"`
	TrackingNumber *string               `gorm:"column:tracking_number"`
	CourierName    *string               `gorm:"column:courier_name"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// LineTotal returns unit price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
