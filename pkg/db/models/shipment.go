package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// Shipment mirrors one carrier consignment for an order.
type Shipment struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	TrackingNumber   string               `gorm:"column:tracking_number;uniqueIndex;not null"`
	CarrierName      string               `gorm:"column:carrier_name;not null"`
	Status           enums.ShipmentStatus `gorm:"column:status;type:shipment_status;not null;default:'pre_transit'"`
	ShippedAt        *time.Time           `gorm:"column:shipped_at"`
	EstimatedArrival *time.Time           `gorm:"column:estimated_arrival"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
