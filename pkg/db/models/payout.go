package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// Payout is a seller settlement for one delivered order. At most one payout
// in an active status may exist per (seller, order).
type Payout struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	SellerID            uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	OrderID             uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	Amount              decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	CommissionAmount    decimal.Decimal    `gorm:"column:commission_amount;type:numeric(12,2);not null"`
	Status              enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'requested'"`
	BankDetailsSnapshot *string            `gorm:"column:bank_details_snapshot"`
	AdminNote           *string            `gorm:"column:admin_note"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
