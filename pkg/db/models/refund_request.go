package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// RefundRequest tracks a customer refund through the gateway, including
// retry bookkeeping for the async processor.
type RefundRequest struct {
	ID              uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index"`
	CustomerID      uuid.UUID                 `gorm:"column:customer_id;type:uuid;not null"`
	TransactionID   *uuid.UUID                `gorm:"column:transaction_id;type:uuid"`
	Amount          decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null"`
	Status          enums.RefundRequestStatus `gorm:"column:status;type:refund_request_status;not null;default:'pending'"`
	AttemptCount    int                       `gorm:"column:attempt_count;not null;default:0"`
	GatewayResponse json.RawMessage           `gorm:"column:gateway_response;type:jsonb"`
	ErrorMessage    *string                   `gorm:"column:error_message"`
	ProcessedAt     *time.Time                `gorm:"column:processed_at"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
