package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// Transaction records a gateway payment attempt for an order. PaymentID is
// the gateway order id and is the idempotency key for verification.
type Transaction struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	CustomerID      uuid.UUID               `gorm:"column:customer_id;type:uuid;not null"`
	PaymentID       string                  `gorm:"column:payment_id;uniqueIndex;not null"`
	Provider        enums.PaymentProvider   `gorm:"column:provider;type:text;not null;default:'razorpay'"`
	Amount          decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency        enums.Currency          `gorm:"column:currency;type:text;not null;default:'INR'"`
	Status          enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending'"`
	GatewayResponse json.RawMessage         `gorm:"column:gateway_response;type:jsonb"`
	ErrorMessage    *string                 `gorm:"column:error_message"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
