package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// OrderCreatedEvent signals a checkout converted into an order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	SellerIDs     []uuid.UUID         `json:"seller_ids"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
}

// OrderCancelledEvent is emitted whenever a customer cancels an order that
// has not gone out for delivery.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerID  uuid.UUID `json:"customer_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// OrderDeliveredEvent marks final delivery; the payout clock starts here.
type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerID  uuid.UUID `json:"customer_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// PaymentReceivedEvent is emitted after a gateway payment verifies.
type PaymentReceivedEvent struct {
	OrderID       uuid.UUID       `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	PaymentID     string          `json:"payment_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// PayoutApprovedEvent reports a seller settlement was approved.
type PayoutApprovedEvent struct {
	PayoutID   uuid.UUID       `json:"payout_id"`
	SellerID   uuid.UUID       `json:"seller_id"`
	OrderID    uuid.UUID       `json:"order_id"`
	Gross      decimal.Decimal `json:"gross"`
	Commission decimal.Decimal `json:"commission"`
	Net        decimal.Decimal `json:"net"`
}

// PayoutSkippedEvent reports why a seller earned no payout for an order.
type PayoutSkippedEvent struct {
	SellerID uuid.UUID       `json:"seller_id"`
	OrderID  uuid.UUID       `json:"order_id"`
	Net      decimal.Decimal `json:"net"`
	Reason   string          `json:"reason"`
}

// PayoutFailedAdminAlertEvent asks operators to look at a payout failure.
type PayoutFailedAdminAlertEvent struct {
	SellerID    uuid.UUID `json:"seller_id"`
	OrderID     uuid.UUID `json:"order_id"`
	FailedCount int       `json:"failed_count"`
	Reason      string    `json:"reason"`
}

// RefundRequestedEvent queues a refund for the async processor.
type RefundRequestedEvent struct {
	RefundRequestID uuid.UUID       `json:"refund_request_id"`
	OrderID         uuid.UUID       `json:"order_id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	Amount          decimal.Decimal `json:"amount"`
}

// RefundSucceededEvent reports a completed gateway refund.
type RefundSucceededEvent struct {
	RefundRequestID uuid.UUID       `json:"refund_request_id"`
	OrderID         uuid.UUID       `json:"order_id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	Amount          decimal.Decimal `json:"amount"`
	ProcessedAt     time.Time       `json:"processed_at"`
}

// RefundFailedEvent reports a refund that exhausted its attempts.
type RefundFailedEvent struct {
	RefundRequestID uuid.UUID `json:"refund_request_id"`
	OrderID         uuid.UUID `json:"order_id"`
	CustomerID      uuid.UUID `json:"customer_id"`
	AttemptCount    int       `json:"attempt_count"`
	Error           string    `json:"error,omitempty"`
}
