package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateTransaction  OutboxAggregateType = "transaction"
	AggregatePayout       OutboxAggregateType = "payout"
	AggregateRefund       OutboxAggregateType = "refund_request"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateTransaction,
	AggregatePayout,
	AggregateRefund,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated           OutboxEventType = "order_created"
	EventOrderCancelled         OutboxEventType = "order_cancelled"
	EventOrderDelivered         OutboxEventType = "order_delivered"
	EventPaymentReceived        OutboxEventType = "payment_received"
	EventPayoutApproved         OutboxEventType = "payout_approved"
	EventPayoutSkipped          OutboxEventType = "payout_skipped"
	EventPayoutFailedAdminAlert OutboxEventType = "payout_failed_admin_alert"
	EventRefundRequested        OutboxEventType = "refund_requested"
	EventRefundSucceeded        OutboxEventType = "refund_succeeded"
	EventRefundFailed           OutboxEventType = "refund_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderCancelled,
	EventOrderDelivered,
	EventPaymentReceived,
	EventPayoutApproved,
	EventPayoutSkipped,
	EventPayoutFailedAdminAlert,
	EventRefundRequested,
	EventRefundSucceeded,
	EventRefundFailed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
