package orders

import (
	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// transitions lists the allowed next statuses for each order status.
// Delivered only moves to returned; cancelled and returned are dead ends.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusProcessing, enums.OrderStatusCancelled, enums.OrderStatusReturned},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled, enums.OrderStatusReturned},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered, enums.OrderStatusReturned},
	enums.OrderStatusDelivered:  {enums.OrderStatusReturned},
	enums.OrderStatusCancelled:  {},
	enums.OrderStatusReturned:   {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// itemStatusFor maps an order status onto the item vocabulary. Statuses the
// two models share force-sync every item; returned has no item counterpart
// and leaves items alone.
func itemStatusFor(status enums.OrderStatus) (enums.OrderItemStatus, bool) {
	switch status {
	case enums.OrderStatusPending:
		return enums.OrderItemStatusPending, true
	case enums.OrderStatusProcessing:
		return enums.OrderItemStatusProcessing, true
	case enums.OrderStatusShipped:
		return enums.OrderItemStatusShipped, true
	case enums.OrderStatusDelivered:
		return enums.OrderItemStatusDelivered, true
	case enums.OrderStatusCancelled:
		return enums.OrderItemStatusCancelled, true
	default:
		return "", false
	}
}
