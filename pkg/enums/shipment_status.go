package enums

import "fmt"

// ShipmentStatus mirrors the carrier tracking states we consume.
type ShipmentStatus string

const (
	ShipmentStatusPreTransit     ShipmentStatus = "pre_transit"
	ShipmentStatusInTransit      ShipmentStatus = "in_transit"
	ShipmentStatusOutForDelivery ShipmentStatus = "out_for_delivery"
	ShipmentStatusDelivered      ShipmentStatus = "delivered"
	ShipmentStatusFailure        ShipmentStatus = "failure"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusPreTransit,
	ShipmentStatusInTransit,
	ShipmentStatusOutForDelivery,
	ShipmentStatusDelivered,
	ShipmentStatusFailure,
}

// String implements fmt.Stringer.
func (s ShipmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShipmentStatus.
func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the carrier will not update this shipment again.
func (s ShipmentStatus) IsTerminal() bool {
	return s == ShipmentStatusDelivered || s == ShipmentStatusFailure
}

// BlocksCancellation reports whether the shipment has progressed far enough
// that the order can no longer be cancelled or refunded.
func (s ShipmentStatus) BlocksCancellation() bool {
	return s == ShipmentStatusOutForDelivery || s == ShipmentStatusDelivered
}

// ParseShipmentStatus converts raw input into a ShipmentStatus.
func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}
