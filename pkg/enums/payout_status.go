package enums

import "fmt"

// PayoutStatus tracks a seller payout request through settlement.
type PayoutStatus string

const (
	PayoutStatusRequested  PayoutStatus = "requested"
	PayoutStatusApproved   PayoutStatus = "approved"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusPaid       PayoutStatus = "paid"
	PayoutStatusRejected   PayoutStatus = "rejected"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusRequested,
	PayoutStatusApproved,
	PayoutStatusProcessing,
	PayoutStatusPaid,
	PayoutStatusRejected,
}

// ActivePayoutStatuses are the states that block a second payout for the
// same seller and order.
var ActivePayoutStatuses = []PayoutStatus{
	PayoutStatusApproved,
	PayoutStatusProcessing,
	PayoutStatusPaid,
}

// String implements fmt.Stringer.
func (s PayoutStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PayoutStatus.
func (s PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsActive reports whether the payout counts against the one-active-payout
// rule for its order.
func (s PayoutStatus) IsActive() bool {
	for _, candidate := range ActivePayoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
