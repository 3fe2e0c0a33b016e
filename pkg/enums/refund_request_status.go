package enums

import "fmt"

// RefundRequestStatus tracks a refund request through the gateway.
type RefundRequestStatus string

const (
	RefundRequestStatusPending    RefundRequestStatus = "pending"
	RefundRequestStatusProcessing RefundRequestStatus = "processing"
	RefundRequestStatusSuccess    RefundRequestStatus = "success"
	RefundRequestStatusFailed     RefundRequestStatus = "failed"
)

var validRefundRequestStatuses = []RefundRequestStatus{
	RefundRequestStatusPending,
	RefundRequestStatusProcessing,
	RefundRequestStatusSuccess,
	RefundRequestStatusFailed,
}

// String implements fmt.Stringer.
func (s RefundRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RefundRequestStatus.
func (s RefundRequestStatus) IsValid() bool {
	for _, candidate := range validRefundRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRefundRequestStatus converts raw input into a RefundRequestStatus.
func ParseRefundRequestStatus(value string) (RefundRequestStatus, error) {
	for _, candidate := range validRefundRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund request status %q", value)
}
