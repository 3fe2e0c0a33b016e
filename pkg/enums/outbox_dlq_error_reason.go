package enums

// OutboxDLQErrorReason records why an outbox event was parked in the
// dead letter table instead of being retried.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts marks events that exhausted their
	// publish retry budget.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable marks events that can never publish,
	// such as an unroutable event type or an undecodable payload.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var validOutboxDLQErrorReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
}

// IsValid reports whether the value is a known OutboxDLQErrorReason.
func (r OutboxDLQErrorReason) IsValid() bool {
	for _, candidate := range validOutboxDLQErrorReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
