package payment

import "errors"

var (
	// ErrRetryLimitExceeded marks the fourth and later retry attempts.
	ErrRetryLimitExceeded = errors.New("payment retry limit exceeded")
	// ErrNotRefundable marks refund requests against non-completed or
	// already-refunding payments.
	ErrNotRefundable = errors.New("payment is not refundable")
)
