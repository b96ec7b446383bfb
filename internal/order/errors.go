package order

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("order not found")
	ErrEmptyCart           = errors.New("cart cannot be empty")
	ErrInactiveProduct     = errors.New("product is not active")
	ErrNoCaptureRef        = errors.New("order has no payment capture reference")
	ErrInvalidRefundAmount = errors.New("refund amount must be positive and at most the order total")
)

// CreationError wraps an unexpected failure during checkout. The message
// presented to callers is stable; the cause stays available for logs via
// Unwrap.
type CreationError struct {
	Cause error
}

func (e *CreationError) Error() string { return "order could not be created" }

func (e *CreationError) Unwrap() error { return e.Cause }

// CancellationError covers both precondition failures (Current holds the
// offending status) and failures while unwinding the order, e.g. a refund
// the payment collaborator rejected.
type CancellationError struct {
	Current string
	Cause   error
}

func (e *CancellationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("order cancellation failed: %v", e.Cause)
	}
	return fmt.Sprintf("order in status %q cannot be cancelled", e.Current)
}

func (e *CancellationError) Unwrap() error { return e.Cause }
