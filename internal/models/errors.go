package models

import "fmt"

// InvalidAmountError is a precondition violation on the pricing inputs.
// Fully recoverable by correcting the input; no network call was made.
type InvalidAmountError struct {
	Field string
	Value float64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount: %s=%g", e.Field, e.Value)
}

// IncompleteBookingDataError is a precondition violation on the booking
// payload. Execution refuses to issue any network call so no partial
// server-side order is ever created.
type IncompleteBookingDataError struct {
	BookingType BookingType
	Detail      string
}

func (e *IncompleteBookingDataError) Error() string {
	return fmt.Sprintf("incomplete %s booking data: %s", e.BookingType, e.Detail)
}

// GatewayUnavailableError indicates the payment gateway could not produce
// a session. Retry is a fresh user-initiated checkout, not automatic.
type GatewayUnavailableError struct {
	Err error
}

func (e *GatewayUnavailableError) Error() string {
	return fmt.Sprintf("payment gateway unavailable: %v", e.Err)
}

func (e *GatewayUnavailableError) Unwrap() error {
	return e.Err
}

// PaymentExecutionError carries the best available human-readable reason
// for a failed execution call: structured server message first, then an
// HTTP-status-derived default, then a transport default.
type PaymentExecutionError struct {
	Reason string
}

func (e *PaymentExecutionError) Error() string {
	return fmt.Sprintf("payment execution failed: %s", e.Reason)
}

// AttemptStateError rejects an operation that is out of order for the
// attempt's current state, e.g. executing before authorization or
// attaching the widget twice.
type AttemptStateError struct {
	State  AttemptState
	Detail string
}

func (e *AttemptStateError) Error() string {
	return fmt.Sprintf("attempt in state %s: %s", e.State, e.Detail)
}
