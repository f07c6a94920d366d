package models

import "encoding/json"

// OrderStatus is the backend-owned status of an order. The client never
// writes it - it is only observed via polling.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusConfirmed || s == OrderStatusFailed
}

// Order is the backend record of a booking-in-progress, keyed by payment ID.
// Created PENDING at execution time; moved to a terminal state by the
// backend at an indeterminate future time.
type Order struct {
	PaymentID   string          `json:"payment_id"`
	InvoiceID   string          `json:"invoice_id"`
	BookingType BookingType     `json:"booking_type"`
	Status      OrderStatus     `json:"status"`
	OrderData   json.RawMessage `json:"order,omitempty"`
}
