package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventSessionInitiated    PaymentEventType = "session_initiated"
	PaymentEventSessionFailed       PaymentEventType = "session_failed"
	PaymentEventAuthorized          PaymentEventType = "authorized"
	PaymentEventAuthorizationFailed PaymentEventType = "authorization_failed"
	PaymentEventExecuteRequest      PaymentEventType = "execute_request"
	PaymentEventExecuteResponse     PaymentEventType = "execute_response"
	PaymentEventExecuteFailed       PaymentEventType = "execute_failed"
	PaymentEventPollTransition      PaymentEventType = "poll_transition"
	PaymentEventOrderConfirmed      PaymentEventType = "order_confirmed"
	PaymentEventOrderFailed         PaymentEventType = "order_failed"
	PaymentEventReconcileTimedOut   PaymentEventType = "reconcile_timed_out"
	PaymentEventNotificationSent    PaymentEventType = "notification_sent"
	PaymentEventNotificationFailed  PaymentEventType = "notification_failed"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceGateway PaymentEventSource = "gateway"
	PaymentSourceBackend PaymentEventSource = "backend"
	PaymentSourceWidget  PaymentEventSource = "widget"
	PaymentSourceSystem  PaymentEventSource = "system"
)

// PaymentAudit is an immutable audit log entry for one checkout event.
// Audit writes are best-effort from the flow's perspective: a failed
// write is logged loudly but never fails the checkout itself.
type PaymentAudit struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AttemptID uuid.UUID `json:"attempt_id" db:"attempt_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	SessionID *string `json:"session_id,omitempty" db:"session_id"`
	PaymentID *string `json:"payment_id,omitempty" db:"payment_id"`
	InvoiceID *string `json:"invoice_id,omitempty" db:"invoice_id"`

	Amount   *int64  `json:"amount,omitempty" db:"amount"`
	Currency *string `json:"currency,omitempty" db:"currency"`

	OrderStatus  *string `json:"order_status,omitempty" db:"order_status"`
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(attemptID uuid.UUID, eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		AttemptID:   attemptID,
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetSession sets the gateway session ID
func (pa *PaymentAudit) SetSession(sessionID string) *PaymentAudit {
	pa.SessionID = &sessionID
	return pa
}

// SetPayment sets the backend payment ID
func (pa *PaymentAudit) SetPayment(paymentID string) *PaymentAudit {
	pa.PaymentID = &paymentID
	return pa
}

// SetInvoice sets our invoice reference
func (pa *PaymentAudit) SetInvoice(invoiceID string) *PaymentAudit {
	pa.InvoiceID = &invoiceID
	return pa
}

// SetAmount sets the charged amount in minor units with its currency
func (pa *PaymentAudit) SetAmount(amount Amount, currency string) *PaymentAudit {
	v := int64(amount)
	pa.Amount = &v
	pa.Currency = &currency
	return pa
}

// SetOrderStatus sets the backend order status observed by the poller
func (pa *PaymentAudit) SetOrderStatus(status OrderStatus) *PaymentAudit {
	s := string(status)
	pa.OrderStatus = &s
	return pa
}

// SetError sets the error message for failure events
func (pa *PaymentAudit) SetError(err error) *PaymentAudit {
	if err != nil {
		msg := err.Error()
		pa.ErrorMessage = &msg
	}
	return pa
}
