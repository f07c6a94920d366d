package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaymentSession is the single-use handle from the payment gateway that
// authorizes one hosted-widget interaction. Held in memory only for the
// lifetime of the checkout attempt, never persisted.
type PaymentSession struct {
	SessionID    string `json:"session_id"`
	CountryCode  string `json:"country_code"`
	CurrencyCode string `json:"currency_code"`
}

// AttemptState is the observable lifecycle state of one checkout attempt.
// awaiting_authorization is a valid resting state: if the hosted widget
// never calls back, the attempt simply stays there - no assumed failure.
type AttemptState string

const (
	AttemptAwaitingAuthorization AttemptState = "awaiting_authorization"
	AttemptAuthorized            AttemptState = "authorized"
	AttemptDeclined              AttemptState = "declined"
	AttemptExecuting             AttemptState = "executing"
	AttemptReconciling           AttemptState = "reconciling"
	AttemptConfirmed             AttemptState = "confirmed"
	AttemptFailed                AttemptState = "failed"
	AttemptTimedOut              AttemptState = "timed_out"
)

// IsTerminal reports whether the attempt has reached an end state.
func (s AttemptState) IsTerminal() bool {
	return s == AttemptConfirmed || s == AttemptFailed || s == AttemptTimedOut || s == AttemptDeclined
}

// CheckoutAttempt is the arena for one user-initiated pass through
// session -> widget -> execute -> reconciliation. All one-shot guards
// (widget latch, notification flag) live here, keyed by attempt ID,
// so concurrent attempts never share ambient state.
type CheckoutAttempt struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Session   *PaymentSession `json:"session"`
	Breakdown MoneyBreakdown  `json:"breakdown"`
	Payload   BookingPayload  `json:"payload"`

	State AttemptState `json:"state"`

	// Populated as the flow progresses.
	PaymentID   string `json:"payment_id,omitempty"`
	InvoiceID   string `json:"invoice_id"`
	RedirectURL string `json:"redirect_url,omitempty"`
	LastError   string `json:"last_error,omitempty"`

	// One-shot guards, scoped to this attempt.
	widgetAttached bool
	notified       bool

	mu sync.Mutex

	// notifyMu serializes confirmation dispatch. Held across the whole
	// check-send-mark sequence, which blocks on the network, so it is
	// separate from mu to keep state reads unblocked during a send.
	notifyMu sync.Mutex
}

// LockNotify acquires the dispatch mutex. Concurrent observations of a
// confirmed attempt serialize here so the check-send-mark sequence for
// the notification flag is atomic.
func (a *CheckoutAttempt) LockNotify() { a.notifyMu.Lock() }

// UnlockNotify releases the dispatch mutex.
func (a *CheckoutAttempt) UnlockNotify() { a.notifyMu.Unlock() }

// Lock acquires the attempt mutex. Handlers run concurrently even though
// the logical flow has a single writer, so state transitions go through it.
func (a *CheckoutAttempt) Lock() { a.mu.Lock() }

// Unlock releases the attempt mutex.
func (a *CheckoutAttempt) Unlock() { a.mu.Unlock() }

// AttachWidget trips the one-shot widget latch. The first call wins;
// every later call reports the latch already set so the hosted widget is
// never initialized twice for the same session.
func (a *CheckoutAttempt) AttachWidget() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.widgetAttached {
		return false
	}
	a.widgetAttached = true
	return true
}

// MarkNotified trips the one-shot notification flag. Returns false when
// the flag was already set.
func (a *CheckoutAttempt) MarkNotified() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.notified {
		return false
	}
	a.notified = true
	return true
}

// ResetNotified clears the notification flag. Only meaningful when a
// fresh observation session starts for the same confirmed order.
func (a *CheckoutAttempt) ResetNotified() {
	a.mu.Lock()
	a.notified = false
	a.mu.Unlock()
}

// Notified reports whether the confirmation notification was dispatched.
func (a *CheckoutAttempt) Notified() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.notified
}

// CreateAttemptRequest starts a checkout attempt. BaseAmount is a
// pointer for the same reason as QuoteRequest: zero is a valid base.
type CreateAttemptRequest struct {
	BaseAmount     *int64         `json:"base_amount" binding:"required"`
	CommissionRate *float64       `json:"commission_rate,omitempty"`
	VATRate        *float64       `json:"vat_rate,omitempty"`
	Currency       string         `json:"currency,omitempty"`
	Payload        BookingPayload `json:"payload" binding:"required"`
}

// WidgetInitParams is what the UI hands to the hosted payment widget.
// Produced exactly once per session by the attach latch.
type WidgetInitParams struct {
	SessionID    string   `json:"session_id"`
	CountryCode  string   `json:"country_code"`
	CurrencyCode string   `json:"currency_code"`
	Amount       string   `json:"amount"`
	PaymentOpts  []string `json:"payment_options"`
}

// CreateAttemptResponse returns the new attempt with its widget params.
type CreateAttemptResponse struct {
	AttemptID uuid.UUID        `json:"attempt_id"`
	State     AttemptState     `json:"state"`
	Breakdown MoneyBreakdown   `json:"breakdown"`
	Widget    WidgetInitParams `json:"widget"`
}

// AuthorizeRequest is the hosted widget's single authorization callback.
type AuthorizeRequest struct {
	Success bool `json:"success"`
}

// ExecuteResponse carries the redirect target back to the caller, which
// is responsible for the actual navigation.
type ExecuteResponse struct {
	PaymentURL string       `json:"payment_url"`
	PaymentID  string       `json:"payment_id"`
	State      AttemptState `json:"state"`
}

// AttemptStatusResponse is the observation surface for one attempt.
type AttemptStatusResponse struct {
	AttemptID   uuid.UUID      `json:"attempt_id"`
	State       AttemptState   `json:"state"`
	OrderStatus OrderStatus    `json:"order_status,omitempty"`
	Breakdown   MoneyBreakdown `json:"breakdown"`
	RedirectURL string         `json:"redirect_url,omitempty"`
	Notified    bool           `json:"notified"`
	LastError   string         `json:"last_error,omitempty"`
}
