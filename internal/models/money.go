package models

import (
	"fmt"
	"math"
)

// Amount is a money value in minor units (halalas, cents). All pricing
// arithmetic happens on integers; floats only appear transiently inside
// the rounding step so repeated derivations never drift.
type Amount int64

// String renders the amount in major units with two decimals, the form
// the gateway widget and the backend invoice field expect.
func (a Amount) String() string {
	major := a / 100
	minor := a % 100
	if minor < 0 {
		minor = -minor
	}
	return fmt.Sprintf("%d.%02d", major, minor)
}

// RoundHalfUp applies a percentage rate and rounds half-up to the minor
// unit. 7.495 rounds to 7.50, matching how the invoice line items are
// displayed to the customer.
func (a Amount) RoundHalfUp(ratePct float64) Amount {
	raw := float64(a) * ratePct / 100.0
	return Amount(math.Floor(raw + 0.5))
}

// MoneyBreakdown is the derived price for one checkout attempt. The
// invariant is FinalAmount == BaseAmount + CommissionAmount + VATAmount,
// with each layer rounded before summing so the displayed line items
// always add up to the charged total.
type MoneyBreakdown struct {
	BaseAmount       Amount  `json:"base_amount"`
	CommissionRate   float64 `json:"commission_rate"`
	CommissionAmount Amount  `json:"commission_amount"`
	VATRate          float64 `json:"vat_rate"`
	VATAmount        Amount  `json:"vat_amount"`
	FinalAmount      Amount  `json:"final_amount"`
	Currency         string  `json:"currency"`
}

// QuoteRequest asks for a price breakdown without starting an attempt.
// Omitted rates fall back to the configured defaults, never to zero.
// BaseAmount is a pointer so that a zero base (a valid input yielding an
// all-zero breakdown) is distinguishable from an absent field.
type QuoteRequest struct {
	BaseAmount     *int64   `json:"base_amount" binding:"required"`
	CommissionRate *float64 `json:"commission_rate,omitempty"`
	VATRate        *float64 `json:"vat_rate,omitempty"`
	Currency       string   `json:"currency,omitempty"`
}
