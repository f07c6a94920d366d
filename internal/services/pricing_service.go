package services

import (
	"github.com/sirupsen/logrus"
	"github.com/tripwell/booking-payment-backend/internal/config"
	"github.com/tripwell/booking-payment-backend/internal/models"
)

// PricingService derives the final chargeable amount from a base fare or
// room rate plus commission and VAT layers. Pure computation, no I/O.
type PricingService struct {
	config config.PricingConfig
	logger *logrus.Logger
}

// NewPricingService creates a new pricing service
func NewPricingService(cfg config.PricingConfig, logger *logrus.Logger) *PricingService {
	return &PricingService{
		config: cfg,
		logger: logger,
	}
}

// Derive computes the money breakdown for a base amount in minor units.
// commissionPct/vatPct are percentages in [0,100]; nil means "use the
// configured default" - an omitted rate must never silently become 0.
//
// Commission and VAT are each rounded half-up to the minor unit before
// summing, and the final amount is the sum of the rounded parts. The
// displayed line items therefore always add up to the charged total.
// VAT applies to the commission, not the base amount.
func (s *PricingService) Derive(baseAmount int64, commissionPct, vatPct *float64, currency string) (*models.MoneyBreakdown, error) {
	if baseAmount < 0 {
		return nil, &models.InvalidAmountError{Field: "base_amount", Value: float64(baseAmount)}
	}

	commissionRate := s.config.DefaultCommissionPct
	if commissionPct != nil {
		commissionRate = *commissionPct
	}
	vatRate := s.config.DefaultVATPct
	if vatPct != nil {
		vatRate = *vatPct
	}

	if commissionRate < 0 || commissionRate > 100 {
		return nil, &models.InvalidAmountError{Field: "commission_rate", Value: commissionRate}
	}
	if vatRate < 0 || vatRate > 100 {
		return nil, &models.InvalidAmountError{Field: "vat_rate", Value: vatRate}
	}

	if currency == "" {
		currency = s.config.DefaultCurrency
	}

	base := models.Amount(baseAmount)
	commission := base.RoundHalfUp(commissionRate)
	vat := commission.RoundHalfUp(vatRate)

	breakdown := &models.MoneyBreakdown{
		BaseAmount:       base,
		CommissionRate:   commissionRate,
		CommissionAmount: commission,
		VATRate:          vatRate,
		VATAmount:        vat,
		FinalAmount:      base + commission + vat,
		Currency:         currency,
	}

	s.logger.WithFields(logrus.Fields{
		"base":       base.String(),
		"commission": commission.String(),
		"vat":        vat.String(),
		"final":      breakdown.FinalAmount.String(),
		"currency":   currency,
	}).Debug("Derived price breakdown")

	return breakdown, nil
}
