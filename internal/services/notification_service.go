package services

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tripwell/booking-payment-backend/internal/models"
	"github.com/tripwell/booking-payment-backend/pkg/notify"
)

// NotificationService fires the booking confirmation message exactly
// once per confirmed order, guarded by the attempt's one-shot flag.
type NotificationService struct {
	gateway notify.Gateway
	logger  *logrus.Logger
}

// NewNotificationService creates a new notification trigger
func NewNotificationService(gateway notify.Gateway, logger *logrus.Logger) *NotificationService {
	return &NotificationService{
		gateway: gateway,
		logger:  logger,
	}
}

// MaybeNotify dispatches the confirmation for the attempt if and only if
// the order is confirmed, a deliverable contact exists, and the one-shot
// flag has not been set. The flag is set only after a successful
// dispatch, so a failed send can be retried on a later observation of
// the same confirmed order. Dispatch failure is logged, never surfaced -
// the booking is already confirmed.
func (s *NotificationService) MaybeNotify(attempt *models.CheckoutAttempt, order *models.Order) bool {
	if order == nil || order.Status != models.OrderStatusConfirmed {
		return false
	}

	to := attempt.Payload.ContactAddress()
	if to == "" {
		s.logger.WithField("attempt_id", attempt.ID).Debug("No deliverable contact, skipping confirmation notification")
		return false
	}

	// Serialize check-send-mark so concurrent observations of the same
	// confirmed attempt cannot both pass the flag check.
	attempt.LockNotify()
	defer attempt.UnlockNotify()

	if attempt.Notified() {
		return false
	}

	ticketInfo := s.buildTicketInfo(attempt, order)

	if err := s.gateway.SendConfirmation(to, ticketInfo); err != nil {
		// Flag stays unset so a future observation can retry.
		s.logger.WithError(err).WithFields(logrus.Fields{
			"attempt_id": attempt.ID,
			"payment_id": order.PaymentID,
		}).Warn("Confirmation notification dispatch failed")
		return false
	}

	attempt.MarkNotified()

	s.logger.WithFields(logrus.Fields{
		"attempt_id": attempt.ID,
		"payment_id": order.PaymentID,
		"gateway":    s.gateway.GetName(),
	}).Info("Confirmation notification dispatched")

	return true
}

// buildTicketInfo composes the human-readable confirmation summary
func (s *NotificationService) buildTicketInfo(attempt *models.CheckoutAttempt, order *models.Order) string {
	switch attempt.Payload.Type {
	case models.BookingTypeFlight:
		f := attempt.Payload.Flight
		if f != nil {
			return fmt.Sprintf("Your flight %s-%s on %s is confirmed. Invoice %s, total %s %s.",
				f.Origin, f.Destination, f.DepartureDay,
				attempt.InvoiceID, attempt.Breakdown.FinalAmount.String(), attempt.Breakdown.Currency)
		}
	case models.BookingTypeHotel:
		h := attempt.Payload.Hotel
		if h != nil {
			return fmt.Sprintf("Your hotel stay %s to %s is confirmed. Invoice %s, total %s %s.",
				h.CheckInDay, h.CheckOutDay,
				attempt.InvoiceID, attempt.Breakdown.FinalAmount.String(), attempt.Breakdown.Currency)
		}
	}
	return fmt.Sprintf("Your booking is confirmed. Invoice %s, total %s %s.",
		attempt.InvoiceID, attempt.Breakdown.FinalAmount.String(), attempt.Breakdown.Currency)
}
