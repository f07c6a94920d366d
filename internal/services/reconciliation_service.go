package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripwell/booking-payment-backend/internal/models"
)

// ReconcilePolicy bounds the polling loop. Zero values keep the loop
// unbounded, relying on the backend to eventually reach a terminal
// status; setting MaxAttempts or MaxWait yields a distinguished
// timed-out outcome instead of polling forever.
type ReconcilePolicy struct {
	PollInterval time.Duration
	MaxAttempts  int
	MaxWait      time.Duration
}

// ReconcileOutcome is the result of one reconciliation run.
type ReconcileOutcome struct {
	Status    models.OrderStatus // terminal backend status, empty when timed out or cancelled
	Order     *models.Order      // last observed order, nil if no poll ever succeeded
	Polls     int                // polls attempted, including transport failures
	TimedOut  bool
	Cancelled bool
}

// ReconciliationService drives the order state machine for one checkout
// attempt: PENDING until the backend reports CONFIRMED or FAILED.
type ReconciliationService struct {
	statusClient OrderStatusClient
	policy       ReconcilePolicy
	logger       *logrus.Logger
}

// NewReconciliationService creates a new order reconciliation poller
func NewReconciliationService(statusClient OrderStatusClient, policy ReconcilePolicy, logger *logrus.Logger) *ReconciliationService {
	if policy.PollInterval <= 0 {
		policy.PollInterval = 8 * time.Second
	}
	return &ReconciliationService{
		statusClient: statusClient,
		policy:       policy,
		logger:       logger,
	}
}

// Run polls the order until a terminal status, a policy bound, or
// cancellation. It blocks; callers run it in the attempt's goroutine.
//
// A poll transport error does not change state and does not abort the
// loop - the order is treated as still pending and the next scheduled
// poll is attempted. Showing a paying customer a false failure is worse
// than waiting one more interval.
func (s *ReconciliationService) Run(ctx context.Context, paymentID string) *ReconcileOutcome {
	outcome := &ReconcileOutcome{}
	started := time.Now()

	ticker := time.NewTicker(s.policy.PollInterval)
	defer ticker.Stop()

	// First poll fires immediately; the interval paces the rest.
	for {
		outcome.Polls++
		order, err := s.statusClient.OrderStatus(ctx, paymentID)
		if err != nil {
			if ctx.Err() != nil {
				outcome.Cancelled = true
				return outcome
			}
			s.logger.WithError(err).WithFields(logrus.Fields{
				"payment_id": paymentID,
				"poll":       outcome.Polls,
			}).Warn("Order status poll failed, treating as still pending")
		} else {
			outcome.Order = order
			if order.Status.IsTerminal() {
				outcome.Status = order.Status
				s.logger.WithFields(logrus.Fields{
					"payment_id": paymentID,
					"status":     order.Status,
					"polls":      outcome.Polls,
				}).Info("Order reached terminal status")
				return outcome
			}
		}

		if s.policy.MaxAttempts > 0 && outcome.Polls >= s.policy.MaxAttempts {
			outcome.TimedOut = true
			s.logger.WithFields(logrus.Fields{
				"payment_id": paymentID,
				"polls":      outcome.Polls,
			}).Warn("Order reconciliation hit max poll attempts")
			return outcome
		}
		if s.policy.MaxWait > 0 && time.Since(started) >= s.policy.MaxWait {
			outcome.TimedOut = true
			s.logger.WithFields(logrus.Fields{
				"payment_id": paymentID,
				"elapsed":    time.Since(started).String(),
			}).Warn("Order reconciliation hit max wait")
			return outcome
		}

		select {
		case <-ctx.Done():
			outcome.Cancelled = true
			s.logger.WithField("payment_id", paymentID).Info("Order reconciliation cancelled")
			return outcome
		case <-ticker.C:
		}
	}
}
