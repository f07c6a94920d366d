package services

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AttemptExpirationService handles background eviction of stale checkout
// attempts from the in-memory registry. Evicting an attempt cancels any
// poll loop it still owns, so abandoned checkouts never leak timers.
type AttemptExpirationService struct {
	checkout *CheckoutService
	logger   *logrus.Logger
	stopCh   chan struct{}
	interval time.Duration
	ttl      time.Duration
}

// NewAttemptExpirationService creates a new attempt expiration service
func NewAttemptExpirationService(
	checkout *CheckoutService,
	ttl time.Duration,
	logger *logrus.Logger,
) *AttemptExpirationService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AttemptExpirationService{
		checkout: checkout,
		logger:   logger,
		stopCh:   make(chan struct{}),
		interval: 1 * time.Minute,
		ttl:      ttl,
	}
}

// Start begins the background expiration job
func (s *AttemptExpirationService) Start() {
	s.logger.WithField("ttl", s.ttl.String()).Info("Starting attempt expiration service")
	go s.run()
}

// Stop stops the background expiration job
func (s *AttemptExpirationService) Stop() {
	s.logger.Info("Stopping attempt expiration service")
	close(s.stopCh)
}

func (s *AttemptExpirationService) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			s.logger.Info("Attempt expiration service stopped")
			return
		}
	}
}

func (s *AttemptExpirationService) sweep() {
	evicted := s.checkout.SweepStale(s.ttl)
	if evicted > 0 {
		s.logger.WithField("count", evicted).Info("Evicted stale checkout attempts")
	}
}

// RunOnce runs a single sweep cycle (useful for testing or manual trigger)
func (s *AttemptExpirationService) RunOnce() {
	s.sweep()
}
