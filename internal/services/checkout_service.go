package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripwell/booking-payment-backend/internal/models"
)

// AuditLogger records checkout lifecycle events. Satisfied by
// database.PaymentAuditRepository; nil disables auditing.
type AuditLogger interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

// CheckoutService orchestrates one checkout attempt end to end:
// price derivation -> gateway session -> widget authorization ->
// backend execution -> order reconciliation -> confirmation notification.
// Attempts live in an in-memory registry keyed by attempt ID; every
// one-shot guard is scoped to its attempt, never ambient.
type CheckoutService struct {
	pricing   *PricingService
	gateway   SessionInitiator
	executor  PaymentExecutor
	reconcile *ReconciliationService
	notifier  *NotificationService
	auditRepo AuditLogger
	logger    *logrus.Logger

	mu       sync.RWMutex
	attempts map[uuid.UUID]*attemptEntry
}

// attemptEntry pairs an attempt with its reconciliation goroutine
// controls and the last order observation.
type attemptEntry struct {
	attempt *models.CheckoutAttempt

	cancelPoll context.CancelFunc
	pollDone   chan struct{}

	orderMu   sync.RWMutex
	lastOrder *models.Order
}

func (e *attemptEntry) setOrder(order *models.Order) {
	e.orderMu.Lock()
	e.lastOrder = order
	e.orderMu.Unlock()
}

func (e *attemptEntry) order() *models.Order {
	e.orderMu.RLock()
	defer e.orderMu.RUnlock()
	return e.lastOrder
}

// NewCheckoutService creates a new checkout orchestrator
func NewCheckoutService(
	pricing *PricingService,
	gateway SessionInitiator,
	executor PaymentExecutor,
	reconcile *ReconciliationService,
	notifier *NotificationService,
	auditRepo AuditLogger,
	logger *logrus.Logger,
) *CheckoutService {
	return &CheckoutService{
		pricing:   pricing,
		gateway:   gateway,
		executor:  executor,
		reconcile: reconcile,
		notifier:  notifier,
		auditRepo: auditRepo,
		logger:    logger,
		attempts:  make(map[uuid.UUID]*attemptEntry),
	}
}

// Quote derives a price breakdown without starting an attempt
func (s *CheckoutService) Quote(req *models.QuoteRequest) (*models.MoneyBreakdown, error) {
	if req.BaseAmount == nil {
		return nil, &models.InvalidAmountError{Field: "base_amount"}
	}
	return s.pricing.Derive(*req.BaseAmount, req.CommissionRate, req.VATRate, req.Currency)
}

// CreateAttempt derives the price, obtains a single-use gateway session
// and registers a new checkout attempt in awaiting_authorization state.
// The widget init params are produced here, consuming the attach latch:
// this is the one time they are handed out for the session.
func (s *CheckoutService) CreateAttempt(ctx context.Context, req *models.CreateAttemptRequest) (*models.CreateAttemptResponse, error) {
	if !req.Payload.Type.IsValid() {
		return nil, &models.IncompleteBookingDataError{
			BookingType: req.Payload.Type,
			Detail:      "unknown booking type",
		}
	}
	if req.BaseAmount == nil {
		return nil, &models.InvalidAmountError{Field: "base_amount"}
	}

	breakdown, err := s.pricing.Derive(*req.BaseAmount, req.CommissionRate, req.VATRate, req.Currency)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.InitiateSession(ctx)
	if err != nil {
		s.audit(models.NewPaymentAudit(uuid.Nil, models.PaymentEventSessionFailed, models.PaymentSourceGateway).SetError(err))
		return nil, err
	}

	attempt := &models.CheckoutAttempt{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		Session:   session,
		Breakdown: *breakdown,
		Payload:   req.Payload,
		State:     models.AttemptAwaitingAuthorization,
	}
	attempt.InvoiceID = fmt.Sprintf("INV-%s", strings.ToUpper(attempt.ID.String()[:8]))

	s.mu.Lock()
	s.attempts[attempt.ID] = &attemptEntry{attempt: attempt}
	s.mu.Unlock()

	s.audit(models.NewPaymentAudit(attempt.ID, models.PaymentEventSessionInitiated, models.PaymentSourceGateway).
		SetSession(session.SessionID).
		SetInvoice(attempt.InvoiceID).
		SetAmount(breakdown.FinalAmount, breakdown.Currency))

	widget, err := s.AttachWidget(attempt.ID)
	if err != nil {
		// Freshly created attempt; the latch cannot already be tripped.
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"attempt_id": attempt.ID,
		"invoice_id": attempt.InvoiceID,
		"session_id": session.SessionID,
		"final":      breakdown.FinalAmount.String(),
	}).Info("Checkout attempt created")

	return &models.CreateAttemptResponse{
		AttemptID: attempt.ID,
		State:     attempt.State,
		Breakdown: *breakdown,
		Widget:    *widget,
	}, nil
}

// AttachWidget hands out the widget init params for the attempt's
// session. One-shot: a second attach on the same session is rejected so
// the hosted widget is never initialized twice.
func (s *CheckoutService) AttachWidget(attemptID uuid.UUID) (*models.WidgetInitParams, error) {
	entry, err := s.entry(attemptID)
	if err != nil {
		return nil, err
	}

	attempt := entry.attempt
	if !attempt.AttachWidget() {
		return nil, &models.AttemptStateError{
			State:  attempt.State,
			Detail: "widget already attached for this session",
		}
	}

	params := models.WidgetInitParams{
		SessionID:    attempt.Session.SessionID,
		CountryCode:  attempt.Session.CountryCode,
		CurrencyCode: attempt.Session.CurrencyCode,
		Amount:       attempt.Breakdown.FinalAmount.String(),
		PaymentOpts:  []string{"card", "applepay"},
	}
	return &params, nil
}

// Authorize records the hosted widget's single authorization callback.
// The attempt must be awaiting authorization; a second callback is
// rejected. The widget itself has no timeout - until this is called the
// attempt simply rests in awaiting_authorization.
func (s *CheckoutService) Authorize(attemptID uuid.UUID, success bool) (*models.CheckoutAttempt, error) {
	entry, err := s.entry(attemptID)
	if err != nil {
		return nil, err
	}

	attempt := entry.attempt
	attempt.Lock()
	if attempt.State != models.AttemptAwaitingAuthorization {
		state := attempt.State
		attempt.Unlock()
		return nil, &models.AttemptStateError{State: state, Detail: "authorization callback already handled"}
	}
	if success {
		attempt.State = models.AttemptAuthorized
	} else {
		attempt.State = models.AttemptDeclined
		attempt.LastError = "payment authorization was declined"
	}
	attempt.Unlock()

	if success {
		s.audit(models.NewPaymentAudit(attempt.ID, models.PaymentEventAuthorized, models.PaymentSourceWidget).
			SetSession(attempt.Session.SessionID))
	} else {
		s.audit(models.NewPaymentAudit(attempt.ID, models.PaymentEventAuthorizationFailed, models.PaymentSourceWidget).
			SetSession(attempt.Session.SessionID))
	}

	s.logger.WithFields(logrus.Fields{
		"attempt_id": attempt.ID,
		"authorized": success,
	}).Info("Widget authorization callback handled")

	return attempt, nil
}

// Execute dispatches the authorized attempt to the backend execute step
// and, once a redirect target exists (implying the order was created
// server-side), starts the reconciliation poller. Execution refuses to
// run before a successful authorization.
func (s *CheckoutService) Execute(ctx context.Context, attemptID uuid.UUID) (*models.ExecuteResponse, error) {
	entry, err := s.entry(attemptID)
	if err != nil {
		return nil, err
	}

	attempt := entry.attempt
	attempt.Lock()
	if attempt.State != models.AttemptAuthorized {
		state := attempt.State
		attempt.Unlock()
		return nil, &models.AttemptStateError{State: state, Detail: "execution requires a successful authorization"}
	}
	attempt.State = models.AttemptExecuting
	attempt.Unlock()

	s.audit(models.NewPaymentAudit(attempt.ID, models.PaymentEventExecuteRequest, models.PaymentSourceBackend).
		SetSession(attempt.Session.SessionID).
		SetInvoice(attempt.InvoiceID).
		SetAmount(attempt.Breakdown.FinalAmount, attempt.Breakdown.Currency))

	result, err := s.executor.Execute(ctx, attempt.Session.SessionID, &attempt.Payload, attempt.Breakdown.FinalAmount)
	if err != nil {
		attempt.Lock()
		attempt.State = models.AttemptAuthorized
		attempt.LastError = err.Error()
		attempt.Unlock()

		s.audit(models.NewPaymentAudit(attempt.ID, models.PaymentEventExecuteFailed, models.PaymentSourceBackend).SetError(err))
		return nil, err
	}

	attempt.Lock()
	attempt.PaymentID = result.PaymentID
	attempt.RedirectURL = result.PaymentURL
	if result.InvoiceID != "" {
		attempt.InvoiceID = result.InvoiceID
	}
	attempt.State = models.AttemptReconciling
	attempt.LastError = ""
	attempt.Unlock()

	s.audit(models.NewPaymentAudit(attempt.ID, models.PaymentEventExecuteResponse, models.PaymentSourceBackend).
		SetPayment(result.PaymentID).
		SetInvoice(attempt.InvoiceID))

	s.startReconciliation(entry)

	s.logger.WithFields(logrus.Fields{
		"attempt_id":  attempt.ID,
		"payment_id":  result.PaymentID,
		"payment_url": result.PaymentURL,
	}).Info("Payment executed, reconciliation started")

	return &models.ExecuteResponse{
		PaymentURL: result.PaymentURL,
		PaymentID:  result.PaymentID,
		State:      models.AttemptReconciling,
	}, nil
}

// startReconciliation spawns the poll loop goroutine for the attempt.
// The loop ends on a terminal backend status, a policy bound, or
// teardown cancellation - never on a transient poll failure.
//
// The poll controls are published under the registry lock, and an entry
// that was already evicted gets no goroutine at all: a teardown landing
// between Execute and this call must not leave a poller running against
// a deleted attempt.
func (s *CheckoutService) startReconciliation(entry *attemptEntry) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	if _, ok := s.attempts[entry.attempt.ID]; !ok {
		s.mu.Unlock()
		cancel()
		close(done)
		return
	}
	entry.cancelPoll = cancel
	entry.pollDone = done
	s.mu.Unlock()

	attempt := entry.attempt

	go func() {
		defer close(done)

		outcome := s.reconcile.Run(ctx, attempt.PaymentID)
		if outcome.Order != nil {
			entry.setOrder(outcome.Order)
		}

		switch {
		case outcome.Cancelled:
			// Teardown path; leave the state as-is.
			return
		case outcome.TimedOut:
			attempt.Lock()
			attempt.State = models.AttemptTimedOut
			attempt.Unlock()
			s.audit(models.NewPaymentAudit(attempt.ID, models.PaymentEventReconcileTimedOut, models.PaymentSourceSystem).
				SetPayment(attempt.PaymentID))
		case outcome.Status == models.OrderStatusConfirmed:
			attempt.Lock()
			attempt.State = models.AttemptConfirmed
			attempt.Unlock()
			s.audit(models.NewPaymentAudit(attempt.ID, models.PaymentEventOrderConfirmed, models.PaymentSourceBackend).
				SetPayment(attempt.PaymentID).
				SetOrderStatus(models.OrderStatusConfirmed))
			s.dispatchNotification(entry)
		case outcome.Status == models.OrderStatusFailed:
			attempt.Lock()
			attempt.State = models.AttemptFailed
			attempt.LastError = "booking could not be completed"
			attempt.Unlock()
			s.audit(models.NewPaymentAudit(attempt.ID, models.PaymentEventOrderFailed, models.PaymentSourceBackend).
				SetPayment(attempt.PaymentID).
				SetOrderStatus(models.OrderStatusFailed))
		}
	}()
}

// dispatchNotification runs the idempotent confirmation trigger and
// audits the result. Dispatch failure never affects booking outcome.
func (s *CheckoutService) dispatchNotification(entry *attemptEntry) {
	attempt := entry.attempt
	order := entry.order()

	if s.notifier.MaybeNotify(attempt, order) {
		s.audit(models.NewPaymentAudit(attempt.ID, models.PaymentEventNotificationSent, models.PaymentSourceSystem).
			SetPayment(attempt.PaymentID))
	}
}

// Status returns the observation surface for one attempt. Observing a
// confirmed attempt also drives the notification trigger, which the
// one-shot flag keeps idempotent.
func (s *CheckoutService) Status(attemptID uuid.UUID) (*models.AttemptStatusResponse, error) {
	entry, err := s.entry(attemptID)
	if err != nil {
		return nil, err
	}

	attempt := entry.attempt

	attempt.Lock()
	state := attempt.State
	redirect := attempt.RedirectURL
	lastError := attempt.LastError
	breakdown := attempt.Breakdown
	attempt.Unlock()

	response := &models.AttemptStatusResponse{
		AttemptID:   attempt.ID,
		State:       state,
		Breakdown:   breakdown,
		RedirectURL: redirect,
		LastError:   lastError,
	}

	if order := entry.order(); order != nil {
		response.OrderStatus = order.Status
	}

	if state == models.AttemptConfirmed {
		s.dispatchNotification(entry)
	}
	response.Notified = attempt.Notified()

	return response, nil
}

// Teardown cancels the attempt's poll loop and removes it from the
// registry. This is the cancellation path for navigation-away: no
// orphaned timers survive it.
func (s *CheckoutService) Teardown(attemptID uuid.UUID) error {
	s.mu.Lock()
	entry, ok := s.attempts[attemptID]
	if ok {
		delete(s.attempts, attemptID)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("checkout attempt not found")
	}

	s.stopPolling(entry)

	s.logger.WithField("attempt_id", attemptID).Info("Checkout attempt torn down")
	return nil
}

// SweepStale evicts every attempt older than the TTL, whatever its
// state, cancelling any leftover poll loops. Under an unbounded policy
// the TTL is the only cap on how long an abandoned attempt keeps
// polling. Returns the number of evicted attempts.
func (s *CheckoutService) SweepStale(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	var stale []*attemptEntry
	for id, entry := range s.attempts {
		attempt := entry.attempt
		attempt.Lock()
		old := attempt.CreatedAt.Before(cutoff)
		attempt.Unlock()

		if old {
			stale = append(stale, entry)
			delete(s.attempts, id)
		}
	}
	s.mu.Unlock()

	for _, entry := range stale {
		s.stopPolling(entry)
	}

	return len(stale)
}

// Shutdown cancels every running poll loop. Called on process teardown.
func (s *CheckoutService) Shutdown() {
	s.mu.Lock()
	entries := make([]*attemptEntry, 0, len(s.attempts))
	for _, entry := range s.attempts {
		entries = append(entries, entry)
	}
	s.mu.Unlock()

	for _, entry := range entries {
		s.stopPolling(entry)
	}
}

// AttemptCount reports the registry size, for health reporting
func (s *CheckoutService) AttemptCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}

// stopPolling cancels the entry's poll loop and waits for it to exit.
// The controls are read under the registry lock, pairing with the
// writes in startReconciliation.
func (s *CheckoutService) stopPolling(entry *attemptEntry) {
	s.mu.Lock()
	cancel := entry.cancelPoll
	done := entry.pollDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		if done != nil {
			<-done
		}
	}
}

func (s *CheckoutService) entry(attemptID uuid.UUID) (*attemptEntry, error) {
	s.mu.RLock()
	entry, ok := s.attempts[attemptID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("checkout attempt not found")
	}
	return entry, nil
}

// audit writes a lifecycle event, best-effort. Audit failures are logged
// by the repository; they never fail the checkout flow.
func (s *CheckoutService) audit(audit *models.PaymentAudit) {
	if s.auditRepo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.auditRepo.Log(ctx, audit)
}
