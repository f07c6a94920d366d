package services

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripwell/booking-payment-backend/internal/models"
)

// fakeNotifyGateway records dispatches and can be set to fail.
type fakeNotifyGateway struct {
	mu    sync.Mutex
	sends []fakeSend
	fail  bool
}

type fakeSend struct {
	to         string
	ticketInfo string
}

func (g *fakeNotifyGateway) SendConfirmation(to string, ticketInfo string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return fmt.Errorf("messaging service unavailable")
	}
	g.sends = append(g.sends, fakeSend{to: to, ticketInfo: ticketInfo})
	return nil
}

func (g *fakeNotifyGateway) GetName() string {
	return "Fake Gateway"
}

func (g *fakeNotifyGateway) sendCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sends)
}

func (g *fakeNotifyGateway) setFail(fail bool) {
	g.mu.Lock()
	g.fail = fail
	g.mu.Unlock()
}

func confirmedAttempt() *models.CheckoutAttempt {
	return &models.CheckoutAttempt{
		ID:        uuid.New(),
		InvoiceID: "INV-ABCD1234",
		State:     models.AttemptConfirmed,
		Breakdown: models.MoneyBreakdown{FinalAmount: 105750, Currency: "SAR"},
		Payload: models.BookingPayload{
			Type: models.BookingTypeFlight,
			Flight: &models.FlightDetails{
				Origin:       "RUH",
				Destination:  "JED",
				DepartureDay: "2026-09-15",
			},
			ContactPhone: "+966501234567",
		},
	}
}

func confirmedOrder() *models.Order {
	return &models.Order{PaymentID: "PAY-1", Status: models.OrderStatusConfirmed}
}

func TestMaybeNotify_DispatchesOnce(t *testing.T) {
	gateway := &fakeNotifyGateway{}
	service := NewNotificationService(gateway, testLogger())
	attempt := confirmedAttempt()
	order := confirmedOrder()

	assert.True(t, service.MaybeNotify(attempt, order))
	assert.True(t, attempt.Notified())

	// Repeated observations of the same confirmed order are no-ops.
	assert.False(t, service.MaybeNotify(attempt, order))
	assert.False(t, service.MaybeNotify(attempt, order))
	assert.Equal(t, 1, gateway.sendCount())
}

func TestMaybeNotify_SkipsNonConfirmedOrder(t *testing.T) {
	gateway := &fakeNotifyGateway{}
	service := NewNotificationService(gateway, testLogger())
	attempt := confirmedAttempt()

	assert.False(t, service.MaybeNotify(attempt, nil))
	assert.False(t, service.MaybeNotify(attempt, &models.Order{Status: models.OrderStatusPending}))
	assert.False(t, service.MaybeNotify(attempt, &models.Order{Status: models.OrderStatusFailed}))

	assert.Equal(t, 0, gateway.sendCount())
	assert.False(t, attempt.Notified())
}

func TestMaybeNotify_SkipsWithoutContact(t *testing.T) {
	gateway := &fakeNotifyGateway{}
	service := NewNotificationService(gateway, testLogger())

	attempt := confirmedAttempt()
	attempt.Payload.ContactPhone = ""
	attempt.Payload.ContactEmail = ""

	assert.False(t, service.MaybeNotify(attempt, confirmedOrder()))
	assert.Equal(t, 0, gateway.sendCount())
	assert.False(t, attempt.Notified())
}

func TestMaybeNotify_FailedDispatchLeavesFlagUnsetForRetry(t *testing.T) {
	gateway := &fakeNotifyGateway{fail: true}
	service := NewNotificationService(gateway, testLogger())
	attempt := confirmedAttempt()
	order := confirmedOrder()

	assert.False(t, service.MaybeNotify(attempt, order))
	assert.False(t, attempt.Notified())

	// A later observation retries and succeeds.
	gateway.setFail(false)
	assert.True(t, service.MaybeNotify(attempt, order))
	assert.True(t, attempt.Notified())
	assert.Equal(t, 1, gateway.sendCount())
}

func TestMaybeNotify_ConcurrentObservationsDispatchOnce(t *testing.T) {
	gateway := &fakeNotifyGateway{}
	service := NewNotificationService(gateway, testLogger())
	attempt := confirmedAttempt()
	order := confirmedOrder()

	var wg sync.WaitGroup
	var dispatched int64
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if service.MaybeNotify(attempt, order) {
				atomic.AddInt64(&dispatched, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&dispatched))
	assert.Equal(t, 1, gateway.sendCount())
	assert.True(t, attempt.Notified())
}

func TestMaybeNotify_ResetAllowsFreshDispatch(t *testing.T) {
	gateway := &fakeNotifyGateway{}
	service := NewNotificationService(gateway, testLogger())
	attempt := confirmedAttempt()
	order := confirmedOrder()

	require.True(t, service.MaybeNotify(attempt, order))
	assert.False(t, service.MaybeNotify(attempt, order))

	attempt.ResetNotified()
	assert.True(t, service.MaybeNotify(attempt, order))
	assert.Equal(t, 2, gateway.sendCount())
}

func TestMaybeNotify_PrefersPhoneContact(t *testing.T) {
	gateway := &fakeNotifyGateway{}
	service := NewNotificationService(gateway, testLogger())

	attempt := confirmedAttempt()
	attempt.Payload.ContactEmail = "aisha@example.com"

	require.True(t, service.MaybeNotify(attempt, confirmedOrder()))
	require.Equal(t, 1, gateway.sendCount())
	assert.Equal(t, "+966501234567", gateway.sends[0].to)
}

func TestBuildTicketInfo(t *testing.T) {
	service := NewNotificationService(&fakeNotifyGateway{}, testLogger())

	t.Run("flight summary", func(t *testing.T) {
		attempt := confirmedAttempt()
		info := service.buildTicketInfo(attempt, confirmedOrder())
		assert.Contains(t, info, "RUH-JED")
		assert.Contains(t, info, "INV-ABCD1234")
		assert.Contains(t, info, "1057.50 SAR")
	})

	t.Run("hotel summary", func(t *testing.T) {
		attempt := confirmedAttempt()
		attempt.Payload = models.BookingPayload{
			Type: models.BookingTypeHotel,
			Hotel: &models.HotelDetails{
				CheckInDay:  "2026-09-15",
				CheckOutDay: "2026-09-18",
			},
			ContactPhone: "+966501234567",
		}
		info := service.buildTicketInfo(attempt, confirmedOrder())
		assert.Contains(t, info, "2026-09-15 to 2026-09-18")
		assert.Contains(t, info, "INV-ABCD1234")
	})
}
