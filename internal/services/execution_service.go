package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/tripwell/booking-payment-backend/internal/config"
	"github.com/tripwell/booking-payment-backend/internal/models"
)

// HotelGuestFormatter is the caller-supplied pure function that shapes
// hotel guest data into the backend's expected payload. A nil formatter
// or a nil result is an incomplete-booking precondition, checked before
// any network call.
type HotelGuestFormatter func(hotel *models.HotelDetails) map[string]interface{}

// PaymentExecutor sends the authorized session plus booking payload to
// the backend execute step and returns the redirect target.
type PaymentExecutor interface {
	Execute(ctx context.Context, sessionID string, payload *models.BookingPayload, finalAmount models.Amount) (*ExecuteResult, error)
}

// ExecuteResult is the outcome of a successful execution call. The
// dispatcher never navigates - the redirect stays a caller side effect.
type ExecuteResult struct {
	PaymentURL string
	PaymentID  string
	InvoiceID  string
}

// ExecutionService dispatches authorized payments to the backend
// execute-payment endpoint.
type ExecutionService struct {
	config    config.BackendConfig
	formatter HotelGuestFormatter
	logger    *logrus.Logger
	client    *http.Client
}

// NewExecutionService creates a new payment execution dispatcher
func NewExecutionService(cfg config.BackendConfig, formatter HotelGuestFormatter, logger *logrus.Logger) *ExecutionService {
	return &ExecutionService{
		config:    cfg,
		formatter: formatter,
		logger:    logger,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// executeRequest is the wire request for the backend execute endpoint
type executeRequest struct {
	SessionID    string                 `json:"sessionId"`
	InvoiceValue string                 `json:"invoiceValue"`
	BookingType  models.BookingType     `json:"bookingType"`
	FlightData   *models.FlightDetails  `json:"flightData,omitempty"`
	HotelData    map[string]interface{} `json:"hotelData,omitempty"`
	ContactEmail string                 `json:"contactEmail,omitempty"`
	ContactPhone string                 `json:"contactPhone,omitempty"`
}

// executeResponse is the wire response for the backend execute endpoint
type executeResponse struct {
	Success    bool   `json:"success"`
	PaymentURL string `json:"paymentUrl"`
	PaymentID  string `json:"paymentId"`
	InvoiceID  string `json:"invoiceId"`
	Message    string `json:"message,omitempty"`
	Error      struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// validatePayload enforces the booking-type preconditions. Failing fast
// here means the backend never sees a request that would leave a partial
// order behind.
func (s *ExecutionService) validatePayload(payload *models.BookingPayload) (map[string]interface{}, error) {
	switch payload.Type {
	case models.BookingTypeFlight:
		if payload.Flight == nil {
			return nil, &models.IncompleteBookingDataError{
				BookingType: models.BookingTypeFlight,
				Detail:      "flight details missing",
			}
		}
		if len(payload.Flight.Travelers) == 0 {
			return nil, &models.IncompleteBookingDataError{
				BookingType: models.BookingTypeFlight,
				Detail:      "traveler list is empty",
			}
		}
		for i, traveler := range payload.Flight.Travelers {
			if !traveler.Complete() {
				return nil, &models.IncompleteBookingDataError{
					BookingType: models.BookingTypeFlight,
					Detail:      fmt.Sprintf("traveler %d is missing identity fields", i+1),
				}
			}
		}
		return nil, nil

	case models.BookingTypeHotel:
		if payload.Hotel == nil {
			return nil, &models.IncompleteBookingDataError{
				BookingType: models.BookingTypeHotel,
				Detail:      "hotel details missing",
			}
		}
		if s.formatter == nil {
			return nil, &models.IncompleteBookingDataError{
				BookingType: models.BookingTypeHotel,
				Detail:      "guest data formatter not available",
			}
		}
		hotelData := s.formatter(payload.Hotel)
		if hotelData == nil {
			return nil, &models.IncompleteBookingDataError{
				BookingType: models.BookingTypeHotel,
				Detail:      "guest data formatter produced no payload",
			}
		}
		return hotelData, nil

	default:
		return nil, &models.IncompleteBookingDataError{
			BookingType: payload.Type,
			Detail:      "unknown booking type",
		}
	}
}

// Execute validates the booking payload locally, then posts the
// authorized session and payload to the backend execute endpoint.
// Precondition violations return IncompleteBookingDataError with zero
// network calls; backend failures return PaymentExecutionError with the
// best available human-readable reason.
func (s *ExecutionService) Execute(ctx context.Context, sessionID string, payload *models.BookingPayload, finalAmount models.Amount) (*ExecuteResult, error) {
	hotelData, err := s.validatePayload(payload)
	if err != nil {
		return nil, err
	}

	request := executeRequest{
		SessionID:    sessionID,
		InvoiceValue: finalAmount.String(),
		BookingType:  payload.Type,
		ContactEmail: payload.ContactEmail,
		ContactPhone: payload.ContactPhone,
	}
	switch payload.Type {
	case models.BookingTypeFlight:
		request.FlightData = payload.Flight
	case models.BookingTypeHotel:
		request.HotelData = hotelData
	}

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return nil, &models.PaymentExecutionError{Reason: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	s.logger.WithFields(logrus.Fields{
		"session_id":    sessionID,
		"booking_type":  payload.Type,
		"invoice_value": finalAmount.String(),
	}).Info("Dispatching payment execution")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.ExecuteURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, &models.PaymentExecutionError{Reason: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).Error("Payment execution transport failure")
		return nil, &models.PaymentExecutionError{Reason: "payment service is unreachable, please try again"}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.PaymentExecutionError{Reason: "payment service returned an unreadable response"}
	}

	var execResp executeResponse
	parseErr := json.Unmarshal(body, &execResp)

	if resp.StatusCode != http.StatusOK || parseErr != nil || !execResp.Success {
		return nil, &models.PaymentExecutionError{Reason: s.failureReason(resp.StatusCode, &execResp, parseErr)}
	}

	if execResp.PaymentURL == "" {
		return nil, &models.PaymentExecutionError{Reason: "no payment redirect URL returned"}
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id":  execResp.PaymentID,
		"payment_url": execResp.PaymentURL,
	}).Info("Payment execution accepted")

	return &ExecuteResult{
		PaymentURL: execResp.PaymentURL,
		PaymentID:  execResp.PaymentID,
		InvoiceID:  execResp.InvoiceID,
	}, nil
}

// failureReason extracts a human-readable reason in order of preference:
// structured server message, HTTP status-derived default, transport default.
func (s *ExecutionService) failureReason(statusCode int, resp *executeResponse, parseErr error) string {
	if parseErr == nil {
		if resp.Error.Message != "" {
			return resp.Error.Message
		}
		if resp.Message != "" {
			return resp.Message
		}
	}

	switch {
	case statusCode == http.StatusOK:
		return "payment was not accepted"
	case statusCode >= 500:
		return fmt.Sprintf("payment service error (status %d)", statusCode)
	case statusCode >= 400:
		return fmt.Sprintf("payment request was rejected (status %d)", statusCode)
	default:
		return "payment could not be processed"
	}
}
