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

// SessionInitiator obtains single-use widget sessions from the hosted
// payment gateway.
type SessionInitiator interface {
	InitiateSession(ctx context.Context) (*models.PaymentSession, error)
}

// GatewayService is the HTTP client for the hosted payment gateway.
// It only ever creates sessions; the widget itself runs on the client
// and reports back through a single authorization callback.
type GatewayService struct {
	config config.GatewayConfig
	logger *logrus.Logger
	client *http.Client
}

// NewGatewayService creates a new payment gateway client
func NewGatewayService(cfg config.GatewayConfig, logger *logrus.Logger) *GatewayService {
	return &GatewayService{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// initiateSessionRequest is the wire request for session creation
type initiateSessionRequest struct {
	MerchantKey string `json:"merchantKey"`
	CountryCode string `json:"countryCode"`
}

// initiateSessionResponse is the wire response for session creation
type initiateSessionResponse struct {
	Status      string `json:"status"`
	SessionID   string `json:"sessionId"`
	CountryCode string `json:"countryCode"`
	Message     string `json:"message,omitempty"`
}

// InitiateSession requests a fresh widget session from the gateway.
// The session is single-use and held in memory only; any failure is
// surfaced as GatewayUnavailableError for a fresh user-initiated retry.
func (s *GatewayService) InitiateSession(ctx context.Context) (*models.PaymentSession, error) {
	if s.config.BaseURL == "" {
		return nil, &models.GatewayUnavailableError{Err: fmt.Errorf("gateway not configured")}
	}

	request := initiateSessionRequest{
		MerchantKey: s.config.MerchantKey,
		CountryCode: s.config.CountryCode,
	}

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return nil, &models.GatewayUnavailableError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	url := fmt.Sprintf("%s/initiateSession", s.config.BaseURL)

	s.logger.WithFields(logrus.Fields{
		"endpoint": url,
		"country":  s.config.CountryCode,
	}).Info("Initiating payment gateway session")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, &models.GatewayUnavailableError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).Error("Failed to call payment gateway")
		return nil, &models.GatewayUnavailableError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.GatewayUnavailableError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &models.GatewayUnavailableError{
			Err: fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var sessionResp initiateSessionResponse
	if err := json.Unmarshal(body, &sessionResp); err != nil {
		return nil, &models.GatewayUnavailableError{Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	if sessionResp.SessionID == "" {
		return nil, &models.GatewayUnavailableError{
			Err: fmt.Errorf("gateway returned no session id: %s", sessionResp.Message),
		}
	}

	countryCode := sessionResp.CountryCode
	if countryCode == "" {
		countryCode = s.config.CountryCode
	}

	session := &models.PaymentSession{
		SessionID:    sessionResp.SessionID,
		CountryCode:  countryCode,
		CurrencyCode: s.config.CurrencyCode,
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": session.SessionID,
		"country":    session.CountryCode,
	}).Info("Payment gateway session initiated")

	return session, nil
}
