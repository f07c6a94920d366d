package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripwell/booking-payment-backend/internal/config"
	"github.com/tripwell/booking-payment-backend/internal/models"
)

func testGatewayConfig(baseURL string) config.GatewayConfig {
	return config.GatewayConfig{
		BaseURL:      baseURL,
		MerchantKey:  "test-merchant-key",
		CountryCode:  "SA",
		CurrencyCode: "SAR",
		Timeout:      5 * time.Second,
	}
}

func TestInitiateSession_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/initiateSession", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-merchant-key", req["merchantKey"])
		assert.Equal(t, "SA", req["countryCode"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":      "success",
			"sessionId":   "SESS-12345",
			"countryCode": "SA",
		})
	}))
	defer server.Close()

	service := NewGatewayService(testGatewayConfig(server.URL), testLogger())

	session, err := service.InitiateSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SESS-12345", session.SessionID)
	assert.Equal(t, "SA", session.CountryCode)
	assert.Equal(t, "SAR", session.CurrencyCode)
}

func TestInitiateSession_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	service := NewGatewayService(testGatewayConfig(server.URL), testLogger())

	session, err := service.InitiateSession(context.Background())
	assert.Nil(t, session)
	require.Error(t, err)

	var gwErr *models.GatewayUnavailableError
	assert.ErrorAs(t, err, &gwErr)
}

func TestInitiateSession_NoSessionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "error",
			"message": "merchant key rejected",
		})
	}))
	defer server.Close()

	service := NewGatewayService(testGatewayConfig(server.URL), testLogger())

	session, err := service.InitiateSession(context.Background())
	assert.Nil(t, session)

	var gwErr *models.GatewayUnavailableError
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, gwErr.Error(), "merchant key rejected")
}

func TestInitiateSession_TransportFailure(t *testing.T) {
	// Point at a closed server to force a connection error.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	service := NewGatewayService(testGatewayConfig(server.URL), testLogger())

	session, err := service.InitiateSession(context.Background())
	assert.Nil(t, session)

	var gwErr *models.GatewayUnavailableError
	assert.ErrorAs(t, err, &gwErr)
}

func TestInitiateSession_NotConfigured(t *testing.T) {
	service := NewGatewayService(testGatewayConfig(""), testLogger())

	session, err := service.InitiateSession(context.Background())
	assert.Nil(t, session)

	var gwErr *models.GatewayUnavailableError
	assert.ErrorAs(t, err, &gwErr)
}

func TestInitiateSession_CountryCodeFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "success",
			"sessionId": "SESS-999",
		})
	}))
	defer server.Close()

	service := NewGatewayService(testGatewayConfig(server.URL), testLogger())

	session, err := service.InitiateSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SA", session.CountryCode)
}
