package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPGateway(t *testing.T) {
	gateway := NewHTTPGateway(HTTPConfig{
		URL:     "https://notify.example.com/send",
		APIKey:  "test-api-key",
		Timeout: 5 * time.Second,
	})

	assert.NotNil(t, gateway)
	assert.Equal(t, "https://notify.example.com/send", gateway.url)
	assert.Equal(t, "test-api-key", gateway.apiKey)
	assert.NotNil(t, gateway.client)
}

func TestNewHTTPGateway_DefaultTimeout(t *testing.T) {
	gateway := NewHTTPGateway(HTTPConfig{URL: "https://notify.example.com/send"})
	assert.Equal(t, 15*time.Second, gateway.client.Timeout)
}

func TestSendConfirmation_Success(t *testing.T) {
	var received sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sendResponse{Status: "success"})
	}))
	defer server.Close()

	gateway := NewHTTPGateway(HTTPConfig{URL: server.URL, APIKey: "test-api-key"})

	err := gateway.SendConfirmation("+966501234567", "Your flight RUH-JED is confirmed.")
	require.NoError(t, err)

	assert.Equal(t, "+966501234567", received.To)
	assert.Equal(t, "Your flight RUH-JED is confirmed.", received.TicketInfo)
}

func TestSendConfirmation_NoAPIKeyOmitsHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	gateway := NewHTTPGateway(HTTPConfig{URL: server.URL})

	err := gateway.SendConfirmation("a@example.com", "confirmed")
	assert.NoError(t, err)
}

func TestSendConfirmation_UnparseableSuccessBodyCountsAsDelivered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("queued"))
	}))
	defer server.Close()

	gateway := NewHTTPGateway(HTTPConfig{URL: server.URL})

	err := gateway.SendConfirmation("a@example.com", "confirmed")
	assert.NoError(t, err)
}

func TestSendConfirmation_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	gateway := NewHTTPGateway(HTTPConfig{URL: server.URL})

	err := gateway.SendConfirmation("a@example.com", "confirmed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSendConfirmation_FailureStatusInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sendResponse{Status: "failed", Message: "invalid recipient"})
	}))
	defer server.Close()

	gateway := NewHTTPGateway(HTTPConfig{URL: server.URL})

	err := gateway.SendConfirmation("a@example.com", "confirmed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipient")
}

func TestSendConfirmation_NotConfigured(t *testing.T) {
	gateway := NewHTTPGateway(HTTPConfig{})
	assert.Error(t, gateway.SendConfirmation("a@example.com", "confirmed"))
}

func TestSendConfirmation_MissingRecipient(t *testing.T) {
	gateway := NewHTTPGateway(HTTPConfig{URL: "https://notify.example.com/send"})
	assert.Error(t, gateway.SendConfirmation("", "confirmed"))
}

func TestGetName(t *testing.T) {
	gateway := NewHTTPGateway(HTTPConfig{})
	assert.Equal(t, "HTTP Notify Gateway", gateway.GetName())
}
