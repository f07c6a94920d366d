package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripwell/booking-payment-backend/internal/config"
	"github.com/tripwell/booking-payment-backend/internal/models"
	"github.com/tripwell/booking-payment-backend/internal/services"
	"github.com/tripwell/booking-payment-backend/pkg/notify"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// testStack spins up fake gateway and backend endpoints and wires the
// full service stack behind a router.
type testStack struct {
	router        *gin.Engine
	gatewayServer *httptest.Server
	backendServer *httptest.Server
	checkout      *services.CheckoutService
}

func setupTestStack(t *testing.T) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := testLogger()

	gatewayServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":      "success",
			"sessionId":   "SESS-1",
			"countryCode": "SA",
		})
	}))
	t.Cleanup(gatewayServer.Close)

	backendMux := http.NewServeMux()
	backendMux.HandleFunc("/executePayment", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":    true,
			"paymentUrl": "https://pay.example.com/redirect/abc",
			"paymentId":  "PAY-1",
		})
	})
	backendMux.HandleFunc("/bookingStatus", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "CONFIRMED",
			"order":  map[string]interface{}{"payment_id": "PAY-1", "status": "CONFIRMED"},
		})
	})
	backendServer := httptest.NewServer(backendMux)
	t.Cleanup(backendServer.Close)

	gatewayCfg := config.GatewayConfig{
		BaseURL:      gatewayServer.URL,
		MerchantKey:  "test-key",
		CountryCode:  "SA",
		CurrencyCode: "SAR",
		Timeout:      5 * time.Second,
	}
	backendCfg := config.BackendConfig{
		ExecuteURL:     backendServer.URL + "/executePayment",
		OrderStatusURL: backendServer.URL + "/bookingStatus",
		Timeout:        5 * time.Second,
	}
	pricingCfg := config.PricingConfig{
		DefaultCommissionPct: 5,
		DefaultVATPct:        15,
		DefaultCurrency:      "SAR",
	}

	checkout := services.NewCheckoutService(
		services.NewPricingService(pricingCfg, logger),
		services.NewGatewayService(gatewayCfg, logger),
		services.NewExecutionService(backendCfg, nil, logger),
		services.NewReconciliationService(
			services.NewOrderStatusClient(backendCfg, logger),
			services.ReconcilePolicy{PollInterval: time.Millisecond},
			logger,
		),
		services.NewNotificationService(notify.NewHTTPGateway(notify.HTTPConfig{}), logger),
		nil,
		logger,
	)
	t.Cleanup(checkout.Shutdown)

	handler := NewCheckoutHandler(checkout, logger)

	router := gin.New()
	v1 := router.Group("/api/v1/checkout")
	v1.POST("/quote", handler.Quote)
	v1.POST("/attempts", handler.CreateAttempt)
	v1.POST("/attempts/:attempt_id/authorize", handler.Authorize)
	v1.POST("/attempts/:attempt_id/execute", handler.Execute)
	v1.GET("/attempts/:attempt_id", handler.Status)
	v1.DELETE("/attempts/:attempt_id", handler.Teardown)

	return &testStack{
		router:        router,
		gatewayServer: gatewayServer,
		backendServer: backendServer,
		checkout:      checkout,
	}
}

func (s *testStack) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testStack) createAttempt(t *testing.T) string {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/v1/checkout/attempts", map[string]interface{}{
		"base_amount": 100000,
		"payload": map[string]interface{}{
			"type": "flight",
			"flight": map[string]interface{}{
				"offer_id":      "OFF-1",
				"origin":        "RUH",
				"destination":   "JED",
				"departure_day": "2026-09-15",
				"travelers": []map[string]string{
					{"first_name": "Aisha", "last_name": "Khan"},
				},
			},
			"contact_email": "aisha@example.com",
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.CreateAttemptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AttemptID.String()
}

func TestQuoteEndpoint(t *testing.T) {
	stack := setupTestStack(t)

	w := stack.do(t, http.MethodPost, "/api/v1/checkout/quote", map[string]interface{}{
		"base_amount": 100000,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var breakdown models.MoneyBreakdown
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &breakdown))
	assert.Equal(t, models.Amount(100000), breakdown.BaseAmount)
	assert.Equal(t, models.Amount(5000), breakdown.CommissionAmount)
	assert.Equal(t, models.Amount(750), breakdown.VATAmount)
	assert.Equal(t, models.Amount(105750), breakdown.FinalAmount)
	assert.Equal(t, "SAR", breakdown.Currency)
}

func TestQuoteEndpoint_ZeroBase(t *testing.T) {
	stack := setupTestStack(t)

	// A zero base is a valid input: free bookings quote as all zeros.
	w := stack.do(t, http.MethodPost, "/api/v1/checkout/quote", map[string]interface{}{
		"base_amount": 0,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var breakdown models.MoneyBreakdown
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &breakdown))
	assert.Equal(t, models.Amount(0), breakdown.BaseAmount)
	assert.Equal(t, models.Amount(0), breakdown.CommissionAmount)
	assert.Equal(t, models.Amount(0), breakdown.VATAmount)
	assert.Equal(t, models.Amount(0), breakdown.FinalAmount)
}

func TestQuoteEndpoint_MissingBase(t *testing.T) {
	stack := setupTestStack(t)

	w := stack.do(t, http.MethodPost, "/api/v1/checkout/quote", map[string]interface{}{
		"currency": "SAR",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAttemptEndpoint_ZeroBase(t *testing.T) {
	stack := setupTestStack(t)

	w := stack.do(t, http.MethodPost, "/api/v1/checkout/attempts", map[string]interface{}{
		"base_amount": 0,
		"payload": map[string]interface{}{
			"type": "flight",
			"flight": map[string]interface{}{
				"travelers": []map[string]string{
					{"first_name": "Aisha", "last_name": "Khan"},
				},
			},
			"contact_email": "aisha@example.com",
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.CreateAttemptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.Amount(0), resp.Breakdown.FinalAmount)
	assert.Equal(t, "0.00", resp.Widget.Amount)
}

func TestQuoteEndpoint_InvalidBody(t *testing.T) {
	stack := setupTestStack(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	stack.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuoteEndpoint_InvalidRate(t *testing.T) {
	stack := setupTestStack(t)

	w := stack.do(t, http.MethodPost, "/api/v1/checkout/quote", map[string]interface{}{
		"base_amount":     100000,
		"commission_rate": 150,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_amount", resp["error"])
}

func TestCreateAttemptEndpoint(t *testing.T) {
	stack := setupTestStack(t)

	attemptID := stack.createAttempt(t)
	assert.NotEmpty(t, attemptID)
	assert.Equal(t, 1, stack.checkout.AttemptCount())
}

func TestCreateAttemptEndpoint_GatewayDown(t *testing.T) {
	stack := setupTestStack(t)
	stack.gatewayServer.Close()

	w := stack.do(t, http.MethodPost, "/api/v1/checkout/attempts", map[string]interface{}{
		"base_amount": 100000,
		"payload":     map[string]interface{}{"type": "flight"},
	})
	require.Equal(t, http.StatusBadGateway, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "gateway_unavailable", resp["error"])
}

func TestAuthorizeEndpoint(t *testing.T) {
	stack := setupTestStack(t)
	attemptID := stack.createAttempt(t)

	w := stack.do(t, http.MethodPost, "/api/v1/checkout/attempts/"+attemptID+"/authorize",
		map[string]interface{}{"success": true})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "authorized", resp["state"])

	// The widget callback is one-shot.
	w = stack.do(t, http.MethodPost, "/api/v1/checkout/attempts/"+attemptID+"/authorize",
		map[string]interface{}{"success": true})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestExecuteEndpoint_BeforeAuthorization(t *testing.T) {
	stack := setupTestStack(t)
	attemptID := stack.createAttempt(t)

	w := stack.do(t, http.MethodPost, "/api/v1/checkout/attempts/"+attemptID+"/execute", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_attempt_state", resp["error"])
}

func TestExecuteEndpoint_FullFlow(t *testing.T) {
	stack := setupTestStack(t)
	attemptID := stack.createAttempt(t)

	w := stack.do(t, http.MethodPost, "/api/v1/checkout/attempts/"+attemptID+"/authorize",
		map[string]interface{}{"success": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = stack.do(t, http.MethodPost, "/api/v1/checkout/attempts/"+attemptID+"/execute", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var execResp models.ExecuteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &execResp))
	assert.Equal(t, "https://pay.example.com/redirect/abc", execResp.PaymentURL)
	assert.Equal(t, models.AttemptReconciling, execResp.State)

	// The backend reports CONFIRMED, so the attempt settles quickly.
	require.Eventually(t, func() bool {
		w := stack.do(t, http.MethodGet, "/api/v1/checkout/attempts/"+attemptID, nil)
		if w.Code != http.StatusOK {
			return false
		}
		var status models.AttemptStatusResponse
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.State == models.AttemptConfirmed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStatusEndpoint_InvalidID(t *testing.T) {
	stack := setupTestStack(t)

	w := stack.do(t, http.MethodGet, "/api/v1/checkout/attempts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusEndpoint_UnknownAttempt(t *testing.T) {
	stack := setupTestStack(t)

	w := stack.do(t, http.MethodGet, "/api/v1/checkout/attempts/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTeardownEndpoint(t *testing.T) {
	stack := setupTestStack(t)
	attemptID := stack.createAttempt(t)

	w := stack.do(t, http.MethodDelete, "/api/v1/checkout/attempts/"+attemptID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, stack.checkout.AttemptCount())

	w = stack.do(t, http.MethodGet, "/api/v1/checkout/attempts/"+attemptID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
