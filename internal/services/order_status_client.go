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

// OrderStatusClient queries the backend order store for the current
// state of an order. The client only ever observes - order status is
// owned exclusively by the backend.
type OrderStatusClient interface {
	OrderStatus(ctx context.Context, paymentID string) (*models.Order, error)
}

// HTTPOrderStatusClient is the HTTP implementation against the backend
// bookingStatus endpoint.
type HTTPOrderStatusClient struct {
	config config.BackendConfig
	logger *logrus.Logger
	client *http.Client
}

// NewOrderStatusClient creates a new order status client
func NewOrderStatusClient(cfg config.BackendConfig, logger *logrus.Logger) *HTTPOrderStatusClient {
	return &HTTPOrderStatusClient{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// orderStatusRequest is the wire request for the bookingStatus endpoint
type orderStatusRequest struct {
	PaymentID string `json:"paymentId"`
}

// orderStatusResponse is the wire response for the bookingStatus endpoint
type orderStatusResponse struct {
	Status models.OrderStatus `json:"status"`
	Order  *models.Order      `json:"order,omitempty"`
}

// OrderStatus polls the backend for the order keyed by payment ID
func (c *HTTPOrderStatusClient) OrderStatus(ctx context.Context, paymentID string) (*models.Order, error) {
	request := orderStatusRequest{PaymentID: paymentID}

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.OrderStatusURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query order status: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order status endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var statusResp orderStatusResponse
	if err := json.Unmarshal(body, &statusResp); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}

	order := statusResp.Order
	if order == nil {
		order = &models.Order{PaymentID: paymentID}
	}
	order.Status = statusResp.Status

	return order, nil
}
