package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPGateway dispatches confirmation notifications via the messaging
// service's REST endpoint.
type HTTPGateway struct {
	url    string
	apiKey string
	client *http.Client
}

// HTTPConfig holds configuration for the HTTP notification gateway
type HTTPConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// NewHTTPGateway creates a new HTTP notification gateway client
func NewHTTPGateway(config HTTPConfig) *HTTPGateway {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		url:    config.URL,
		apiKey: config.APIKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// sendRequest is the wire shape of the notify endpoint
type sendRequest struct {
	TicketInfo string `json:"ticketInfo"`
	To         string `json:"to"`
}

// sendResponse is the wire shape of the notify endpoint's reply
type sendResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SendConfirmation delivers the ticket summary to the given address
func (g *HTTPGateway) SendConfirmation(to string, ticketInfo string) error {
	if g.url == "" {
		return fmt.Errorf("notification gateway not configured")
	}
	if to == "" {
		return fmt.Errorf("notification recipient is required")
	}

	payload := sendRequest{
		TicketInfo: ticketInfo,
		To:         to,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, g.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", g.apiKey))
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read notification response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var sendResp sendResponse
	if err := json.Unmarshal(body, &sendResp); err != nil {
		// A 2xx with an unparseable body still counts as delivered;
		// the endpoint is fire-and-forget from our perspective.
		return nil
	}

	if sendResp.Status != "" && sendResp.Status != "success" && sendResp.Status != "ok" {
		return fmt.Errorf("notification dispatch failed: %s", sendResp.Message)
	}

	return nil
}

// GetName returns the name of this notification gateway
func (g *HTTPGateway) GetName() string {
	return "HTTP Notify Gateway"
}
