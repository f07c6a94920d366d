package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tripwell/booking-payment-backend/internal/models"
	"github.com/tripwell/booking-payment-backend/internal/services"
)

// CheckoutHandler handles the checkout attempt endpoints
type CheckoutHandler struct {
	checkoutService *services.CheckoutService
	logger          *logrus.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkoutService *services.CheckoutService, logger *logrus.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		logger:          logger,
	}
}

// Quote derives a price breakdown without starting an attempt
// POST /api/v1/checkout/quote
func (h *CheckoutHandler) Quote(c *gin.Context) {
	var req models.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	breakdown, err := h.checkoutService.Quote(&req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, breakdown)
}

// CreateAttempt starts a checkout attempt and returns the widget params
// POST /api/v1/checkout/attempts
func (h *CheckoutHandler) CreateAttempt(c *gin.Context) {
	var req models.CreateAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	response, err := h.checkoutService.CreateAttempt(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// Authorize handles the hosted widget's authorization callback
// POST /api/v1/checkout/attempts/:attempt_id/authorize
func (h *CheckoutHandler) Authorize(c *gin.Context) {
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}

	var req models.AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	attempt, err := h.checkoutService.Authorize(attemptID, req.Success)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt_id": attempt.ID,
		"state":      attempt.State,
	})
}

// Execute dispatches the authorized attempt to the backend execute step
// POST /api/v1/checkout/attempts/:attempt_id/execute
func (h *CheckoutHandler) Execute(c *gin.Context) {
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}

	response, err := h.checkoutService.Execute(c.Request.Context(), attemptID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Status returns the current observation of one attempt
// GET /api/v1/checkout/attempts/:attempt_id
func (h *CheckoutHandler) Status(c *gin.Context) {
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}

	response, err := h.checkoutService.Status(attemptID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Teardown cancels the attempt's poll loop and drops the attempt
// DELETE /api/v1/checkout/attempts/:attempt_id
func (h *CheckoutHandler) Teardown(c *gin.Context) {
	attemptID, ok := h.attemptID(c)
	if !ok {
		return
	}

	if err := h.checkoutService.Teardown(attemptID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "attempt removed"})
}

// attemptID parses the attempt_id path parameter
func (h *CheckoutHandler) attemptID(c *gin.Context) (uuid.UUID, bool) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt_id"})
		return uuid.Nil, false
	}
	return attemptID, true
}

// respondError maps the typed checkout errors onto HTTP statuses
func (h *CheckoutHandler) respondError(c *gin.Context, err error) {
	var invalidAmount *models.InvalidAmountError
	var incomplete *models.IncompleteBookingDataError
	var gatewayDown *models.GatewayUnavailableError
	var execFailed *models.PaymentExecutionError
	var badState *models.AttemptStateError

	switch {
	case errors.As(err, &invalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount", "message": err.Error()})
	case errors.As(err, &incomplete):
		c.JSON(http.StatusBadRequest, gin.H{"error": "incomplete_booking_data", "message": err.Error()})
	case errors.As(err, &gatewayDown):
		h.logger.WithError(err).Error("Payment gateway unavailable")
		c.JSON(http.StatusBadGateway, gin.H{"error": "gateway_unavailable", "message": "payment gateway is unavailable, please try again"})
	case errors.As(err, &execFailed):
		h.logger.WithError(err).Error("Payment execution failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment_execution_failed", "message": execFailed.Reason})
	case errors.As(err, &badState):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_attempt_state", "message": err.Error()})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	}
}
