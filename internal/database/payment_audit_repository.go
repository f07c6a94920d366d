package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/tripwell/booking-payment-backend/internal/models"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry
// This should NEVER fail silently - payment events must be logged
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, attempt_id, event_type, event_source,
			session_id, payment_id, invoice_id,
			amount, currency,
			order_status, error_message,
			created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9,
			$10, $11,
			$12
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.AttemptID, audit.EventType, audit.EventSource,
		audit.SessionID, audit.PaymentID, audit.InvoiceID,
		audit.Amount, audit.Currency,
		audit.OrderStatus, audit.ErrorMessage,
		audit.CreatedAt,
	)

	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"attempt_id": audit.AttemptID,
		}).Error("Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
		"attempt_id": audit.AttemptID,
	}).Debug("Payment audit logged")

	return nil
}

// GetByAttemptID retrieves all audit entries for a checkout attempt
func (r *PaymentAuditRepository) GetByAttemptID(ctx context.Context, attemptID uuid.UUID) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT * FROM payment_audits
		WHERE attempt_id = $1
		ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &audits, query, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits by attempt ID: %w", err)
	}

	return audits, nil
}

// GetByPaymentID retrieves all audit entries for a backend payment ID
func (r *PaymentAuditRepository) GetByPaymentID(ctx context.Context, paymentID string) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT * FROM payment_audits
		WHERE payment_id = $1
		ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &audits, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits by payment ID: %w", err)
	}

	return audits, nil
}

// GetRecentFailures retrieves recent failure events for ops review
func (r *PaymentAuditRepository) GetRecentFailures(ctx context.Context, hours int, limit int) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT * FROM payment_audits
		WHERE event_type IN ('session_failed', 'execute_failed', 'order_failed', 'notification_failed')
		AND created_at > NOW() - INTERVAL '1 hour' * $1
		ORDER BY created_at DESC
		LIMIT $2`

	err := r.db.SelectContext(ctx, &audits, query, hours, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent failures: %w", err)
	}

	return audits, nil
}

// DeleteOlderThan removes audit rows past the retention window.
// Used by the background sweeper.
func (r *PaymentAuditRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	query := `
		DELETE FROM payment_audits
		WHERE created_at < NOW() - INTERVAL '1 day' * $1`

	result, err := r.db.ExecContext(ctx, query, days)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audits: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}
