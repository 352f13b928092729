package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oakmall/storefront/internal/apperr"
	"github.com/oakmall/storefront/internal/db"
	"github.com/oakmall/storefront/internal/metrics"
	"github.com/oakmall/storefront/internal/models"
	"github.com/oakmall/storefront/internal/notify"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PaymentService creates the one payment per order and drives it through
// its lifecycle, appending an immutable transaction log entry for every
// attempt.
type PaymentService struct {
	db       *db.DB
	metrics  *metrics.AppMetrics
	notifier notify.Notifier
}

// NewPaymentService creates a new payment service
func NewPaymentService(db *db.DB, metrics *metrics.AppMetrics, notifier notify.Notifier) *PaymentService {
	return &PaymentService{
		db:       db,
		metrics:  metrics,
		notifier: notifier,
	}
}

// CreatePayment creates a PENDING payment for an order, amount copied
// from the order total. At most one payment per order: enforced by an
// existence check and backed by the unique key on payments.order_id.
func (s *PaymentService) CreatePayment(ctx context.Context, orderID int64, method string) (*models.Payment, error) {
	paymentMethod, ok := models.ParsePaymentMethod(method)
	if !ok {
		return nil, apperr.BadRequest("invalid payment method: %s", method)
	}

	start := time.Now()
	orderQuery := "SELECT total_amount FROM orders WHERE id = ?"
	var amount decimal.Decimal
	err := s.db.QueryRowContext(ctx, orderQuery, orderID).Scan(&amount)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", orderQuery, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("order not found with id: %d", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	start = time.Now()
	existsQuery := "SELECT EXISTS(SELECT 1 FROM payments WHERE order_id = ?)"
	var exists bool
	err = s.db.QueryRowContext(ctx, existsQuery, orderID).Scan(&exists)
	s.metrics.RecordDBQuery(ctx, "SELECT", "payments", existsQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing payment: %w", err)
	}
	if exists {
		return nil, apperr.BadRequest("payment already exists for order: %d", orderID)
	}

	txnID := newTransactionRef()

	start = time.Now()
	insertQuery := `
		INSERT INTO payments (order_id, amount, status, payment_method, transaction_id)
		VALUES (?, ?, 'PENDING', ?, ?)
	`
	result, err := s.db.ExecContext(ctx, insertQuery, orderID, amount, string(paymentMethod), txnID)
	s.metrics.RecordDBQuery(ctx, "INSERT", "payments", insertQuery, start, err == nil)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, apperr.BadRequest("payment already exists for order: %d", orderID)
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get payment ID: %w", err)
	}

	log.Printf("[PAYMENT] Payment created: payment_id=%d, order_id=%d, amount=%s", id, orderID, amount)

	return &models.Payment{
		ID:            id,
		OrderID:       orderID,
		Amount:        amount,
		Status:        models.PaymentStatusPending,
		PaymentMethod: paymentMethod,
		TransactionID: txnID,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}, nil
}

// Process runs the local payment simulation: PENDING payment moves to
// PROCESSING, a PAYMENT transaction is appended, and the payment lands on
// COMPLETED. Any failure marks the payment FAILED and surfaces as a
// payment-processing error.
func (s *PaymentService) Process(ctx context.Context, paymentID int64) error {
	payment, err := s.getPaymentRow(ctx, paymentID)
	if err != nil {
		return err
	}

	if err := s.processTx(ctx, payment); err != nil {
		s.markFailed(ctx, paymentID)
		s.recordProcessed(ctx, string(payment.PaymentMethod), false)
		return apperr.PaymentFailed("payment processing failed", err)
	}

	s.recordProcessed(ctx, string(payment.PaymentMethod), true)

	notify.Dispatch(s.notifier, notify.Event{
		Type:      notify.EventPaymentCompleted,
		OrderID:   payment.OrderID,
		PaymentID: payment.ID,
		Amount:    payment.Amount,
	})
	return nil
}

func (s *PaymentService) processTx(ctx context.Context, payment *models.Payment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	start := time.Now()
	processingQuery := "UPDATE payments SET status = 'PROCESSING', updated_at = NOW() WHERE id = ?"
	_, err = tx.ExecContext(ctx, processingQuery, payment.ID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "payments", processingQuery, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to mark payment processing: %w", err)
	}

	if err := s.appendTransaction(ctx, tx, payment.ID, models.TransactionStatusSuccess, models.TransactionTypePayment); err != nil {
		return err
	}

	start = time.Now()
	completedQuery := "UPDATE payments SET status = 'COMPLETED', updated_at = NOW() WHERE id = ?"
	_, err = tx.ExecContext(ctx, completedQuery, payment.ID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "payments", completedQuery, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to mark payment completed: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// markFailed is best effort; the processing error is what the caller sees.
func (s *PaymentService) markFailed(ctx context.Context, paymentID int64) {
	start := time.Now()
	query := "UPDATE payments SET status = 'FAILED', updated_at = NOW() WHERE id = ?"
	_, err := s.db.ExecContext(ctx, query, paymentID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "payments", query, start, err == nil)
	if err != nil {
		log.Printf("failed to mark payment %d as FAILED: %v", paymentID, err)
	}
}

// Refund moves a COMPLETED payment to REFUNDED and appends a REFUND
// transaction. Any other status is rejected with no log entry.
func (s *PaymentService) Refund(ctx context.Context, paymentID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	payment, err := s.lockPaymentRow(ctx, tx, paymentID)
	if err != nil {
		return err
	}

	if payment.Status != models.PaymentStatusCompleted {
		return apperr.BadRequest("only completed payments can be refunded")
	}

	start := time.Now()
	query := "UPDATE payments SET status = 'REFUNDED', updated_at = NOW() WHERE id = ?"
	_, err = tx.ExecContext(ctx, query, paymentID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "payments", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to refund payment: %w", err)
	}

	if err := s.appendTransaction(ctx, tx, paymentID, models.TransactionStatusSuccess, models.TransactionTypeRefund); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	notify.Dispatch(s.notifier, notify.Event{
		Type:      notify.EventPaymentRefunded,
		OrderID:   payment.OrderID,
		PaymentID: payment.ID,
		Amount:    payment.Amount,
	})
	return nil
}

// Cancel moves a PENDING payment to CANCELLED. The log entry carries the
// CHARGEBACK type; cancellations have always been recorded that way.
func (s *PaymentService) Cancel(ctx context.Context, paymentID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	payment, err := s.lockPaymentRow(ctx, tx, paymentID)
	if err != nil {
		return err
	}

	if payment.Status != models.PaymentStatusPending {
		return apperr.BadRequest("only pending payments can be cancelled")
	}

	start := time.Now()
	query := "UPDATE payments SET status = 'CANCELLED', updated_at = NOW() WHERE id = ?"
	_, err = tx.ExecContext(ctx, query, paymentID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "payments", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to cancel payment: %w", err)
	}

	if err := s.appendTransaction(ctx, tx, paymentID, models.TransactionStatusSuccess, models.TransactionTypeChargeback); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsCompleted reports whether the order's payment is COMPLETED. No
// payment means false, never an error.
func (s *PaymentService) IsCompleted(ctx context.Context, orderID int64) (bool, error) {
	start := time.Now()
	query := "SELECT status FROM payments WHERE order_id = ?"
	var status models.PaymentStatus
	err := s.db.QueryRowContext(ctx, query, orderID).Scan(&status)
	s.metrics.RecordDBQuery(ctx, "SELECT", "payments", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get payment: %w", err)
	}
	return status == models.PaymentStatusCompleted, nil
}

// GetPayment returns a payment by ID with its transaction log.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID int64) (*models.Payment, error) {
	payment, err := s.getPaymentRow(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	transactions, err := s.loadTransactions(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	payment.Transactions = transactions

	return payment, nil
}

// GetPaymentByOrderID returns the payment for an order.
func (s *PaymentService) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	start := time.Now()
	query := paymentColumns + " FROM payments WHERE order_id = ?"
	var payment models.Payment
	err := s.db.QueryRowContext(ctx, query, orderID).Scan(
		&payment.ID, &payment.OrderID, &payment.Amount, &payment.Status,
		&payment.PaymentMethod, &payment.TransactionID, &payment.CreatedAt, &payment.UpdatedAt,
	)
	s.metrics.RecordDBQuery(ctx, "SELECT", "payments", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("payment not found for order: %d", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	transactions, err := s.loadTransactions(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	payment.Transactions = transactions

	return &payment, nil
}

// GetPaymentsByStatus returns all payments in the given status.
func (s *PaymentService) GetPaymentsByStatus(ctx context.Context, status string) ([]models.Payment, error) {
	st := models.PaymentStatus(strings.ToUpper(status))
	switch st {
	case models.PaymentStatusPending, models.PaymentStatusProcessing, models.PaymentStatusCompleted,
		models.PaymentStatusFailed, models.PaymentStatusRefunded, models.PaymentStatusCancelled:
	default:
		return nil, apperr.BadRequest("invalid payment status: %s", status)
	}

	start := time.Now()
	query := paymentColumns + " FROM payments WHERE status = ? ORDER BY created_at DESC"
	rows, err := s.db.QueryContext(ctx, query, string(st))
	s.metrics.RecordDBQuery(ctx, "SELECT", "payments", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var payment models.Payment
		if err := rows.Scan(
			&payment.ID, &payment.OrderID, &payment.Amount, &payment.Status,
			&payment.PaymentMethod, &payment.TransactionID, &payment.CreatedAt, &payment.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

const paymentColumns = "SELECT id, order_id, amount, status, payment_method, transaction_id, created_at, updated_at"

func (s *PaymentService) getPaymentRow(ctx context.Context, paymentID int64) (*models.Payment, error) {
	start := time.Now()
	query := paymentColumns + " FROM payments WHERE id = ?"
	var payment models.Payment
	err := s.db.QueryRowContext(ctx, query, paymentID).Scan(
		&payment.ID, &payment.OrderID, &payment.Amount, &payment.Status,
		&payment.PaymentMethod, &payment.TransactionID, &payment.CreatedAt, &payment.UpdatedAt,
	)
	s.metrics.RecordDBQuery(ctx, "SELECT", "payments", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("payment not found with id: %d", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (s *PaymentService) lockPaymentRow(ctx context.Context, tx *sql.Tx, paymentID int64) (*models.Payment, error) {
	start := time.Now()
	query := paymentColumns + " FROM payments WHERE id = ? FOR UPDATE"
	var payment models.Payment
	err := tx.QueryRowContext(ctx, query, paymentID).Scan(
		&payment.ID, &payment.OrderID, &payment.Amount, &payment.Status,
		&payment.PaymentMethod, &payment.TransactionID, &payment.CreatedAt, &payment.UpdatedAt,
	)
	s.metrics.RecordDBQuery(ctx, "SELECT", "payments", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("payment not found with id: %d", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (s *PaymentService) appendTransaction(ctx context.Context, q db.Queryer, paymentID int64, status models.TransactionStatus, txType models.TransactionType) error {
	start := time.Now()
	query := "INSERT INTO payment_transactions (payment_id, status, type, reference) VALUES (?, ?, ?, ?)"
	_, err := q.ExecContext(ctx, query, paymentID, string(status), string(txType), newTransactionRef())
	s.metrics.RecordDBQuery(ctx, "INSERT", "payment_transactions", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to append payment transaction: %w", err)
	}
	return nil
}

func (s *PaymentService) loadTransactions(ctx context.Context, paymentID int64) ([]models.PaymentTransaction, error) {
	start := time.Now()
	query := `
		SELECT id, payment_id, status, type, reference, error_code, error_message, created_at
		FROM payment_transactions
		WHERE payment_id = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, paymentID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "payment_transactions", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.PaymentTransaction
	for rows.Next() {
		var txn models.PaymentTransaction
		if err := rows.Scan(&txn.ID, &txn.PaymentID, &txn.Status, &txn.Type, &txn.Reference, &txn.ErrorCode, &txn.ErrorMessage, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}

func (s *PaymentService) recordProcessed(ctx context.Context, method string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	attrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("payment_method", method),
		attribute.String("status", status),
	})
	s.metrics.PaymentsProcessed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// newTransactionRef returns an opaque 20-character reference.
func newTransactionRef() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}
