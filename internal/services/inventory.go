package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oakmall/storefront/internal/apperr"
	"github.com/oakmall/storefront/internal/db"
	"github.com/oakmall/storefront/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InventoryService owns product stock counts. AdjustStock is the only
// sanctioned way to change them.
type InventoryService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewInventoryService creates a new inventory service
func NewInventoryService(db *db.DB, metrics *metrics.AppMetrics) *InventoryService {
	return &InventoryService{
		db:      db,
		metrics: metrics,
	}
}

// AdjustStock applies delta to a product's stock inside the caller's
// transaction. The row is locked for the check-and-write so concurrent
// adjustments serialize. A result below zero fails and changes nothing.
func (s *InventoryService) AdjustStock(ctx context.Context, q db.Queryer, productID int64, delta int) (int, error) {
	start := time.Now()

	query := "SELECT name, stock_quantity FROM products WHERE id = ? FOR UPDATE"
	var name string
	var stock int
	err := q.QueryRowContext(ctx, query, productID).Scan(&name, &stock)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return 0, apperr.NotFound("product not found with id: %d", productID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock product: %w", err)
	}

	newStock := stock + delta
	if newStock < 0 {
		return 0, apperr.Conflict("insufficient stock for product: %s", name)
	}

	start = time.Now()
	updateQuery := "UPDATE products SET stock_quantity = ?, updated_at = NOW() WHERE id = ?"
	_, err = q.ExecContext(ctx, updateQuery, newStock, productID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "products", updateQuery, start, err == nil)
	if err != nil {
		return 0, fmt.Errorf("failed to update stock: %w", err)
	}

	s.metrics.InventoryLevel.Record(ctx, int64(newStock), metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("product_id", productID),
	})...))

	return newStock, nil
}

// Adjust runs AdjustStock in its own transaction. Used for standalone
// stock corrections.
func (s *InventoryService) Adjust(ctx context.Context, productID int64, delta int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	newStock, err := s.AdjustStock(ctx, tx, productID, delta)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return newStock, nil
}
