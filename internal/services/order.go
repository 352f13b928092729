package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/oakmall/storefront/internal/apperr"
	"github.com/oakmall/storefront/internal/db"
	"github.com/oakmall/storefront/internal/metrics"
	"github.com/oakmall/storefront/internal/models"
	"github.com/oakmall/storefront/internal/notify"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OrderService converts checked-out carts into immutable orders and
// drives order status transitions.
type OrderService struct {
	db       *db.DB
	metrics  *metrics.AppMetrics
	notifier notify.Notifier
}

// NewOrderService creates a new order service
func NewOrderService(db *db.DB, metrics *metrics.AppMetrics, notifier notify.Notifier) *OrderService {
	return &OrderService{
		db:       db,
		metrics:  metrics,
		notifier: notifier,
	}
}

// CreateOrder snapshots the cart into an order and flips the cart to
// CHECKED_OUT, all inside one transaction. Either both commit or neither
// does. Stock is not re-validated here; it was checked when items entered
// the cart.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, req models.CreateOrderRequest) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	start := time.Now()
	cartQuery := "SELECT user_id, status FROM carts WHERE id = ? FOR UPDATE"
	var ownerID int64
	var cartStatus models.CartStatus
	err = tx.QueryRowContext(ctx, cartQuery, req.CartID).Scan(&ownerID, &cartStatus)
	s.metrics.RecordDBQuery(ctx, "SELECT", "carts", cartQuery, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("cart not found with id: %d", req.CartID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if ownerID != userID {
		return nil, apperr.Forbidden("you don't have permission to access this cart")
	}
	if cartStatus != models.CartStatusActive {
		return nil, apperr.BadRequest("cart is not active")
	}

	start = time.Now()
	itemsQuery := "SELECT product_id, quantity, price FROM cart_items WHERE cart_id = ? ORDER BY id"
	rows, err := tx.QueryContext(ctx, itemsQuery, req.CartID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "cart_items", itemsQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}

	type line struct {
		productID int64
		quantity  int
		price     decimal.Decimal
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.quantity, &l.price); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read cart items: %w", err)
	}
	rows.Close()

	if len(lines) == 0 {
		return nil, apperr.BadRequest("cart is empty")
	}

	totalAmount := decimal.Zero
	for _, l := range lines {
		totalAmount = totalAmount.Add(l.price.Mul(decimal.NewFromInt(int64(l.quantity))))
	}

	start = time.Now()
	orderQuery := `
		INSERT INTO orders (user_id, status, shipping_address, billing_address, payment_method, total_amount)
		VALUES (?, 'PENDING', ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, orderQuery, userID, req.ShippingAddress, req.BillingAddress, req.PaymentMethod, totalAmount)
	s.metrics.RecordDBQuery(ctx, "INSERT", "orders", orderQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	orderID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get order ID: %w", err)
	}

	start = time.Now()
	itemQuery := "INSERT INTO order_items (order_id, product_id, quantity, price) VALUES (?, ?, ?, ?)"
	for _, l := range lines {
		_, err = tx.ExecContext(ctx, itemQuery, orderID, l.productID, l.quantity, l.price)
		s.metrics.RecordDBQuery(ctx, "INSERT", "order_items", itemQuery, start, err == nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
	}

	start = time.Now()
	checkoutQuery := "UPDATE carts SET status = 'CHECKED_OUT', updated_at = NOW() WHERE id = ?"
	_, err = tx.ExecContext(ctx, checkoutQuery, req.CartID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "carts", checkoutQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check out cart: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("[ORDER] Order created: order_id=%d, total=%s, items=%d", orderID, totalAmount, len(lines))

	total, _ := totalAmount.Float64()
	attrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("order_status", string(models.OrderStatusPending)),
		attribute.String("payment_method", req.PaymentMethod),
	})
	s.metrics.OrdersCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
	s.metrics.RevenueTotal.Add(ctx, total, metric.WithAttributes(attrs...))

	notify.Dispatch(s.notifier, notify.Event{
		Type:    notify.EventOrderCreated,
		UserID:  userID,
		OrderID: orderID,
		Amount:  totalAmount,
	})

	return s.GetOrder(ctx, orderID)
}

// GetOrder returns an order by ID, items included.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	start := time.Now()

	query := `
		SELECT id, user_id, status, shipping_address, billing_address, payment_method,
		       tracking_number, total_amount, created_at, updated_at
		FROM orders WHERE id = ?
	`
	var order models.Order
	err := s.db.QueryRowContext(ctx, query, orderID).Scan(
		&order.ID, &order.UserID, &order.Status, &order.ShippingAddress, &order.BillingAddress,
		&order.PaymentMethod, &order.TrackingNumber, &order.TotalAmount, &order.CreatedAt, &order.UpdatedAt,
	)

	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("order not found with id: %d", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := s.loadItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (s *OrderService) loadItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	start := time.Now()
	query := "SELECT id, order_id, product_id, quantity, price, created_at FROM order_items WHERE order_id = ? ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query, orderID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "order_items", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetUserOrders returns a page of the user's orders, newest first.
func (s *OrderService) GetUserOrders(ctx context.Context, userID int64, page, pageSize int) ([]models.Order, error) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	start := time.Now()
	query := `
		SELECT id, user_id, status, shipping_address, billing_address, payment_method,
		       tracking_number, total_amount, created_at, updated_at
		FROM orders WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, pageSize, page*pageSize)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// GetUserOrdersByStatus returns the user's orders in the given status.
func (s *OrderService) GetUserOrdersByStatus(ctx context.Context, userID int64, status string) ([]models.Order, error) {
	orderStatus, ok := models.ParseOrderStatus(status)
	if !ok {
		return nil, apperr.BadRequest("invalid order status: %s", status)
	}

	start := time.Now()
	query := `
		SELECT id, user_id, status, shipping_address, billing_address, payment_method,
		       tracking_number, total_amount, created_at, updated_at
		FROM orders WHERE user_id = ? AND status = ?
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, string(orderStatus))
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.Status, &order.ShippingAddress, &order.BillingAddress,
			&order.PaymentMethod, &order.TrackingNumber, &order.TotalAmount, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// UpdateStatus moves an order to a new status. Only enum membership is
// enforced; any status may follow any other. A supplied tracking number
// overwrites unconditionally.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status string, trackingNumber *string) error {
	orderStatus, ok := models.ParseOrderStatus(status)
	if !ok {
		return apperr.BadRequest("invalid order status: %s", status)
	}

	// RowsAffected is unreliable here: an UPDATE that changes nothing
	// reports zero matched rows on this driver, so check existence first.
	start := time.Now()
	existsQuery := "SELECT EXISTS(SELECT 1 FROM orders WHERE id = ?)"
	var exists bool
	err := s.db.QueryRowContext(ctx, existsQuery, orderID).Scan(&exists)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", existsQuery, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	if !exists {
		return apperr.NotFound("order not found with id: %d", orderID)
	}

	start = time.Now()
	var query string
	if trackingNumber != nil {
		query = "UPDATE orders SET status = ?, tracking_number = ?, updated_at = NOW() WHERE id = ?"
		_, err = s.db.ExecContext(ctx, query, string(orderStatus), *trackingNumber, orderID)
	} else {
		query = "UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?"
		_, err = s.db.ExecContext(ctx, query, string(orderStatus), orderID)
	}
	s.metrics.RecordDBQuery(ctx, "UPDATE", "orders", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	return nil
}

// DeleteOrder hard-deletes an order. Only PENDING orders can be deleted.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	start := time.Now()
	query := "SELECT status FROM orders WHERE id = ? FOR UPDATE"
	var status models.OrderStatus
	err = tx.QueryRowContext(ctx, query, orderID).Scan(&status)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return apperr.NotFound("order not found with id: %d", orderID)
	}
	if err != nil {
		return fmt.Errorf("failed to get order: %w", err)
	}

	if status != models.OrderStatusPending {
		return apperr.BadRequest("can only delete orders in PENDING status")
	}

	start = time.Now()
	deleteItemsQuery := "DELETE FROM order_items WHERE order_id = ?"
	_, err = tx.ExecContext(ctx, deleteItemsQuery, orderID)
	s.metrics.RecordDBQuery(ctx, "DELETE", "order_items", deleteItemsQuery, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to delete order items: %w", err)
	}

	start = time.Now()
	deleteQuery := "DELETE FROM orders WHERE id = ?"
	_, err = tx.ExecContext(ctx, deleteQuery, orderID)
	s.metrics.RecordDBQuery(ctx, "DELETE", "orders", deleteQuery, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
