package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oakmall/storefront/internal/apperr"
	"github.com/oakmall/storefront/internal/db"
	"github.com/oakmall/storefront/internal/metrics"
	"github.com/oakmall/storefront/internal/models"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CartService owns the single active cart per user and its line items.
// Every mutating operation takes the caller's user id and verifies
// ownership before touching anything.
type CartService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewCartService creates a new cart service
func NewCartService(db *db.DB, metrics *metrics.AppMetrics) *CartService {
	cs := &CartService{
		db:      db,
		metrics: metrics,
	}
	go cs.monitorActiveCarts()
	return cs
}

// monitorActiveCarts periodically updates the active carts gauge
func (s *CartService) monitorActiveCarts() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		query := "SELECT COUNT(DISTINCT c.id) FROM carts c INNER JOIN cart_items ci ON c.id = ci.cart_id WHERE c.status = 'ACTIVE'"
		start := time.Now()
		var count int
		err := s.db.QueryRowContext(ctx, query).Scan(&count)
		s.metrics.RecordDBQuery(ctx, "SELECT", "carts", query, start, err == nil)
		if err == nil {
			s.metrics.ActiveCartsCount.Record(ctx, int64(count), metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{})...))
		}
	}
}

// GetOrCreateActiveCart returns the user's ACTIVE cart, creating an empty
// one if none exists. The unique index on (user_id, active carts) makes
// concurrent first calls converge on a single cart: the losing insert
// re-reads the winner's row.
func (s *CartService) GetOrCreateActiveCart(ctx context.Context, userID int64) (*models.Cart, error) {
	cart, err := s.findActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}

	start := time.Now()
	insertQuery := "INSERT INTO carts (user_id, status) VALUES (?, 'ACTIVE')"
	result, err := s.db.ExecContext(ctx, insertQuery, userID)
	s.metrics.RecordDBQuery(ctx, "INSERT", "carts", insertQuery, start, err == nil)
	if err != nil {
		if isDuplicateKey(err) {
			// Lost the race; someone else created the active cart.
			cart, err = s.findActiveCart(ctx, userID)
			if err != nil {
				return nil, err
			}
			if cart != nil {
				return cart, nil
			}
		}
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get cart ID: %w", err)
	}

	return &models.Cart{
		ID:        id,
		UserID:    userID,
		Status:    models.CartStatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}, nil
}

func (s *CartService) findActiveCart(ctx context.Context, userID int64) (*models.Cart, error) {
	start := time.Now()
	query := "SELECT id, user_id, status, created_at, updated_at FROM carts WHERE user_id = ? AND status = 'ACTIVE' LIMIT 1"
	var cart models.Cart
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&cart.ID, &cart.UserID, &cart.Status, &cart.CreatedAt, &cart.UpdatedAt,
	)
	s.metrics.RecordDBQuery(ctx, "SELECT", "carts", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &cart, nil
}

// AddItem puts a product in the user's active cart. If a line for that
// product already exists its quantity is replaced with the requested one,
// not added to. The unit price is captured on first add and kept.
func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity <= 0 {
		return apperr.BadRequest("quantity must be positive")
	}

	cart, err := s.GetOrCreateActiveCart(ctx, userID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	start := time.Now()
	productQuery := "SELECT name, price, stock_quantity FROM products WHERE id = ? FOR UPDATE"
	var name string
	var price decimal.Decimal
	var stock int
	err = tx.QueryRowContext(ctx, productQuery, productID).Scan(&name, &price, &stock)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", productQuery, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return apperr.NotFound("product not found with id: %d", productID)
	}
	if err != nil {
		return fmt.Errorf("failed to get product: %w", err)
	}

	if stock < quantity {
		return apperr.Conflict("not enough stock for product: %s", name)
	}

	start = time.Now()
	upsertQuery := `
		INSERT INTO cart_items (cart_id, product_id, quantity, price)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity), updated_at = NOW()
	`
	_, err = tx.ExecContext(ctx, upsertQuery, cart.ID, productID, quantity, price)
	s.metrics.RecordDBQuery(ctx, "INSERT", "cart_items", upsertQuery, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to add item to cart: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.updateCartItemsCount(ctx, cart.ID)
	return nil
}

// UpdateItem sets a cart item's quantity. Quantity zero removes the line.
func (s *CartService) UpdateItem(ctx context.Context, userID, cartItemID int64, quantity int) error {
	if quantity < 0 {
		return apperr.BadRequest("quantity must not be negative")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	start := time.Now()
	query := `
		SELECT ci.id, c.user_id, p.name, p.stock_quantity
		FROM cart_items ci
		JOIN carts c ON ci.cart_id = c.id
		JOIN products p ON ci.product_id = p.id
		WHERE ci.id = ?
		FOR UPDATE
	`
	var itemID, ownerID int64
	var name string
	var stock int
	err = tx.QueryRowContext(ctx, query, cartItemID).Scan(&itemID, &ownerID, &name, &stock)
	s.metrics.RecordDBQuery(ctx, "SELECT", "cart_items", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return apperr.NotFound("cart item not found with id: %d", cartItemID)
	}
	if err != nil {
		return fmt.Errorf("failed to get cart item: %w", err)
	}

	if ownerID != userID {
		return apperr.Forbidden("you don't have permission to modify this cart")
	}

	if quantity == 0 {
		start = time.Now()
		deleteQuery := "DELETE FROM cart_items WHERE id = ?"
		_, err = tx.ExecContext(ctx, deleteQuery, cartItemID)
		s.metrics.RecordDBQuery(ctx, "DELETE", "cart_items", deleteQuery, start, err == nil)
		if err != nil {
			return fmt.Errorf("failed to remove cart item: %w", err)
		}
	} else {
		if stock < quantity {
			return apperr.Conflict("not enough stock for product: %s", name)
		}
		start = time.Now()
		updateQuery := "UPDATE cart_items SET quantity = ?, updated_at = NOW() WHERE id = ?"
		_, err = tx.ExecContext(ctx, updateQuery, quantity, cartItemID)
		s.metrics.RecordDBQuery(ctx, "UPDATE", "cart_items", updateQuery, start, err == nil)
		if err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RemoveItem deletes a line item from the caller's cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, cartItemID int64) error {
	start := time.Now()
	query := `
		SELECT ci.id, ci.cart_id, c.user_id
		FROM cart_items ci
		JOIN carts c ON ci.cart_id = c.id
		WHERE ci.id = ?
	`
	var itemID, cartID, ownerID int64
	err := s.db.QueryRowContext(ctx, query, cartItemID).Scan(&itemID, &cartID, &ownerID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "cart_items", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return apperr.NotFound("cart item not found with id: %d", cartItemID)
	}
	if err != nil {
		return fmt.Errorf("failed to get cart item: %w", err)
	}

	if ownerID != userID {
		return apperr.Forbidden("you don't have permission to modify this cart")
	}

	start = time.Now()
	deleteQuery := "DELETE FROM cart_items WHERE id = ?"
	_, err = s.db.ExecContext(ctx, deleteQuery, cartItemID)
	s.metrics.RecordDBQuery(ctx, "DELETE", "cart_items", deleteQuery, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to remove item from cart: %w", err)
	}

	s.updateCartItemsCount(ctx, cartID)
	return nil
}

// Clear removes all line items. The cart stays ACTIVE.
func (s *CartService) Clear(ctx context.Context, userID, cartID int64) error {
	if _, err := s.getOwnedCart(ctx, userID, cartID); err != nil {
		return err
	}

	start := time.Now()
	query := "DELETE FROM cart_items WHERE cart_id = ?"
	_, err := s.db.ExecContext(ctx, query, cartID)
	s.metrics.RecordDBQuery(ctx, "DELETE", "cart_items", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	s.updateCartItemsCount(ctx, cartID)
	return nil
}

// Abandon moves an ACTIVE cart to ABANDONED.
func (s *CartService) Abandon(ctx context.Context, userID, cartID int64) error {
	return s.transition(ctx, userID, cartID, models.CartStatusActive, models.CartStatusAbandoned)
}

// Reactivate moves an ABANDONED cart back to ACTIVE. Fails if the user
// already has another active cart.
func (s *CartService) Reactivate(ctx context.Context, userID, cartID int64) error {
	err := s.transition(ctx, userID, cartID, models.CartStatusAbandoned, models.CartStatusActive)
	if err != nil && isDuplicateKey(err) {
		return apperr.BadRequest("user already has an active cart")
	}
	return err
}

// transition performs a guarded status change under a row lock.
func (s *CartService) transition(ctx context.Context, userID, cartID int64, from, to models.CartStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	start := time.Now()
	query := "SELECT user_id, status FROM carts WHERE id = ? FOR UPDATE"
	var ownerID int64
	var status models.CartStatus
	err = tx.QueryRowContext(ctx, query, cartID).Scan(&ownerID, &status)
	s.metrics.RecordDBQuery(ctx, "SELECT", "carts", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return apperr.NotFound("cart not found with id: %d", cartID)
	}
	if err != nil {
		return fmt.Errorf("failed to get cart: %w", err)
	}

	if ownerID != userID {
		return apperr.Forbidden("you don't have permission to modify this cart")
	}
	if status == models.CartStatusCheckedOut {
		return apperr.BadRequest("cart is already checked out")
	}
	if status != from {
		return apperr.BadRequest("cart is not %s", from)
	}

	start = time.Now()
	updateQuery := "UPDATE carts SET status = ?, updated_at = NOW() WHERE id = ?"
	_, err = tx.ExecContext(ctx, updateQuery, string(to), cartID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "carts", updateQuery, start, err == nil)
	if err != nil {
		if isDuplicateKey(err) {
			return err
		}
		return fmt.Errorf("failed to update cart status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		if isDuplicateKey(err) {
			return err
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetCart returns a cart with all items and the running total.
func (s *CartService) GetCart(ctx context.Context, userID, cartID int64) (*models.CartResponse, error) {
	cart, err := s.getOwnedCart(ctx, userID, cartID)
	if err != nil {
		return nil, err
	}
	return s.buildCartResponse(ctx, cart)
}

// GetCurrentCart returns the user's active cart with items, creating the
// cart if needed.
func (s *CartService) GetCurrentCart(ctx context.Context, userID int64) (*models.CartResponse, error) {
	cart, err := s.GetOrCreateActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.buildCartResponse(ctx, cart)
}

func (s *CartService) buildCartResponse(ctx context.Context, cart *models.Cart) (*models.CartResponse, error) {
	items, err := s.loadItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalPrice())
	}

	s.updateCartItemsCount(ctx, cart.ID)

	return &models.CartResponse{
		Cart:  cart,
		Items: items,
		Total: total,
	}, nil
}

func (s *CartService) loadItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	start := time.Now()
	query := `
		SELECT id, cart_id, product_id, quantity, price, created_at, updated_at
		FROM cart_items
		WHERE cart_id = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, cartID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "cart_items", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.Price, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *CartService) getOwnedCart(ctx context.Context, userID, cartID int64) (*models.Cart, error) {
	start := time.Now()
	query := "SELECT id, user_id, status, created_at, updated_at FROM carts WHERE id = ?"
	var cart models.Cart
	err := s.db.QueryRowContext(ctx, query, cartID).Scan(
		&cart.ID, &cart.UserID, &cart.Status, &cart.CreatedAt, &cart.UpdatedAt,
	)
	s.metrics.RecordDBQuery(ctx, "SELECT", "carts", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("cart not found with id: %d", cartID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if cart.UserID != userID {
		return nil, apperr.Forbidden("you don't have permission to access this cart")
	}
	return &cart, nil
}

// updateCartItemsCount updates the cart items count gauge metric
func (s *CartService) updateCartItemsCount(ctx context.Context, cartID int64) {
	start := time.Now()

	query := "SELECT COUNT(*), MAX(c.user_id) FROM cart_items ci JOIN carts c ON ci.cart_id = c.id WHERE ci.cart_id = ?"
	var count int
	var userID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, cartID).Scan(&count, &userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "cart_items", query, start, err == nil)

	if err == nil && userID.Valid {
		attrs := s.metrics.WithServiceName([]attribute.KeyValue{
			attribute.Int64("user_id", userID.Int64),
		})
		s.metrics.CartItemsCount.Record(ctx, int64(count), metric.WithAttributes(attrs...))
	}
}
