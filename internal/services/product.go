package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oakmall/storefront/internal/apperr"
	"github.com/oakmall/storefront/internal/db"
	"github.com/oakmall/storefront/internal/metrics"
	"github.com/oakmall/storefront/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const productCacheTTL = 5 * time.Minute

// ProductCache holds cached products
type ProductCache struct {
	mu    sync.RWMutex
	items map[int64]cachedProduct
}

type cachedProduct struct {
	product models.Product
	expires time.Time
}

func NewProductCache() ProductCache {
	return ProductCache{
		items: make(map[int64]cachedProduct),
	}
}

// ProductService handles catalog reads and writes. Reads by ID go through
// a TTL cache; every write invalidates the cached entry.
type ProductService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	cache   ProductCache
}

// NewProductService creates a new product service
func NewProductService(db *db.DB, metrics *metrics.AppMetrics) *ProductService {
	return &ProductService{
		db:      db,
		metrics: metrics,
		cache:   NewProductCache(),
	}
}

const productColumns = "SELECT id, name, description, price, sku, stock_quantity, active, created_at, updated_at"

// ListProducts returns a paginated list of active products
func (s *ProductService) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	start := time.Now()
	query := productColumns + " FROM products WHERE active = TRUE ORDER BY id LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// SearchProducts returns active products whose name or description
// matches the term.
func (s *ProductService) SearchProducts(ctx context.Context, term string, limit int) ([]models.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	pattern := "%" + term + "%"

	start := time.Now()
	query := productColumns + ` FROM products
		WHERE active = TRUE AND (name LIKE ? OR description LIKE ?)
		ORDER BY id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, pattern, pattern, limit)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// GetProduct returns a product by ID
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	s.cache.mu.RLock()
	if cached, exists := s.cache.items[id]; exists && time.Now().Before(cached.expires) {
		s.cache.mu.RUnlock()
		s.metrics.CacheHits.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{})...))
		p := cached.product
		return &p, nil
	}
	s.cache.mu.RUnlock()

	s.metrics.CacheMisses.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{})...))

	start := time.Now()
	query := productColumns + " FROM products WHERE id = ?"
	var p models.Product
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.SKU, &p.StockQuantity, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("product not found with id: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	s.cache.mu.Lock()
	s.cache.items[id] = cachedProduct{
		product: p,
		expires: time.Now().Add(productCacheTTL),
	}
	s.cache.mu.Unlock()

	return &p, nil
}

// CreateProduct adds a product to the catalog. SKU must be unique.
func (s *ProductService) CreateProduct(ctx context.Context, req models.CreateProductRequest) (*models.Product, error) {
	if req.Name == "" || req.SKU == "" {
		return nil, apperr.BadRequest("product name and sku are required")
	}
	if req.Price.IsNegative() {
		return nil, apperr.BadRequest("product price cannot be negative")
	}
	if req.StockQuantity < 0 {
		return nil, apperr.BadRequest("stock quantity cannot be negative")
	}

	start := time.Now()
	query := `
		INSERT INTO products (name, description, price, sku, stock_quantity, active)
		VALUES (?, ?, ?, ?, ?, TRUE)
	`
	result, err := s.db.ExecContext(ctx, query, req.Name, req.Description, req.Price, req.SKU, req.StockQuantity)
	s.metrics.RecordDBQuery(ctx, "INSERT", "products", query, start, err == nil)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, apperr.BadRequest("product already exists with sku: %s", req.SKU)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get product ID: %w", err)
	}

	log.Printf("[PRODUCT] Product created: product_id=%d, sku=%s", id, req.SKU)

	return s.GetProduct(ctx, id)
}

// UpdateProduct rewrites a product's catalog fields.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, req models.CreateProductRequest) (*models.Product, error) {
	if req.Price.IsNegative() {
		return nil, apperr.BadRequest("product price cannot be negative")
	}

	// An identical rewrite reports zero matched rows on this driver, so
	// existence is checked up front rather than from RowsAffected.
	start := time.Now()
	existsQuery := "SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)"
	var exists bool
	err := s.db.QueryRowContext(ctx, existsQuery, id).Scan(&exists)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", existsQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check product: %w", err)
	}
	if !exists {
		return nil, apperr.NotFound("product not found with id: %d", id)
	}

	start = time.Now()
	query := `
		UPDATE products
		SET name = ?, description = ?, price = ?, sku = ?, updated_at = NOW()
		WHERE id = ?
	`
	_, err = s.db.ExecContext(ctx, query, req.Name, req.Description, req.Price, req.SKU, id)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "products", query, start, err == nil)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, apperr.BadRequest("product already exists with sku: %s", req.SKU)
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.Invalidate(id)

	return s.GetProduct(ctx, id)
}

// DeleteProduct deactivates a product. The row stays so order history
// keeps its product references.
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	start := time.Now()
	query := "UPDATE products SET active = FALSE, updated_at = NOW() WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, id)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "products", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("product not found with id: %d", id)
	}

	s.Invalidate(id)

	log.Printf("[PRODUCT] Product deactivated: product_id=%d", id)
	return nil
}

// Invalidate drops a product from the cache. Called after any write that
// changes the row, including stock adjustments made outside this service.
func (s *ProductService) Invalidate(id int64) {
	s.cache.mu.Lock()
	delete(s.cache.items, id)
	s.cache.mu.Unlock()
}

func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.SKU, &p.StockQuantity, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
