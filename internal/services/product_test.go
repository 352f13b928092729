package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/oakmall/storefront/internal/apperr"
	"github.com/oakmall/storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productRows(id int64, name, sku string, stock int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "description", "price", "sku", "stock_quantity", "active", "created_at", "updated_at",
	}).AddRow(id, name, "", "19.99", sku, stock, true, now, now)
}

func TestGetProductCachesResult(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewProductService(database, newTestMetrics(t))

	// Only one query expected; the second read is served from cache.
	mock.ExpectQuery("SELECT id, name, description, price").
		WithArgs(int64(2)).
		WillReturnRows(productRows(2, "Widget", "WID-1", 8))

	first, err := svc.GetProduct(context.Background(), 2)
	require.NoError(t, err)

	second, err := svc.GetProduct(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductNotFound(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewProductService(database, newTestMetrics(t))

	mock.ExpectQuery("SELECT id, name, description, price").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.GetProduct(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewProductService(database, newTestMetrics(t))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products (name, description, price, sku, stock_quantity, active)")).
		WithArgs("Widget", "", sqlmock.AnyArg(), "WID-1", 8).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := svc.CreateProduct(context.Background(), models.CreateProductRequest{
		Name:          "Widget",
		Price:         decimal.NewFromFloat(19.99),
		SKU:           "WID-1",
		StockQuantity: 8,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "WID-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductValidation(t *testing.T) {
	database, _ := newMockDB(t)
	svc := NewProductService(database, newTestMetrics(t))

	_, err := svc.CreateProduct(context.Background(), models.CreateProductRequest{Name: "Widget"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))

	_, err = svc.CreateProduct(context.Background(), models.CreateProductRequest{
		Name:  "Widget",
		SKU:   "WID-1",
		Price: decimal.NewFromInt(-1),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestUpdateProductUnchangedRowStillSucceeds(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewProductService(database, newTestMetrics(t))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products")).
		WithArgs("Widget", "", sqlmock.AnyArg(), "WID-1", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, name, description, price").
		WithArgs(int64(2)).
		WillReturnRows(productRows(2, "Widget", "WID-1", 8))

	product, err := svc.UpdateProduct(context.Background(), 2, models.CreateProductRequest{
		Name:  "Widget",
		Price: decimal.NewFromFloat(19.99),
		SKU:   "WID-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), product.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProductUnknown(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewProductService(database, newTestMetrics(t))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := svc.UpdateProduct(context.Background(), 99, models.CreateProductRequest{
		Name:  "Widget",
		Price: decimal.NewFromFloat(19.99),
		SKU:   "WID-1",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProductUnknown(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewProductService(database, newTestMetrics(t))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET active = FALSE, updated_at = NOW() WHERE id = ?")).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.DeleteProduct(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProductsClampsPaging(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewProductService(database, newTestMetrics(t))

	mock.ExpectQuery("SELECT id, name, description, price").
		WithArgs(20, 0).
		WillReturnRows(productRows(2, "Widget", "WID-1", 8))

	products, err := svc.ListProducts(context.Background(), -5, -3)
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchProducts(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewProductService(database, newTestMetrics(t))

	mock.ExpectQuery("SELECT id, name, description, price").
		WithArgs("%wid%", "%wid%", 20).
		WillReturnRows(productRows(2, "Widget", "WID-1", 8))

	products, err := svc.SearchProducts(context.Background(), "wid", 0)
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, "Widget", products[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
