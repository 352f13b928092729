package services

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/oakmall/storefront/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustStockIncrease(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewInventoryService(database, newTestMetrics(t))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, stock_quantity FROM products WHERE id = ? FOR UPDATE")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "stock_quantity"}).AddRow("Widget", 10))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET stock_quantity = ?, updated_at = NOW() WHERE id = ?")).
		WithArgs(15, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	newStock, err := svc.Adjust(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 15, newStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustStockFloorsAtZero(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewInventoryService(database, newTestMetrics(t))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, stock_quantity FROM products WHERE id = ? FOR UPDATE")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "stock_quantity"}).AddRow("Widget", 3))
	mock.ExpectRollback()

	_, err := svc.Adjust(context.Background(), 1, -5)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "insufficient stock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustStockToExactlyZero(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewInventoryService(database, newTestMetrics(t))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, stock_quantity FROM products WHERE id = ? FOR UPDATE")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "stock_quantity"}).AddRow("Widget", 5))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET stock_quantity = ?, updated_at = NOW() WHERE id = ?")).
		WithArgs(0, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	newStock, err := svc.Adjust(context.Background(), 1, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, newStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustStockUnknownProduct(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewInventoryService(database, newTestMetrics(t))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, stock_quantity FROM products WHERE id = ? FOR UPDATE")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "stock_quantity"}))
	mock.ExpectRollback()

	_, err := svc.Adjust(context.Background(), 99, 1)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
