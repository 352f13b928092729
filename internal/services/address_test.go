package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/oakmall/storefront/internal/apperr"
	"github.com/oakmall/storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addressRows(id, userID int64, shipping, billing bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "user_id", "title", "full_name", "phone_number", "address_line",
		"city", "state", "country", "postal_code", "default_shipping", "default_billing",
		"created_at", "updated_at",
	}).AddRow(id, userID, "Home", "Ada Smith", "555-0100", "1 Main St",
		"Springfield", "IL", "US", "62701", shipping, billing, now, now)
}

func homeAddressRequest() models.AddressRequest {
	return models.AddressRequest{
		Title:       "Home",
		FullName:    "Ada Smith",
		PhoneNumber: "555-0100",
		AddressLine: "1 Main St",
		City:        "Springfield",
		State:       "IL",
		Country:     "US",
		PostalCode:  "62701",
	}
}

// The first address becomes both defaults no matter what the request
// flags say.
func TestCreateFirstAddressForcesDefaults(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewAddressService(database, newTestMetrics(t))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM addresses WHERE user_id = ? FOR UPDATE")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE addresses SET default_shipping = FALSE, updated_at = NOW() WHERE user_id = ? AND default_shipping = TRUE")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE addresses SET default_billing = FALSE, updated_at = NOW() WHERE user_id = ? AND default_billing = TRUE")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO addresses (user_id, title, full_name, phone_number, address_line,")).
		WithArgs(int64(1), "Home", "Ada Smith", "555-0100", "1 Main St",
			"Springfield", "IL", "US", "62701", true, true).
		WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT id, user_id, title, full_name").
		WithArgs(int64(4), int64(1)).
		WillReturnRows(addressRows(4, 1, true, true))

	address, err := svc.Create(context.Background(), 1, homeAddressRequest())
	require.NoError(t, err)
	assert.True(t, address.DefaultShipping)
	assert.True(t, address.DefaultBilling)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSecondAddressKeepsFlags(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewAddressService(database, newTestMetrics(t))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM addresses WHERE user_id = ? FOR UPDATE")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO addresses (user_id, title, full_name, phone_number, address_line,")).
		WithArgs(int64(1), "Home", "Ada Smith", "555-0100", "1 Main St",
			"Springfield", "IL", "US", "62701", false, false).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT id, user_id, title, full_name").
		WithArgs(int64(5), int64(1)).
		WillReturnRows(addressRows(5, 1, false, false))

	address, err := svc.Create(context.Background(), 1, homeAddressRequest())
	require.NoError(t, err)
	assert.False(t, address.DefaultShipping)
	assert.False(t, address.DefaultBilling)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithShippingDefaultDisplacesOld(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewAddressService(database, newTestMetrics(t))

	req := homeAddressRequest()
	req.DefaultShipping = true

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM addresses WHERE user_id = ? FOR UPDATE")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE addresses SET default_shipping = FALSE, updated_at = NOW() WHERE user_id = ? AND default_shipping = TRUE")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO addresses (user_id, title, full_name, phone_number, address_line,")).
		WithArgs(int64(1), "Home", "Ada Smith", "555-0100", "1 Main St",
			"Springfield", "IL", "US", "62701", true, false).
		WillReturnResult(sqlmock.NewResult(6, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT id, user_id, title, full_name").
		WithArgs(int64(6), int64(1)).
		WillReturnRows(addressRows(6, 1, true, false))

	address, err := svc.Create(context.Background(), 1, req)
	require.NoError(t, err)
	assert.True(t, address.DefaultShipping)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePromotesBillingDefault(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewAddressService(database, newTestMetrics(t))

	req := homeAddressRequest()
	req.DefaultBilling = true

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM addresses WHERE id = ? AND user_id = ? FOR UPDATE")).
		WithArgs(int64(5), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectExec("UPDATE addresses").
		WithArgs("Home", "Ada Smith", "555-0100", "1 Main St",
			"Springfield", "IL", "US", "62701", int64(5), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE addresses SET default_billing = FALSE, updated_at = NOW() WHERE user_id = ? AND default_billing = TRUE")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE addresses SET default_billing = TRUE, updated_at = NOW() WHERE id = ? AND user_id = ?")).
		WithArgs(int64(5), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT id, user_id, title, full_name").
		WithArgs(int64(5), int64(1)).
		WillReturnRows(addressRows(5, 1, false, true))

	address, err := svc.Update(context.Background(), 1, 5, req)
	require.NoError(t, err)
	assert.True(t, address.DefaultBilling)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDefaultShippingSwapsAtomically(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewAddressService(database, newTestMetrics(t))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM addresses WHERE id = ? AND user_id = ? FOR UPDATE")).
		WithArgs(int64(5), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE addresses SET default_shipping = FALSE, updated_at = NOW() WHERE user_id = ? AND default_shipping = TRUE")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE addresses SET default_shipping = TRUE, updated_at = NOW() WHERE id = ? AND user_id = ?")).
		WithArgs(int64(5), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.SetDefaultShipping(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDefaultBillingUnknownAddress(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewAddressService(database, newTestMetrics(t))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM addresses WHERE id = ? AND user_id = ? FOR UPDATE")).
		WithArgs(int64(99), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := svc.SetDefaultBilling(context.Background(), 1, 99)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSoleDefaultAddressBlocked(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewAddressService(database, newTestMetrics(t))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT default_shipping, default_billing FROM addresses WHERE id = ? AND user_id = ? FOR UPDATE")).
		WithArgs(int64(4), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"default_shipping", "default_billing"}).AddRow(true, true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM addresses WHERE user_id = ?")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := svc.Delete(context.Background(), 1, 4)
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDefaultAddressAllowedWhenOthersExist(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewAddressService(database, newTestMetrics(t))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT default_shipping, default_billing FROM addresses WHERE id = ? AND user_id = ? FOR UPDATE")).
		WithArgs(int64(4), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"default_shipping", "default_billing"}).AddRow(true, false))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM addresses WHERE user_id = ?")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM addresses WHERE id = ? AND user_id = ?")).
		WithArgs(int64(4), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.Delete(context.Background(), 1, 4)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteNonDefaultAddress(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewAddressService(database, newTestMetrics(t))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT default_shipping, default_billing FROM addresses WHERE id = ? AND user_id = ? FOR UPDATE")).
		WithArgs(int64(5), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"default_shipping", "default_billing"}).AddRow(false, false))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM addresses WHERE id = ? AND user_id = ?")).
		WithArgs(int64(5), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.Delete(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDefaultShippingMissing(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewAddressService(database, newTestMetrics(t))

	mock.ExpectQuery("SELECT id, user_id, title, full_name").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.GetDefaultShipping(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
