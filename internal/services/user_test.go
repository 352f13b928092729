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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewUserService(database, newTestMetrics(t))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email, name) VALUES (?, ?)")).
		WithArgs("ada@example.com", "Ada").
		WillReturnResult(sqlmock.NewResult(1, 1))

	user, err := svc.CreateUser(context.Background(), models.CreateUserRequest{Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Registering an existing email hands back the existing account instead
// of failing.
func TestCreateUserExistingEmail(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewUserService(database, newTestMetrics(t))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email, name) VALUES (?, ?)")).
		WithArgs("ada@example.com", "Ada").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, name, created_at FROM users WHERE email = ?")).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "created_at"}).
			AddRow(1, "ada@example.com", "Ada", time.Now()))

	user, err := svc.CreateUser(context.Background(), models.CreateUserRequest{Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserValidation(t *testing.T) {
	database, _ := newMockDB(t)
	svc := NewUserService(database, newTestMetrics(t))

	_, err := svc.CreateUser(context.Background(), models.CreateUserRequest{Email: "ada@example.com"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestGetUserNotFound(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewUserService(database, newTestMetrics(t))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, name, created_at FROM users WHERE id = ?")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.GetUser(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsByEmail(t *testing.T) {
	database, mock := newMockDB(t)
	svc := NewUserService(database, newTestMetrics(t))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)")).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := svc.ExistsByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
