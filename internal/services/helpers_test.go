package services

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/oakmall/storefront/internal/db"
	"github.com/oakmall/storefront/internal/metrics"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func newMockDB(t *testing.T) (*db.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db.Wrap(sqlDB), mock
}

func newTestMetrics(t *testing.T) *metrics.AppMetrics {
	t.Helper()
	m, err := metrics.NewAppMetrics(noop.NewMeterProvider().Meter("test"), "test")
	require.NoError(t, err)
	return m
}
