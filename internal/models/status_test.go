package models

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	for _, label := range []string{"PENDING", "confirmed", "Shipped", "DELIVERED", "cancelled"} {
		st, ok := ParseOrderStatus(label)
		assert.True(t, ok, label)
		assert.NotEmpty(t, st)
	}

	_, ok := ParseOrderStatus("RETURNED")
	assert.False(t, ok)
	_, ok = ParseOrderStatus("")
	assert.False(t, ok)
}

func TestParsePaymentMethod(t *testing.T) {
	m, ok := ParsePaymentMethod("credit_card")
	assert.True(t, ok)
	assert.Equal(t, PaymentMethodCreditCard, m)

	m, ok = ParsePaymentMethod("CRYPTO")
	assert.True(t, ok)
	assert.Equal(t, PaymentMethodCrypto, m)

	_, ok = ParsePaymentMethod("IOU")
	assert.False(t, ok)
}

func TestSchemaCoversTransactionEnums(t *testing.T) {
	schema, err := os.ReadFile("../../schema.sql")
	require.NoError(t, err)

	for _, st := range []TransactionStatus{
		TransactionStatusSuccess, TransactionStatusFailed,
		TransactionStatusPending, TransactionStatusCancelled,
	} {
		assert.Contains(t, string(schema), "'"+string(st)+"'")
	}
	for _, tt := range []TransactionType{
		TransactionTypePayment, TransactionTypeRefund, TransactionTypeChargeback,
	} {
		assert.Contains(t, string(schema), "'"+string(tt)+"'")
	}
}

func TestCartItemTotalPrice(t *testing.T) {
	item := CartItem{Quantity: 3, Price: decimal.RequireFromString("19.99")}
	assert.Equal(t, "59.97", item.TotalPrice().StringFixed(2))
}
