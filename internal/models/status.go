package models

import "strings"

// CartStatus is the lifecycle state of a cart.
type CartStatus string

const (
	CartStatusActive     CartStatus = "ACTIVE"
	CartStatusAbandoned  CartStatus = "ABANDONED"
	CartStatusCheckedOut CartStatus = "CHECKED_OUT"
)

// OrderStatus is the lifecycle state of an order. Any status may follow any
// other; only membership in the set is enforced.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ParseOrderStatus validates a status label case-insensitively.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(strings.ToUpper(s)); st {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return st, true
	}
	return "", false
}

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)

// PaymentMethod is a supported way to pay.
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodPaypal       PaymentMethod = "PAYPAL"
	PaymentMethodCrypto       PaymentMethod = "CRYPTO"
)

// ParsePaymentMethod validates a payment method label case-insensitively.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(strings.ToUpper(s)); m {
	case PaymentMethodCreditCard, PaymentMethodBankTransfer,
		PaymentMethodPaypal, PaymentMethodCrypto:
		return m, true
	}
	return "", false
}

// TransactionStatus is the outcome recorded on a payment transaction.
type TransactionStatus string

const (
	TransactionStatusSuccess   TransactionStatus = "SUCCESS"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// TransactionType is the kind of payment transaction logged.
type TransactionType string

const (
	TransactionTypePayment    TransactionType = "PAYMENT"
	TransactionTypeRefund     TransactionType = "REFUND"
	TransactionTypeChargeback TransactionType = "CHARGEBACK"
)
