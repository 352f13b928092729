package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog. Stock is mutated only
// through the inventory service.
type Product struct {
	ID            int64           `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Description   string          `json:"description" db:"description"`
	Price         decimal.Decimal `json:"price" db:"price"`
	SKU           string          `json:"sku" db:"sku"`
	StockQuantity int             `json:"stock_quantity" db:"stock_quantity"`
	Active        bool            `json:"active" db:"active"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// User represents a user account
type User struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Cart represents a shopping cart. A user has at most one ACTIVE cart;
// abandoned and checked-out carts persist as history.
type Cart struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	Status    CartStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// CartItem represents an item in a cart. Price is captured when the item
// is first added and is not re-read from the product afterwards.
type CartItem struct {
	ID        int64           `json:"id" db:"id"`
	CartID    int64           `json:"cart_id" db:"cart_id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// TotalPrice returns price multiplied by quantity.
func (ci CartItem) TotalPrice() decimal.Decimal {
	return ci.Price.Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

// Order is the immutable snapshot produced by checkout. Only the status
// and tracking number change after creation.
type Order struct {
	ID              int64           `json:"id" db:"id"`
	UserID          int64           `json:"user_id" db:"user_id"`
	Status          OrderStatus     `json:"status" db:"status"`
	ShippingAddress string          `json:"shipping_address" db:"shipping_address"`
	BillingAddress  string          `json:"billing_address" db:"billing_address"`
	PaymentMethod   string          `json:"payment_method" db:"payment_method"`
	TrackingNumber  *string         `json:"tracking_number,omitempty" db:"tracking_number"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	Items           []OrderItem     `json:"items,omitempty"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderItem is the audit record of what was sold, at what price.
type OrderItem struct {
	ID        int64           `json:"id" db:"id"`
	OrderID   int64           `json:"order_id" db:"order_id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Payment is tied 1:1 to an order and carries an append-only transaction log.
type Payment struct {
	ID            int64                `json:"id" db:"id"`
	OrderID       int64                `json:"order_id" db:"order_id"`
	Amount        decimal.Decimal      `json:"amount" db:"amount"`
	Status        PaymentStatus        `json:"status" db:"status"`
	PaymentMethod PaymentMethod        `json:"payment_method" db:"payment_method"`
	TransactionID string               `json:"transaction_id" db:"transaction_id"`
	Transactions  []PaymentTransaction `json:"transactions,omitempty"`
	CreatedAt     time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at" db:"updated_at"`
}

// PaymentTransaction is one entry in a payment's audit log. Never updated
// or deleted.
type PaymentTransaction struct {
	ID           int64             `json:"id" db:"id"`
	PaymentID    int64             `json:"payment_id" db:"payment_id"`
	Status       TransactionStatus `json:"status" db:"status"`
	Type         TransactionType   `json:"type" db:"type"`
	Reference    string            `json:"reference" db:"reference"`
	ErrorCode    *string           `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage *string           `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}

// Address holds a user's shipping/billing address. Per user, at most one
// address has DefaultShipping set and at most one has DefaultBilling set.
type Address struct {
	ID              int64     `json:"id" db:"id"`
	UserID          int64     `json:"user_id" db:"user_id"`
	Title           string    `json:"title" db:"title"`
	FullName        string    `json:"full_name" db:"full_name"`
	PhoneNumber     string    `json:"phone_number" db:"phone_number"`
	AddressLine     string    `json:"address_line" db:"address_line"`
	City            string    `json:"city" db:"city"`
	State           string    `json:"state" db:"state"`
	Country         string    `json:"country" db:"country"`
	PostalCode      string    `json:"postal_code" db:"postal_code"`
	DefaultShipping bool      `json:"default_shipping" db:"default_shipping"`
	DefaultBilling  bool      `json:"default_billing" db:"default_billing"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// CartResponse represents a cart with its items
type CartResponse struct {
	Cart  *Cart           `json:"cart"`
	Items []CartItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// AddToCartRequest represents a request to add an item to the cart
type AddToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// UpdateCartItemRequest represents a request to set a cart item's quantity
type UpdateCartItemRequest struct {
	CartItemID int64 `json:"cart_item_id"`
	Quantity   int   `json:"quantity"`
}

// CreateOrderRequest represents a request to check out a cart
type CreateOrderRequest struct {
	CartID          int64  `json:"cart_id"`
	ShippingAddress string `json:"shipping_address"`
	BillingAddress  string `json:"billing_address"`
	PaymentMethod   string `json:"payment_method"`
}

// UpdateOrderStatusRequest represents a request to move an order to a new status
type UpdateOrderStatusRequest struct {
	Status         string  `json:"status"`
	TrackingNumber *string `json:"tracking_number,omitempty"`
}

// CreatePaymentRequest represents a request to create a payment for an order
type CreatePaymentRequest struct {
	OrderID       int64  `json:"order_id"`
	PaymentMethod string `json:"payment_method"`
}

// CreateUserRequest represents a request to create a user
type CreateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AddressRequest carries the writable address fields
type AddressRequest struct {
	Title           string `json:"title"`
	FullName        string `json:"full_name"`
	PhoneNumber     string `json:"phone_number"`
	AddressLine     string `json:"address_line"`
	City            string `json:"city"`
	State           string `json:"state"`
	Country         string `json:"country"`
	PostalCode      string `json:"postal_code"`
	DefaultShipping bool   `json:"default_shipping"`
	DefaultBilling  bool   `json:"default_billing"`
}

// CreateProductRequest represents a request to add a catalog product
type CreateProductRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	SKU           string          `json:"sku"`
	StockQuantity int             `json:"stock_quantity"`
}

// AdjustStockRequest represents a stock correction (delta may be negative)
type AdjustStockRequest struct {
	Delta int `json:"delta"`
}
