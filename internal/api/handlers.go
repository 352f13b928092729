package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/oakmall/storefront/internal/apperr"
	"github.com/oakmall/storefront/internal/db"
	"github.com/oakmall/storefront/internal/metrics"
	"github.com/oakmall/storefront/internal/middleware"
	"github.com/oakmall/storefront/internal/models"
	"github.com/oakmall/storefront/internal/services"
	"github.com/oakmall/storefront/pkg/config"
)

// App holds application dependencies
type App struct {
	config           *config.Config
	db               *db.DB
	metrics          *metrics.AppMetrics
	productService   *services.ProductService
	inventoryService *services.InventoryService
	cartService      *services.CartService
	orderService     *services.OrderService
	paymentService   *services.PaymentService
	addressService   *services.AddressService
	userService      *services.UserService
}

// NewApp creates a new application instance
func NewApp(
	cfg *config.Config,
	database *db.DB,
	m *metrics.AppMetrics,
	ps *services.ProductService,
	is *services.InventoryService,
	cs *services.CartService,
	os *services.OrderService,
	pays *services.PaymentService,
	as *services.AddressService,
	us *services.UserService,
) *App {
	return &App{
		config:           cfg,
		db:               database,
		metrics:          m,
		productService:   ps,
		inventoryService: is,
		cartService:      cs,
		orderService:     os,
		paymentService:   pays,
		addressService:   as,
		userService:      us,
	}
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	// Middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.MetricsMiddleware(a.metrics))

	// API Routes
	api := r.PathPrefix("/api/v1").Subrouter()

	// Products
	api.HandleFunc("/products", a.ListProductsHandler).Methods("GET")
	api.HandleFunc("/products", a.CreateProductHandler).Methods("POST")
	api.HandleFunc("/products/search", a.SearchProductsHandler).Methods("GET")
	api.HandleFunc("/products/{id}", a.GetProductHandler).Methods("GET")
	api.HandleFunc("/products/{id}", a.UpdateProductHandler).Methods("PUT")
	api.HandleFunc("/products/{id}", a.DeleteProductHandler).Methods("DELETE")
	api.HandleFunc("/products/{id}/stock", a.AdjustStockHandler).Methods("POST")

	// Cart
	api.HandleFunc("/cart", a.GetCurrentCartHandler).Methods("GET")
	api.HandleFunc("/cart/items", a.AddToCartHandler).Methods("POST")
	api.HandleFunc("/cart/items", a.UpdateCartItemHandler).Methods("PUT")
	api.HandleFunc("/cart/items/{itemId}", a.RemoveCartItemHandler).Methods("DELETE")
	api.HandleFunc("/cart/{id}", a.GetCartHandler).Methods("GET")
	api.HandleFunc("/cart/{id}/clear", a.ClearCartHandler).Methods("POST")
	api.HandleFunc("/cart/{id}/abandon", a.AbandonCartHandler).Methods("POST")
	api.HandleFunc("/cart/{id}/reactivate", a.ReactivateCartHandler).Methods("POST")

	// Orders
	api.HandleFunc("/orders", a.CreateOrderHandler).Methods("POST")
	api.HandleFunc("/orders", a.ListOrdersHandler).Methods("GET")
	api.HandleFunc("/orders/{id}", a.GetOrderHandler).Methods("GET")
	api.HandleFunc("/orders/{id}", a.DeleteOrderHandler).Methods("DELETE")
	api.HandleFunc("/orders/{id}/status", a.UpdateOrderStatusHandler).Methods("PUT")

	// Payments
	api.HandleFunc("/payments", a.CreatePaymentHandler).Methods("POST")
	api.HandleFunc("/payments", a.ListPaymentsByStatusHandler).Methods("GET")
	api.HandleFunc("/payments/{id}", a.GetPaymentHandler).Methods("GET")
	api.HandleFunc("/payments/{id}/process", a.ProcessPaymentHandler).Methods("POST")
	api.HandleFunc("/payments/{id}/refund", a.RefundPaymentHandler).Methods("POST")
	api.HandleFunc("/payments/{id}/cancel", a.CancelPaymentHandler).Methods("POST")
	api.HandleFunc("/orders/{id}/payment", a.GetPaymentByOrderHandler).Methods("GET")

	// Addresses
	api.HandleFunc("/addresses", a.CreateAddressHandler).Methods("POST")
	api.HandleFunc("/addresses", a.ListAddressesHandler).Methods("GET")
	api.HandleFunc("/addresses/default-shipping", a.GetDefaultShippingHandler).Methods("GET")
	api.HandleFunc("/addresses/default-billing", a.GetDefaultBillingHandler).Methods("GET")
	api.HandleFunc("/addresses/{id}", a.GetAddressHandler).Methods("GET")
	api.HandleFunc("/addresses/{id}", a.UpdateAddressHandler).Methods("PUT")
	api.HandleFunc("/addresses/{id}", a.DeleteAddressHandler).Methods("DELETE")
	api.HandleFunc("/addresses/{id}/default-shipping", a.SetDefaultShippingHandler).Methods("PUT")
	api.HandleFunc("/addresses/{id}/default-billing", a.SetDefaultBillingHandler).Methods("PUT")

	// Users
	api.HandleFunc("/users", a.CreateUserHandler).Methods("POST")
	api.HandleFunc("/users/{id}", a.GetUserHandler).Methods("GET")

	// Health
	r.HandleFunc("/health", a.HealthHandler).Methods("GET")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the service error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindBadRequest:
		status = http.StatusBadRequest
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindPaymentFailed:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// userIDFrom reads the caller's user ID from the user_id query parameter.
// Every user-scoped route requires it.
func userIDFrom(w http.ResponseWriter, r *http.Request) (int64, bool) {
	uid := r.URL.Query().Get("user_id")
	if uid == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id query parameter is required"})
		return 0, false
	}
	userID, err := strconv.ParseInt(uid, 10, 64)
	if err != nil || userID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user_id"})
		return 0, false
	}
	return userID, true
}

func pathID(w http.ResponseWriter, r *http.Request, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + label})
		return 0, false
	}
	return id, true
}

// HealthHandler handles health check requests
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListProductsHandler handles GET /api/v1/products
func (a *App) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil {
			offset = parsed
		}
	}

	products, err := a.productService.ListProducts(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// SearchProductsHandler handles GET /api/v1/products/search
func (a *App) SearchProductsHandler(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q query parameter is required"})
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	products, err := a.productService.SearchProducts(r.Context(), term, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// GetProductHandler handles GET /api/v1/products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "product ID")
	if !ok {
		return
	}

	product, err := a.productService.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// CreateProductHandler handles POST /api/v1/products
func (a *App) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	product, err := a.productService.CreateProduct(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

// UpdateProductHandler handles PUT /api/v1/products/{id}
func (a *App) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "product ID")
	if !ok {
		return
	}

	var req models.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	product, err := a.productService.UpdateProduct(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// DeleteProductHandler handles DELETE /api/v1/products/{id}
func (a *App) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "product ID")
	if !ok {
		return
	}

	if err := a.productService.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AdjustStockHandler handles POST /api/v1/products/{id}/stock
func (a *App) AdjustStockHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "product ID")
	if !ok {
		return
	}

	var req models.AdjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	newStock, err := a.inventoryService.Adjust(r.Context(), id, req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	a.productService.Invalidate(id)

	writeJSON(w, http.StatusOK, map[string]int{"stock_quantity": newStock})
}

// GetCurrentCartHandler handles GET /api/v1/cart
func (a *App) GetCurrentCartHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	cart, err := a.cartService.GetCurrentCart(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// GetCartHandler handles GET /api/v1/cart/{id}
func (a *App) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	cartID, ok := pathID(w, r, "id", "cart ID")
	if !ok {
		return
	}

	cart, err := a.cartService.GetCart(r.Context(), userID, cartID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// AddToCartHandler handles POST /api/v1/cart/items
func (a *App) AddToCartHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	var req models.AddToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := a.cartService.AddItem(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}

	cart, err := a.cartService.GetCurrentCart(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// UpdateCartItemHandler handles PUT /api/v1/cart/items
func (a *App) UpdateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	var req models.UpdateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := a.cartService.UpdateItem(r.Context(), userID, req.CartItemID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}

	cart, err := a.cartService.GetCurrentCart(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// RemoveCartItemHandler handles DELETE /api/v1/cart/items/{itemId}
func (a *App) RemoveCartItemHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemId", "cart item ID")
	if !ok {
		return
	}

	if err := a.cartService.RemoveItem(r.Context(), userID, itemID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ClearCartHandler handles POST /api/v1/cart/{id}/clear
func (a *App) ClearCartHandler(w http.ResponseWriter, r *http.Request) {
	a.cartAction(w, r, a.cartService.Clear, "cleared")
}

// AbandonCartHandler handles POST /api/v1/cart/{id}/abandon
func (a *App) AbandonCartHandler(w http.ResponseWriter, r *http.Request) {
	a.cartAction(w, r, a.cartService.Abandon, "abandoned")
}

// ReactivateCartHandler handles POST /api/v1/cart/{id}/reactivate
func (a *App) ReactivateCartHandler(w http.ResponseWriter, r *http.Request) {
	a.cartAction(w, r, a.cartService.Reactivate, "reactivated")
}

func (a *App) cartAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID, cartID int64) error, status string) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	cartID, ok := pathID(w, r, "id", "cart ID")
	if !ok {
		return
	}

	if err := fn(r.Context(), userID, cartID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// CreateOrderHandler handles POST /api/v1/orders
func (a *App) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := a.orderService.CreateOrder(r.Context(), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// ListOrdersHandler handles GET /api/v1/orders
func (a *App) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		orders, err := a.orderService.GetUserOrdersByStatus(r.Context(), userID, status)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
		return
	}

	page := 0
	pageSize := 20
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			page = parsed
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil {
			pageSize = parsed
		}
	}

	orders, err := a.orderService.GetUserOrders(r.Context(), userID, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrderHandler handles GET /api/v1/orders/{id}
func (a *App) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}

	order, err := a.orderService.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// DeleteOrderHandler handles DELETE /api/v1/orders/{id}
func (a *App) DeleteOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}

	if err := a.orderService.DeleteOrder(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// UpdateOrderStatusHandler handles PUT /api/v1/orders/{id}/status
func (a *App) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := a.orderService.UpdateStatus(r.Context(), id, req.Status, req.TrackingNumber); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// CreatePaymentHandler handles POST /api/v1/payments
func (a *App) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	payment, err := a.paymentService.CreatePayment(r.Context(), req.OrderID, req.PaymentMethod)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// GetPaymentHandler handles GET /api/v1/payments/{id}
func (a *App) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "payment ID")
	if !ok {
		return
	}

	payment, err := a.paymentService.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// GetPaymentByOrderHandler handles GET /api/v1/orders/{id}/payment
func (a *App) GetPaymentByOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id", "order ID")
	if !ok {
		return
	}

	payment, err := a.paymentService.GetPaymentByOrderID(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// ListPaymentsByStatusHandler handles GET /api/v1/payments
func (a *App) ListPaymentsByStatusHandler(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status query parameter is required"})
		return
	}

	payments, err := a.paymentService.GetPaymentsByStatus(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// ProcessPaymentHandler handles POST /api/v1/payments/{id}/process
func (a *App) ProcessPaymentHandler(w http.ResponseWriter, r *http.Request) {
	a.paymentAction(w, r, a.paymentService.Process, "completed")
}

// RefundPaymentHandler handles POST /api/v1/payments/{id}/refund
func (a *App) RefundPaymentHandler(w http.ResponseWriter, r *http.Request) {
	a.paymentAction(w, r, a.paymentService.Refund, "refunded")
}

// CancelPaymentHandler handles POST /api/v1/payments/{id}/cancel
func (a *App) CancelPaymentHandler(w http.ResponseWriter, r *http.Request) {
	a.paymentAction(w, r, a.paymentService.Cancel, "cancelled")
}

func (a *App) paymentAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, paymentID int64) error, status string) {
	id, ok := pathID(w, r, "id", "payment ID")
	if !ok {
		return
	}

	if err := fn(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// CreateAddressHandler handles POST /api/v1/addresses
func (a *App) CreateAddressHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	var req models.AddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	address, err := a.addressService.Create(r.Context(), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, address)
}

// ListAddressesHandler handles GET /api/v1/addresses
func (a *App) ListAddressesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	addresses, err := a.addressService.GetUserAddresses(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addresses)
}

// GetAddressHandler handles GET /api/v1/addresses/{id}
func (a *App) GetAddressHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "address ID")
	if !ok {
		return
	}

	address, err := a.addressService.GetAddress(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, address)
}

// UpdateAddressHandler handles PUT /api/v1/addresses/{id}
func (a *App) UpdateAddressHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "address ID")
	if !ok {
		return
	}

	var req models.AddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	address, err := a.addressService.Update(r.Context(), userID, id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, address)
}

// DeleteAddressHandler handles DELETE /api/v1/addresses/{id}
func (a *App) DeleteAddressHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "address ID")
	if !ok {
		return
	}

	if err := a.addressService.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// SetDefaultShippingHandler handles PUT /api/v1/addresses/{id}/default-shipping
func (a *App) SetDefaultShippingHandler(w http.ResponseWriter, r *http.Request) {
	a.addressDefaultAction(w, r, a.addressService.SetDefaultShipping)
}

// SetDefaultBillingHandler handles PUT /api/v1/addresses/{id}/default-billing
func (a *App) SetDefaultBillingHandler(w http.ResponseWriter, r *http.Request) {
	a.addressDefaultAction(w, r, a.addressService.SetDefaultBilling)
}

func (a *App) addressDefaultAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID, addressID int64) error) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", "address ID")
	if !ok {
		return
	}

	if err := fn(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}

	address, err := a.addressService.GetAddress(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, address)
}

// GetDefaultShippingHandler handles GET /api/v1/addresses/default-shipping
func (a *App) GetDefaultShippingHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	address, err := a.addressService.GetDefaultShipping(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, address)
}

// GetDefaultBillingHandler handles GET /api/v1/addresses/default-billing
func (a *App) GetDefaultBillingHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	address, err := a.addressService.GetDefaultBilling(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, address)
}

// CreateUserHandler handles POST /api/v1/users
func (a *App) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, err := a.userService.CreateUser(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GetUserHandler handles GET /api/v1/users/{id}
func (a *App) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user ID")
	if !ok {
		return
	}

	user, err := a.userService.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
