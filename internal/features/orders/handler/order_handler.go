package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront-orders/internal/core/auth"
	"storefront-orders/internal/core/docstore"
	"storefront-orders/internal/core/logger"
	invdomain "storefront-orders/internal/features/inventory/domain"
	"storefront-orders/internal/features/orders/domain"
	"storefront-orders/internal/features/orders/ports"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	orders    ports.OrderService
	streams   ports.OrderStreamer
	heartbeat time.Duration
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders ports.OrderService, streams ports.OrderStreamer) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		streams:   streams,
		heartbeat: 15 * time.Second,
	}
}

// OrderItemRequest is one line of a new order.
type OrderItemRequest struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// CreateOrderRequest represents the request body for placing an order.
type CreateOrderRequest struct {
	// CustomerID and CustomerUsername are only honoured for staff; customers
	// always order for themselves.
	CustomerID        string             `json:"customerId"`
	CustomerUsername  string             `json:"customerUsername"`
	Items             []OrderItemRequest `json:"items"`
	TotalAmount       decimal.Decimal    `json:"totalAmount"`
	Status            domain.OrderStatus `json:"status"`
	PaymentMethod     string             `json:"paymentMethod"`
	ShippingAddress   string             `json:"shippingAddress"`
	EstimatedDelivery *int64             `json:"estimatedDelivery"`
	Notes             string             `json:"notes"`
}

// UpdateStatusRequest represents the request body for a status transition.
type UpdateStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
}

// ErrorResponse represents the structure of an error response.
type ErrorResponse struct {
	Message string `json:"message"`
}

// StockErrorResponse is returned when an order cannot be covered by stock.
type StockErrorResponse struct {
	Message   string `json:"message"`
	ProductID string `json:"productId"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

// CreateOrder handles POST /orders.
// @Summary Place an order
// @Description Validates the draft, reserves stock for every item and stores the order.
// @Tags Orders
// @Accept json
// @Produce json
// @Param order body CreateOrderRequest true "Order draft"
// @Success 201 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} StockErrorResponse
// @Failure 500 {object} ErrorResponse
// @Security BearerAuth
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Authentication required"})
	}

	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid request body"})
	}

	draft := req.toDraft()
	status, err := domain.ParseStatus(string(draft.Status))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: err.Error()})
	}
	draft.Status = status

	if !user.CanManageOrders() {
		draft.CustomerID = user.ID
		draft.CustomerUsername = user.Username
		if draft.Status != domain.StatusPending {
			return writeError(c, auth.Forbidden("Customers can only place pending orders"), "Order creation refused")
		}
	}

	o, err := h.orders.CreateOrder(c.UserContext(), draft)
	if err != nil {
		return writeError(c, err, "Failed to create order", zap.String("customer_id", draft.CustomerID))
	}
	return c.Status(http.StatusCreated).JSON(o)
}

func (r CreateOrderRequest) toDraft() domain.Order {
	status := r.Status
	if status == "" {
		status = domain.StatusPending
	} else {
		status = domain.OrderStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	}

	items := make([]domain.OrderItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = domain.OrderItem(it)
	}

	return domain.Order{
		CustomerID:        r.CustomerID,
		CustomerUsername:  r.CustomerUsername,
		Items:             items,
		TotalAmount:       r.TotalAmount,
		Status:            status,
		PaymentMethod:     r.PaymentMethod,
		ShippingAddress:   r.ShippingAddress,
		EstimatedDelivery: r.EstimatedDelivery,
		Notes:             r.Notes,
	}
}

// GetOrder handles GET /orders/:id.
// @Summary Get an order
// @Description Customers can only see their own orders.
// @Tags Orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Security BearerAuth
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Authentication required"})
	}

	id, err := parseOrderID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid order ID"})
	}

	o, err := h.orders.GetOrder(c.UserContext(), id)
	if err != nil {
		return writeError(c, err, "Failed to get order", zap.Int64("order_id", id))
	}
	if !canSee(user, o) {
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{Message: "Order not found"})
	}
	return c.Status(http.StatusOK).JSON(o)
}

// ListOrders handles GET /orders.
// @Summary List orders
// @Description Newest first. Customers are always restricted to their own orders.
// @Tags Orders
// @Produce json
// @Param customer_id query string false "Customer ID (staff only)"
// @Param status query string false "Order status"
// @Param since query string false "Earliest order date (RFC 3339 or YYYY-MM-DD)"
// @Param until query string false "Latest order date (RFC 3339 or YYYY-MM-DD)"
// @Param limit query int false "Maximum number of orders"
// @Success 200 {array} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Security BearerAuth
// @Router /orders [get]
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Authentication required"})
	}

	filter, err := parseFilter(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: err.Error()})
	}
	if !user.CanManageOrders() {
		filter.CustomerID = user.ID
	}

	orders, err := h.orders.ListOrders(c.UserContext(), filter)
	if err != nil {
		return writeError(c, err, "Failed to list orders")
	}
	return c.Status(http.StatusOK).JSON(orders)
}

// ListByStatus handles GET /orders/status/:status.
// @Summary List orders in a status
// @Tags Orders
// @Produce json
// @Param status path string true "Order status"
// @Success 200 {array} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /orders/status/{status} [get]
func (h *OrderHandler) ListByStatus(c *fiber.Ctx) error {
	status, err := domain.ParseStatus(c.Params("status"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: err.Error()})
	}

	orders, err := h.orders.ListByStatus(c.UserContext(), status)
	if err != nil {
		return writeError(c, err, "Failed to list orders by status", zap.String("status", string(status)))
	}
	return c.Status(http.StatusOK).JSON(orders)
}

// ListRecent handles GET /orders/recent.
// @Summary List recent orders
// @Tags Orders
// @Produce json
// @Param days query int false "Look-back window in days" default(7)
// @Param limit query int false "Maximum number of orders" default(50)
// @Success 200 {array} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Security BearerAuth
// @Router /orders/recent [get]
func (h *OrderHandler) ListRecent(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("days", "7"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid days"})
	}
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid limit"})
	}

	orders, err := h.orders.ListRecent(c.UserContext(), days, limit)
	if err != nil {
		return writeError(c, err, "Failed to list recent orders")
	}
	return c.Status(http.StatusOK).JSON(orders)
}

// UpdateStatus handles PATCH /orders/:id/status.
// @Summary Change the status of an order
// @Description Staff can apply any transition. Customers can only cancel their own pending orders.
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param body body UpdateStatusRequest true "New status"
// @Success 200 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Security BearerAuth
// @Router /orders/{id}/status [patch]
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Authentication required"})
	}

	id, err := parseOrderID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid order ID"})
	}

	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid request body"})
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: err.Error()})
	}

	ctx := c.UserContext()
	if !user.CanManageOrders() {
		current, err := h.orders.GetOrder(ctx, id)
		if err != nil {
			return writeError(c, err, "Failed to get order", zap.Int64("order_id", id))
		}
		if !canSee(user, current) {
			return c.Status(http.StatusNotFound).JSON(ErrorResponse{Message: "Order not found"})
		}
		if status != domain.StatusCancelled || current.Status != domain.StatusPending || req.TrackingNumber != "" {
			return writeError(c, auth.Forbidden("Customers can only cancel pending orders"), "Status change refused", zap.Int64("order_id", id))
		}
	}

	o, err := h.orders.UpdateOrderStatus(ctx, id, status, strings.TrimSpace(req.TrackingNumber))
	if err != nil {
		return writeError(c, err, "Failed to update order status",
			zap.Int64("order_id", id),
			zap.String("status", string(status)),
		)
	}
	return c.Status(http.StatusOK).JSON(o)
}

func canSee(user *auth.User, o *domain.Order) bool {
	return user.CanManageOrders() || o.CustomerID == user.ID
}

func parseOrderID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid order id")
	}
	return id, nil
}

func parseFilter(c *fiber.Ctx) (domain.Filter, error) {
	var f domain.Filter
	f.CustomerID = c.Query("customer_id")

	if s := c.Query("status"); s != "" {
		status, err := domain.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = status
	}

	var err error
	if f.Since, err = parseTime(c.Query("since"), false); err != nil {
		return f, errors.New("invalid since")
	}
	if f.Until, err = parseTime(c.Query("until"), true); err != nil {
		return f, errors.New("invalid until")
	}

	if s := c.Query("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			return f, errors.New("invalid limit")
		}
		f.Limit = limit
	}
	return f, nil
}

// parseTime accepts RFC 3339 timestamps and plain dates. A plain date used as
// an upper bound covers the whole day.
func parseTime(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return t, nil
}

// writeError maps service failures to HTTP responses.
func writeError(c *fiber.Ctx, err error, msg string, fields ...zap.Field) error {
	var stockErr *invdomain.InsufficientStockError
	var forbidden *auth.ForbiddenError
	switch {
	case errors.As(err, &forbidden):
		return c.Status(http.StatusForbidden).JSON(ErrorResponse{Message: forbidden.Reason})
	case errors.As(err, &stockErr):
		return c.Status(http.StatusConflict).JSON(StockErrorResponse{
			Message:   "Insufficient stock",
			ProductID: stockErr.ProductID,
			Available: stockErr.Available,
			Requested: stockErr.Requested,
		})
	case errors.Is(err, domain.ErrValidation):
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrOrderNotFound):
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{Message: "Order not found"})
	case errors.Is(err, invdomain.ErrProductNotFound):
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{Message: err.Error()})
	case errors.Is(err, docstore.ErrConflict):
		return c.Status(http.StatusConflict).JSON(ErrorResponse{Message: "Order is being modified concurrently, retry"})
	}

	logger.Get().Error(msg, append(fields, zap.Error(err))...)
	return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Message: "Internal server error"})
}
