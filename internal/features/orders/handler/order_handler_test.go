package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-orders/internal/core/auth"
	"storefront-orders/internal/core/docstore"
	invdomain "storefront-orders/internal/features/inventory/domain"
	"storefront-orders/internal/features/orders/domain"
	"storefront-orders/internal/features/orders/ports"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// MockOrderService is a mock implementation of ports.OrderService
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, draft domain.Order) (*domain.Order, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderService) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus, trackingNumber string) (*domain.Order, error) {
	args := m.Called(ctx, id, status, trackingNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, filter domain.Filter) ([]domain.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockOrderService) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockOrderService) ListRecent(ctx context.Context, sinceDays, limit int) ([]domain.Order, error) {
	args := m.Called(ctx, sinceDays, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func setupApp(svc *MockOrderService, streams ports.OrderStreamer) *fiber.App {
	app := fiber.New()
	h := NewOrderHandler(svc, streams)

	orders := app.Group("/orders", auth.Middleware(auth.NewTokenParser(testSecret)))
	orders.Get("/stream", h.StreamOrders)
	orders.Get("/recent", auth.RequireManageOrders(), h.ListRecent)
	orders.Get("/status/:status", auth.RequireManageOrders(), h.ListByStatus)
	orders.Post("/", h.CreateOrder)
	orders.Get("/", h.ListOrders)
	orders.Get("/:id", h.GetOrder)
	orders.Patch("/:id/status", h.UpdateStatus)
	return app
}

func token(t *testing.T, id string, role auth.Role) string {
	t.Helper()
	tok, err := auth.NewTokenParser(testSecret).Issue(auth.User{ID: id, Username: id, Role: role}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func request(t *testing.T, app *fiber.App, method, target, authz, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

const orderBody = `{
	"customerId": "someone-else",
	"items": [{"productId": "P1", "productName": "Filter", "quantity": 2, "unitPrice": "5", "totalPrice": "10"}],
	"totalAmount": "10",
	"paymentMethod": "card",
	"shippingAddress": "1 Main St"
}`

func TestOrderHandler_CreateOrder(t *testing.T) {
	t.Run("CustomerOrdersForThemselves", func(t *testing.T) {
		svc := new(MockOrderService)
		app := setupApp(svc, nil)

		svc.On("CreateOrder", mock.Anything, mock.MatchedBy(func(d domain.Order) bool {
			return d.CustomerID == "cust-1" &&
				d.CustomerUsername == "cust-1" &&
				d.Status == domain.StatusPending &&
				len(d.Items) == 1 &&
				d.Items[0].TotalPrice.Equal(decimal.NewFromInt(10))
		})).Return(&domain.Order{ID: 1, CustomerID: "cust-1", Status: domain.StatusPending}, nil).Once()

		resp := request(t, app, "POST", "/orders", token(t, "cust-1", auth.RoleCustomer), orderBody)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var got domain.Order
		decodeBody(t, resp, &got)
		assert.Equal(t, int64(1), got.ID)
		svc.AssertExpectations(t)
	})

	t.Run("StaffOrdersForCustomer", func(t *testing.T) {
		svc := new(MockOrderService)
		app := setupApp(svc, nil)

		svc.On("CreateOrder", mock.Anything, mock.MatchedBy(func(d domain.Order) bool {
			return d.CustomerID == "someone-else"
		})).Return(&domain.Order{ID: 2}, nil).Once()

		resp := request(t, app, "POST", "/orders", token(t, "emp-1", auth.RoleEmployee), orderBody)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		svc.AssertExpectations(t)
	})

	t.Run("CustomerCannotChooseStatus", func(t *testing.T) {
		svc := new(MockOrderService)
		app := setupApp(svc, nil)

		body := strings.Replace(orderBody, `"paymentMethod"`, `"status": "DELIVERED", "paymentMethod"`, 1)
		resp := request(t, app, "POST", "/orders", token(t, "cust-1", auth.RoleCustomer), body)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		var got ErrorResponse
		decodeBody(t, resp, &got)
		assert.Equal(t, "Customers can only place pending orders", got.Message)
		svc.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	})

	// An unknown status is a bad request for every role, checked before permissions.
	for _, role := range []auth.Role{auth.RoleCustomer, auth.RoleEmployee} {
		t.Run("UnknownStatus"+string(role), func(t *testing.T) {
			svc := new(MockOrderService)
			app := setupApp(svc, nil)

			body := strings.Replace(orderBody, `"paymentMethod"`, `"status": "foo", "paymentMethod"`, 1)
			resp := request(t, app, "POST", "/orders", token(t, "user-1", role), body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			svc.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		})
	}

	t.Run("CustomerStatusIsCaseInsensitive", func(t *testing.T) {
		svc := new(MockOrderService)
		app := setupApp(svc, nil)

		svc.On("CreateOrder", mock.Anything, mock.MatchedBy(func(d domain.Order) bool {
			return d.Status == domain.StatusPending
		})).Return(&domain.Order{ID: 3, CustomerID: "cust-1", Status: domain.StatusPending}, nil).Once()

		body := strings.Replace(orderBody, `"paymentMethod"`, `"status": " pending ", "paymentMethod"`, 1)
		resp := request(t, app, "POST", "/orders", token(t, "cust-1", auth.RoleCustomer), body)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		svc.AssertExpectations(t)
	})

	t.Run("InsufficientStock", func(t *testing.T) {
		svc := new(MockOrderService)
		app := setupApp(svc, nil)

		svc.On("CreateOrder", mock.Anything, mock.Anything).Return(nil,
			&invdomain.InsufficientStockError{ProductID: "P1", Available: 1, Requested: 2}).Once()

		resp := request(t, app, "POST", "/orders", token(t, "cust-1", auth.RoleCustomer), orderBody)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		var got StockErrorResponse
		decodeBody(t, resp, &got)
		assert.Equal(t, StockErrorResponse{Message: "Insufficient stock", ProductID: "P1", Available: 1, Requested: 2}, got)
	})

	errCases := []struct {
		name string
		err  error
		want int
	}{
		{"Validation", &domain.ValidationError{Field: "totalAmount", Reason: "mismatch"}, http.StatusBadRequest},
		{"UnknownProduct", invdomain.ErrProductNotFound, http.StatusNotFound},
		{"Conflict", &domain.PersistenceError{Op: "create order", Err: docstore.ErrConflict}, http.StatusConflict},
		{"StoreDown", &domain.PersistenceError{Op: "create order", Err: errors.New("dial tcp")}, http.StatusInternalServerError},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockOrderService)
			app := setupApp(svc, nil)
			svc.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			resp := request(t, app, "POST", "/orders", token(t, "cust-1", auth.RoleCustomer), orderBody)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}

	t.Run("BadBody", func(t *testing.T) {
		app := setupApp(new(MockOrderService), nil)
		resp := request(t, app, "POST", "/orders", token(t, "cust-1", auth.RoleCustomer), `{"items": 5}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		app := setupApp(new(MockOrderService), nil)
		resp := request(t, app, "POST", "/orders", "", orderBody)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestOrderHandler_GetOrder(t *testing.T) {
	svc := new(MockOrderService)
	app := setupApp(svc, nil)

	svc.On("GetOrder", mock.Anything, int64(7)).Return(&domain.Order{ID: 7, CustomerID: "cust-1"}, nil)
	svc.On("GetOrder", mock.Anything, int64(8)).Return(nil, domain.ErrOrderNotFound)

	resp := request(t, app, "GET", "/orders/7", token(t, "cust-1", auth.RoleCustomer), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = request(t, app, "GET", "/orders/7", token(t, "cust-2", auth.RoleCustomer), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = request(t, app, "GET", "/orders/7", token(t, "admin", auth.RoleAdmin), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = request(t, app, "GET", "/orders/8", token(t, "admin", auth.RoleAdmin), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = request(t, app, "GET", "/orders/abc", token(t, "admin", auth.RoleAdmin), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrderHandler_ListOrders(t *testing.T) {
	t.Run("CustomerIsForcedToOwnOrders", func(t *testing.T) {
		svc := new(MockOrderService)
		app := setupApp(svc, nil)

		svc.On("ListOrders", mock.Anything, domain.Filter{CustomerID: "cust-1", Status: domain.StatusShipped, Limit: 5}).
			Return([]domain.Order{{ID: 3}}, nil).Once()

		resp := request(t, app, "GET", "/orders?customer_id=cust-2&status=shipped&limit=5", token(t, "cust-1", auth.RoleCustomer), "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		svc.AssertExpectations(t)
	})

	t.Run("StaffFiltersByDate", func(t *testing.T) {
		svc := new(MockOrderService)
		app := setupApp(svc, nil)

		since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		svc.On("ListOrders", mock.Anything, mock.MatchedBy(func(f domain.Filter) bool {
			return f.CustomerID == "cust-2" &&
				f.Since.Equal(since) &&
				f.Until.Equal(time.Date(2026, 3, 31, 23, 59, 59, 999000000, time.UTC))
		})).Return([]domain.Order{}, nil).Once()

		resp := request(t, app, "GET", "/orders?customer_id=cust-2&since=2026-03-01T00:00:00Z&until=2026-03-31", token(t, "emp", auth.RoleEmployee), "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		svc.AssertExpectations(t)
	})

	t.Run("BadQuery", func(t *testing.T) {
		app := setupApp(new(MockOrderService), nil)
		for _, q := range []string{"status=LOST", "since=yesterday", "limit=-2"} {
			resp := request(t, app, "GET", "/orders?"+q, token(t, "emp", auth.RoleEmployee), "")
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		}
	})
}

func TestOrderHandler_AdministrativeReads(t *testing.T) {
	svc := new(MockOrderService)
	app := setupApp(svc, nil)

	svc.On("ListByStatus", mock.Anything, domain.StatusPending).Return([]domain.Order{{ID: 1}}, nil)
	svc.On("ListRecent", mock.Anything, 7, 50).Return([]domain.Order{{ID: 2}}, nil)
	svc.On("ListRecent", mock.Anything, 30, 10).Return([]domain.Order{}, nil)

	resp := request(t, app, "GET", "/orders/status/pending", token(t, "cust-1", auth.RoleCustomer), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = request(t, app, "GET", "/orders/recent", token(t, "cust-1", auth.RoleCustomer), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = request(t, app, "GET", "/orders/status/pending", token(t, "emp", auth.RoleEmployee), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var byStatus []domain.Order
	decodeBody(t, resp, &byStatus)
	assert.Len(t, byStatus, 1)

	resp = request(t, app, "GET", "/orders/status/LOST", token(t, "emp", auth.RoleEmployee), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = request(t, app, "GET", "/orders/recent", token(t, "admin", auth.RoleAdmin), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = request(t, app, "GET", "/orders/recent?days=30&limit=10", token(t, "admin", auth.RoleAdmin), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = request(t, app, "GET", "/orders/recent?days=x", token(t, "admin", auth.RoleAdmin), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	svc.AssertExpectations(t)
}

func TestOrderHandler_UpdateStatus(t *testing.T) {
	t.Run("StaffShipsWithTracking", func(t *testing.T) {
		svc := new(MockOrderService)
		app := setupApp(svc, nil)

		svc.On("UpdateOrderStatus", mock.Anything, int64(5), domain.StatusShipped, "TRK-1").
			Return(&domain.Order{ID: 5, Status: domain.StatusShipped, TrackingNumber: "TRK-1"}, nil).Once()

		resp := request(t, app, "PATCH", "/orders/5/status", token(t, "emp", auth.RoleEmployee), `{"status":"shipped","tracking_number":" TRK-1 "}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		svc.AssertExpectations(t)
	})

	t.Run("CustomerCancelsOwnPendingOrder", func(t *testing.T) {
		svc := new(MockOrderService)
		app := setupApp(svc, nil)

		svc.On("GetOrder", mock.Anything, int64(5)).Return(&domain.Order{ID: 5, CustomerID: "cust-1", Status: domain.StatusPending}, nil)
		svc.On("UpdateOrderStatus", mock.Anything, int64(5), domain.StatusCancelled, "").
			Return(&domain.Order{ID: 5, Status: domain.StatusCancelled}, nil).Once()

		resp := request(t, app, "PATCH", "/orders/5/status", token(t, "cust-1", auth.RoleCustomer), `{"status":"CANCELLED"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		svc.AssertExpectations(t)
	})

	customerCases := []struct {
		name    string
		owner   string
		current domain.OrderStatus
		body    string
		want    int
	}{
		{"NotOwner", "cust-2", domain.StatusPending, `{"status":"CANCELLED"}`, http.StatusNotFound},
		{"AlreadyShipped", "cust-1", domain.StatusShipped, `{"status":"CANCELLED"}`, http.StatusForbidden},
		{"OtherTransition", "cust-1", domain.StatusPending, `{"status":"DELIVERED"}`, http.StatusForbidden},
		{"SetsTracking", "cust-1", domain.StatusPending, `{"status":"CANCELLED","tracking_number":"X"}`, http.StatusForbidden},
	}
	for _, tc := range customerCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockOrderService)
			app := setupApp(svc, nil)
			svc.On("GetOrder", mock.Anything, int64(5)).Return(&domain.Order{ID: 5, CustomerID: tc.owner, Status: tc.current}, nil)

			resp := request(t, app, "PATCH", "/orders/5/status", token(t, "cust-1", auth.RoleCustomer), tc.body)
			assert.Equal(t, tc.want, resp.StatusCode)
			if tc.want == http.StatusForbidden {
				var got ErrorResponse
				decodeBody(t, resp, &got)
				assert.Equal(t, "Customers can only cancel pending orders", got.Message)
			}
			svc.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("UnknownStatus", func(t *testing.T) {
		app := setupApp(new(MockOrderService), nil)
		resp := request(t, app, "PATCH", "/orders/5/status", token(t, "emp", auth.RoleEmployee), `{"status":"LOST"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("MissingOrder", func(t *testing.T) {
		svc := new(MockOrderService)
		app := setupApp(svc, nil)
		svc.On("UpdateOrderStatus", mock.Anything, int64(9), domain.StatusCancelled, "").Return(nil, domain.ErrOrderNotFound).Once()

		resp := request(t, app, "PATCH", "/orders/9/status", token(t, "emp", auth.RoleEmployee), `{"status":"CANCELLED"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("StockFailureIsReported", func(t *testing.T) {
		svc := new(MockOrderService)
		app := setupApp(svc, nil)
		svc.On("UpdateOrderStatus", mock.Anything, int64(9), domain.StatusCancelled, "").
			Return(nil, &domain.PersistenceError{Op: "update order status", Err: errors.New("timeout")}).Once()

		resp := request(t, app, "PATCH", "/orders/9/status", token(t, "emp", auth.RoleEmployee), `{"status":"CANCELLED"}`)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}
