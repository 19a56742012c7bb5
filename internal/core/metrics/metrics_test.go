package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOrderOperation(t *testing.T) {
	before := testutil.ToFloat64(orderOperations.WithLabelValues("create", "error"))

	RecordOrderOperation("create", errors.New("boom"))
	RecordOrderOperation("create", nil)

	assert.Equal(t, before+1, testutil.ToFloat64(orderOperations.WithLabelValues("create", "error")))
}

func TestRecordStockAdjustment(t *testing.T) {
	before := testutil.ToFloat64(stockAdjustments.WithLabelValues(DirectionRestore))

	RecordStockAdjustment(DirectionRestore, 3)
	RecordStockAdjustment(DirectionRestore, 0)

	assert.Equal(t, before+3, testutil.ToFloat64(stockAdjustments.WithLabelValues(DirectionRestore)))
}

func TestMiddlewareAndHandler(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/metrics", Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `storefront_http_requests_total{method="GET",path="/ping",status="200"}`)
}
