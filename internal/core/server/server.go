package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront-orders/internal/core/config"
	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/core/metrics"

	"github.com/gofiber/contrib/fiberzap/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"

	_ "storefront-orders/docs/swagger"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server holds the Fiber application and configuration.
type Server struct {
	// App is the main Fiber application instance.
	App *fiber.App
	// cfg holds the application configuration.
	cfg *config.AppConfig
}

// New creates a new Server instance with configured middleware and the
// operational routes /healthz, /metrics and /swagger.
func New(cfg *config.AppConfig, health HealthChecker) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "storefront-orders",
	})

	app.Use(requestid.New(requestid.Config{
		Header: "X-Ray-ID",
	}))

	app.Use(fiberzap.New(fiberzap.Config{
		Logger: logger.Get(),
		// Event streams stay open for minutes; their access log entry is noise.
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/orders/stream"
		},
	}))

	app.Use(metrics.Middleware())

	app.Get("/healthz", healthz(health))
	app.Get("/metrics", metrics.Handler())
	app.Get("/swagger/*", swagger.HandlerDefault)

	return &Server{
		App: app,
		cfg: cfg,
	}
}

func healthz(health HealthChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := health.Ping(ctx); err != nil {
				logger.Get().Warn("Health check failed", zap.Error(err))
				return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "unavailable",
				})
			}
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": "ok"})
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.ServerPort)
	logger.Get().Info("Starting server", zap.String("address", addr))
	return s.App.Listen(addr)
}

// Shutdown stops accepting connections and waits up to timeout for open ones.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.App.ShutdownWithTimeout(timeout)
}
