package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-orders/internal/core/auth"
	"storefront-orders/internal/core/config"
	"storefront-orders/internal/core/docstore"
	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/core/server"
	invadapter "storefront-orders/internal/features/inventory/adapters"
	invhandler "storefront-orders/internal/features/inventory/handler"
	invservice "storefront-orders/internal/features/inventory/service"
	notifyadapter "storefront-orders/internal/features/notifications/adapters"
	notifyservice "storefront-orders/internal/features/notifications/service"
	orderadapter "storefront-orders/internal/features/orders/adapters"
	orderhandler "storefront-orders/internal/features/orders/handler"
	orderservice "storefront-orders/internal/features/orders/service"

	"go.uber.org/zap"
)

// @title Storefront Orders API
// @version 1.0
// @description Order lifecycle and inventory reconciliation for the storefront.
// @contact.name API Support
// @contact.email support@storefront.example.com
// @license.name MIT
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
		zap.String("notify_driver", cfg.Notify.Driver),
	)

	// Initialize Document Store and run Health Check
	store, err := docstore.NewRedisStore(cfg.Redis.URL, cfg.Redis.MaxTxRetries)
	if err != nil {
		l.Fatal("Failed to create document store", zap.Error(err))
	}
	defer store.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = store.Ping(pingCtx)
	cancel()
	if err != nil {
		l.Fatal("Redis Health Check Failed", zap.Error(err))
	}
	l.Info("Redis connection verified")

	// Inventory
	productRepo := invadapter.NewDocumentProductRepository(store)
	ledger := invservice.NewStockLedger(store, productRepo)
	catalog := invservice.NewCatalogService(store, productRepo, ledger)
	productHandler := invhandler.NewProductHandler(catalog)

	// Notifications
	sink, err := notifyadapter.NewSink(cfg.Notify)
	if err != nil {
		l.Fatal("Failed to create notification sink", zap.Error(err))
	}
	defer sink.Close()
	dispatcher := notifyservice.NewDispatcher(sink, time.Duration(cfg.Notify.WebhookTimeoutSeconds)*time.Second)

	// Orders
	orderRepo := orderadapter.NewDocumentOrderRepository(store)
	ids := orderservice.NewIDAllocator(store, orderRepo)
	if cfg.Orders.SeedIDCounter {
		seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := ids.Seed(seedCtx)
		cancel()
		if err != nil {
			l.Fatal("Failed to seed order id counter", zap.Error(err))
		}
	}

	orderService := orderservice.NewOrderService(store, orderRepo, ledger, ids, dispatcher)
	orderStream := orderservice.NewOrderStream(orderRepo, cfg.Orders.StreamBuffer)
	orderHandler := orderhandler.NewOrderHandler(orderService, orderStream)

	srv := server.New(cfg, store)
	authn := auth.Middleware(auth.NewTokenParser(cfg.Auth.JWTSecret))

	// Register Routes
	orders := srv.App.Group("/orders", authn)
	orders.Get("/stream", orderHandler.StreamOrders)
	orders.Get("/recent", auth.RequireManageOrders(), orderHandler.ListRecent)
	orders.Get("/status/:status", auth.RequireManageOrders(), orderHandler.ListByStatus)
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Patch("/:id/status", orderHandler.UpdateStatus)

	products := srv.App.Group("/products", authn)
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)
	products.Put("/", auth.RequireManageOrders(), productHandler.UpsertProduct)
	products.Post("/:id/restock", auth.RequireManageOrders(), productHandler.Restock)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			l.Error("Server failed to start", zap.Error(err))
		}
	case sig := <-quit:
		l.Info("Shutting down", zap.String("signal", sig.String()))
		if err := srv.Shutdown(10 * time.Second); err != nil {
			l.Error("Server shutdown failed", zap.Error(err))
		}
	}
}
