package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"storefront-orders/internal/core/auth"
	"storefront-orders/internal/core/logger"
	"storefront-orders/internal/features/orders/domain"
	"storefront-orders/internal/features/orders/ports"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StreamOrders handles GET /orders/stream.
// @Summary Live order list
// @Description Server-sent events. Every "snapshot" event carries the complete order list, newest first. Staff receive all orders, customers their own.
// @Tags Orders
// @Produce text/event-stream
// @Success 200 {array} domain.Order
// @Failure 500 {object} ErrorResponse
// @Security BearerAuth
// @Router /orders/stream [get]
func (h *OrderHandler) StreamOrders(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Authentication required"})
	}

	// The body writer outlives the handler, so the stream cannot use the request context.
	var stream ports.SnapshotStream
	if user.CanManageOrders() {
		stream = h.streams.StreamAll(context.Background())
	} else {
		stream = h.streams.StreamByCustomer(context.Background(), user.ID)
	}
	if err := stream.Start(); err != nil {
		logger.Get().Error("Failed to open order stream", zap.String("user_id", user.ID), zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Message: "Internal server error"})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	userID := user.ID
	heartbeat := h.heartbeat
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer stream.Stop()
		writeEvents(w, stream, heartbeat, userID)
	})
	return nil
}

func writeEvents(w *bufio.Writer, stream ports.SnapshotStream, heartbeat time.Duration, userID string) {
	log := logger.Named("orders")
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case snapshot, ok := <-stream.Snapshots():
			if !ok {
				if err := stream.Err(); err != nil {
					log.Warn("Order stream ended", zap.String("user_id", userID), zap.Error(err))
					_ = writeEvent(w, "error", ErrorResponse{Message: "Order stream interrupted"})
				}
				return
			}
			if snapshot == nil {
				snapshot = []domain.Order{}
			}
			if err := writeEvent(w, "snapshot", snapshot); err != nil {
				log.Debug("Order stream client gone", zap.String("user_id", userID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w *bufio.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
