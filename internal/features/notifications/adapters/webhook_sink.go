package adapters

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront-orders/internal/core/httpclient"
	"storefront-orders/internal/features/notifications/domain"
)

// WebhookSink POSTs each event as JSON to a fixed URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a sink with a logging client bounded by timeout.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: httpclient.NewClient(timeout),
	}
}

func (s *WebhookSink) Notify(ctx context.Context, e domain.StatusChanged) error {
	headers := map[string]string{
		"X-Event-Id":   e.EventID,
		"X-Event-Type": e.Type,
	}
	if err := httpclient.PostJSON(ctx, s.client, s.url, e, headers); err != nil {
		return fmt.Errorf("webhook: failed to deliver order %d: %w", e.OrderID, err)
	}
	return nil
}

func (s *WebhookSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
