package adapters

import (
	"fmt"
	"strings"
	"time"

	"storefront-orders/internal/core/config"
	"storefront-orders/internal/features/notifications/ports"
)

// NewSink builds the sink selected by NOTIFY_DRIVER.
func NewSink(cfg config.NotifyConfig) (ports.Sink, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.NotifyDriverLog, "":
		return NewLogSink(), nil
	case config.NotifyDriverKafka:
		return NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case config.NotifyDriverAMQP:
		sink, err := NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case config.NotifyDriverWebhook:
		return NewWebhookSink(cfg.WebhookURL, time.Duration(cfg.WebhookTimeoutSeconds)*time.Second), nil
	default:
		return nil, fmt.Errorf("unsupported notification driver %q", cfg.Driver)
	}
}
