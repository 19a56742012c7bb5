package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storefront-orders/internal/features/notifications/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes persistent messages to a topic exchange. The routing key
// is "order.<status>" so consumers can bind to the statuses they care about.
type AMQPSink struct {
	ch       publisher
	conn     *amqp.Connection
	exchange string
}

// NewAMQPSink dials the broker and declares the exchange.
func NewAMQPSink(url, exchange string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp: failed to connect: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: failed to declare exchange %s: %w", exchange, err)
	}

	return &AMQPSink{ch: ch, conn: conn, exchange: exchange}, nil
}

// RoutingKey returns the routing key an event is published with.
func RoutingKey(e domain.StatusChanged) string {
	return "order." + strings.ToLower(e.Status)
}

func (s *AMQPSink) Notify(ctx context.Context, e domain.StatusChanged) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		ContentType:  "application/json",
		MessageId:    e.EventID,
		Type:         e.Type,
		Body:         body,
	}

	if err := s.ch.PublishWithContext(ctx, s.exchange, RoutingKey(e), false, false, msg); err != nil {
		return fmt.Errorf("amqp: failed to publish order %d: %w", e.OrderID, err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	err := s.ch.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
