package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storefront-orders/internal/features/notifications/domain"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON keyed by order id, so the events of one
// order stay ordered within a partition.
type KafkaSink struct {
	w messageWriter
}

// NewKafkaSink creates a synchronous writer for a comma separated broker list.
func NewKafkaSink(brokers, topic string) *KafkaSink {
	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}

	return &KafkaSink{
		w: &kafka.Writer{
			Addr:         kafka.TCP(addrs...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}
}

func (s *KafkaSink) Notify(ctx context.Context, e domain.StatusChanged) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	err = s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Key()),
		Value: b,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte(e.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka: failed to publish order %d: %w", e.OrderID, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.w.Close()
}
