package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/khayson/barffoods-backend/internal/messaging"
)

type kafkaBroker struct {
	brokers []string
}

// NewKafkaBroker creates a Kafka-backed event publisher.
func NewKafkaBroker(brokers []string) messaging.Publisher {
	return &kafkaBroker{brokers: brokers}
}

func (k *kafkaBroker) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	w := &kafkaGo.Writer{
		Addr:     kafkaGo.TCP(k.brokers...),
		Topic:    topic,
		Balancer: &kafkaGo.LeastBytes{},
	}
	defer w.Close()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return w.WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(key),
		Value: payload,
	})
}
