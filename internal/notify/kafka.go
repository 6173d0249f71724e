package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Kafka publishes alert messages to a Kafka topic so downstream
// consumers can feed dashboards or archives.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka creates a producer for the given brokers and topic.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

var _ Notifier = (*Kafka)(nil)

// Send publishes the alert text as a single message.
func (k *Kafka) Send(ctx context.Context, text string) error {
	err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte("alert"),
		Value: []byte(text),
	})
	if err != nil {
		return fmt.Errorf("publish alert message: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
