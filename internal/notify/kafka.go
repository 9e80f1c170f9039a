package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes claim events to a Kafka topic, keyed by public
// hash so events for one record stay on one partition.
type KafkaNotifier struct {
	writer messageWriter
	Topic  string
}

// NewKafkaNotifier creates a notifier writing to topic on brokers.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: writer, Topic: topic}
}

// NotifyClaim implements ClaimNotifier.
func (n *KafkaNotifier) NotifyClaim(ctx context.Context, event ClaimEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal claim event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.PublicHash),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}

	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close closes the underlying Kafka writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

var _ ClaimNotifier = (*KafkaNotifier)(nil)
var _ ClaimNotifier = NopNotifier{}
