package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

const transferTopic = "wallet.transfer_completed"

type transferEvent struct {
	Kind       string `json:"kind"`
	Recipient  string `json:"recipient"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	OccurredAt string `json:"occurred_at"`
}

// KafkaNotifier publishes transfer notifications to a Kafka topic for
// downstream consumers (email senders, push gateways, analytics).
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier builds a notifier producing to the given brokers.
func NewKafkaNotifier(brokers []string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    transferTopic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Send publishes the message keyed by recipient so per-recipient ordering is
// preserved within a partition.
func (n *KafkaNotifier) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(transferEvent{
		Kind:       message.Kind,
		Recipient:  message.Recipient,
		Amount:     message.Amount.String(),
		Currency:   message.Currency,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(message.Recipient),
		Value: payload,
	})
}

// Close releases the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
