package producer

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
)

// sender sends a keyed message, retrying according to a strategy.
type sender interface {
	Send(ctx context.Context, strategy retry.Strategy, key, value []byte) error
}

// wbfSender adapts a wbf producer to sender.
type wbfSender struct {
	p *wbfkafka.Producer
}

func (w wbfSender) Send(ctx context.Context, strategy retry.Strategy, key, value []byte) error {
	return w.p.SendWithRetry(ctx, strategy, key, value)
}

// Producer publishes JSON messages to a single Kafka topic.
type Producer struct {
	Client   *wbfkafka.Producer
	sender   sender
	topic    string
	strategy retry.Strategy
}

// New creates a new Producer for topic.
// - brokers: list of Kafka brokers
// - topic: Kafka topic messages are sent to
// - s: retry strategy
func New(brokers []string, topic string, s retry.Strategy) *Producer {
	client := wbfkafka.NewProducer(brokers, topic)

	return &Producer{
		Client:   client,
		sender:   wbfSender{p: client},
		topic:    topic,
		strategy: s,
	}
}

// Produce serializes v to JSON and sends it to Kafka under key.
func (p *Producer) Produce(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err = p.sender.Send(ctx, p.strategy, []byte(key), data); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", p.topic, err)
	}

	return nil
}

// Close closes the underlying Kafka client.
func (p *Producer) Close() error {
	if p.Client == nil {
		return nil
	}

	return p.Client.Close()
}
