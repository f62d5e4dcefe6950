package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-blur/internal/kafka/handlers/work"
)

// fetchBackoff is how long the consumer waits after fetching or delivering failed.
const fetchBackoff = 500 * time.Millisecond

// handler defines the interface for handling work request messages.
type handler interface {
	Handle(ctx context.Context, msg kafka.Message) error
}

// client fetches and commits Kafka messages.
type client interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// wbfClient adapts a wbf consumer to client.
type wbfClient struct {
	c *wbfkafka.Consumer
}

func (w wbfClient) Fetch(ctx context.Context) (kafka.Message, error) {
	return w.c.Fetch(ctx)
}

func (w wbfClient) Commit(ctx context.Context, msg kafka.Message) error {
	return w.c.Commit(ctx, msg)
}

// Consumer represents a Kafka consumer along with the handler that
// processes the messages it fetches.
type Consumer struct {
	Client   *wbfkafka.Consumer
	client   client
	handler  handler
	topic    string
	strategy retry.Strategy
	backoff  time.Duration
}

// New creates a new Consumer.
// - brokers: list of Kafka brokers
// - topic, groupID: topic to consume and consumer group to join
// - s: retry strategy
// - h: handler for processing messages
func New(brokers []string, topic, groupID string, s retry.Strategy, h handler) *Consumer {
	c := wbfkafka.NewConsumer(brokers, topic, groupID)

	return &Consumer{
		Client:   c,
		client:   wbfClient{c: c},
		handler:  h,
		topic:    topic,
		strategy: s,
		backoff:  fetchBackoff,
	}
}

// Consume continuously fetches messages from Kafka, processes them using the handler,
// and commits offsets. It stops gracefully on context cancellation.
// Messages the handler rejects are logged and committed as well; messages
// whose result could not be published stay uncommitted until it is.
func (c *Consumer) Consume(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	zlog.Logger.Info().
		Str("topic", c.topic).
		Msg("starting consumer")

	for {
		// Exit if context is canceled (graceful shutdown).
		if ctx.Err() != nil {
			zlog.Logger.Info().Msg("shutdown signal received, stopping consumer")
			return
		}

		// Fetch a message from Kafka with retries.
		var msg kafka.Message
		err := retry.Do(func() error {
			var fetchErr error
			msg, fetchErr = c.client.Fetch(ctx)
			return fetchErr
		}, c.strategy)

		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			zlog.Logger.Err(err).Msg("failed to fetch message")
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff):
			}
			continue
		}

		if !c.handle(ctx, msg) {
			continue
		}

		// Commit the message with retries.
		err = retry.Do(func() error {
			return c.client.Commit(ctx, msg)
		}, c.strategy)
		if err != nil {
			zlog.Logger.Err(err).Msg("failed to commit message after retries")
			continue
		}

		zlog.Logger.Info().
			Int64("offset", msg.Offset).
			Msg("message handled")
	}
}

// handle runs the handler on msg until its result is delivered or the
// message is rejected. It returns false if ctx was canceled first, in which
// case msg must not be committed.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	for {
		err := c.handler.Handle(ctx, msg)
		if err == nil {
			return true
		}

		if !errors.Is(err, work.ErrPublishResult) {
			zlog.Logger.Err(err).
				Str("message", string(msg.Value)).
				Msg("failed to handle message")
			return true
		}

		zlog.Logger.Err(err).
			Int64("offset", msg.Offset).
			Msg("failed to deliver result, handling message again")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.backoff):
		}
	}
}

// Close closes the underlying Kafka client.
func (c *Consumer) Close() error {
	if c.Client == nil {
		return nil
	}

	return c.Client.Close()
}
