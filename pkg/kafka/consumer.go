package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/config"
)

// MessageHandler processes one record. Returning an error leaves the
// offset uncommitted so the record is redelivered after a rebalance.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer drains a topic as part of the configured consumer group.
type Consumer struct {
	reader       *kafka.Reader
	handle       MessageHandler
	log          *slog.Logger
	fetchBackoff time.Duration
}

// NewConsumer joins cfg.ConsumerGroup on topic. A group with no committed
// offset starts from the oldest record.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     500 * time.Millisecond,
			StartOffset: kafka.FirstOffset,
		}),
		handle:       handler,
		log:          slog.Default().With("component", "kafka-consumer", "topic", topic),
		fetchBackoff: time.Second,
	}
}

// Start blocks until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info("consumer started")
	for {
		msg, ok := c.next(ctx)
		if ctx.Err() != nil {
			c.log.Info("consumer stopping", "reason", ctx.Err())
			return c.reader.Close()
		}
		if ok {
			c.dispatch(ctx, msg)
		}
	}
}

// next fetches one message, pausing after a broker error.
func (c *Consumer) next(ctx context.Context) (kafka.Message, bool) {
	msg, err := c.reader.FetchMessage(ctx)
	if err == nil {
		return msg, true
	}
	if ctx.Err() == nil {
		c.log.Error("fetch failed", "error", err, "backoff", c.fetchBackoff)
		t := time.NewTimer(c.fetchBackoff)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
	return kafka.Message{}, false
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) {
	log := c.log.With("partition", msg.Partition, "offset", msg.Offset)
	if err := c.handle(ctx, msg.Key, msg.Value); err != nil {
		log.Error("handler rejected message", "error", err)
		return
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error("commit failed", "error", err)
	}
}

// Close stops the reader. Start closes it on cancellation already.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a record value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("decoding kafka message: %w", err)
	}
	return v, nil
}
