// Package kafka carries search and comparison events over segmentio/kafka-go.
// Values travel as JSON with the key choosing the partition.
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

const contentTypeJSON = "application/json"

// Event is one record to publish.
type Event struct {
	Key   string
	Value any
}

// Producer writes batches of events to a single topic.
type Producer struct {
	writer *kafka.Writer
	log    *slog.Logger
}

// NewProducer writes to topic, hashing keys to partitions and waiting for
// all in-sync replicas.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              100,
			BatchTimeout:           10 * time.Millisecond,
			MaxAttempts:            3,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		log: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Messages converts events to wire records, failing on the first value
// that cannot be encoded.
func Messages(events []Event) ([]kafka.Message, error) {
	out := make([]kafka.Message, len(events))
	for i, ev := range events {
		body, err := json.Marshal(ev.Value)
		if err != nil {
			return nil, fmt.Errorf("marshaling event value for key %q: %w", ev.Key, err)
		}
		out[i] = kafka.Message{
			Key:     []byte(ev.Key),
			Value:   body,
			Headers: []kafka.Header{{Key: "content-type", Value: []byte(contentTypeJSON)}},
		}
	}
	return out, nil
}

// PublishBatch sends all events in one WriteMessages call.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := Messages(events)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.log.Error("batch publish failed", "count", len(msgs), "error", err)
		return fmt.Errorf("publishing %d events: %w", len(msgs), err)
	}
	p.log.Debug("batch published", "count", len(msgs), "took", time.Since(start))
	return nil
}

// Close flushes buffered records.
func (p *Producer) Close() error {
	return p.writer.Close()
}
