package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/comparison"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/metrics"
)

// Publisher receives flushed batches. *kafka.Producer and *Aggregator both
// implement it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// CollectorConfig sizes the event buffer and flush cadence.
type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers events on a channel and flushes them to a Publisher
// when a batch fills or the flush interval passes. Track never blocks:
// events beyond the buffer are dropped and counted.
type Collector struct {
	publisher Publisher
	cfg       CollectorConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu      sync.RWMutex
	started bool
	closed  bool
	eventCh chan Event
	done    chan struct{}
}

// NewCollector returns a collector publishing to publisher. Call Start to
// begin flushing.
func NewCollector(publisher Publisher, cfg CollectorConfig, m *metrics.Metrics) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	return &Collector{
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "analytics-collector"),
		eventCh:   make(chan Event, cfg.BufferSize),
		done:      make(chan struct{}),
	}
}

// Start launches the flush loop. It exits once Close is called or ctx is
// cancelled, flushing whatever is buffered.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.cfg.FlushInterval)
		defer ticker.Stop()
		batch := make([]kafka.Event, 0, c.cfg.BatchSize)

		flush := func(ctx context.Context) {
			if len(batch) == 0 {
				return
			}
			if err := c.publisher.PublishBatch(ctx, batch); err != nil {
				c.logger.Error("analytics flush failed", "events", len(batch), "error", err)
			}
			batch = make([]kafka.Event, 0, c.cfg.BatchSize)
		}
		final := func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for {
				select {
				case e, ok := <-c.eventCh:
					if !ok {
						flush(flushCtx)
						return
					}
					batch = append(batch, kafka.Event{Key: e.key(), Value: e})
				default:
					flush(flushCtx)
					return
				}
			}
		}

		for {
			select {
			case e, ok := <-c.eventCh:
				if !ok {
					final()
					return
				}
				batch = append(batch, kafka.Event{Key: e.key(), Value: e})
				if len(batch) >= c.cfg.BatchSize {
					flush(ctx)
				}
			case <-ticker.C:
				flush(ctx)
			case <-ctx.Done():
				final()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", c.cfg.BufferSize,
		"batch_size", c.cfg.BatchSize,
		"flush_interval", c.cfg.FlushInterval,
	)
}

// Track enqueues events without blocking; events are dropped when the
// buffer is full.
func (c *Collector) Track(events ...Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	for _, e := range events {
		select {
		case c.eventCh <- e:
		default:
			c.logger.Warn("analytics event dropped (buffer full)", "type", e.Type)
			if c.metrics != nil {
				c.metrics.EvaluationEventsDropped.Inc()
			}
		}
	}
}

// ObserveRun implements comparison.Observer.
func (c *Collector) ObserveRun(_ context.Context, report *comparison.Report) {
	c.Track(RunEvents(report)...)
}

// Close stops accepting events and waits for the final flush.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	started := c.started
	c.mu.Unlock()
	if started {
		<-c.done
	}
}
