// Package cache stores comparison reports in Redis keyed by everything that
// determines their content, so identical comparisons are computed once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/comparison"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/resilience"
)

const (
	keyPrefix = "compare:"
	// backendTimeout bounds a single Redis call so a slow cache never
	// stalls a comparison.
	backendTimeout = time.Second
)

// Backend is the subset of pkg/redis.Client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies a comparison. Two requests with equal keys produce the same
// report up to run id and timings.
type Key struct {
	Dataset     string   `json:"dataset"`
	Fingerprint string   `json:"fingerprint"`
	Queries     []string `json:"queries"`
	Algorithms  []string `json:"algorithms"`
	KValues     []int    `json:"k_values"`
	Limit       int      `json:"limit"`
	Threshold   float64  `json:"threshold"`
	// Settings digests the scorer and judge configuration.
	Settings string `json:"settings"`
}

// String is the Redis key: a prefix plus a digest of every field.
func (k Key) String() string {
	raw, _ := json.Marshal(k)
	sum := sha256.Sum256(raw)
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// Option customises a ReportCache.
type Option func(*ReportCache)

// WithMetrics counts hits and misses on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *ReportCache) { c.metrics = m }
}

// ReportCache stores comparison reports in Redis behind a circuit breaker.
// Backend failures degrade to misses.
type ReportCache struct {
	backend Backend
	isMiss  func(error) bool
	ttl     time.Duration
	breaker *resilience.Breaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache over backend. A nil backend disables storage but
// concurrent identical computations are still coalesced.
func New(backend Backend, isMiss func(error) bool, ttl time.Duration, opts ...Option) *ReportCache {
	c := &ReportCache{
		backend: backend,
		isMiss:  isMiss,
		ttl:     ttl,
		logger:  slog.Default().With("component", "report-cache"),
	}
	c.breaker = resilience.NewBreaker("report-cache", resilience.BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached report for key, if any.
func (c *ReportCache) Get(ctx context.Context, key Key) (*comparison.Report, bool) {
	if c.backend == nil {
		return nil, false
	}
	k := key.String()
	var data string
	err := c.breaker.Execute(func() error {
		getCtx, cancel := context.WithTimeout(ctx, backendTimeout)
		defer cancel()
		var err error
		data, err = c.backend.Get(getCtx, k)
		if err != nil && c.isMiss != nil && c.isMiss(err) {
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", k, "error", err)
		c.miss()
		return nil, false
	}
	if data == "" {
		c.miss()
		return nil, false
	}
	var report comparison.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.ReportCacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", k, "run_id", report.RunID)
	return &report, true
}

// Set stores report under key. Failures are logged, not returned.
func (c *ReportCache) Set(ctx context.Context, key Key, report *comparison.Report) {
	if c.backend == nil {
		return
	}
	k := key.String()
	data, err := json.Marshal(report)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, backendTimeout, "cache set", func(ctx context.Context) error {
			return c.backend.Set(ctx, k, data, c.ttl)
		})
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached report for key, or runs compute once for
// all concurrent callers sharing key and caches its result. The bool
// reports a cache hit.
func (c *ReportCache) GetOrCompute(
	ctx context.Context,
	key Key,
	compute func(ctx context.Context) (*comparison.Report, error),
) (*comparison.Report, bool, error) {
	if report, ok := c.Get(ctx, key); ok {
		return report, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (any, error) {
		if report, ok := c.Get(ctx, key); ok {
			return report, nil
		}
		report, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, report)
		return report, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*comparison.Report), false, nil
}

// Invalidate removes every cached report.
func (c *ReportCache) Invalidate(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the hit and miss counts since start.
func (c *ReportCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ReportCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.ReportCacheMissesTotal.Inc()
	}
}

// Fingerprint digests the searchable content of a corpus snapshot so that
// any change to it yields a new cache key.
func Fingerprint(corpus []product.Product) string {
	h := sha256.New()
	for _, p := range corpus {
		for _, f := range []string{p.ID, p.Title, p.Description, p.ProductName, p.Brand, p.Category} {
			h.Write([]byte(f))
			h.Write([]byte{0})
		}
		if e := p.Engagement; e != nil {
			h.Write([]byte(strconv.Itoa(e.Upvotes) + "," + strconv.Itoa(e.Comments) + "," +
				strconv.FormatFloat(e.Sentiment, 'g', -1, 64)))
		}
		h.Write([]byte(strconv.FormatBool(p.IsReview) + strconv.FormatBool(p.IsRecommendation) + "\n"))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
