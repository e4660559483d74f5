// Package comparison runs every registered scorer over a shared query set
// and corpus, scores each ranked list against one set of relevance
// judgments, and aggregates the results into a Report.
package comparison

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/judge"
	evalmetrics "github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/metrics"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/ranker"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/metrics"
)

// Config bounds a comparison run.
type Config struct {
	KValues     []int
	Limit       int
	Concurrency int
}

// DefaultConfig evaluates at the standard cutoffs, keeps ten results per
// query and scores four queries at a time.
func DefaultConfig() Config {
	return Config{
		KValues:     evalmetrics.DefaultKValues,
		Limit:       10,
		Concurrency: 4,
	}
}

// Observer is notified once a run completes.
type Observer interface {
	ObserveRun(ctx context.Context, report *Report)
}

// Option customises a Comparator.
type Option func(*Comparator)

// WithObserver registers o to receive every completed report.
func WithObserver(o Observer) Option {
	return func(c *Comparator) { c.observers = append(c.observers, o) }
}

// WithMetrics records run, query and latency metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Comparator) { c.metrics = m }
}

// Comparator owns the registry and judge shared by every run.
type Comparator struct {
	registry  *Registry
	judge     *judge.Judge
	cfg       Config
	observers []Observer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New builds a comparator. Unset fields of cfg fall back to the default
// cutoffs, ten results per query and sequential queries.
func New(reg *Registry, j *judge.Judge, cfg Config, opts ...Option) *Comparator {
	if len(cfg.KValues) == 0 {
		cfg.KValues = evalmetrics.DefaultKValues
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	c := &Comparator{
		registry: reg,
		judge:    j,
		cfg:      cfg,
		logger:   slog.Default().With("component", "comparison"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the scorers this comparator runs.
func (c *Comparator) Registry() *Registry { return c.registry }

// Config returns the effective run settings.
func (c *Comparator) Config() Config { return c.cfg }

// Threshold is the judge's relevance threshold.
func (c *Comparator) Threshold() float64 { return c.judge.Threshold() }

// SettingsDigest hashes every scorer's configuration and the judge's, so
// reports computed under different tuning are never confused.
func (c *Comparator) SettingsDigest() string {
	raw, _ := json.Marshal(struct {
		Scorers map[string]any `json:"scorers"`
		Judge   judge.Config   `json:"judge"`
	}{c.registry.Settings(), c.judge.Config()})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}

// Derive returns a comparator restricted to algorithms (all when empty) with
// cfg's non-zero fields overriding this one's. Judge, observers and metrics
// are shared.
func (c *Comparator) Derive(algorithms []string, cfg Config) (*Comparator, error) {
	reg, err := c.registry.Select(algorithms)
	if err != nil {
		return nil, err
	}
	merged := c.cfg
	if len(cfg.KValues) > 0 {
		merged.KValues = cfg.KValues
	}
	if cfg.Limit > 0 {
		merged.Limit = cfg.Limit
	}
	if cfg.Concurrency > 0 {
		merged.Concurrency = cfg.Concurrency
	}
	d := *c
	d.registry = reg
	d.cfg = merged
	return &d, nil
}

// Run evaluates queries against corpus. Judgments and fitted scorers are
// built once before any query is scored and are read-only afterwards, so
// queries fan out across Concurrency workers. A failing (query, algorithm)
// pair is logged and recorded without aborting the run.
func (c *Comparator) Run(ctx context.Context, queries []string, corpus []product.Product) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	log := c.logger.With("run_id", runID)

	report, err := c.run(ctx, log, runID, start, queries, corpus)
	if c.metrics != nil {
		status := StatusOK
		if err != nil {
			status = StatusFailed
		}
		c.metrics.EvaluationRunsTotal.WithLabelValues(status).Inc()
		c.metrics.EvaluationRunDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		log.Error("comparison failed", "error", err)
		return nil, err
	}
	for _, o := range c.observers {
		o.ObserveRun(ctx, report)
	}
	return report, nil
}

func (c *Comparator) run(ctx context.Context, log *slog.Logger, runID string, start time.Time, queries []string, corpus []product.Product) (*Report, error) {
	log.Info("comparison started",
		"queries", len(queries),
		"products", len(corpus),
		"algorithms", c.registry.Names(),
	)

	fitted, err := Fit(ctx, c.registry, corpus, c.metrics)
	if err != nil {
		return nil, err
	}
	judgments := c.judge.Build(queries, corpus)

	results := make([]QueryResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.evaluateQuery(log, fitted, judgments, q)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("comparison cancelled: %w", err)
	}

	order := c.registry.Names()
	algos := aggregate(order, results)
	report := &Report{
		RunID:      runID,
		StartedAt:  start.UTC(),
		Products:   len(corpus),
		Queries:    append([]string(nil), queries...),
		KValues:    append([]int(nil), c.cfg.KValues...),
		Threshold:  judgments.Threshold(),
		Order:      order,
		PerQuery:   results,
		Algorithms: algos,
		Summary:    summarize(order, algos, evalmetrics.Keys(c.cfg.KValues)),
		Duration:   time.Since(start),
	}
	log.Info("comparison completed",
		"duration", report.Duration,
		"ranking", report.Summary.Ranking,
	)
	return report, nil
}

func (c *Comparator) evaluateQuery(log *slog.Logger, fitted *Fitted, judgments *judge.Judgments, query string) QueryResult {
	qr := QueryResult{
		Query:    query,
		Relevant: judgments.Count(query),
		Runs:     make([]AlgorithmRun, 0, len(fitted.scorers)),
	}
	if !utf8.ValidString(query) {
		log.Warn("skipping query with invalid encoding", "query", fmt.Sprintf("%q", query))
		for _, s := range fitted.scorers {
			qr.Runs = append(qr.Runs, AlgorithmRun{
				Algorithm: s.Name(),
				Status:    StatusSkipped,
				Error:     "query is not valid UTF-8",
			})
			c.count(s.Name(), StatusSkipped)
		}
		return qr
	}

	relevant := evalmetrics.Set(judgments.Relevant(query))
	scores := judgments.Scores(query)
	for _, s := range fitted.scorers {
		res := searchOne(s, query, c.cfg.Limit)
		run := AlgorithmRun{
			Algorithm:  res.Algorithm,
			SearchTime: res.SearchTime,
		}
		if res.Error != "" {
			log.Error("scorer failed", "algorithm", res.Algorithm, "query", query, "error", res.Error)
			run.Status = StatusFailed
			run.Error = res.Error
		} else {
			run.Status = StatusOK
			run.Ranked = ranker.IDs(res.Results)
			run.Metrics = evalmetrics.Compute(relevant, scores, run.Ranked, c.cfg.KValues)
			if c.metrics != nil {
				c.metrics.SearchLatency.WithLabelValues(res.Algorithm).Observe(res.SearchTime.Seconds())
				c.metrics.SearchResultsCount.WithLabelValues(res.Algorithm).Observe(float64(len(res.Results)))
			}
		}
		c.count(res.Algorithm, run.Status)
		qr.Runs = append(qr.Runs, run)
	}
	return qr
}

func (c *Comparator) count(algorithm, status string) {
	if c.metrics != nil {
		c.metrics.EvaluationQueriesTotal.WithLabelValues(algorithm, status).Inc()
	}
}
