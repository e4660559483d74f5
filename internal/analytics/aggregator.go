package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	evalmetrics "github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/metrics"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/kafka"
)

const maxLatencySamples = 10000

// AlgorithmStats accumulates one algorithm's activity.
type AlgorithmStats struct {
	Searches     int64   `json:"searches"`
	Evaluations  int64   `json:"evaluations"`
	Failures     int64   `json:"failures"`
	ZeroResults  int64   `json:"zero_results"`
	Wins         int64   `json:"wins"`
	MeanAP       float64 `json:"mean_average_precision"`
	MeanRR       float64 `json:"mean_reciprocal_rank"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	P50LatencyMs float64 `json:"p50_latency_ms"`
	P95LatencyMs float64 `json:"p95_latency_ms"`
	P99LatencyMs float64 `json:"p99_latency_ms"`
}

// AggregatedStats is the snapshot served by the analytics endpoint.
type AggregatedStats struct {
	Runs              int64                     `json:"runs"`
	Searches          int64                     `json:"searches"`
	Events            int64                     `json:"events"`
	Algorithms        map[string]AlgorithmStats `json:"algorithms"`
	TopQueries        []QueryCount              `json:"top_queries"`
	ZeroResultQueries []QueryCount              `json:"zero_result_queries"`
	LastRunID         string                    `json:"last_run_id,omitempty"`
	QueriesPerMinute  float64                   `json:"queries_per_minute"`
}

// QueryCount is how often a query was seen.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type algoState struct {
	searches, evaluations, evaluatedOK int64
	failures, zero, wins               int64
	apSum, rrSum                       float64
	latencies                          []float64
}

// Aggregator folds events into running totals. It is fed either directly by
// a Collector (it implements Publisher) or from Kafka through HandleMessage.
type Aggregator struct {
	mu          sync.RWMutex
	runs        int64
	searches    int64
	events      int64
	algos       map[string]*algoState
	queryCounts map[string]int64
	zeroQueries map[string]int64
	lastRunID   string
	startTime   time.Time
	logger      *slog.Logger
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		algos:       make(map[string]*algoState),
		queryCounts: make(map[string]int64),
		zeroQueries: make(map[string]int64),
		startTime:   time.Now(),
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

func (a *Aggregator) algo(name string) *algoState {
	st, ok := a.algos[name]
	if !ok {
		st = &algoState{}
		a.algos[name] = st
	}
	return st
}

// Record folds one event into the running totals.
func (a *Aggregator) Record(e Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events++

	switch e.Type {
	case EventSearch:
		a.searches++
		a.queryCounts[e.Query]++
		st := a.algo(e.Algorithm)
		st.searches++
		a.recordOutcome(st, e)
	case EventQueryEvaluated:
		st := a.algo(e.Algorithm)
		st.evaluations++
		if e.Status == "ok" {
			st.evaluatedOK++
			st.apSum += e.Metrics[evalmetrics.MAP]
			st.rrSum += e.Metrics[evalmetrics.MRR]
		}
		a.recordOutcome(st, e)
	case EventRunCompleted:
		a.runs++
		a.lastRunID = e.RunID
		if len(e.Ranking) > 0 {
			a.algo(e.Ranking[0]).wins++
		}
	default:
		a.logger.Warn("unknown analytics event", "type", e.Type)
	}
}

func (a *Aggregator) recordOutcome(st *algoState, e Event) {
	if e.Status != "" && e.Status != "ok" {
		st.failures++
		return
	}
	if e.Results == 0 {
		st.zero++
		a.zeroQueries[e.Query]++
	}
	st.latencies = append(st.latencies, e.LatencyMs)
	if len(st.latencies) > maxLatencySamples {
		st.latencies = append(st.latencies[:0:0], st.latencies[len(st.latencies)/2:]...)
	}
}

// PublishBatch lets the aggregator stand in for Kafka when it is disabled.
func (a *Aggregator) PublishBatch(_ context.Context, events []kafka.Event) error {
	for _, ev := range events {
		if e, ok := ev.Value.(Event); ok {
			a.Record(e)
		}
	}
	return nil
}

// HandleMessage decodes events consumed from Kafka.
func HandleMessage(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[Event](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

const defaultTopQueries = 10

// Stats returns totals with the default number of top queries.
func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsTop(defaultTopQueries)
}

// StatsTop is Stats with the query leaderboards cut to top entries.
func (a *Aggregator) StatsTop(top int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		Runs:       a.runs,
		Searches:   a.searches,
		Events:     a.events,
		Algorithms: make(map[string]AlgorithmStats, len(a.algos)),
		LastRunID:  a.lastRunID,
	}
	for name, st := range a.algos {
		as := AlgorithmStats{
			Searches:    st.searches,
			Evaluations: st.evaluations,
			Failures:    st.failures,
			ZeroResults: st.zero,
			Wins:        st.wins,
		}
		if st.evaluatedOK > 0 {
			as.MeanAP = st.apSum / float64(st.evaluatedOK)
			as.MeanRR = st.rrSum / float64(st.evaluatedOK)
		}
		if len(st.latencies) > 0 {
			sorted := append([]float64(nil), st.latencies...)
			sort.Float64s(sorted)
			var sum float64
			for _, l := range sorted {
				sum += l
			}
			as.AvgLatencyMs = sum / float64(len(sorted))
			as.P50LatencyMs = percentile(sorted, 50)
			as.P95LatencyMs = percentile(sorted, 95)
			as.P99LatencyMs = percentile(sorted, 99)
		}
		stats.Algorithms[name] = as
	}
	stats.TopQueries = topN(a.queryCounts, top)
	stats.ZeroResultQueries = topN(a.zeroQueries, top)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.searches) / elapsed
	}
	return stats
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
