package comparison

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/judge"
	evalmetrics "github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/metrics"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/keyword"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/ranker"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/tfidf"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/metrics"
)

func testCorpus() []product.Product {
	return []product.Product{
		{ID: "p1", Title: "Wool Runner Shoes", Brand: "Allbirds", Category: "shoes", Description: "natural white wool shoes"},
		{ID: "p2", Title: "Merino Blend Hoodie", Brand: "Allbirds", Category: "apparel", Description: "soft merino hoodie"},
		{ID: "p3", Title: "Crew Sock Natural", Brand: "Bombas", Category: "socks", Description: "natural crew sock"},
		{ID: "p4", Title: "Leather Boots", Brand: "Redwing", Category: "boots", Description: "rugged brown leather"},
	}
}

func newComparator(t *testing.T, reg *Registry, opts ...Option) *Comparator {
	t.Helper()
	j, err := judge.New(judge.DefaultConfig())
	require.NoError(t, err)
	return New(reg, j, Config{KValues: []int{1, 3}, Limit: 10, Concurrency: 3}, opts...)
}

func defaultRegistry() *Registry {
	return DefaultRegistry(keyword.DefaultConfig(), tfidf.DefaultConfig())
}

func TestRunProducesReport(t *testing.T) {
	c := newComparator(t, defaultRegistry())
	queries := []string{"wool shoes", "merino hoodie", "natural sock", "zzz"}

	report, err := c.Run(context.Background(), queries, testCorpus())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 4, report.Products)
	assert.Equal(t, []string{"keyword_matching", "tfidf", "bm25"}, report.Order)
	require.Len(t, report.PerQuery, len(queries))
	for i, qr := range report.PerQuery {
		assert.Equal(t, queries[i], qr.Query)
		require.Len(t, qr.Runs, 3)
		for _, run := range qr.Runs {
			assert.Equal(t, StatusOK, run.Status)
		}
	}

	first := report.PerQuery[0]
	assert.Positive(t, first.Relevant)
	assert.Equal(t, "p1", first.Runs[0].Ranked[0])
	assert.Equal(t, 1.0, first.Runs[0].Metrics[evalmetrics.MRR])

	// nothing matches "zzz": empty lists, zero metrics, still processed
	last := report.PerQuery[3]
	assert.Zero(t, last.Relevant)
	for _, run := range last.Runs {
		assert.Empty(t, run.Ranked)
		assert.Zero(t, run.Metrics[evalmetrics.MAP])
	}

	for _, name := range report.Order {
		summary := report.Algorithms[name]
		assert.Equal(t, 4, summary.QueriesProcessed)
		assert.Zero(t, summary.QueriesFailed)
		assert.Contains(t, summary.Metrics, evalmetrics.PrecisionKey(3))
	}
	assert.Len(t, report.Summary.Ranking, 3)
	assert.Contains(t, report.Summary.Best, evalmetrics.MAP)
	assert.Contains(t, report.Summary.Best, evalmetrics.NDCGKey(3))
	assert.Len(t, report.Summary.Insights, 3)
}

func TestRunIsDeterministic(t *testing.T) {
	c := newComparator(t, defaultRegistry())
	queries := []string{"wool shoes", "natural", "allbirds hoodie", "leather boots"}

	a, err := c.Run(context.Background(), queries, testCorpus())
	require.NoError(t, err)
	b, err := c.Run(context.Background(), queries, testCorpus())
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	for i := range a.PerQuery {
		for j := range a.PerQuery[i].Runs {
			assert.Equal(t, a.PerQuery[i].Runs[j].Ranked, b.PerQuery[i].Runs[j].Ranked)
			assert.Equal(t, a.PerQuery[i].Runs[j].Metrics, b.PerQuery[i].Runs[j].Metrics)
		}
	}
	assert.Equal(t, a.Summary.Ranking, b.Summary.Ranking)
}

type panicScorer struct{}

func (panicScorer) Name() string { return "broken" }
func (panicScorer) Search(string, int) []ranker.ScoredDoc {
	panic("index corrupted")
}

func TestRunIsolatesFailingScorer(t *testing.T) {
	reg := defaultRegistry()
	require.NoError(t, reg.Register("broken", func([]product.Product) (ranker.Scorer, error) {
		return panicScorer{}, nil
	}))
	c := newComparator(t, reg)

	report, err := c.Run(context.Background(), []string{"wool shoes", "hoodie"}, testCorpus())
	require.NoError(t, err)

	for _, qr := range report.PerQuery {
		require.Len(t, qr.Runs, 4)
		assert.Equal(t, StatusFailed, qr.Runs[3].Status)
		assert.Contains(t, qr.Runs[3].Error, "index corrupted")
		assert.Equal(t, StatusOK, qr.Runs[0].Status)
	}
	assert.Equal(t, 2, report.Algorithms["broken"].QueriesFailed)
	assert.Zero(t, report.Algorithms["broken"].QueriesProcessed)
	assert.Equal(t, 2, report.Algorithms["keyword_matching"].QueriesProcessed)
}

func TestRunSkipsInvalidQueries(t *testing.T) {
	c := newComparator(t, defaultRegistry())
	report, err := c.Run(context.Background(), []string{"wool", "\xff\xfe"}, testCorpus())
	require.NoError(t, err)

	for _, run := range report.PerQuery[1].Runs {
		assert.Equal(t, StatusSkipped, run.Status)
	}
	assert.Equal(t, 1, report.Algorithms["tfidf"].QueriesProcessed)
	assert.Equal(t, 1, report.Algorithms["tfidf"].QueriesFailed)
}

func TestRunEmptyCorpusYieldsZeroedReport(t *testing.T) {
	c := newComparator(t, defaultRegistry())

	report, err := c.Run(context.Background(), []string{"wool", ""}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Products)
	require.Len(t, report.PerQuery, 2)
	for _, qr := range report.PerQuery {
		assert.Equal(t, 0, qr.Relevant)
		require.Len(t, qr.Runs, 3)
		for _, run := range qr.Runs {
			assert.Equal(t, StatusOK, run.Status)
			assert.Empty(t, run.Ranked)
			assert.Equal(t, 0.0, run.Metrics[evalmetrics.MAP])
		}
	}
	assert.Equal(t, 0.0, report.Algorithms[tfidf.Name].Metrics[evalmetrics.MAP])
	assert.Equal(t, 2, report.Algorithms[keyword.Name].QueriesProcessed)
}

func TestRunSingleProductCorpus(t *testing.T) {
	c := newComparator(t, defaultRegistry())
	corpus := []product.Product{{ID: "1", Title: "iPhone 15 case"}}

	report, err := c.Run(context.Background(), []string{"iphone case", ""}, corpus)
	require.NoError(t, err)
	require.Len(t, report.PerQuery, 2)

	byAlgo := map[string]AlgorithmRun{}
	for _, run := range report.PerQuery[0].Runs {
		assert.Equal(t, StatusOK, run.Status)
		byAlgo[run.Algorithm] = run
	}
	assert.Equal(t, []string{"1"}, byAlgo[keyword.Name].Ranked)

	for _, run := range report.PerQuery[1].Runs {
		assert.Equal(t, StatusOK, run.Status)
		assert.Empty(t, run.Ranked, run.Algorithm)
	}
}

func TestRunErrors(t *testing.T) {
	c := newComparator(t, defaultRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Run(ctx, []string{"wool"}, testCorpus())
	assert.ErrorIs(t, err, context.Canceled)

	failing := NewRegistry()
	require.NoError(t, failing.Register("bad", func([]product.Product) (ranker.Scorer, error) {
		return nil, errors.New("cannot fit")
	}))
	_, err = newComparator(t, failing).Run(context.Background(), []string{"wool"}, testCorpus())
	assert.ErrorContains(t, err, "fitting bad")
}

type recordingObserver struct {
	mu      sync.Mutex
	reports []*Report
}

func (r *recordingObserver) ObserveRun(_ context.Context, report *Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

func TestRunNotifiesObserversAndMetrics(t *testing.T) {
	obs := &recordingObserver{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := newComparator(t, defaultRegistry(), WithObserver(obs), WithMetrics(m))

	report, err := c.Run(context.Background(), []string{"wool", "sock"}, testCorpus())
	require.NoError(t, err)

	require.Len(t, obs.reports, 1)
	assert.Equal(t, report.RunID, obs.reports[0].RunID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationRunsTotal.WithLabelValues(StatusOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EvaluationQueriesTotal.WithLabelValues("bm25", StatusOK)))
}

func TestRegistry(t *testing.T) {
	reg := defaultRegistry()
	assert.Equal(t, 3, reg.Len())

	err := reg.Register("tfidf", tfidf.Factory(tfidf.DefaultConfig()))
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidConfig)

	sel, err := reg.Select([]string{"bm25", "keyword_matching"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bm25", "keyword_matching"}, sel.Names())

	all, err := reg.Select(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, all.Len())

	_, err = reg.Select([]string{"neural"})
	assert.ErrorIs(t, err, pkgerrors.ErrUnknownScorer)
}

func TestSummarizeTiesAndRanking(t *testing.T) {
	order := []string{"a", "b", "c"}
	algos := map[string]AlgorithmSummary{
		"a": {Metrics: evalmetrics.Suite{"map": 0.5, "mrr": 0.9}, AvgSearchTime: 3 * time.Millisecond},
		"b": {Metrics: evalmetrics.Suite{"map": 0.7, "mrr": 0.9}, AvgSearchTime: time.Millisecond},
		"c": {Metrics: evalmetrics.Suite{"map": 0.5, "mrr": 0.2}, AvgSearchTime: 2 * time.Millisecond},
	}
	sum := summarize(order, algos, []string{"map", "mrr"})

	assert.Equal(t, Best{Algorithm: "b", Score: 0.7}, sum.Best["map"])
	assert.Equal(t, Best{Algorithm: "a", Score: 0.9}, sum.Best["mrr"])
	assert.Equal(t, []string{"b", "a", "c"}, sum.Ranking)
	assert.Contains(t, sum.Insights[0], "Fastest algorithm: b")
	assert.Contains(t, sum.Insights[2], "0.2000")
}

func TestFittedSearch(t *testing.T) {
	fitted, err := Fit(context.Background(), defaultRegistry(), testCorpus(), nil)
	require.NoError(t, err)

	results := fitted.Search("wool shoes", 2, true)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Empty(t, r.Error)
		assert.LessOrEqual(t, len(r.Results), 2)
		require.NotNil(t, r.Stats)
		assert.Equal(t, r.Algorithm, r.Stats.Algorithm)
	}
	p, ok := fitted.Product("p3")
	require.True(t, ok)
	assert.Equal(t, "Crew Sock Natural", p.Title)
	_, ok = fitted.Product("missing")
	assert.False(t, ok)
}

func TestQuerySet(t *testing.T) {
	api, err := QuerySet("api")
	require.NoError(t, err)
	assert.Len(t, api, 20)
	api[0] = "mutated"
	again, _ := QuerySet("api")
	assert.Equal(t, "wool shoes", again[0])

	social, err := QuerySet("social")
	require.NoError(t, err)
	assert.Contains(t, social, "highly recommend")

	_, err = QuerySet("unknown")
	assert.ErrorIs(t, err, pkgerrors.ErrDatasetNotFound)
}

func TestDerive(t *testing.T) {
	base := newComparator(t, defaultRegistry())

	d, err := base.Derive([]string{"tfidf"}, Config{KValues: []int{5}})
	require.NoError(t, err)
	assert.Equal(t, []string{"tfidf"}, d.Registry().Names())
	assert.Equal(t, []int{5}, d.Config().KValues)
	assert.Equal(t, base.Config().Limit, d.Config().Limit)
	assert.Equal(t, 0.3, d.Threshold())
	assert.Equal(t, 3, base.Registry().Len())

	report, err := d.Run(context.Background(), []string{"wool"}, testCorpus())
	require.NoError(t, err)
	assert.Contains(t, report.Algorithms["tfidf"].Metrics, evalmetrics.PrecisionKey(5))

	_, err = base.Derive([]string{"nope"}, Config{})
	assert.ErrorIs(t, err, pkgerrors.ErrUnknownScorer)
}
