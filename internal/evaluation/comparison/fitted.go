package comparison

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/ranker"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/metrics"
)

// Fitted is every registered scorer fit on one corpus snapshot. It is
// read-only after Fit and safe for concurrent searches.
type Fitted struct {
	scorers []ranker.Scorer
	corpus  []product.Product
	byID    map[string]int
}

// Fit builds every scorer in registry order. Any failure is fatal: a scorer
// that cannot be fit invalidates the whole comparison. An empty corpus fits
// scorers that return no results.
func Fit(ctx context.Context, reg *Registry, corpus []product.Product, m *metrics.Metrics) (*Fitted, error) {
	if reg.Len() == 0 {
		return nil, pkgerrors.Configf("no scorers registered")
	}
	f := &Fitted{corpus: corpus, byID: make(map[string]int, len(corpus))}
	for i, p := range corpus {
		f.byID[p.ID] = i
	}
	for _, name := range reg.names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		s, err := reg.factories[name](corpus)
		if err != nil {
			return nil, fmt.Errorf("fitting %s: %w", name, err)
		}
		if m != nil {
			m.ScorerFitDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
		f.scorers = append(f.scorers, s)
	}
	return f, nil
}

// Corpus is the snapshot the scorers were fit on.
func (f *Fitted) Corpus() []product.Product { return f.corpus }

// Product looks a result id up in the fitted corpus.
func (f *Fitted) Product(id string) (product.Product, bool) {
	i, ok := f.byID[id]
	if !ok {
		return product.Product{}, false
	}
	return f.corpus[i], true
}

// AlgorithmResult is one scorer's answer to one query.
type AlgorithmResult struct {
	Algorithm  string             `json:"algorithm"`
	Results    []ranker.ScoredDoc `json:"results"`
	SearchTime time.Duration      `json:"search_time_ns"`
	Stats      *ranker.Stats      `json:"stats,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Search runs query through every scorer independently. A panicking scorer
// yields an entry with Error set instead of aborting the others.
func (f *Fitted) Search(query string, limit int, withStats bool) []AlgorithmResult {
	out := make([]AlgorithmResult, len(f.scorers))
	for i, s := range f.scorers {
		out[i] = searchOne(s, query, limit)
		if withStats && out[i].Error == "" {
			if sp, ok := s.(ranker.StatsProvider); ok {
				st := sp.Stats(query)
				out[i].Stats = &st
			}
		}
	}
	return out
}

func searchOne(s ranker.Scorer, query string, limit int) (res AlgorithmResult) {
	res.Algorithm = s.Name()
	start := time.Now()
	defer func() {
		res.SearchTime = time.Since(start)
		if r := recover(); r != nil {
			res.Results = nil
			res.Error = fmt.Sprintf("scorer panic: %v", r)
		}
	}()
	res.Results = s.Search(query, limit)
	if res.Results == nil {
		res.Results = []ranker.ScoredDoc{}
	}
	return res
}
