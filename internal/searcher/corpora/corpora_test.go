package corpora

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/comparison"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/keyword"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/tfidf"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/metrics"
)

type fakeLoader struct {
	calls    atomic.Int32
	products map[product.Source][]product.Product
	err      error
}

func (f *fakeLoader) LoadDataset(_ context.Context, ds product.Source, _ int) ([]product.Product, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.products[ds], nil
}

func newLoader() *fakeLoader {
	return &fakeLoader{products: map[product.Source][]product.Product{
		product.SourceCatalog: {
			{ID: "1", Title: "Wool Runner"},
			{ID: "2", Title: "Crew Sock"},
			{ID: "2", Title: "Duplicate Sock"},
		},
	}}
}

func registry() *comparison.Registry {
	return comparison.DefaultRegistry(keyword.DefaultConfig(), tfidf.DefaultConfig())
}

func TestGetLoadsOnceAndFilters(t *testing.T) {
	loader := newLoader()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	mgr := NewManager(loader, registry(), 0, m)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := mgr.Get(context.Background(), product.SourceCatalog)
			assert.NoError(t, err)
			assert.Len(t, snap.Products, 2)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loader.calls.Load())
	snap, err := mgr.Get(context.Background(), product.SourceCatalog)
	require.NoError(t, err)
	assert.Len(t, snap.Rejected, 1)
	assert.NotEmpty(t, snap.Fingerprint)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CorpusDocuments.WithLabelValues("api")))

	loaded := mgr.Loaded()
	require.Len(t, loaded, 1)
	assert.Equal(t, product.SourceCatalog, loaded[0].Dataset)
}

func TestInvalidateReloads(t *testing.T) {
	loader := newLoader()
	mgr := NewManager(loader, registry(), 0, nil)
	ctx := context.Background()

	_, err := mgr.Get(ctx, product.SourceCatalog)
	require.NoError(t, err)
	mgr.Invalidate(product.SourceCatalog)
	assert.Empty(t, mgr.Loaded())
	_, err = mgr.Get(ctx, product.SourceCatalog)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
}

// gatedLoader holds its first load until release is closed, then serves
// the updated catalog to later loads.
type gatedLoader struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (g *gatedLoader) LoadDataset(_ context.Context, _ product.Source, _ int) ([]product.Product, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
		<-g.release
		return []product.Product{{ID: "old-1", Title: "Wool Runner"}, {ID: "old-2", Title: "Crew Sock"}}, nil
	}
	return []product.Product{{ID: "new-1", Title: "Tree Dasher"}, {ID: "new-2", Title: "Trail Runner"}}, nil
}

func TestInvalidateDuringLoadDiscardsStaleSnapshot(t *testing.T) {
	loader := &gatedLoader{started: make(chan struct{}), release: make(chan struct{})}
	mgr := NewManager(loader, registry(), 0, nil)
	ctx := context.Background()

	done := make(chan *Snapshot)
	go func() {
		snap, err := mgr.Get(ctx, product.SourceCatalog)
		assert.NoError(t, err)
		done <- snap
	}()
	<-loader.started
	mgr.Invalidate(product.SourceCatalog)
	close(loader.release)
	stale := <-done
	assert.Equal(t, "old-1", stale.Products[0].ID)

	fresh, err := mgr.Get(ctx, product.SourceCatalog)
	require.NoError(t, err)
	assert.Equal(t, "new-1", fresh.Products[0].ID)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestGetErrors(t *testing.T) {
	ctx := context.Background()

	empty := NewManager(newLoader(), registry(), 0, nil)
	_, err := empty.Get(ctx, product.SourceSocial)
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyCorpus)
	assert.Empty(t, empty.Loaded())

	boom := errors.New("db down")
	failing := NewManager(&fakeLoader{err: boom}, registry(), 0, nil)
	_, err = failing.Get(ctx, product.SourceCatalog)
	assert.ErrorIs(t, err, boom)
}

func TestPutReplacesSnapshot(t *testing.T) {
	loader := newLoader()
	mgr := NewManager(loader, registry(), 0, nil)
	ctx := context.Background()

	snap, err := mgr.Put(ctx, product.SourceSocial, []product.Product{
		{ID: "s1", Title: "Love these boots"},
		{ID: "s2", Title: "Merino hoodie review"},
	})
	require.NoError(t, err)
	got, err := mgr.Get(ctx, product.SourceSocial)
	require.NoError(t, err)
	assert.Same(t, snap, got)
	assert.Equal(t, int32(0), loader.calls.Load())
}
