// Package corpora keeps one fitted corpus snapshot per dataset in memory so
// interactive searches do not refit every scorer per request.
package corpora

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/corpus/validator"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/comparison"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/searcher/cache"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/metrics"
)

// Loader fetches a dataset; *store.Store implements it.
type Loader interface {
	LoadDataset(ctx context.Context, ds product.Source, limit int) ([]product.Product, error)
}

// Snapshot is an immutable corpus plus every scorer fit on it.
type Snapshot struct {
	Dataset     product.Source
	Products    []product.Product
	Fitted      *comparison.Fitted
	Fingerprint string
	Rejected    []validator.Rejection
	LoadedAt    time.Time
}

// Info describes a loaded snapshot.
type Info struct {
	Dataset     product.Source `json:"dataset"`
	Products    int            `json:"products"`
	Rejected    int            `json:"rejected"`
	Fingerprint string         `json:"fingerprint"`
	LoadedAt    time.Time      `json:"loaded_at"`
}

// Info summarises the snapshot without its products.
func (s *Snapshot) Info() Info {
	return Info{
		Dataset:     s.Dataset,
		Products:    len(s.Products),
		Rejected:    len(s.Rejected),
		Fingerprint: s.Fingerprint,
		LoadedAt:    s.LoadedAt,
	}
}

// Manager keeps one fitted snapshot per dataset.
type Manager struct {
	loader   Loader
	registry *comparison.Registry
	limit    int
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu    sync.RWMutex
	snaps map[product.Source]*Snapshot
	// gen counts replacements per dataset; a load started under an older
	// generation must not install its snapshot.
	gen   map[product.Source]uint64
	group singleflight.Group
}

// NewManager loads at most limit products per dataset (limit <= 0: all).
func NewManager(loader Loader, registry *comparison.Registry, limit int, m *metrics.Metrics) *Manager {
	return &Manager{
		loader:   loader,
		registry: registry,
		limit:    limit,
		metrics:  m,
		logger:   slog.Default().With("component", "corpora"),
		snaps:    make(map[product.Source]*Snapshot),
		gen:      make(map[product.Source]uint64),
	}
}

// Get returns the dataset snapshot, loading and fitting it on first use.
// Concurrent first calls share one load.
func (m *Manager) Get(ctx context.Context, ds product.Source) (*Snapshot, error) {
	m.mu.RLock()
	snap, ok := m.snaps[ds]
	m.mu.RUnlock()
	if ok {
		return snap, nil
	}
	v, err, _ := m.group.Do(string(ds), func() (any, error) {
		m.mu.RLock()
		snap, ok := m.snaps[ds]
		gen := m.gen[ds]
		m.mu.RUnlock()
		if ok {
			return snap, nil
		}
		snap, err := m.load(ctx, ds)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		if m.gen[ds] == gen {
			m.snaps[ds] = snap
		} else {
			m.logger.Info("discarding snapshot loaded before invalidation", "dataset", ds)
		}
		m.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Put installs products as the dataset's snapshot, replacing any loaded one.
func (m *Manager) Put(ctx context.Context, ds product.Source, products []product.Product) (*Snapshot, error) {
	snap, err := m.build(ctx, ds, products)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.snaps[ds] = snap
	m.gen[ds]++
	m.mu.Unlock()
	return snap, nil
}

func (m *Manager) load(ctx context.Context, ds product.Source) (*Snapshot, error) {
	products, err := m.loader.LoadDataset(ctx, ds, m.limit)
	if err != nil {
		return nil, fmt.Errorf("loading %s dataset: %w", ds, err)
	}
	return m.build(ctx, ds, products)
}

func (m *Manager) build(ctx context.Context, ds product.Source, products []product.Product) (*Snapshot, error) {
	kept, rejected := validator.FilterCorpus(products)
	if len(rejected) > 0 {
		m.logger.Warn("products rejected", "dataset", ds, "rejected", len(rejected), "first", rejected[0].Reason)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("dataset %s has no valid products: %w", ds, pkgerrors.ErrEmptyCorpus)
	}
	fitted, err := comparison.Fit(ctx, m.registry, kept, m.metrics)
	if err != nil {
		return nil, fmt.Errorf("fitting %s dataset: %w", ds, err)
	}
	snap := &Snapshot{
		Dataset:     ds,
		Products:    kept,
		Fitted:      fitted,
		Fingerprint: cache.Fingerprint(kept),
		Rejected:    rejected,
		LoadedAt:    time.Now().UTC(),
	}
	if m.metrics != nil {
		m.metrics.CorpusDocuments.WithLabelValues(string(ds)).Set(float64(len(kept)))
	}
	m.logger.Info("corpus snapshot ready", "dataset", ds, "products", len(kept), "fingerprint", snap.Fingerprint)
	return snap, nil
}

// Invalidate drops the dataset snapshot; the next Get reloads it. A load
// already in flight finishes for its callers but is not installed.
func (m *Manager) Invalidate(ds product.Source) {
	m.mu.Lock()
	delete(m.snaps, ds)
	m.gen[ds]++
	m.mu.Unlock()
	m.group.Forget(string(ds))
}

// Loaded lists the snapshots currently in memory, by dataset name.
func (m *Manager) Loaded() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.snaps))
	for _, s := range m.snaps {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dataset < out[j].Dataset })
	return out
}
