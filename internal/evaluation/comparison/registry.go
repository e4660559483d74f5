package comparison

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/bm25"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/keyword"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/ranker"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/tfidf"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
)

// Registry is an ordered set of named scorer factories. Registration order
// is the report order and breaks ties between equally scoring algorithms.
type Registry struct {
	names     []string
	factories map[string]ranker.Factory
	settings  map[string]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]ranker.Factory),
		settings:  make(map[string]any),
	}
}

// DefaultRegistry registers every built-in algorithm.
func DefaultRegistry(kw keyword.Config, tf tfidf.Config) *Registry {
	r := NewRegistry()
	_ = r.RegisterWithSettings(keyword.Name, keyword.Factory(kw), kw)
	_ = r.RegisterWithSettings(tfidf.Name, tfidf.Factory(tf), tf)
	_ = r.RegisterWithSettings(bm25.Name, bm25.Factory(), bm25.Parameters())
	return r
}

// Register adds a scorer with no recorded settings.
func (r *Registry) Register(name string, f ranker.Factory) error {
	return r.RegisterWithSettings(name, f, nil)
}

// RegisterWithSettings adds a scorer along with the configuration its
// factory was built from. Settings feed the comparator's settings digest,
// so two registries whose scorers are tuned differently never share cached
// reports.
func (r *Registry) RegisterWithSettings(name string, f ranker.Factory, settings any) error {
	if name == "" || f == nil {
		return pkgerrors.Configf("scorer name and factory are required")
	}
	if _, dup := r.factories[name]; dup {
		return pkgerrors.Configf("scorer %q registered twice", name)
	}
	r.names = append(r.names, name)
	r.factories[name] = f
	r.settings[name] = settings
	return nil
}

// Settings returns each registered scorer's recorded configuration.
func (r *Registry) Settings() map[string]any {
	out := make(map[string]any, len(r.names))
	for _, name := range r.names {
		out[name] = r.settings[name]
	}
	return out
}

// Names lists the registered scorers in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len is the number of registered scorers.
func (r *Registry) Len() int { return len(r.names) }

// Select returns a registry holding only names, in the order given.
// An empty list selects everything.
func (r *Registry) Select(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	out := NewRegistry()
	for _, name := range names {
		f, ok := r.factories[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (available: %v)", pkgerrors.ErrUnknownScorer, name, r.names)
		}
		if err := out.RegisterWithSettings(name, f, r.settings[name]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
