package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/corpus/dataset"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/corpus/store"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/corpus/validator"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/comparison"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/judge"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/keyword"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/tfidf"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/database"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
)

// registryFromConfig builds the configured scorers, restricted to names
// (or to the configured algorithms when names is empty).
func registryFromConfig(c *config.Config, names []string) (*comparison.Registry, error) {
	kw := keyword.Config{
		CaseSensitive:      c.Keyword.CaseSensitive,
		ExactMatchWeight:   c.Keyword.ExactMatchWeight,
		PartialMatchWeight: c.Keyword.PartialMatchWeight,
		FieldBoost:         c.Keyword.FieldBoost,
		PartialPolicy:      keyword.PartialPolicy(c.Keyword.PartialPolicy),
	}
	if err := kw.Validate(); err != nil {
		return nil, err
	}
	tf := tfidf.Config{
		CaseSensitive: c.TFIDF.CaseSensitive,
		MinDF:         c.TFIDF.MinDF,
		MaxDF:         c.TFIDF.MaxDF,
	}
	if err := tf.Validate(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = c.Evaluation.Algorithms
	}
	return comparison.DefaultRegistry(kw, tf).Select(names)
}

func comparatorFromConfig(c *config.Config, names []string, opts ...comparison.Option) (*comparison.Comparator, error) {
	reg, err := registryFromConfig(c, names)
	if err != nil {
		return nil, err
	}
	jc := judge.DefaultConfig()
	jc.Threshold = c.Judge.Threshold
	j, err := judge.New(jc)
	if err != nil {
		return nil, err
	}
	return comparison.New(reg, j, comparison.Config{
		KValues:     c.Evaluation.KValues,
		Limit:       c.Evaluation.Limit,
		Concurrency: c.Evaluation.Concurrency,
	}, opts...), nil
}

// openStore connects to the configured database and applies the schema.
func openStore(ctx context.Context, c *config.Config) (*store.Store, *database.Client, error) {
	client, err := database.New(ctx, c.Database)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(client)
	if err := st.Migrate(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}
	return st, client, nil
}

// addCorpusFlags registers the flags every corpus-consuming command shares.
func addCorpusFlags(cmd *cobra.Command) {
	cmd.Flags().String("dataset", "", "dataset to load: api or social (default from config)")
	cmd.Flags().String("file", "", "read the corpus from a JSON or YAML dataset file instead of the store")
	cmd.Flags().Int("corpus-limit", 0, "load at most this many products (0: config value)")
}

// loadCorpus reads the corpus selected by the shared flags and drops
// products that fail validation.
func loadCorpus(cmd *cobra.Command) ([]product.Product, product.Source, error) {
	ctx := cmd.Context()
	path, _ := cmd.Flags().GetString("file")
	name, _ := cmd.Flags().GetString("dataset")
	limit, _ := cmd.Flags().GetInt("corpus-limit")
	if limit == 0 {
		limit = cfg.Evaluation.CorpusLimit
	}

	var (
		products []product.Product
		ds       product.Source
	)
	if path != "" {
		f, err := dataset.ReadFile(path)
		if err != nil {
			return nil, "", err
		}
		ds, products = f.Dataset, f.Products
		if limit > 0 && len(products) > limit {
			products = products[:limit]
		}
	} else {
		if name == "" {
			name = cfg.Evaluation.Dataset
		}
		var err error
		if ds, err = store.ParseDataset(name); err != nil {
			return nil, "", err
		}
		st, client, err := openStore(ctx, cfg)
		if err != nil {
			return nil, "", err
		}
		defer client.Close()
		if products, err = st.LoadDataset(ctx, ds, limit); err != nil {
			return nil, "", err
		}
	}

	kept, rejected := validator.FilterCorpus(products)
	for _, r := range rejected {
		slog.Warn("product rejected", "index", r.Index, "id", r.ID, "reason", r.Reason)
	}
	if len(kept) == 0 {
		return nil, ds, fmt.Errorf("dataset %s: %w", ds, pkgerrors.ErrEmptyCorpus)
	}
	slog.Info("corpus loaded", "dataset", ds, "products", len(kept), "rejected", len(rejected))
	return kept, ds, nil
}
