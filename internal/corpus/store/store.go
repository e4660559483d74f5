// Package store persists the product corpora and evaluation runs in SQL.
// The same statements run on PostgreSQL and SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/comparison"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/database"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
)

const (
	tableCatalog = "products"
	tableSocial  = "social_media_products"
	tableRuns    = "evaluation_runs"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		product_name TEXT NOT NULL DEFAULT '',
		brand        TEXT NOT NULL DEFAULT '',
		category     TEXT NOT NULL DEFAULT '',
		price        DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS social_media_products (
		id                TEXT PRIMARY KEY,
		title             TEXT NOT NULL,
		description       TEXT NOT NULL DEFAULT '',
		product_name      TEXT NOT NULL DEFAULT '',
		brand             TEXT NOT NULL DEFAULT '',
		category          TEXT NOT NULL DEFAULT '',
		price             DOUBLE PRECISION,
		upvotes           INTEGER NOT NULL DEFAULT 0,
		comments_count    INTEGER NOT NULL DEFAULT 0,
		sentiment_score   DOUBLE PRECISION,
		is_review         BOOLEAN NOT NULL DEFAULT FALSE,
		is_recommendation BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS evaluation_runs (
		run_id         TEXT PRIMARY KEY,
		dataset        TEXT NOT NULL,
		started_at     TEXT NOT NULL,
		duration_ms    BIGINT NOT NULL,
		queries        INTEGER NOT NULL,
		products       INTEGER NOT NULL,
		best_algorithm TEXT NOT NULL DEFAULT '',
		report         TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products (category)`,
	`CREATE INDEX IF NOT EXISTS idx_social_category ON social_media_products (category)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started ON evaluation_runs (started_at)`,
}

// ParseDataset maps a dataset name to its product source.
func ParseDataset(name string) (product.Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "api", "catalog", "":
		return product.SourceCatalog, nil
	case "social", "social_media":
		return product.SourceSocial, nil
	}
	return "", fmt.Errorf("%w: %q", pkgerrors.ErrDatasetNotFound, name)
}

func tableFor(ds product.Source) (string, error) {
	switch ds {
	case product.SourceCatalog:
		return tableCatalog, nil
	case product.SourceSocial:
		return tableSocial, nil
	}
	return "", fmt.Errorf("%w: %q", pkgerrors.ErrDatasetNotFound, ds)
}

// Store persists both product datasets and evaluation runs.
type Store struct {
	client *database.Client
	logger *slog.Logger
}

// New wraps an open database client. Call Migrate before first use.
func New(client *database.Client) *Store {
	return &Store{
		client: client,
		logger: slog.Default().With("component", "corpus-store"),
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying schema: %w", err)
			}
		}
		return nil
	})
}

// Ping checks the database connection for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

const catalogColumns = `id, title, description, product_name, brand, category, price`
const socialColumns = catalogColumns + `, upvotes, comments_count, sentiment_score, is_review, is_recommendation`

// LoadDataset returns the dataset's products ordered by id. Records with an
// empty title are excluded. limit <= 0 loads everything.
func (s *Store) LoadDataset(ctx context.Context, ds product.Source, limit int) ([]product.Product, error) {
	table, err := tableFor(ds)
	if err != nil {
		return nil, err
	}
	cols := catalogColumns
	if ds == product.SourceSocial {
		cols = socialColumns
	}
	query := `SELECT ` + cols + ` FROM ` + table + ` WHERE title <> '' ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.client.DB.QueryContext(ctx, s.client.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var out []product.Product
	for rows.Next() {
		p := product.Product{Source: ds}
		var price sql.NullFloat64
		dest := []any{&p.ID, &p.Title, &p.Description, &p.ProductName, &p.Brand, &p.Category, &price}
		var eng product.Engagement
		var sentiment sql.NullFloat64
		if ds == product.SourceSocial {
			dest = append(dest, &eng.Upvotes, &eng.Comments, &sentiment, &p.IsReview, &p.IsRecommendation)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		if price.Valid {
			v := price.Float64
			p.Price = &v
		}
		if ds == product.SourceSocial {
			eng.Sentiment = sentiment.Float64
			p.Engagement = &eng
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", table, err)
	}
	s.logger.Debug("dataset loaded", "dataset", ds, "products", len(out), "limit", limit)
	return out, nil
}

// UpsertProducts inserts or replaces products by id in one transaction.
func (s *Store) UpsertProducts(ctx context.Context, ds product.Source, products []product.Product) (int, error) {
	table, err := tableFor(ds)
	if err != nil {
		return 0, err
	}
	var stmt string
	if ds == product.SourceSocial {
		stmt = `INSERT INTO social_media_products (` + socialColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				title = excluded.title, description = excluded.description,
				product_name = excluded.product_name, brand = excluded.brand,
				category = excluded.category, price = excluded.price,
				upvotes = excluded.upvotes, comments_count = excluded.comments_count,
				sentiment_score = excluded.sentiment_score, is_review = excluded.is_review,
				is_recommendation = excluded.is_recommendation`
	} else {
		stmt = `INSERT INTO products (` + catalogColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				title = excluded.title, description = excluded.description,
				product_name = excluded.product_name, brand = excluded.brand,
				category = excluded.category, price = excluded.price`
	}
	stmt = s.client.Rebind(stmt)

	err = s.client.InTx(ctx, func(tx *sql.Tx) error {
		prepared, err := tx.PrepareContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer prepared.Close()
		for _, p := range products {
			var price sql.NullFloat64
			if p.Price != nil {
				price = sql.NullFloat64{Float64: *p.Price, Valid: true}
			}
			args := []any{p.ID, p.Title, p.Description, p.ProductName, p.Brand, p.Category, price}
			if ds == product.SourceSocial {
				var eng product.Engagement
				var sentiment sql.NullFloat64
				if p.Engagement != nil {
					eng = *p.Engagement
					sentiment = sql.NullFloat64{Float64: eng.Sentiment, Valid: true}
				}
				args = append(args, eng.Upvotes, eng.Comments, sentiment, p.IsReview, p.IsRecommendation)
			}
			if _, err := prepared.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("upserting product %s: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("writing %s: %w", table, err)
	}
	s.logger.Info("products upserted", "dataset", ds, "count", len(products))
	return len(products), nil
}

// CategoryCount is the number of products in one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// DatasetStats summarises one stored dataset.
type DatasetStats struct {
	Dataset    product.Source  `json:"dataset"`
	Products   int             `json:"products"`
	Brands     int             `json:"distinct_brands"`
	Categories []CategoryCount `json:"categories"`
}

// Stats summarizes every dataset, categories ordered by count then name.
func (s *Store) Stats(ctx context.Context) ([]DatasetStats, error) {
	var out []DatasetStats
	for _, ds := range []product.Source{product.SourceCatalog, product.SourceSocial} {
		table, _ := tableFor(ds)
		st := DatasetStats{Dataset: ds, Categories: []CategoryCount{}}
		row := s.client.DB.QueryRowContext(ctx,
			`SELECT COUNT(*), COUNT(DISTINCT NULLIF(brand, '')) FROM `+table+` WHERE title <> ''`)
		if err := row.Scan(&st.Products, &st.Brands); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		rows, err := s.client.DB.QueryContext(ctx,
			`SELECT category, COUNT(*) AS n FROM `+table+` WHERE title <> ''
			 GROUP BY category ORDER BY n DESC, category`)
		if err != nil {
			return nil, fmt.Errorf("grouping %s: %w", table, err)
		}
		for rows.Next() {
			var c CategoryCount
			if err := rows.Scan(&c.Category, &c.Count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning category: %w", err)
			}
			st.Categories = append(st.Categories, c)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterating categories: %w", err)
		}
		out = append(out, st)
	}
	return out, nil
}

// RunSummary is one row of evaluation_runs without the report body.
type RunSummary struct {
	RunID         string        `json:"run_id"`
	Dataset       string        `json:"dataset"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration_ns"`
	Queries       int           `json:"queries"`
	Products      int           `json:"products"`
	BestAlgorithm string        `json:"best_algorithm"`
}

// SaveRun records a comparison report. Saving a run id that is already
// stored, as happens when a cached report is saved again, is a no-op.
func (s *Store) SaveRun(ctx context.Context, dataset string, report *comparison.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	best := ""
	if len(report.Summary.Ranking) > 0 {
		best = report.Summary.Ranking[0]
	}
	_, err = s.client.DB.ExecContext(ctx, s.client.Rebind(
		`INSERT INTO evaluation_runs (run_id, dataset, started_at, duration_ms, queries, products, best_algorithm, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id) DO NOTHING`),
		report.RunID, dataset, report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.Duration.Milliseconds(), len(report.Queries), report.Products, best, string(body),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", report.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.client.DB.QueryContext(ctx, s.client.Rebind(
		`SELECT run_id, dataset, started_at, duration_ms, queries, products, best_algorithm
		 FROM evaluation_runs ORDER BY started_at DESC, run_id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	out := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		var started string
		var ms int64
		if err := rows.Scan(&r.RunID, &r.Dataset, &started, &ms, &r.Queries, &r.Products, &r.BestAlgorithm); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun loads a saved report, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (*comparison.Report, error) {
	var body string
	err := s.client.DB.QueryRowContext(ctx, s.client.Rebind(
		`SELECT report FROM evaluation_runs WHERE run_id = ?`), runID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	var report comparison.Report
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", runID, err)
	}
	return &report, nil
}
