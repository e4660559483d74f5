package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/corpus/store"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/corpus/validator"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/comparison"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/ranker"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/searcher/corpora"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/middleware"
)

const (
	maxCompareQueries = 200
	maxKValue         = 100
	maxBodyBytes      = 1 << 20
)

// RunStore persists comparison reports and reports corpus statistics.
type RunStore interface {
	Stats(ctx context.Context) ([]store.DatasetStats, error)
	SaveRun(ctx context.Context, dataset string, report *comparison.Report) error
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
	GetRun(ctx context.Context, runID string) (*comparison.Report, error)
}

// Config holds request defaults and optional metrics.
type Config struct {
	DefaultLimit   int
	DefaultDataset string
	Metrics        *metrics.Metrics
}

// Handler serves search, comparison, corpus, run and cache endpoints.
type Handler struct {
	corpora    *corpora.Manager
	comparator *comparison.Comparator
	store      RunStore
	cache      *cache.ReportCache
	collector  *analytics.Collector
	cfg        Config
	logger     *slog.Logger
}

// New wires the search API. store, reportCache and collector may be nil.
func New(
	snapshots *corpora.Manager,
	comparator *comparison.Comparator,
	runStore RunStore,
	reportCache *cache.ReportCache,
	collector *analytics.Collector,
	cfg Config,
) *Handler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.DefaultDataset == "" {
		cfg.DefaultDataset = string(product.SourceCatalog)
	}
	return &Handler{
		corpora:    snapshots,
		comparator: comparator,
		store:      runStore,
		cache:      reportCache,
		collector:  collector,
		cfg:        cfg,
		logger:     slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/compare", h.Compare)
	mux.HandleFunc("GET /api/v1/corpus/stats", h.CorpusStats)
	mux.HandleFunc("POST /api/v1/corpus/reload", h.CorpusReload)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.GetRun)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query      string   `json:"query"`
	Dataset    string   `json:"dataset"`
	Limit      int      `json:"limit"`
	Algorithms []string `json:"algorithms"`
	Stats      bool     `json:"stats"`
}

// Hit is a ranked result joined with the product fields a reader needs.
type Hit struct {
	ranker.ScoredDoc
	Title    string `json:"title"`
	Brand    string `json:"brand,omitempty"`
	Category string `json:"category,omitempty"`
}

// AlgorithmHits is one algorithm's ranked results for a search.
type AlgorithmHits struct {
	Algorithm    string        `json:"algorithm"`
	Results      []Hit         `json:"results"`
	SearchTimeMs float64       `json:"search_time_ms"`
	Stats        *ranker.Stats `json:"stats,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// SearchResponse groups results by algorithm.
type SearchResponse struct {
	Query       string          `json:"query"`
	Dataset     string          `json:"dataset"`
	Products    int             `json:"total_products"`
	Algorithms  []AlgorithmHits `json:"algorithms"`
	TotalTimeMs float64         `json:"total_time_ms"`
}

// Search runs one query through every selected algorithm.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req SearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := validator.ValidateQuery(req.Query); err != nil {
		h.writeError(w, err)
		return
	}
	if err := validator.ValidateLimit(req.Limit); err != nil {
		h.writeError(w, err)
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = h.cfg.DefaultLimit
	}
	if err := h.checkAlgorithms(req.Algorithms); err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.snapshot(ctx, req.Dataset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	results := snap.Fitted.Search(req.Query, limit, req.Stats)
	resp := SearchResponse{
		Query:      req.Query,
		Dataset:    string(snap.Dataset),
		Products:   len(snap.Products),
		Algorithms: make([]AlgorithmHits, 0, len(results)),
	}
	tracked := make([]comparison.AlgorithmResult, 0, len(results))
	for _, res := range results {
		if len(req.Algorithms) > 0 && !slices.Contains(req.Algorithms, res.Algorithm) {
			continue
		}
		tracked = append(tracked, res)
		if h.cfg.Metrics != nil && res.Error == "" {
			h.cfg.Metrics.SearchLatency.WithLabelValues(res.Algorithm).Observe(res.SearchTime.Seconds())
			h.cfg.Metrics.SearchResultsCount.WithLabelValues(res.Algorithm).Observe(float64(len(res.Results)))
		}
		resp.Algorithms = append(resp.Algorithms, toHits(snap.Fitted, res))
	}
	resp.TotalTimeMs = millis(time.Since(start))

	log.Info("search completed",
		"query", req.Query,
		"dataset", snap.Dataset,
		"algorithms", len(resp.Algorithms),
		"latency_ms", resp.TotalTimeMs,
	)
	if h.collector != nil {
		h.collector.Track(analytics.SearchEvents(middleware.GetRequestID(ctx), req.Query, tracked)...)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func toHits(f *comparison.Fitted, res comparison.AlgorithmResult) AlgorithmHits {
	out := AlgorithmHits{
		Algorithm:    res.Algorithm,
		Results:      make([]Hit, 0, len(res.Results)),
		SearchTimeMs: millis(res.SearchTime),
		Stats:        res.Stats,
		Error:        res.Error,
	}
	for _, doc := range res.Results {
		hit := Hit{ScoredDoc: doc}
		if p, ok := f.Product(doc.DocID); ok {
			hit.Title = p.Title
			hit.Brand = p.Brand
			hit.Category = p.Category
		}
		out.Results = append(out.Results, hit)
	}
	return out
}

// CompareRequest is the body of POST /api/v1/compare.
type CompareRequest struct {
	Dataset    string   `json:"dataset"`
	Queries    []string `json:"queries"`
	Algorithms []string `json:"algorithms"`
	KValues    []int    `json:"k_values"`
	Limit      int      `json:"limit"`
	Save       bool     `json:"save"`
}

// CompareResponse wraps a report with its cache and save outcome.
type CompareResponse struct {
	Cached bool               `json:"cached"`
	Saved  bool               `json:"saved"`
	Report *comparison.Report `json:"report"`
}

// Compare evaluates the selected algorithms over a query set.
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req CompareRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := validateCompare(req); err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.snapshot(ctx, req.Dataset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	queries := req.Queries
	if len(queries) == 0 {
		if queries, err = comparison.QuerySet(string(snap.Dataset)); err != nil {
			h.writeError(w, err)
			return
		}
	}
	comp, err := h.comparator.Derive(req.Algorithms, comparison.Config{KValues: req.KValues, Limit: req.Limit})
	if err != nil {
		h.writeError(w, err)
		return
	}

	compute := func(ctx context.Context) (*comparison.Report, error) {
		return comp.Run(ctx, queries, snap.Products)
	}
	var (
		report *comparison.Report
		cached bool
	)
	if h.cache != nil {
		key := cache.Key{
			Dataset:     string(snap.Dataset),
			Fingerprint: snap.Fingerprint,
			Queries:     queries,
			Algorithms:  comp.Registry().Names(),
			KValues:     comp.Config().KValues,
			Limit:       comp.Config().Limit,
			Threshold:   comp.Threshold(),
			Settings:    comp.SettingsDigest(),
		}
		report, cached, err = h.cache.GetOrCompute(ctx, key, compute)
	} else {
		report, err = compute(ctx)
	}
	if err != nil {
		log.Error("comparison failed", "dataset", snap.Dataset, "error", err)
		h.writeError(w, err)
		return
	}

	saved := false
	if req.Save && h.store != nil {
		if err := h.store.SaveRun(ctx, string(snap.Dataset), report); err != nil {
			log.Error("saving run failed", "run_id", report.RunID, "error", err)
		} else {
			saved = true
		}
	}
	log.Info("comparison served",
		"run_id", report.RunID,
		"dataset", snap.Dataset,
		"queries", len(queries),
		"cached", cached,
		"saved", saved,
	)
	h.writeJSON(w, http.StatusOK, CompareResponse{Cached: cached, Saved: saved, Report: report})
}

func validateCompare(req CompareRequest) error {
	if len(req.Queries) > maxCompareQueries {
		return pkgerrors.Newf(pkgerrors.ErrInvalidInput, http.StatusBadRequest,
			"at most %d queries per comparison", maxCompareQueries)
	}
	for _, k := range req.KValues {
		if k < 1 || k > maxKValue {
			return pkgerrors.Newf(pkgerrors.ErrInvalidInput, http.StatusBadRequest,
				"k values must be between 1 and %d", maxKValue)
		}
	}
	return validator.ValidateLimit(req.Limit)
}

func (h *Handler) checkAlgorithms(names []string) error {
	known := h.comparator.Registry().Names()
	for _, n := range names {
		if !slices.Contains(known, n) {
			return fmt.Errorf("%w: %q", pkgerrors.ErrUnknownScorer, n)
		}
	}
	return nil
}

func (h *Handler) snapshot(ctx context.Context, dataset string) (*corpora.Snapshot, error) {
	if dataset == "" {
		dataset = h.cfg.DefaultDataset
	}
	ds, err := store.ParseDataset(dataset)
	if err != nil {
		return nil, err
	}
	return h.corpora.Get(ctx, ds)
}

type corpusStatsResponse struct {
	Datasets []store.DatasetStats `json:"datasets,omitempty"`
	Loaded   []corpora.Info       `json:"loaded"`
}

// CorpusStats reports stored datasets and loaded snapshots.
func (h *Handler) CorpusStats(w http.ResponseWriter, r *http.Request) {
	resp := corpusStatsResponse{Loaded: h.corpora.Loaded()}
	if h.store != nil {
		stats, err := h.store.Stats(r.Context())
		if err != nil {
			h.logger.Error("corpus stats failed", "error", err)
			h.writeError(w, err)
			return
		}
		resp.Datasets = stats
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CorpusReload drops the in-memory snapshot of ?dataset= so the next request
// reads the store again. Cached reports are keyed by corpus fingerprint and
// need no flush.
func (h *Handler) CorpusReload(w http.ResponseWriter, r *http.Request) {
	dataset := r.URL.Query().Get("dataset")
	if dataset == "" {
		dataset = h.cfg.DefaultDataset
	}
	ds, err := store.ParseDataset(dataset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.corpora.Invalidate(ds)
	snap, err := h.corpora.Get(r.Context(), ds)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap.Info())
}

// ListRuns lists saved runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeJSON(w, http.StatusOK, []store.RunSummary{})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			h.writeError(w, pkgerrors.New(pkgerrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing runs failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one saved report.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, pkgerrors.ErrRunNotFound)
		return
	}
	report, err := h.store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// CacheStats reports report cache hits and misses.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate flushes the report cache.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return pkgerrors.Newf(pkgerrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err)
	}
	return nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to its status code. Internal failures are reported
// without their detail.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := pkgerrors.HTTPStatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	var appErr *pkgerrors.AppError
	if errors.As(err, &appErr) && status != http.StatusInternalServerError {
		message = appErr.Message
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
