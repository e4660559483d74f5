package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const maxTopQueries = 100

// Handler serves the aggregated evaluation analytics.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

// NewHandler serves aggregator's stats.
func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats answers GET /api/v1/analytics. ?top=N sizes the query leaderboards
// and ?algorithm=name narrows the per-algorithm section to one scorer.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top := defaultTopQueries
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTopQueries {
			h.respond(w, http.StatusBadRequest, map[string]string{"error": "top must be between 1 and 100"})
			return
		}
		top = n
	}

	stats := h.aggregator.StatsTop(top)
	if name := r.URL.Query().Get("algorithm"); name != "" {
		algo, ok := stats.Algorithms[name]
		if !ok {
			h.respond(w, http.StatusNotFound, map[string]string{"error": "no events recorded for algorithm " + name})
			return
		}
		stats.Algorithms = map[string]AlgorithmStats{name: algo}
	}
	h.respond(w, http.StatusOK, stats)
}

func (h *Handler) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
