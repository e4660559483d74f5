// Package analytics turns searches and comparison runs into events,
// ships them to Kafka (or straight to an in-process aggregator) and serves
// the aggregated view over HTTP.
package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/comparison"
)

// EventType distinguishes search events from run events.
type EventType string

const (
	EventSearch         EventType = "search"
	EventQueryEvaluated EventType = "query_evaluated"
	EventRunCompleted   EventType = "run_completed"
)

// Event is the single envelope for every analytics record; fields that do
// not apply to a type are left zero.
type Event struct {
	Type      EventType          `json:"type"`
	RunID     string             `json:"run_id,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
	Query     string             `json:"query,omitempty"`
	Algorithm string             `json:"algorithm,omitempty"`
	Status    string             `json:"status,omitempty"`
	Results   int                `json:"results"`
	LatencyMs float64            `json:"latency_ms"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Ranking   []string           `json:"ranking,omitempty"`
	Queries   int                `json:"queries,omitempty"`
	Products  int                `json:"products,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

func (e Event) key() string {
	if e.RunID != "" {
		return e.RunID
	}
	if e.RequestID != "" {
		return e.RequestID
	}
	return string(e.Type)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// RunEvents flattens a report into one event per (query, algorithm) pair
// followed by a run_completed event.
func RunEvents(report *comparison.Report) []Event {
	now := time.Now().UTC()
	events := make([]Event, 0, len(report.PerQuery)*len(report.Order)+1)
	for _, qr := range report.PerQuery {
		for _, run := range qr.Runs {
			events = append(events, Event{
				Type:      EventQueryEvaluated,
				RunID:     report.RunID,
				Query:     qr.Query,
				Algorithm: run.Algorithm,
				Status:    run.Status,
				Results:   len(run.Ranked),
				LatencyMs: ms(run.SearchTime),
				Metrics:   run.Metrics,
				Timestamp: now,
			})
		}
	}
	events = append(events, Event{
		Type:      EventRunCompleted,
		RunID:     report.RunID,
		Ranking:   report.Summary.Ranking,
		Queries:   len(report.Queries),
		Products:  report.Products,
		LatencyMs: ms(report.Duration),
		Timestamp: now,
	})
	return events
}

// SearchEvents records one ad-hoc search, one event per algorithm.
func SearchEvents(requestID, query string, results []comparison.AlgorithmResult) []Event {
	now := time.Now().UTC()
	events := make([]Event, 0, len(results))
	for _, r := range results {
		status := comparison.StatusOK
		if r.Error != "" {
			status = comparison.StatusFailed
		}
		events = append(events, Event{
			Type:      EventSearch,
			RequestID: requestID,
			Query:     query,
			Algorithm: r.Algorithm,
			Status:    status,
			Results:   len(r.Results),
			LatencyMs: ms(r.SearchTime),
			Timestamp: now,
		})
	}
	return events
}
