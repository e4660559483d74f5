package comparison

import (
	"fmt"
	"sort"
	"time"

	evalmetrics "github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/evaluation/metrics"
)

// Run statuses for one (query, algorithm) pair.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// AlgorithmRun is one algorithm's outcome for one query.
type AlgorithmRun struct {
	Algorithm  string            `json:"algorithm"`
	Status     string            `json:"status"`
	Ranked     []string          `json:"ranked"`
	Metrics    evalmetrics.Suite `json:"metrics,omitempty"`
	SearchTime time.Duration     `json:"search_time_ns"`
	Error      string            `json:"error,omitempty"`
}

// QueryResult holds every algorithm's run for one query.
type QueryResult struct {
	Query    string         `json:"query"`
	Relevant int            `json:"relevant"`
	Runs     []AlgorithmRun `json:"runs"`
}

// AlgorithmSummary aggregates one algorithm over all successful queries.
type AlgorithmSummary struct {
	Metrics          evalmetrics.Suite `json:"metrics"`
	AvgSearchTime    time.Duration     `json:"avg_search_time_ns"`
	QueriesProcessed int               `json:"queries_processed"`
	QueriesFailed    int               `json:"queries_failed"`
	TotalResults     int               `json:"total_results"`
}

// Best names the winning algorithm for one metric.
type Best struct {
	Algorithm string  `json:"algorithm"`
	Score     float64 `json:"score"`
}

// Summary is the cross-algorithm verdict of a run.
type Summary struct {
	Best     map[string]Best `json:"best_algorithms"`
	Ranking  []string        `json:"performance_ranking"`
	Insights []string        `json:"key_insights"`
}

// Report is the complete outcome of a comparison run.
type Report struct {
	RunID      string                      `json:"run_id"`
	StartedAt  time.Time                   `json:"started_at"`
	Duration   time.Duration               `json:"duration_ns"`
	Products   int                         `json:"total_products"`
	Queries    []string                    `json:"queries"`
	KValues    []int                       `json:"k_values"`
	Threshold  float64                     `json:"relevance_threshold"`
	Order      []string                    `json:"algorithm_order"`
	PerQuery   []QueryResult               `json:"per_query"`
	Algorithms map[string]AlgorithmSummary `json:"algorithms"`
	Summary    Summary                     `json:"summary"`
}

func aggregate(order []string, results []QueryResult) map[string]AlgorithmSummary {
	suites := make(map[string][]evalmetrics.Suite, len(order))
	times := make(map[string]time.Duration, len(order))
	out := make(map[string]AlgorithmSummary, len(order))
	for _, name := range order {
		out[name] = AlgorithmSummary{}
	}
	for _, qr := range results {
		for _, run := range qr.Runs {
			s := out[run.Algorithm]
			switch run.Status {
			case StatusOK:
				s.QueriesProcessed++
				s.TotalResults += len(run.Ranked)
				suites[run.Algorithm] = append(suites[run.Algorithm], run.Metrics)
				times[run.Algorithm] += run.SearchTime
			default:
				s.QueriesFailed++
			}
			out[run.Algorithm] = s
		}
	}
	for _, name := range order {
		s := out[name]
		s.Metrics = evalmetrics.Average(suites[name])
		if s.QueriesProcessed > 0 {
			s.AvgSearchTime = times[name] / time.Duration(s.QueriesProcessed)
		}
		out[name] = s
	}
	return out
}

// summarize picks the best algorithm for every metric key and ranks the
// algorithms by MAP. Ties go to the earlier registered algorithm.
func summarize(order []string, algos map[string]AlgorithmSummary, keys []string) Summary {
	sum := Summary{Best: make(map[string]Best, len(keys))}
	if len(order) == 0 {
		return sum
	}
	for _, key := range keys {
		best := Best{Algorithm: order[0], Score: algos[order[0]].Metrics[key]}
		for _, name := range order[1:] {
			if v := algos[name].Metrics[key]; v > best.Score {
				best = Best{Algorithm: name, Score: v}
			}
		}
		sum.Best[key] = best
	}

	sum.Ranking = append([]string(nil), order...)
	sort.SliceStable(sum.Ranking, func(i, j int) bool {
		return algos[sum.Ranking[i]].Metrics[evalmetrics.MAP] > algos[sum.Ranking[j]].Metrics[evalmetrics.MAP]
	})

	fastest := order[0]
	for _, name := range order[1:] {
		if algos[name].AvgSearchTime < algos[fastest].AvgSearchTime {
			fastest = name
		}
	}
	top := sum.Ranking[0]
	sum.Insights = append(sum.Insights,
		fmt.Sprintf("Fastest algorithm: %s (%s average)", fastest, algos[fastest].AvgSearchTime),
		fmt.Sprintf("Best MAP score: %s (%.4f)", top, algos[top].Metrics[evalmetrics.MAP]),
	)
	if len(sum.Ranking) > 1 {
		gap := algos[top].Metrics[evalmetrics.MAP] - algos[sum.Ranking[1]].Metrics[evalmetrics.MAP]
		sum.Insights = append(sum.Insights,
			fmt.Sprintf("Performance gap: %.4f between best and second-best algorithms", gap))
	}
	return sum
}
