// Package metrics computes ranking-quality metrics from a ranked list of ids
// and a set of relevance judgments. Every function is total: degenerate input
// (nothing retrieved, nothing relevant, k <= 0) yields 0 rather than an error,
// so a batch evaluation never aborts on one pathological query.
package metrics

import (
	"fmt"
	"math"
	"sort"
)

// Set is a set of document ids.
type Set map[string]struct{}

// NewSet builds a Set from ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func hitsInTopK(relevant Set, ranked []string, k int) int {
	if k > len(ranked) {
		k = len(ranked)
	}
	hits := 0
	for _, id := range ranked[:k] {
		if _, ok := relevant[id]; ok {
			hits++
		}
	}
	return hits
}

// PrecisionAtK is the fraction of the top k results that are relevant. When
// fewer than k results were returned the divisor is the number returned.
func PrecisionAtK(relevant Set, ranked []string, k int) float64 {
	if k <= 0 || len(ranked) == 0 {
		return 0
	}
	divisor := min(k, len(ranked))
	return float64(hitsInTopK(relevant, ranked, k)) / float64(divisor)
}

// RecallAtK is the fraction of relevant documents found in the top k.
func RecallAtK(relevant Set, ranked []string, k int) float64 {
	if k <= 0 || len(relevant) == 0 {
		return 0
	}
	return float64(hitsInTopK(relevant, ranked, k)) / float64(len(relevant))
}

// F1AtK is the harmonic mean of PrecisionAtK and RecallAtK.
func F1AtK(relevant Set, ranked []string, k int) float64 {
	p := PrecisionAtK(relevant, ranked, k)
	r := RecallAtK(relevant, ranked, k)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// NDCGAtK uses graded gains from scores when given, otherwise binary gains
// for members of relevant. Position i (1-based) is discounted by log2(i+1).
func NDCGAtK(relevant Set, ranked []string, k int, scores map[string]float64) float64 {
	if k <= 0 {
		return 0
	}
	gain := func(id string) float64 {
		if _, ok := relevant[id]; !ok {
			return 0
		}
		if scores == nil {
			return 1
		}
		return math.Max(0, scores[id])
	}

	var dcg float64
	for i, id := range ranked[:min(k, len(ranked))] {
		dcg += gain(id) / math.Log2(float64(i)+2)
	}

	ideal := make([]float64, 0, len(relevant))
	for id := range relevant {
		ideal = append(ideal, gain(id))
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ideal)))
	var idcg float64
	for i, g := range ideal[:min(k, len(ideal))] {
		idcg += g / math.Log2(float64(i)+2)
	}
	if idcg == 0 {
		return 0
	}
	return math.Min(1, dcg/idcg)
}

// AveragePrecision averages the precision at every rank holding a relevant
// document, divided by the number of relevant documents.
func AveragePrecision(relevant Set, ranked []string) float64 {
	if len(relevant) == 0 {
		return 0
	}
	var hits int
	var sum float64
	seen := make(map[string]struct{}, len(ranked))
	for i, id := range ranked {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := relevant[id]; ok {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}
	return sum / float64(len(relevant))
}

// ReciprocalRank is 1/rank of the first relevant result, or 0.
func ReciprocalRank(relevant Set, ranked []string) float64 {
	for i, id := range ranked {
		if _, ok := relevant[id]; ok {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// Mean is the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Metric names as they appear in a Suite.
const (
	MAP = "map"
	MRR = "mrr"
)

// Metric names for a cutoff k, as they appear in a Suite.
func PrecisionKey(k int) string { return fmt.Sprintf("precision@%d", k) }
func RecallKey(k int) string    { return fmt.Sprintf("recall@%d", k) }
func F1Key(k int) string        { return fmt.Sprintf("f1@%d", k) }
func NDCGKey(k int) string      { return fmt.Sprintf("ndcg@%d", k) }

// DefaultKValues are the cut-offs reported when none are configured.
var DefaultKValues = []int{1, 3, 5, 10}

// Suite is the full metric set for one ranked list, keyed by metric name.
// For a single query "map" holds average precision and "mrr" the reciprocal
// rank; averaging suites across queries yields MAP and MRR.
type Suite map[string]float64

// Compute evaluates ranked against the judgments for one query.
func Compute(relevant Set, scores map[string]float64, ranked []string, ks []int) Suite {
	if len(ks) == 0 {
		ks = DefaultKValues
	}
	s := Suite{
		MAP: AveragePrecision(relevant, ranked),
		MRR: ReciprocalRank(relevant, ranked),
	}
	for _, k := range ks {
		s[PrecisionKey(k)] = PrecisionAtK(relevant, ranked, k)
		s[RecallKey(k)] = RecallAtK(relevant, ranked, k)
		s[F1Key(k)] = F1AtK(relevant, ranked, k)
		s[NDCGKey(k)] = NDCGAtK(relevant, ranked, k, scores)
	}
	return s
}

// Keys lists the metric names Compute produces for ks, in report order.
func Keys(ks []int) []string {
	if len(ks) == 0 {
		ks = DefaultKValues
	}
	keys := []string{MAP, MRR}
	for _, k := range ks {
		keys = append(keys, PrecisionKey(k), RecallKey(k), F1Key(k), NDCGKey(k))
	}
	return keys
}

// Average returns the per-metric mean of suites.
func Average(suites []Suite) Suite {
	out := make(Suite)
	if len(suites) == 0 {
		return out
	}
	for _, s := range suites {
		for name, v := range s {
			out[name] += v
		}
	}
	for name := range out {
		out[name] /= float64(len(suites))
	}
	return out
}
