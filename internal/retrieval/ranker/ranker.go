// Package ranker holds the result types and ordering rules shared by every
// scoring algorithm.
package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
)

// ScoredDoc is one ranked result.
type ScoredDoc struct {
	DocID        string   `json:"doc_id"`
	Score        float64  `json:"score"`
	Rank         int      `json:"rank"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// Candidate is an unranked score at a corpus position.
type Candidate struct {
	Position     int
	DocID        string
	Score        float64
	MatchedTerms []string
}

// Scorer is a fitted search algorithm bound to one corpus snapshot.
type Scorer interface {
	Name() string
	Search(query string, limit int) []ScoredDoc
}

// Factory builds (fits) a Scorer for a corpus. It is called once per corpus
// before any query is scored.
type Factory func(corpus []product.Product) (Scorer, error)

// Rank drops non-positive scores, sorts descending with ties kept in corpus
// order, assigns 1-based ranks and truncates to limit (limit <= 0 keeps all).
func Rank(candidates []Candidate, limit int) []ScoredDoc {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score > 0 {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Position < kept[j].Position
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	result := make([]ScoredDoc, len(kept))
	for i, c := range kept {
		result[i] = ScoredDoc{
			DocID:        c.DocID,
			Score:        c.Score,
			Rank:         i + 1,
			MatchedTerms: c.MatchedTerms,
		}
	}
	return result
}

// IDs returns the document ids in rank order.
func IDs(docs []ScoredDoc) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.DocID
	}
	return ids
}

// MatchedTerms returns the distinct query tokens present in docTokens, in
// query order.
func MatchedTerms(queryTokens []string, docTokens map[string]int) []string {
	seen := make(map[string]struct{}, len(queryTokens))
	matched := make([]string, 0, len(queryTokens))
	for _, t := range queryTokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if docTokens[t] > 0 {
			matched = append(matched, t)
		}
	}
	return matched
}

// Stats describes a scorer's view of a query, for display next to results.
type Stats struct {
	Algorithm      string         `json:"algorithm"`
	QueryTokens    []string       `json:"query_tokens"`
	TotalProducts  int            `json:"total_products"`
	VocabularySize int            `json:"vocabulary_size,omitempty"`
	Parameters     map[string]any `json:"parameters"`
}

// StatsProvider is implemented by scorers that can explain a query.
type StatsProvider interface {
	Stats(query string) Stats
}
