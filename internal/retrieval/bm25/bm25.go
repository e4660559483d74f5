// Package bm25 ranks products with Okapi BM25. It is registered next to the
// keyword and TF-IDF scorers so a comparison run can rank more than two
// methods against the same judgments.
package bm25

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/ranker"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/tokenizer"
)

// Name is the registry name of this algorithm.
const Name = "bm25"

const (
	k1 = 1.2
	b  = 0.75
)

// Parameters reports the fixed BM25 constants.
func Parameters() map[string]float64 {
	return map[string]float64{"k1": k1, "b": b}
}

type posting struct {
	doc       int
	frequency int
}

// Index is an in-memory inverted index over one corpus snapshot.
type Index struct {
	normalizer   *tokenizer.Normalizer
	ids          []string
	docLengths   []int
	avgDocLength float64
	postings     map[string][]posting
}

// NewIndex builds postings for corpus. An empty corpus yields an index that
// matches nothing.
func NewIndex(corpus []product.Product) (*Index, error) {
	idx := &Index{
		normalizer: tokenizer.New(false),
		ids:        make([]string, len(corpus)),
		docLengths: make([]int, len(corpus)),
		postings:   make(map[string][]posting),
	}
	var total int
	for i, p := range corpus {
		tokens := idx.normalizer.Normalize(p.Text())
		idx.ids[i] = p.ID
		idx.docLengths[i] = len(tokens)
		total += len(tokens)
		for _, term := range tokenizer.Unique(tokens) {
			idx.postings[term] = append(idx.postings[term], posting{doc: i})
		}
		counts := tokenizer.Counter(tokens)
		for term := range counts {
			list := idx.postings[term]
			list[len(list)-1].frequency = counts[term]
		}
	}
	if len(corpus) > 0 {
		idx.avgDocLength = float64(total) / float64(len(corpus))
	}
	return idx, nil
}

// Factory returns a ranker.Factory building a BM25 index.
func Factory() ranker.Factory {
	return func(corpus []product.Product) (ranker.Scorer, error) {
		return NewIndex(corpus)
	}
}

// Name implements ranker.Scorer.
func (idx *Index) Name() string { return Name }

// Search scores every document sharing a term with query.
func (idx *Index) Search(query string, limit int) []ranker.ScoredDoc {
	terms := tokenizer.Unique(idx.normalizer.Normalize(query))
	if len(terms) == 0 {
		return []ranker.ScoredDoc{}
	}
	scores := make(map[int]float64)
	matched := make(map[int][]string)
	for _, term := range terms {
		postings := idx.postings[term]
		if len(postings) == 0 {
			continue
		}
		idf := computeIDF(int64(len(idx.ids)), int64(len(postings)))
		for _, p := range postings {
			scores[p.doc] += idf * computeTFNorm(
				float64(p.frequency),
				float64(idx.docLengths[p.doc]),
				idx.avgDocLength,
			)
			matched[p.doc] = append(matched[p.doc], term)
		}
	}
	candidates := make([]ranker.Candidate, 0, len(scores))
	for doc, score := range scores {
		candidates = append(candidates, ranker.Candidate{
			Position:     doc,
			DocID:        idx.ids[doc],
			Score:        score,
			MatchedTerms: matched[doc],
		})
	}
	return ranker.Rank(candidates, limit)
}

// Stats reports vocabulary size and the BM25 constants.
func (idx *Index) Stats(query string) ranker.Stats {
	return ranker.Stats{
		Algorithm:      Name,
		QueryTokens:    idx.normalizer.Normalize(query),
		TotalProducts:  len(idx.ids),
		VocabularySize: len(idx.postings),
		Parameters: map[string]any{
			"k1":             k1,
			"b":              b,
			"avg_doc_length": idx.avgDocLength,
		},
	}
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
