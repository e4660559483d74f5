// Package tfidf implements TF-IDF vector-space retrieval. A Model is fit once
// per corpus snapshot (document frequencies, vocabulary window, IDF table)
// and is read-only afterwards; queries and documents are vectorised against
// it and compared by cosine similarity.
package tfidf

import (
	"fmt"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/ranker"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/tokenizer"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
)

// Name is the registry name of this algorithm.
const Name = "tfidf"

// minTokenLength matches the tokenisation used when the model is fit:
// single-character tokens carry no signal in product titles.
const minTokenLength = 2

// Config controls tokenisation and the document-frequency window.
type Config struct {
	CaseSensitive bool
	// MinDF is the minimum number of documents a term must appear in.
	MinDF int
	// MaxDF is the maximum fraction of documents a term may appear in.
	MaxDF float64
}

// DefaultConfig keeps terms seen in at least one and at most 95% of
// documents.
func DefaultConfig() Config {
	return Config{MinDF: 1, MaxDF: 0.95}
}

// Validate checks the settings that do not depend on the corpus.
func (c Config) Validate() error {
	if c.MinDF < 1 {
		return pkgerrors.Configf("min_df must be at least 1, got %d", c.MinDF)
	}
	if c.MaxDF <= 0 || c.MaxDF > 1 {
		return pkgerrors.Configf("max_df must be in (0, 1], got %v", c.MaxDF)
	}
	return nil
}

// maxDocCount is the document-frequency ceiling for a corpus of n documents.
// When floor(MaxDF*n) drops below one document the ceiling is n, so a tiny
// corpus keeps its vocabulary instead of pruning every term.
func (c Config) maxDocCount(n int) int {
	ceiling := int(math.Floor(c.MaxDF * float64(n)))
	if ceiling < 1 {
		return n
	}
	return ceiling
}

// Model is the fitted vocabulary and IDF table.
type Model struct {
	N          int
	DF         map[string]int
	IDF        map[string]float64
	Vocabulary []string
	cfg        Config
}

// Fit builds a Model from tokenised documents. Configuration that cannot be
// satisfied for this corpus is reported as pkgerrors.ErrInvalidConfig.
func Fit(docs [][]string, cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("fitting tfidf model: %w", pkgerrors.ErrEmptyCorpus)
	}
	n := len(docs)
	ceiling := cfg.maxDocCount(n)
	if ceiling < cfg.MinDF {
		return nil, pkgerrors.Configf(
			"min_df %d exceeds max_df ceiling %d (max_df=%v over %d documents)",
			cfg.MinDF, ceiling, cfg.MaxDF, n)
	}

	df := make(map[string]int)
	for _, doc := range docs {
		for _, term := range tokenizer.Unique(doc) {
			df[term]++
		}
	}

	m := &Model{
		N:          n,
		DF:         df,
		IDF:        make(map[string]float64),
		Vocabulary: make([]string, 0, len(df)),
		cfg:        cfg,
	}
	for term, count := range df {
		if count < cfg.MinDF || count > ceiling {
			continue
		}
		m.Vocabulary = append(m.Vocabulary, term)
		m.IDF[term] = math.Log(float64(n) / float64(count))
	}
	sort.Strings(m.Vocabulary)
	return m, nil
}

// InVocabulary reports whether term survived the document-frequency window.
func (m *Model) InVocabulary(term string) bool {
	_, ok := m.IDF[term]
	return ok
}

// TF is the dampened term frequency 1 + ln(count), or 0 for count <= 0.
func TF(count int) float64 {
	if count <= 0 {
		return 0
	}
	return 1 + math.Log(float64(count))
}

// Vector maps each in-vocabulary term of tokens to tf * idf. Terms whose
// weight is zero are omitted.
func (m *Model) Vector(tokens []string) map[string]float64 {
	vec := make(map[string]float64)
	for term, count := range tokenizer.Counter(tokens) {
		idf, ok := m.IDF[term]
		if !ok {
			continue
		}
		if w := TF(count) * idf; w > 0 {
			vec[term] = w
		}
	}
	return vec
}

// Score is the cosine similarity between the query and document vectors.
func (m *Model) Score(queryTokens, docTokens []string) float64 {
	return Cosine(m.Vector(queryTokens), m.Vector(docTokens))
}

// Norm is the Euclidean length of a sparse vector.
func Norm(v map[string]float64) float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of two non-negative sparse vectors,
// clamped to [0, 1]. It is 0 when either vector has zero norm.
func Cosine(a, b map[string]float64) float64 {
	return cosineWithNorms(a, b, Norm(a), Norm(b))
}

func cosineWithNorms(a, b map[string]float64, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, wa := range a {
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}
	sim := dot / (normA * normB)
	switch {
	case sim < 0:
		return 0
	case sim > 1:
		return 1
	}
	return sim
}

// Index is a fitted Model plus the pre-vectorised corpus it was fit on.
type Index struct {
	model      *Model
	normalizer *tokenizer.Normalizer
	ids        []string
	vectors    []map[string]float64
	norms      []float64
	counts     []map[string]int
}

// NewIndex tokenises and fits the corpus, then vectorises every document.
// An empty corpus yields an index that matches nothing.
func NewIndex(cfg Config, corpus []product.Product) (*Index, error) {
	normalizer := tokenizer.New(cfg.CaseSensitive)
	normalizer.MinLength = minTokenLength
	if len(corpus) == 0 {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &Index{
			model:      &Model{DF: map[string]int{}, IDF: map[string]float64{}, Vocabulary: []string{}, cfg: cfg},
			normalizer: normalizer,
		}, nil
	}

	docs := make([][]string, len(corpus))
	for i, p := range corpus {
		docs[i] = normalizer.Normalize(p.Text())
	}
	model, err := Fit(docs, cfg)
	if err != nil {
		return nil, err
	}
	idx := &Index{
		model:      model,
		normalizer: normalizer,
		ids:        make([]string, len(corpus)),
		vectors:    make([]map[string]float64, len(corpus)),
		norms:      make([]float64, len(corpus)),
		counts:     make([]map[string]int, len(corpus)),
	}
	for i, p := range corpus {
		idx.ids[i] = p.ID
		idx.vectors[i] = model.Vector(docs[i])
		idx.norms[i] = Norm(idx.vectors[i])
		idx.counts[i] = tokenizer.Counter(docs[i])
	}
	return idx, nil
}

// Factory returns a ranker.Factory for cfg.
func Factory(cfg Config) ranker.Factory {
	return func(corpus []product.Product) (ranker.Scorer, error) {
		return NewIndex(cfg, corpus)
	}
}

// Name implements ranker.Scorer.
func (idx *Index) Name() string { return Name }

// Model returns the fitted model.
func (idx *Index) Model() *Model { return idx.model }

// Search ranks the corpus by cosine similarity to query.
func (idx *Index) Search(query string, limit int) []ranker.ScoredDoc {
	queryTokens := idx.normalizer.Normalize(query)
	if len(queryTokens) == 0 {
		return []ranker.ScoredDoc{}
	}
	qv := idx.model.Vector(queryTokens)
	qn := Norm(qv)
	if qn == 0 {
		return []ranker.ScoredDoc{}
	}
	vocabTokens := make([]string, 0, len(queryTokens))
	for _, t := range queryTokens {
		if idx.model.InVocabulary(t) {
			vocabTokens = append(vocabTokens, t)
		}
	}
	candidates := make([]ranker.Candidate, 0)
	for i := range idx.ids {
		sim := cosineWithNorms(qv, idx.vectors[i], qn, idx.norms[i])
		if sim <= 0 {
			continue
		}
		candidates = append(candidates, ranker.Candidate{
			Position:     i,
			DocID:        idx.ids[i],
			Score:        sim,
			MatchedTerms: ranker.MatchedTerms(vocabTokens, idx.counts[i]),
		})
	}
	return ranker.Rank(candidates, limit)
}

// Stats reports the vocabulary size and fit parameters.
func (idx *Index) Stats(query string) ranker.Stats {
	return ranker.Stats{
		Algorithm:      Name,
		QueryTokens:    idx.normalizer.Normalize(query),
		TotalProducts:  len(idx.ids),
		VocabularySize: len(idx.model.Vocabulary),
		Parameters: map[string]any{
			"min_df":         idx.model.cfg.MinDF,
			"max_df":         idx.model.cfg.MaxDF,
			"case_sensitive": idx.model.cfg.CaseSensitive,
			"document_count": idx.model.N,
		},
	}
}
