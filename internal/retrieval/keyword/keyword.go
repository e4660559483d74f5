// Package keyword implements weighted keyword matching: exact and partial
// term overlap per field, boosted for high-signal fields and normalised by
// the logarithm of document length.
package keyword

import (
	"fmt"
	"math"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/ranker"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/tokenizer"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
)

// Name is the registry name of this algorithm.
const Name = "keyword_matching"

// PartialPolicy selects how a non-identical token counts as a near match.
type PartialPolicy string

const (
	PartialSubstring PartialPolicy = "substring"
	PartialPrefix    PartialPolicy = "prefix"
	PartialNone      PartialPolicy = "none"
)

// Config weights exact and partial token matches.
type Config struct {
	CaseSensitive      bool
	ExactMatchWeight   float64
	PartialMatchWeight float64
	FieldBoost         float64
	PartialPolicy      PartialPolicy
	// BoostedFields receive FieldBoost; defaults to title and brand.
	BoostedFields []string
}

// DefaultConfig weights exact matches 2.0 and substring matches 0.3.
func DefaultConfig() Config {
	return Config{
		ExactMatchWeight:   2.0,
		PartialMatchWeight: 0.3,
		FieldBoost:         1.5,
		PartialPolicy:      PartialSubstring,
		BoostedFields:      []string{product.FieldTitle, product.FieldBrand},
	}
}

// Validate rejects negative weights and unknown partial policies.
func (c Config) Validate() error {
	if c.ExactMatchWeight < 0 || c.PartialMatchWeight < 0 || c.FieldBoost < 0 {
		return pkgerrors.Configf("keyword weights must be non-negative (exact=%v partial=%v boost=%v)",
			c.ExactMatchWeight, c.PartialMatchWeight, c.FieldBoost)
	}
	switch c.PartialPolicy {
	case PartialSubstring, PartialPrefix, PartialNone, "":
	default:
		return pkgerrors.Configf("unknown partial match policy %q", c.PartialPolicy)
	}
	return nil
}

// FieldTokens is one field's token sequence.
type FieldTokens struct {
	Name   string
	Tokens []string
}

// Scorer scores query tokens against tokenised document fields.
type Scorer struct {
	cfg        Config
	normalizer *tokenizer.Normalizer
	boosted    map[string]struct{}
}

// NewScorer validates cfg and builds the scorer with its normalizer.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PartialPolicy == "" {
		cfg.PartialPolicy = PartialSubstring
	}
	if cfg.BoostedFields == nil {
		cfg.BoostedFields = DefaultConfig().BoostedFields
	}
	boosted := make(map[string]struct{}, len(cfg.BoostedFields))
	for _, f := range cfg.BoostedFields {
		boosted[f] = struct{}{}
	}
	return &Scorer{
		cfg:        cfg,
		normalizer: tokenizer.New(cfg.CaseSensitive),
		boosted:    boosted,
	}, nil
}

// Tokenize normalises text with this scorer's settings.
func (s *Scorer) Tokenize(text string) []string {
	return s.normalizer.Normalize(text)
}

// TokenizeFields normalises every field of p.
func (s *Scorer) TokenizeFields(p product.Product) []FieldTokens {
	fields := p.Fields()
	out := make([]FieldTokens, len(fields))
	for i, f := range fields {
		out[i] = FieldTokens{Name: f.Name, Tokens: s.Tokenize(f.Text)}
	}
	return out
}

// Score returns a non-negative relevance score. It is zero when the query
// has no tokens, the document is empty or nothing matched.
func (s *Scorer) Score(queryTokens []string, fields []FieldTokens) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	docLength := 0
	for _, f := range fields {
		docLength += len(f.Tokens)
	}
	if docLength == 0 {
		return 0
	}

	queryCounter := tokenizer.Counter(queryTokens)
	totalQueryWeight := float64(len(queryTokens))
	var score float64
	for _, f := range fields {
		fieldCounter := tokenizer.Counter(f.Tokens)
		var fieldScore float64
		for term, freq := range queryCounter {
			queryWeight := float64(freq)
			if exact := fieldCounter[term]; exact > 0 {
				fieldScore += float64(exact) * queryWeight * s.cfg.ExactMatchWeight
			}
			if s.cfg.PartialPolicy == PartialNone || s.cfg.PartialMatchWeight == 0 {
				continue
			}
			var partial float64
			for token, count := range fieldCounter {
				if token != term && s.partialMatch(term, token) {
					partial += float64(count) * s.cfg.PartialMatchWeight
				}
			}
			fieldScore += partial * queryWeight
		}
		if _, ok := s.boosted[f.Name]; ok {
			fieldScore *= s.cfg.FieldBoost
		}
		score += fieldScore
	}
	if score <= 0 {
		return 0
	}
	return score / (totalQueryWeight * math.Log(float64(docLength)+1))
}

func (s *Scorer) partialMatch(term, token string) bool {
	switch s.cfg.PartialPolicy {
	case PartialPrefix:
		return strings.HasPrefix(token, term) || strings.HasPrefix(term, token)
	default:
		return strings.Contains(token, term) || strings.Contains(term, token)
	}
}

// Index is a keyword Scorer bound to a pre-tokenised corpus.
type Index struct {
	scorer *Scorer
	ids    []string
	fields [][]FieldTokens
	counts []map[string]int
}

// NewIndex tokenises every product once.
func NewIndex(cfg Config, corpus []product.Product) (*Index, error) {
	scorer, err := NewScorer(cfg)
	if err != nil {
		return nil, fmt.Errorf("building keyword scorer: %w", err)
	}
	idx := &Index{
		scorer: scorer,
		ids:    make([]string, len(corpus)),
		fields: make([][]FieldTokens, len(corpus)),
		counts: make([]map[string]int, len(corpus)),
	}
	for i, p := range corpus {
		idx.ids[i] = p.ID
		idx.fields[i] = scorer.TokenizeFields(p)
		all := make([]string, 0)
		for _, f := range idx.fields[i] {
			all = append(all, f.Tokens...)
		}
		idx.counts[i] = tokenizer.Counter(all)
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

// Search ranks the corpus for query. An empty query yields no results.
func (idx *Index) Search(query string, limit int) []ranker.ScoredDoc {
	queryTokens := idx.scorer.Tokenize(query)
	if len(queryTokens) == 0 {
		return []ranker.ScoredDoc{}
	}
	candidates := make([]ranker.Candidate, 0, len(idx.ids))
	for i := range idx.ids {
		score := idx.scorer.Score(queryTokens, idx.fields[i])
		if score <= 0 {
			continue
		}
		candidates = append(candidates, ranker.Candidate{
			Position:     i,
			DocID:        idx.ids[i],
			Score:        score,
			MatchedTerms: ranker.MatchedTerms(queryTokens, idx.counts[i]),
		})
	}
	return ranker.Rank(candidates, limit)
}

// Stats reports the query tokens and the scorer's weights.
func (idx *Index) Stats(query string) ranker.Stats {
	cfg := idx.scorer.cfg
	return ranker.Stats{
		Algorithm:     Name,
		QueryTokens:   idx.scorer.Tokenize(query),
		TotalProducts: len(idx.ids),
		Parameters: map[string]any{
			"case_sensitive":       cfg.CaseSensitive,
			"exact_match_weight":   cfg.ExactMatchWeight,
			"partial_match_weight": cfg.PartialMatchWeight,
			"field_boost":          cfg.FieldBoost,
			"partial_policy":       string(cfg.PartialPolicy),
			"stop_words_count":     len(idx.scorer.normalizer.StopWords),
		},
	}
}
