// Package judge generates synthetic relevance judgments for (query, product)
// pairs from term overlap, phrase and field matches, and social engagement.
// Judgments are built once per evaluation run and shared, read-only, by every
// algorithm under comparison.
package judge

import (
	"maps"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/tokenizer"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
)

// Signal names reported in a Breakdown.
const (
	SignalPhrase           = "phrase_match"
	SignalProductNameExact = "product_name_exact"
	SignalProductNameTerm  = "product_name_term"
	SignalBrandExact       = "brand_exact"
	SignalBrandTerm        = "brand_term"
	SignalCategory         = "category_match"
	SignalUpvotes          = "upvotes"
	SignalComments         = "comments"
	SignalSentiment        = "sentiment"
	SignalReview           = "review_or_recommendation"
)

// Config holds the relevance threshold and the weight of every signal the
// judge adds on top of query-term coverage.
type Config struct {
	// Threshold is the score a document must exceed to count as relevant.
	Threshold float64

	PhraseBoost      float64
	ProductNameExact float64
	ProductNameTerm  float64
	BrandExact       float64
	BrandTerm        float64
	CategoryBoost    float64

	UpvoteThreshold    int
	UpvoteBoost        float64
	CommentThreshold   int
	CommentBoost       float64
	SentimentThreshold float64
	SentimentBoost     float64

	ReviewBoost float64
}

// DefaultConfig uses a 0.3 threshold shared by every algorithm.
func DefaultConfig() Config {
	return Config{
		Threshold:          0.3,
		PhraseBoost:        0.6,
		ProductNameExact:   0.5,
		ProductNameTerm:    0.4,
		BrandExact:         0.4,
		BrandTerm:          0.3,
		CategoryBoost:      0.2,
		UpvoteThreshold:    50,
		UpvoteBoost:        0.1,
		CommentThreshold:   20,
		CommentBoost:       0.1,
		SentimentThreshold: 0.5,
		SentimentBoost:     0.1,
		ReviewBoost:        0.2,
	}
}

// Validate rejects thresholds outside [0, 1).
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold >= 1 {
		return pkgerrors.Configf("relevance threshold must be in [0, 1), got %v", c.Threshold)
	}
	return nil
}

// Signal is one additive contribution to a relevance score.
type Signal struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Breakdown explains how a relevance score was reached.
type Breakdown struct {
	Overlap float64  `json:"overlap"`
	Signals []Signal `json:"signals"`
	Raw     float64  `json:"raw"`
	Score   float64  `json:"score"`
}

// Has reports whether the named signal contributed.
func (b Breakdown) Has(name string) bool {
	for _, s := range b.Signals {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Judge scores (query, product) pairs. It is stateless and safe for
// concurrent use.
type Judge struct {
	cfg        Config
	normalizer *tokenizer.Normalizer
}

// New validates cfg and returns a Judge.
func New(cfg Config) (*Judge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Judge{cfg: cfg, normalizer: tokenizer.New(false)}, nil
}

// Threshold is the score a document must exceed to be judged relevant.
func (j *Judge) Threshold() float64 { return j.cfg.Threshold }

// Config returns the settings the judge was built with.
func (j *Judge) Config() Config { return j.cfg }

// Explain scores one document for query and lists every contributing signal.
func (j *Judge) Explain(query string, doc product.Product) Breakdown {
	queryTerms := tokenizer.Unique(j.normalizer.Normalize(query))
	phrase := strings.ToLower(strings.TrimSpace(query))
	var bd Breakdown
	if len(queryTerms) == 0 {
		return bd
	}

	docTerms := make(map[string]struct{})
	for _, t := range j.normalizer.Normalize(doc.Text()) {
		docTerms[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTerms {
		if _, ok := docTerms[t]; ok {
			overlap++
		}
	}
	bd.Overlap = float64(overlap) / float64(len(queryTerms))
	bd.Raw = bd.Overlap

	add := func(name string, value float64) {
		if value == 0 {
			return
		}
		bd.Signals = append(bd.Signals, Signal{Name: name, Value: value})
		bd.Raw += value
	}

	if strings.Contains(strings.ToLower(doc.Text()), phrase) {
		add(SignalPhrase, j.cfg.PhraseBoost)
	}
	switch j.fieldMatch(doc.ProductName, phrase, queryTerms) {
	case matchExact:
		add(SignalProductNameExact, j.cfg.ProductNameExact)
	case matchTerm:
		add(SignalProductNameTerm, j.cfg.ProductNameTerm)
	}
	switch j.fieldMatch(doc.Brand, phrase, queryTerms) {
	case matchExact:
		add(SignalBrandExact, j.cfg.BrandExact)
	case matchTerm:
		add(SignalBrandTerm, j.cfg.BrandTerm)
	}
	if doc.Category != "" && strings.Contains(strings.ToLower(doc.Category), phrase) {
		add(SignalCategory, j.cfg.CategoryBoost)
	}
	if e := doc.Engagement; e != nil {
		if e.Upvotes > j.cfg.UpvoteThreshold {
			add(SignalUpvotes, j.cfg.UpvoteBoost)
		}
		if e.Comments > j.cfg.CommentThreshold {
			add(SignalComments, j.cfg.CommentBoost)
		}
		if e.Sentiment > j.cfg.SentimentThreshold {
			add(SignalSentiment, j.cfg.SentimentBoost)
		}
	}
	if doc.IsReview || doc.IsRecommendation {
		add(SignalReview, j.cfg.ReviewBoost)
	}

	bd.Score = min(1.0, bd.Raw)
	return bd
}

// Score is Explain(query, doc).Score.
func (j *Judge) Score(query string, doc product.Product) float64 {
	return j.Explain(query, doc).Score
}

type fieldMatchKind int

const (
	matchNone fieldMatchKind = iota
	matchTerm
	matchExact
)

// fieldMatch is exact when the field contains the whole query and a term
// match when the field shares at least one query token.
func (j *Judge) fieldMatch(field, phrase string, queryTerms []string) fieldMatchKind {
	if strings.TrimSpace(field) == "" {
		return matchNone
	}
	if strings.Contains(strings.ToLower(field), phrase) {
		return matchExact
	}
	fieldTerms := tokenizer.Counter(j.normalizer.Normalize(field))
	for _, t := range queryTerms {
		if fieldTerms[t] > 0 {
			return matchTerm
		}
	}
	return matchNone
}

// Judgment maps document id to relevance for one query. Only documents above
// the threshold are present.
type Judgment map[string]float64

// Judge returns the relevant documents for query.
func (j *Judge) Judge(query string, docs []product.Product) Judgment {
	out := make(Judgment)
	for _, d := range docs {
		if score := j.Score(query, d); score > j.cfg.Threshold {
			out[d.ID] = score
		}
	}
	return out
}

// Judgments holds the ground truth for every query of a run. It is not
// modified after Build returns.
type Judgments struct {
	threshold float64
	byQuery   map[string]Judgment
}

// Build judges every distinct query against docs.
func (j *Judge) Build(queries []string, docs []product.Product) *Judgments {
	js := &Judgments{
		threshold: j.cfg.Threshold,
		byQuery:   make(map[string]Judgment, len(queries)),
	}
	for _, q := range queries {
		if _, done := js.byQuery[q]; done {
			continue
		}
		js.byQuery[q] = j.Judge(q, docs)
	}
	return js
}

// Threshold is the inclusion threshold the judgments were built with.
func (js *Judgments) Threshold() float64 { return js.threshold }

// Scores returns a copy of the relevance scores for query.
func (js *Judgments) Scores(query string) map[string]float64 {
	return maps.Clone(map[string]float64(js.byQuery[query]))
}

// Relevant returns the set of relevant document ids for query.
func (js *Judgments) Relevant(query string) map[string]struct{} {
	judgment := js.byQuery[query]
	set := make(map[string]struct{}, len(judgment))
	for id := range judgment {
		set[id] = struct{}{}
	}
	return set
}

// Count is the number of relevant documents for query.
func (js *Judgments) Count(query string) int {
	return len(js.byQuery[query])
}
