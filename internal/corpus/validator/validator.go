// Package validator enforces the corpus invariants (unique id, non-empty
// title, sane engagement values) before products reach a scorer, and checks
// query input from the HTTP and CLI surfaces.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
)

const (
	maxIDLength    = 100
	maxTitleLength = 1024
	maxQueryLength = 500
	maxLimit       = 1000
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

// Error lists every failed field.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// Unwrap lets callers map validation failures to ErrInvalidInput.
func (e *ValidationError) Unwrap() error { return pkgerrors.ErrInvalidInput }

// ValidateProduct checks the required fields and the bounds of the optional
// ones, collecting every problem into a single ValidationError.
func ValidateProduct(p product.Product) error {
	errs := make(map[string]string)

	id := strings.TrimSpace(p.ID)
	if id == "" {
		errs["id"] = "id is required"
	} else if len(id) > maxIDLength {
		errs["id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		errs["title"] = "title is required"
	} else if len(title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if p.Price != nil && *p.Price < 0 {
		errs["price"] = "price must not be negative"
	}
	if e := p.Engagement; e != nil {
		if e.Upvotes < 0 {
			errs["upvotes"] = "upvotes must not be negative"
		}
		if e.Comments < 0 {
			errs["comments_count"] = "comments_count must not be negative"
		}
		if e.Sentiment < -1 || e.Sentiment > 1 {
			errs["sentiment_score"] = "sentiment_score must be within [-1, 1]"
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// Rejection records why a product was excluded from a corpus.
type Rejection struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// FilterCorpus keeps valid products in input order. A repeated id keeps its
// first occurrence.
func FilterCorpus(products []product.Product) ([]product.Product, []Rejection) {
	kept := make([]product.Product, 0, len(products))
	var rejected []Rejection
	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		if err := ValidateProduct(p); err != nil {
			rejected = append(rejected, Rejection{Index: i, ID: p.ID, Reason: err.Error()})
			continue
		}
		if _, dup := seen[p.ID]; dup {
			rejected = append(rejected, Rejection{Index: i, ID: p.ID, Reason: "id:duplicate id"})
			continue
		}
		seen[p.ID] = struct{}{}
		kept = append(kept, p)
	}
	return kept, rejected
}

// ValidateQuery accepts any valid UTF-8 text up to maxQueryLength bytes
// that is not blank.
func ValidateQuery(q string) error {
	errs := make(map[string]string)
	switch {
	case strings.TrimSpace(q) == "":
		errs["query"] = "query is required"
	case !utf8.ValidString(q):
		errs["query"] = "query must be valid UTF-8"
	case len(q) > maxQueryLength:
		errs["query"] = fmt.Sprintf("query must be at most %d characters", maxQueryLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateLimit reports limits outside [0, maxLimit]; 0 means the default.
func ValidateLimit(limit int) error {
	if limit < 0 || limit > maxLimit {
		return &ValidationError{Fields: map[string]string{
			"limit": fmt.Sprintf("limit must be between 0 and %d", maxLimit),
		}}
	}
	return nil
}
