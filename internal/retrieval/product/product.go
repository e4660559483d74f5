// Package product defines the searchable record shared by every scorer and
// by the relevance judge. Catalog products and social-media mentions use the
// same struct; fields that only exist for one source are optional.
package product

import "strings"

// Source identifies where a record was collected.
type Source string

const (
	SourceCatalog Source = "api"
	SourceSocial  Source = "social"
)

// Field names used for field boosting.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldProductName = "product_name"
	FieldBrand       = "brand"
	FieldCategory    = "category"
)

// Engagement holds social signals. Nil for catalog products.
type Engagement struct {
	Upvotes   int     `json:"upvotes" yaml:"upvotes"`
	Comments  int     `json:"comments_count" yaml:"comments_count"`
	Sentiment float64 `json:"sentiment_score" yaml:"sentiment_score"`
}

// Product is one searchable item. It is never mutated once a run starts.
type Product struct {
	ID               string      `json:"id" yaml:"id"`
	Title            string      `json:"title" yaml:"title"`
	Description      string      `json:"description,omitempty" yaml:"description,omitempty"`
	Brand            string      `json:"brand,omitempty" yaml:"brand,omitempty"`
	Category         string      `json:"category,omitempty" yaml:"category,omitempty"`
	ProductName      string      `json:"product_name,omitempty" yaml:"product_name,omitempty"`
	Price            *float64    `json:"price,omitempty" yaml:"price,omitempty"`
	Source           Source      `json:"source,omitempty" yaml:"source,omitempty"`
	Engagement       *Engagement `json:"engagement,omitempty" yaml:"engagement,omitempty"`
	IsReview         bool        `json:"is_review,omitempty" yaml:"is_review,omitempty"`
	IsRecommendation bool        `json:"is_recommendation,omitempty" yaml:"is_recommendation,omitempty"`
}

// Field is a named piece of product text.
type Field struct {
	Name string
	Text string
}

// Fields returns the non-empty text fields in a fixed order.
func (p Product) Fields() []Field {
	candidates := []Field{
		{FieldTitle, p.Title},
		{FieldDescription, p.Description},
		{FieldProductName, p.ProductName},
		{FieldBrand, p.Brand},
		{FieldCategory, p.Category},
	}
	fields := make([]Field, 0, len(candidates))
	for _, f := range candidates {
		if strings.TrimSpace(f.Text) != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// Text joins every field into one searchable string.
func (p Product) Text() string {
	fields := p.Fields()
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Text
	}
	return strings.Join(parts, " ")
}

// IsSocial reports whether the record carries engagement signals.
func (p Product) IsSocial() bool {
	return p.Engagement != nil
}
