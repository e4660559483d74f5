package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldsSkipsEmpty(t *testing.T) {
	p := Product{ID: "1", Title: "iPhone 15 case", Brand: "  ", Category: "Accessories"}
	fields := p.Fields()
	assert.Equal(t, []Field{
		{FieldTitle, "iPhone 15 case"},
		{FieldCategory, "Accessories"},
	}, fields)
	assert.Equal(t, "iPhone 15 case Accessories", p.Text())
	assert.False(t, p.IsSocial())
}

func TestSocialRecord(t *testing.T) {
	p := Product{ID: "t3_x", Title: "love these", Engagement: &Engagement{Upvotes: 3}}
	assert.True(t, p.IsSocial())
}
