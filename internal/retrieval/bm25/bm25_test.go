package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/ranker"
)

func TestSearch(t *testing.T) {
	idx, err := NewIndex([]product.Product{
		{ID: "1", Title: "merino wool hoodie"},
		{ID: "2", Title: "wool socks wool blend"},
		{ID: "3", Title: "cotton tee"},
	})
	require.NoError(t, err)

	results := idx.Search("wool", 10)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"2", "1"}, ranker.IDs(results))
	assert.Equal(t, []string{"wool"}, results[0].MatchedTerms)
	assert.Empty(t, idx.Search("", 10))
	assert.Empty(t, idx.Search("linen", 10))
}

func TestTieBreakIsCorpusOrder(t *testing.T) {
	idx, err := NewIndex([]product.Product{
		{ID: "b", Title: "red mug"},
		{ID: "a", Title: "red mug"},
		{ID: "c", Title: "blue plate"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ranker.IDs(idx.Search("mug", 10)))
}

func TestEmptyCorpusMatchesNothing(t *testing.T) {
	idx, err := NewIndex(nil)
	require.NoError(t, err)
	assert.Empty(t, idx.Search("mug", 10))
	assert.Equal(t, 0, idx.Stats("mug").TotalProducts)
}

func TestComputeTFNorm(t *testing.T) {
	assert.Zero(t, computeTFNorm(1, 1, 0))
	assert.Greater(t, computeTFNorm(2, 3, 3), computeTFNorm(1, 3, 3))
}
