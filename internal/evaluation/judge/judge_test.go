package judge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/product-search-eval/pkg/errors"
)

func newJudge(t *testing.T) *Judge {
	t.Helper()
	j, err := New(DefaultConfig())
	require.NoError(t, err)
	return j
}

func TestBrandAndProductNameBoosts(t *testing.T) {
	j := newJudge(t)
	doc := product.Product{
		ID:          "p1",
		Title:       "Weekend purchase",
		Brand:       "Nike",
		ProductName: "running shoes",
	}
	bd := j.Explain("nike shoes", doc)

	assert.True(t, bd.Has(SignalBrandTerm))
	assert.True(t, bd.Has(SignalProductNameTerm))
	assert.False(t, bd.Has(SignalPhrase))
	assert.Equal(t, 1.0, bd.Overlap)
	assert.InDelta(t, 1.7, bd.Raw, 1e-12)
	assert.Equal(t, 1.0, bd.Score)
}

func TestExactFieldMatchesUseHigherBoost(t *testing.T) {
	j := newJudge(t)
	doc := product.Product{ID: "1", Title: "x", Brand: "Apple iPhone", ProductName: "iphone 15 pro"}
	bd := j.Explain("iphone", doc)
	assert.True(t, bd.Has(SignalBrandExact))
	assert.True(t, bd.Has(SignalProductNameExact))
	assert.True(t, bd.Has(SignalPhrase))
}

func TestOverlapOnly(t *testing.T) {
	j := newJudge(t)
	doc := product.Product{ID: "1", Title: "wool socks"}
	bd := j.Explain("wool hoodie", doc)
	assert.Equal(t, 0.5, bd.Overlap)
	assert.Empty(t, bd.Signals)
	assert.Equal(t, 0.5, bd.Score)
}

func TestEngagementSignals(t *testing.T) {
	j := newJudge(t)
	doc := product.Product{
		ID:               "post",
		Title:            "unrelated",
		Engagement:       &product.Engagement{Upvotes: 51, Comments: 21, Sentiment: 0.8},
		IsRecommendation: true,
	}
	bd := j.Explain("headphones", doc)
	assert.Equal(t, 0.0, bd.Overlap)
	for _, s := range []string{SignalUpvotes, SignalComments, SignalSentiment, SignalReview} {
		assert.True(t, bd.Has(s), s)
	}
	assert.InDelta(t, 0.5, bd.Score, 1e-12)

	quiet := doc
	quiet.Engagement = &product.Engagement{Upvotes: 50, Comments: 20, Sentiment: 0.5}
	quiet.IsRecommendation = false
	assert.Zero(t, j.Score("headphones", quiet))
}

func TestMissingOptionalFieldsContributeNothing(t *testing.T) {
	j := newJudge(t)
	bd := j.Explain("nike", product.Product{ID: "1", Title: "plain tee"})
	assert.Empty(t, bd.Signals)
	assert.Zero(t, bd.Score)
}

func TestEmptyQuery(t *testing.T) {
	j := newJudge(t)
	assert.Zero(t, j.Score("", product.Product{ID: "1", Title: "anything"}))
	assert.Empty(t, j.Judge("  ", []product.Product{{ID: "1", Title: "anything"}}))
}

func TestJudgeAppliesThreshold(t *testing.T) {
	j := newJudge(t)
	docs := []product.Product{
		{ID: "hit", Title: "wool hoodie"},
		{ID: "half", Title: "wool socks"},
		{ID: "weak", Title: "merino wool blend cotton hoodie"},
		{ID: "miss", Title: "cotton tee"},
	}
	got := j.Judge("wool hoodie", docs)
	assert.Contains(t, got, "hit")
	assert.Contains(t, got, "half")
	assert.Contains(t, got, "weak")
	assert.NotContains(t, got, "miss")
	assert.Equal(t, 1.0, got["hit"])

	cfg := DefaultConfig()
	cfg.Threshold = 0.5
	strict, err := New(cfg)
	require.NoError(t, err)
	assert.NotContains(t, strict.Judge("wool hoodie", docs), "half")
}

func TestBuildJudgments(t *testing.T) {
	j := newJudge(t)
	docs := []product.Product{{ID: "1", Title: "wool hoodie"}, {ID: "2", Title: "cotton tee"}}
	js := j.Build([]string{"wool hoodie", "cotton tee", "wool hoodie", "linen"}, docs)

	assert.Equal(t, map[string]struct{}{"1": {}}, js.Relevant("wool hoodie"))
	assert.Equal(t, 1, js.Count("cotton tee"))
	assert.Empty(t, js.Relevant("linen"))
	assert.Empty(t, js.Relevant("never judged"))
	assert.Equal(t, 0.3, js.Threshold())

	scores := js.Scores("wool hoodie")
	scores["2"] = 1
	assert.NotContains(t, js.Scores("wool hoodie"), "2")
}

func TestDeterministic(t *testing.T) {
	j := newJudge(t)
	docs := []product.Product{
		{ID: "1", Title: "Sony WH-1000XM5", Brand: "Sony", Engagement: &product.Engagement{Upvotes: 120}},
		{ID: "2", Title: "sony earbuds review", IsReview: true},
	}
	first := j.Build([]string{"sony headphones"}, docs)
	for i := 0; i < 3; i++ {
		again := j.Build([]string{"sony headphones"}, docs)
		assert.Equal(t, first.Scores("sony headphones"), again.Scores("sony headphones"))
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = 1
	_, err := New(cfg)
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidConfig))
}
