package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankOrdersAndFilters(t *testing.T) {
	got := Rank([]Candidate{
		{Position: 0, DocID: "a", Score: 0.5},
		{Position: 1, DocID: "b", Score: 0},
		{Position: 2, DocID: "c", Score: 0.9},
		{Position: 3, DocID: "d", Score: 0.5},
		{Position: 4, DocID: "e", Score: -1},
	}, 0)

	assert.Equal(t, []string{"c", "a", "d"}, IDs(got))
	for i, d := range got {
		assert.Equal(t, i+1, d.Rank)
	}
}

func TestRankTieBreakIsCorpusOrder(t *testing.T) {
	got := Rank([]Candidate{
		{Position: 2, DocID: "z", Score: 1},
		{Position: 0, DocID: "y", Score: 1},
		{Position: 1, DocID: "x", Score: 1},
	}, 2)
	assert.Equal(t, []string{"y", "x"}, IDs(got))
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil, 10))
}

func TestMatchedTerms(t *testing.T) {
	doc := map[string]int{"iphone": 1, "case": 2}
	assert.Equal(t, []string{"iphone", "case"}, MatchedTerms([]string{"iphone", "case", "iphone", "blue"}, doc))
}
