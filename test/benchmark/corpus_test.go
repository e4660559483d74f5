// Package benchmark measures normalizer throughput, scorer fit and search
// latency, and end-to-end comparison runs over synthetic product corpora.
package benchmark

import (
	"fmt"
	"math/rand"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/product"
)

var (
	brands     = []string{"Allbirds", "Bombas", "Patagonia", "Redwing", "Everlane", "Rothys"}
	categories = []string{"shoes", "socks", "apparel", "boots", "bags", "accessories"}
	adjectives = []string{"wool", "merino", "natural", "rugged", "breathable", "waterproof", "organic", "recycled"}
	nouns      = []string{"runner", "sock", "hoodie", "boot", "tote", "cap", "sneaker", "jacket"}
)

// syntheticCorpus returns n deterministic products.
func syntheticCorpus(n int) []product.Product {
	rng := rand.New(rand.NewSource(42))
	pick := func(xs []string) string { return xs[rng.Intn(len(xs))] }
	out := make([]product.Product, n)
	for i := range out {
		out[i] = product.Product{
			ID:       fmt.Sprintf("p%d", i),
			Title:    fmt.Sprintf("%s %s %s", pick(adjectives), pick(adjectives), pick(nouns)),
			Brand:    pick(brands),
			Category: pick(categories),
			Description: fmt.Sprintf("a %s %s made for everyday comfort with %s materials",
				pick(adjectives), pick(nouns), pick(adjectives)),
		}
	}
	return out
}

var benchQueries = []string{
	"wool runner",
	"merino hoodie",
	"waterproof boot",
	"organic cotton sock",
	"allbirds sneaker",
	"recycled tote bag",
}
