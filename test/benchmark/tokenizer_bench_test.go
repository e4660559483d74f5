package benchmark

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/product-search-eval/internal/retrieval/tokenizer"
)

// sampleTexts spans a short title, a catalog description and a long,
// noisy review.
var sampleTexts = map[string]string{
	"title": "Men's Wool Runners - Natural White (Blizzard Sole)",
	"description": `Our signature sneaker made with ZQ merino wool, a soft breathable
        material that keeps feet cool in summer and warm in winter. The sugarcane
        based midsole is carbon negative and the laces are made from recycled
        plastic bottles. Machine washable, cushioned, and ready for every day.`,
	"review": strings.Repeat(`Honestly the most comfortable shoes I've owned!!! Wore them
        on a 10 mile walk around the city and no blisters at all. They run a half size
        big so size down. The wool gets a little fuzzy after a few months but still
        looks great. Would definitely recommend to anyone who wants comfy sneakers. `, 10),
}

func BenchmarkNormalize(b *testing.B) {
	for _, name := range []string{"title", "description", "review"} {
		text := sampleTexts[name]
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				tokenizer.Normalize(text)
			}
		})
	}
}

func BenchmarkNormalizeCaseSensitive(b *testing.B) {
	n := tokenizer.New(true)
	text := sampleTexts["description"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for b.Loop() {
		n.Normalize(text)
	}
}

func BenchmarkCounter(b *testing.B) {
	tokens := tokenizer.Normalize(sampleTexts["review"])
	b.ReportAllocs()
	for b.Loop() {
		tokenizer.Counter(tokens)
	}
}
