// Package tokenizer normalises free text into search tokens. It lower-cases
// input (unless case sensitive), replaces punctuation with spaces, splits on
// whitespace and removes stop-words. Token order is preserved.
package tokenizer

import (
	"strings"
	"unicode"
)

var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
	"to", "was", "will", "with", "this", "but", "they", "have",
	"had", "what", "said", "each", "which", "their", "time", "if",
	"up", "out", "many", "then", "them", "can", "only", "other",
	"new", "some", "could", "now", "than", "first", "been", "call",
	"who", "find", "long", "down", "day", "did", "get",
	"come", "made", "may", "part",
}

// DefaultStopWords returns a fresh copy of the built-in stop-word set.
func DefaultStopWords() map[string]struct{} {
	return StopWordSet(defaultStopWords)
}

// StopWordSet builds a set from a list of words.
func StopWordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Normalizer turns text into an ordered token sequence.
type Normalizer struct {
	CaseSensitive bool
	// StopWords overrides the default set when non-nil. An empty non-nil
	// map disables stop-word removal.
	StopWords map[string]struct{}
	// MinLength drops tokens with fewer runes. Zero keeps everything.
	MinLength int
}

// New returns a Normalizer with the default stop-word set.
func New(caseSensitive bool) *Normalizer {
	return &Normalizer{
		CaseSensitive: caseSensitive,
		StopWords:     DefaultStopWords(),
	}
}

// Normalize tokenises text. Empty input yields an empty slice.
func (n *Normalizer) Normalize(text string) []string {
	if text == "" {
		return []string{}
	}
	if !n.CaseSensitive {
		text = strings.ToLower(text)
	}
	text = stripPunctuation(text)
	words := strings.Fields(text)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if n.MinLength > 0 && len([]rune(word)) < n.MinLength {
			continue
		}
		if n.isStopWord(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// Normalize tokenises text with the default, case-insensitive normalizer.
func Normalize(text string) []string {
	return New(false).Normalize(text)
}

func (n *Normalizer) isStopWord(word string) bool {
	stop := n.StopWords
	if stop == nil {
		stop = defaultSet
	}
	_, ok := stop[word]
	if !ok && n.CaseSensitive {
		_, ok = stop[strings.ToLower(word)]
	}
	return ok
}

var defaultSet = DefaultStopWords()

// stripPunctuation replaces every rune that is not a word character
// (letter, digit, underscore) or whitespace with a space.
func stripPunctuation(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, text)
}

// Counter counts token occurrences.
func Counter(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}

// Unique returns the distinct tokens in first-seen order.
func Unique(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
