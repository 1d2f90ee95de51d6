// Package similarity holds the stateless text and vector similarity
// functions shared by the embedding, memory, pattern and connection layers.
package similarity

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultKeywordLimit is used by ExtractKeywords when limit <= 0.
const DefaultKeywordLimit = 10

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "all": true, "any": true, "can": true, "had": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "has": true, "have": true,
	"his": true, "how": true, "its": true, "may": true, "new": true, "now": true,
	"old": true, "see": true, "two": true, "who": true, "did": true, "get": true,
	"him": true, "let": true, "put": true, "say": true, "she": true, "too": true,
	"use": true, "this": true, "that": true, "with": true, "from": true, "they": true,
	"them": true, "then": true, "than": true, "been": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "will": true, "would": true,
	"could": true, "should": true, "there": true, "their": true, "these": true, "those": true,
	"about": true, "into": true, "over": true, "also": true, "just": true, "only": true,
	"some": true, "such": true, "very": true, "more": true, "most": true, "other": true,
	"your": true, "yours": true, "mine": true, "myself": true, "because": true, "being": true,
	"does": true, "doing": true, "each": true, "few": true, "here": true, "once": true,
	"same": true, "so": true, "after": true, "before": true, "again": true, "between": true,
	"both": true, "during": true, "through": true, "under": true, "until": true, "why": true,
	"whom": true, "own": true, "off": true, "nor": true, "yet": true, "like": true,
	"really": true, "much": true, "many": true, "something": true, "thing": true, "things": true,
}

// IsStopWord reports whether word is filtered by Tokenize.
func IsStopWord(word string) bool {
	return stopWords[strings.ToLower(word)]
}

// Tokenize lowercases text, turns every rune that is not a letter, digit or
// underscore into a separator, and drops tokens of two runes or fewer as well
// as English stop-words. Token order and repeats are preserved.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= 2 || stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// TokenSet returns the distinct tokens of text in first-seen order.
func TokenSet(text string) []string {
	return unique(Tokenize(text))
}

// WordCount counts whitespace separated words, stop-words included.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// ExtractKeywords ranks the tokens of text by frequency, breaking ties by
// first appearance, and returns at most limit of them.
func ExtractKeywords(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultKeywordLimit
	}

	tokens := Tokenize(text)
	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > limit {
		order = order[:limit]
	}
	return order
}

// SharedTokens returns the tokens present in both texts, in the order they
// first appear in a.
func SharedTokens(a, b string) []string {
	inB := make(map[string]bool)
	for _, t := range Tokenize(b) {
		inB[t] = true
	}

	shared := make([]string, 0)
	for _, t := range TokenSet(a) {
		if inB[t] {
			shared = append(shared, t)
		}
	}
	return shared
}

// NGrams builds word n-grams over the tokens of text. Texts with fewer than
// n tokens produce none.
func NGrams(text string, n int) []string {
	if n <= 0 {
		n = 2
	}
	tokens := Tokenize(text)
	if len(tokens) < n {
		return nil
	}

	grams := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		grams = append(grams, strings.Join(tokens[i:i+n], " "))
	}
	return grams
}

func unique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
