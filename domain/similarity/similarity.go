package similarity

import (
	"fmt"
	"math"
	"sort"

	apperrors "thoughtweb/pkg/errors"
)

// ErrDimensionMismatch is matched (errors.Is) by every error CosineSimilarity
// returns for vectors of different lengths.
var ErrDimensionMismatch = apperrors.NewValidationError("vector dimensions differ").WithCode("DIMENSION_MISMATCH")

// Float is the element type accepted by the vector functions.
type Float interface {
	~float32 | ~float64
}

// Weights controls how CombinedSimilarity blends its three signals.
type Weights struct {
	Semantic float64 `json:"semantic" yaml:"semantic"`
	Keyword  float64 `json:"keyword" yaml:"keyword"`
	NGram    float64 `json:"ngram" yaml:"ngram"`
}

// DefaultWeights returns the standard 0.5/0.3/0.2 blend.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.5, Keyword: 0.3, NGram: 0.2}
}

const combinedKeywordLimit = 20

// CosineSimilarity returns the cosine of the angle between a and b clamped to
// [0,1]. Vectors of different length are a caller bug and fail; a zero
// magnitude on either side yields 0.
func CosineSimilarity[T Float](a, b []T) (float64, error) {
	if len(a) != len(b) {
		return 0, apperrors.NewValidationError(
			fmt.Sprintf("vector dimensions differ: %d vs %d", len(a), len(b)),
		).WithCode(ErrDimensionMismatch.Code)
	}

	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}

	return clamp01(dot / (math.Sqrt(magA) * math.Sqrt(magB))), nil
}

// JaccardSimilarity is |A∩B| / |A∪B| over the distinct values of a and b.
// Two empty sets score 0.
func JaccardSimilarity(a, b []string) float64 {
	setA := make(map[string]bool, len(a))
	for _, s := range a {
		setA[s] = true
	}
	setB := make(map[string]bool, len(b))
	for _, s := range b {
		setB[s] = true
	}

	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for s := range setA {
		if setB[s] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// CalculateTFIDF weights each token of doc by its normalized term frequency
// times ln(N/df) over corpus. Terms no corpus document contains get an IDF of
// zero.
func CalculateTFIDF(doc string, corpus []string) map[string]float64 {
	tokens := Tokenize(doc)
	vector := make(map[string]float64)
	if len(tokens) == 0 {
		return vector
	}

	counts := make(map[string]int)
	for _, t := range tokens {
		counts[t]++
	}

	docSets := make([]map[string]bool, len(corpus))
	for i, d := range corpus {
		set := make(map[string]bool)
		for _, t := range Tokenize(d) {
			set[t] = true
		}
		docSets[i] = set
	}

	for term, count := range counts {
		df := 0
		for _, set := range docSets {
			if set[term] {
				df++
			}
		}

		idf := 0.0
		if df > 0 {
			idf = math.Log(float64(len(corpus)) / float64(df))
		}
		vector[term] = float64(count) / float64(len(tokens)) * idf
	}
	return vector
}

// SparseCosine is the cosine similarity of two term-weight maps, clamped to
// [0,1].
func SparseCosine(a, b map[string]float64) float64 {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	// fixed summation order keeps results bit-identical across runs
	sort.Strings(keys)

	var dot, magA, magB float64
	for _, k := range keys {
		x, y := a[k], b[k]
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}

// NGramOverlap is the Jaccard similarity of the word n-grams of a and b.
func NGramOverlap(a, b string, n int) float64 {
	return JaccardSimilarity(NGrams(a, n), NGrams(b, n))
}

// CombinedSimilarity blends TF-IDF cosine, top-20 keyword Jaccard and bigram
// Jaccard. The TF-IDF vectors are computed against corpus, which should
// contain both texts.
func CombinedSimilarity(a, b string, corpus []string, w Weights) float64 {
	semantic := SparseCosine(CalculateTFIDF(a, corpus), CalculateTFIDF(b, corpus))
	keyword := JaccardSimilarity(ExtractKeywords(a, combinedKeywordLimit), ExtractKeywords(b, combinedKeywordLimit))
	ngram := NGramOverlap(a, b, 2)

	return clamp01(w.Semantic*semantic + w.Keyword*keyword + w.NGram*ngram)
}

// LevenshteinDistance counts the single-rune edits turning a into b.
func LevenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// LevenshteinSimilarity is 1 - distance/max(len). Two empty strings score 1.
func LevenshteinSimilarity(a, b string) float64 {
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(LevenshteinDistance(a, b))/float64(maxLen)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
