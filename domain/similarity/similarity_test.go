package similarity

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "thoughtweb/pkg/errors"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"punctuation and case", "Hello, World! Hello_there?", []string{"hello", "world", "hello_there"}},
		{"short and stop words", "I wonder why the sky is blue", []string{"wonder", "sky", "blue"}},
		{"digits kept", "route 66 and 2024 plans", []string{"route", "2024", "plans"}},
		{"empty", "", []string{}},
		{"only noise", "a, b; the...", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical", func(t *testing.T) {
		got, err := CosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got, 1e-9)
	})

	t.Run("orthogonal", func(t *testing.T) {
		got, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})

	t.Run("opposite clamps to zero", func(t *testing.T) {
		got, err := CosineSimilarity([]float64{1, 1}, []float64{-1, -1})
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})

	t.Run("zero magnitude", func(t *testing.T) {
		got, err := CosineSimilarity([]float64{0, 0}, []float64{1, 2})
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})

	t.Run("dimension mismatch fails", func(t *testing.T) {
		_, err := CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDimensionMismatch))
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("symmetric", func(t *testing.T) {
		a := []float64{0.3, 0.1, 0.9, 0.4}
		b := []float64{0.2, 0.8, 0.1, 0.5}
		ab, _ := CosineSimilarity(a, b)
		ba, _ := CosineSimilarity(b, a)
		assert.Equal(t, ab, ba)
	})
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"both empty", nil, nil, 0},
		{"one empty", []string{"x"}, nil, 0},
		{"identical", []string{"a", "b"}, []string{"b", "a"}, 1},
		{"half", []string{"a", "b"}, []string{"b", "c", "a", "d"}, 0.5},
		{"duplicates ignored", []string{"a", "a", "b"}, []string{"a"}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, JaccardSimilarity(tt.a, tt.b), 1e-9)
			assert.Equal(t, JaccardSimilarity(tt.a, tt.b), JaccardSimilarity(tt.b, tt.a))
		})
	}
}

func TestCalculateTFIDF(t *testing.T) {
	corpus := []string{"coffee morning ritual", "evening tea ritual", "coffee beans roasting"}

	vec := CalculateTFIDF("coffee ritual ritual", corpus)

	assert.InDelta(t, (1.0/3.0)*math.Log(3.0/2.0), vec["coffee"], 1e-9)
	assert.InDelta(t, (2.0/3.0)*math.Log(3.0/2.0), vec["ritual"], 1e-9)

	t.Run("term absent from corpus has zero idf", func(t *testing.T) {
		v := CalculateTFIDF("volcano", corpus)
		assert.Equal(t, 0.0, v["volcano"])
	})

	t.Run("empty corpus is not NaN", func(t *testing.T) {
		v := CalculateTFIDF("volcano eruption", nil)
		for _, w := range v {
			assert.False(t, math.IsNaN(w))
		}
	})

	t.Run("empty doc", func(t *testing.T) {
		assert.Empty(t, CalculateTFIDF("", corpus))
	})
}

func TestCombinedSimilarity(t *testing.T) {
	a := "I wonder why the sky is blue"
	background := []string{"grocery list for tuesday", "quarterly budget review meeting"}

	t.Run("identical text with background corpus", func(t *testing.T) {
		corpus := append([]string{a, a}, background...)
		assert.InDelta(t, 1.0, CombinedSimilarity(a, a, corpus, DefaultWeights()), 1e-9)
	})

	t.Run("identical text in a two document corpus has zero idf", func(t *testing.T) {
		assert.InDelta(t, 0.5, CombinedSimilarity(a, a, []string{a, a}, DefaultWeights()), 1e-9)
	})

	t.Run("unrelated", func(t *testing.T) {
		b := "grocery list for tuesday"
		corpus := []string{a, b}
		assert.Equal(t, 0.0, CombinedSimilarity(a, b, corpus, DefaultWeights()))
	})
}

func TestNGrams(t *testing.T) {
	assert.Equal(t, []string{"quick brown", "brown fox"}, NGrams("the quick brown fox", 2))
	assert.Nil(t, NGrams("fox", 2))
	assert.InDelta(t, 1.0/3.0, NGramOverlap("quick brown fox", "quick brown dog", 2), 1e-9)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		dist int
		sim  float64
	}{
		{"", "", 0, 1},
		{"kitten", "sitting", 3, 1 - 3.0/7.0},
		{"abc", "", 3, 0},
		{"café", "cafe", 1, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.a+"->"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.dist, LevenshteinDistance(tt.a, tt.b))
			assert.InDelta(t, tt.sim, LevenshteinSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	text := "garden roses bloom; garden soil, roses, garden tools"

	assert.Equal(t, []string{"garden", "roses", "bloom", "soil", "tools"}, ExtractKeywords(text, 0))
	assert.Equal(t, []string{"garden", "roses"}, ExtractKeywords(text, 2))
	assert.Empty(t, ExtractKeywords("", 5))
}

func TestSharedTokens(t *testing.T) {
	assert.Equal(t,
		[]string{"coffee", "morning"},
		SharedTokens("coffee every morning with coffee", "morning coffee run"),
	)
}
