// Package embedding produces deterministic local vector embeddings for text
// and ranks vectors by cosine similarity.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"thoughtweb/domain/similarity"
)

// DefaultDimensions is the embedding width used when none is configured.
const DefaultDimensions = 128

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator is a hash-based bag-of-tokens embedder. The same input always
// yields a bit-identical vector.
type Generator struct {
	dims int
}

// NewGenerator creates a generator; dims <= 0 falls back to DefaultDimensions.
func NewGenerator(dims int) *Generator {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Generator{dims: dims}
}

// Dimensions returns the vector width.
func (g *Generator) Dimensions() int {
	return g.dims
}

// Generate hashes every token of text into a bucket, counts, and
// L2-normalizes. Text with no surviving tokens gives the zero vector.
func (g *Generator) Generate(text string) []float32 {
	counts := make([]float64, g.dims)
	for _, token := range similarity.Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		counts[h.Sum32()%uint32(g.dims)]++
	}

	var norm float64
	for _, c := range counts {
		norm += c * c
	}

	vec := make([]float32, g.dims)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, c := range counts {
		vec[i] = float32(c / norm)
	}
	return vec
}

// Embed implements Embedder.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.Generate(text), nil
}

// CachedEmbedder memoizes another Embedder in a bounded LRU keyed by text.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with an LRU of the given size.
func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 1000
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, cache: c}, nil
}

// Embed returns a copy of the cached vector or computes and stores one.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return clone(vec), nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, clone(vec))
	return vec, nil
}

// Len reports the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

// Candidate is a vector to rank against a query.
type Candidate struct {
	ID     string
	Vector []float32
}

// Match is a ranked candidate.
type Match struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// FindSimilar scores every candidate against query, keeps those at or above
// minSimilarity, and sorts descending. Equal scores keep input order. A limit
// of zero or less returns every match.
func FindSimilar(query []float32, corpus []Candidate, limit int, minSimilarity float64) ([]Match, error) {
	matches := make([]Match, 0)
	for _, c := range corpus {
		sim, err := similarity.CosineSimilarity(query, c.Vector)
		if err != nil {
			return nil, err
		}
		if sim >= minSimilarity {
			matches = append(matches, Match{ID: c.ID, Similarity: sim})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
