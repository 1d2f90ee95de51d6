package entities

import (
	"time"
)

// Memory is the persisted, embedding-enriched form of a thought.
type Memory struct {
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	ThoughtID       string    `json:"thoughtId,omitempty"`
	Embedding       []float32 `json:"embedding"`
	CreatedAt       time.Time `json:"createdAt"`
	LastAccessedAt  time.Time `json:"lastAccessedAt"`
	AccessCount     int       `json:"accessCount"`
	Confidence      float64   `json:"confidence"`
	RelatedMemories []string  `json:"relatedMemories"`
	Tags            []string  `json:"tags"`
}

// Touch records a read: access time, access count, and a small confidence
// bump capped at 1.
func (m *Memory) Touch(now time.Time) {
	m.LastAccessedAt = now
	m.AccessCount++
	m.Confidence = min(1.0, m.Confidence+0.01)
}

// AsItem exposes the memory to connection discovery.
func (m *Memory) AsItem() Item {
	return Item{
		ID:        m.ID,
		Content:   m.Content,
		Timestamp: m.CreatedAt,
		Tags:      m.Tags,
		Kind:      ItemKindMemory,
	}
}

// Clone returns a deep copy safe to hand outside the store.
func (m *Memory) Clone() *Memory {
	c := *m
	c.Embedding = append([]float32(nil), m.Embedding...)
	c.RelatedMemories = append([]string{}, m.RelatedMemories...)
	c.Tags = append([]string{}, m.Tags...)
	return &c
}

// InitialConfidence scores a new memory from its wonder score and length:
// 0.5 + min(0.3, wonder*0.3) + min(0.2, words/100), capped at 1.
func InitialConfidence(wonderScore float64, wordCount int) float64 {
	if wonderScore < 0 {
		wonderScore = 0
	}
	c := 0.5 + min(0.3, wonderScore*0.3) + min(0.2, float64(wordCount)/100)
	return min(1.0, c)
}

// MemoryMetadata is supplied by the caller when a memory is added.
type MemoryMetadata struct {
	WonderScore float64    `json:"wonderScore" validate:"gte=0,lte=1"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// MemoryQuery filters and ranks a semantic search.
type MemoryQuery struct {
	Text          string     `json:"text" validate:"required"`
	Tags          []string   `json:"tags,omitempty"`
	MinConfidence float64    `json:"minConfidence,omitempty" validate:"gte=0,lte=1"`
	CreatedAfter  *time.Time `json:"createdAfter,omitempty"`
	CreatedBefore *time.Time `json:"createdBefore,omitempty"`
	Limit         int        `json:"limit,omitempty" validate:"gte=0"`
}

// MemorySearchResult is one ranked search hit.
type MemorySearchResult struct {
	Memory      *Memory `json:"memory"`
	Similarity  float64 `json:"similarity"`
	MatchReason string  `json:"matchReason"`
}

// MemoryStats summarizes the store.
type MemoryStats struct {
	TotalMemories     int        `json:"totalMemories"`
	CachedMemories    int        `json:"cachedMemories"`
	CacheCapacity     int        `json:"cacheCapacity"`
	CacheHitRate      float64    `json:"cacheHitRate"`
	AverageConfidence float64    `json:"averageConfidence"`
	TotalAccesses     int        `json:"totalAccesses"`
	TopTags           []TagCount `json:"topTags"`
	OldestMemory      *time.Time `json:"oldestMemory,omitempty"`
	NewestMemory      *time.Time `json:"newestMemory,omitempty"`
}

// TagCount pairs a tag with how many memories carry it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
