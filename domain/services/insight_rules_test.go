package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoughtweb/domain/config"
	"thoughtweb/domain/core/entities"
)

var insightNow = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

func newTestRules() *InsightRules {
	r := NewInsightRules(config.DefaultInsightConfig())
	n := 0
	r.newID = func() string {
		n++
		return "insight-" + string(rune('0'+n))
	}
	return r
}

func TestConnectionInsights(t *testing.T) {
	r := newTestRules()
	results := []entities.MemorySearchResult{
		{Memory: &entities.Memory{ID: "strong", Content: "sky colours at dusk", CreatedAt: insightNow.Add(-72 * time.Hour)}, Similarity: 0.82},
		{Memory: &entities.Memory{ID: "weak", Content: "something else"}, Similarity: 0.7},
	}

	got := r.ConnectionInsights("why is the sky blue", results, insightNow)

	require.Len(t, got, 1)
	assert.Equal(t, entities.InsightConnection, got[0].Type)
	assert.Equal(t, []string{"strong"}, got[0].RelatedMemories)
	assert.Equal(t, 0.82, got[0].Confidence)
	assert.Equal(t, "why is the sky blue", got[0].TriggerContext)
	assert.Contains(t, got[0].Message, "3 days ago")
	assert.Contains(t, got[0].Message, "sky colours at dusk")
}

func TestPatternInsights(t *testing.T) {
	r := newTestRules()
	memories := map[string]*entities.Memory{
		"a": {ID: "a", CreatedAt: insightNow.Add(-24 * time.Hour)},
		"b": {ID: "b", CreatedAt: insightNow.Add(-48 * time.Hour)},
		"c": {ID: "c", CreatedAt: insightNow.Add(-30 * 24 * time.Hour)},
		"d": {ID: "d", CreatedAt: insightNow.Add(-40 * 24 * time.Hour)},
	}
	patterns := []*entities.MemoryPattern{
		{ID: "active", MemoryIDs: []string{"a", "b", "c"}, Confidence: 0.9, Occurrences: 3, Themes: []string{"coffee"}},
		{ID: "stale", MemoryIDs: []string{"a", "c", "d"}, Confidence: 0.9, Occurrences: 3},
		{ID: "weak", MemoryIDs: []string{"a", "b", "c"}, Confidence: 0.7, Occurrences: 3},
		{ID: "small", MemoryIDs: []string{"a", "b"}, Confidence: 0.9, Occurrences: 2},
	}

	got := r.PatternInsights(patterns, memories, insightNow.Add(-7*24*time.Hour), insightNow, insightNow)

	require.Len(t, got, 1)
	assert.Equal(t, []string{"active"}, got[0].RelatedPatterns)
	assert.Equal(t, "You keep returning to coffee (3 related thoughts)", got[0].Message)
}

func TestReminderInsights(t *testing.T) {
	r := newTestRules()
	memories := []*entities.Memory{
		{ID: "forgotten", Content: "call the plumber", Confidence: 0.85, CreatedAt: insightNow.Add(-10 * 24 * time.Hour), LastAccessedAt: insightNow.Add(-10 * 24 * time.Hour)},
		{ID: "recently-read", Confidence: 0.9, CreatedAt: insightNow.Add(-10 * 24 * time.Hour), LastAccessedAt: insightNow.Add(-time.Hour)},
		{ID: "too-old", Confidence: 0.9, CreatedAt: insightNow.Add(-30 * 24 * time.Hour), LastAccessedAt: insightNow.Add(-30 * 24 * time.Hour)},
		{ID: "low-confidence", Confidence: 0.7, CreatedAt: insightNow.Add(-10 * 24 * time.Hour), LastAccessedAt: insightNow.Add(-10 * 24 * time.Hour)},
		{ID: "best", Content: "book idea", Confidence: 0.95, CreatedAt: insightNow.Add(-9 * 24 * time.Hour), LastAccessedAt: insightNow.Add(-8 * 24 * time.Hour)},
		{ID: "third", Confidence: 0.81, CreatedAt: insightNow.Add(-9 * 24 * time.Hour), LastAccessedAt: insightNow.Add(-8 * 24 * time.Hour)},
	}

	got := r.ReminderInsights(memories, insightNow)

	require.Len(t, got, 2)
	assert.Equal(t, []string{"best"}, got[0].RelatedMemories)
	assert.Equal(t, []string{"forgotten"}, got[1].RelatedMemories)
	assert.Contains(t, got[1].Message, "call the plumber")
}

func TestSuggestionInsights(t *testing.T) {
	r := newTestRules()
	clusters := []*entities.ConnectionCluster{
		{ID: "c1", ItemIDs: []string{"a", "b", "c"}, Theme: "garden, spring", Confidence: 0.8},
		{ID: "c2", ItemIDs: []string{"d", "e", "f"}, Confidence: 0.3},
		{ID: "c3", ItemIDs: []string{"g", "h", "i"}, Confidence: 0.7},
	}
	memoryIDs := MemoryIDsByItem([]*entities.Memory{
		{ID: "mem-a", ThoughtID: "a"},
		{ID: "mem-b", ThoughtID: "b"},
		{ID: "c"},
		{ID: "mem-d", ThoughtID: "d"},
		{ID: "mem-g", ThoughtID: "g"},
	})

	got := r.SuggestionInsights(clusters, memoryIDs, insightNow)

	// c3 resolves only one memory and is not suggested.
	require.Len(t, got, 1)
	assert.Equal(t, entities.InsightSuggestion, got[0].Type)
	assert.Contains(t, got[0].Message, "garden, spring")
	assert.Equal(t, []string{"mem-a", "mem-b", "c"}, got[0].RelatedMemories)
}

func TestRankInsights(t *testing.T) {
	ranked := RankInsights([]*entities.MemoryInsight{
		{ID: "low", Confidence: 0.2},
		{ID: "high", Confidence: 0.9},
	})
	assert.Equal(t, "high", ranked[0].ID)
}

func TestSnippet(t *testing.T) {
	long := "a very long piece of content that certainly goes well beyond the eighty character preview limit"
	assert.True(t, len(snippet(long)) < len(long)+3)
	assert.Equal(t, "short", snippet("short"))
}
