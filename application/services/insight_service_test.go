package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoughtweb/domain/config"
	"thoughtweb/domain/core/entities"
)

var insightClock = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

type stubPatterns []*entities.MemoryPattern

func (p stubPatterns) Patterns() []*entities.MemoryPattern { return p }

type stubClusters []*entities.ConnectionCluster

func (c stubClusters) Clusters() []*entities.ConnectionCluster { return c }

func addAt(t *testing.T, s *MemoryStore, content string, created time.Time, wonder float64) *entities.Memory {
	t.Helper()
	m, err := s.AddMemory(context.Background(), content, "", entities.MemoryMetadata{WonderScore: wonder, CreatedAt: &created})
	require.NoError(t, err)
	return m
}

func newTestInsightService(store *MemoryStore, patterns PatternReader, clusters ClusterReader) *InsightService {
	s := NewInsightService(config.DefaultInsightConfig(), store, patterns, clusters, nil, nil, nil)
	s.now = func() time.Time { return insightClock }
	return s
}

func TestGenerateInsights_ConnectionAndDedup(t *testing.T) {
	store := newTestStore(t, config.DefaultMemoryConfig())
	sky := addAt(t, store, "why is the sky blue at noon", insightClock.Add(-72*time.Hour), 1)
	svc := newTestInsightService(store, stubPatterns{}, nil)
	ctx := context.Background()

	got, err := svc.GenerateInsights(ctx, InsightRequest{ContextText: "sky blue noon"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entities.InsightConnection, got[0].Type)
	assert.Equal(t, []string{sky.ID}, got[0].RelatedMemories)
	assert.Contains(t, got[0].Message, "3 days ago")
	assert.Equal(t, "sky blue noon", got[0].TriggerContext)

	again, err := svc.GenerateInsights(ctx, InsightRequest{ContextText: "sky blue noon"})
	require.NoError(t, err)
	assert.Empty(t, again)

	_, ok := svc.DismissInsight(got[0].ID)
	require.True(t, ok)
	assert.Empty(t, svc.GetInsights(false))
	assert.Len(t, svc.GetInsights(true), 1)

	regenerated, err := svc.GenerateInsights(ctx, InsightRequest{ContextText: "sky blue noon"})
	require.NoError(t, err)
	assert.Len(t, regenerated, 1)
	assert.Len(t, svc.GetInsights(true), 2)
}

func TestGenerateInsights_PatternWindow(t *testing.T) {
	store := newTestStore(t, config.DefaultMemoryConfig())
	a := addAt(t, store, "espresso shot", insightClock.Add(-24*time.Hour), 0)
	b := addAt(t, store, "pour over coffee", insightClock.Add(-48*time.Hour), 0)
	c := addAt(t, store, "cold brew batch", insightClock.Add(-20*24*time.Hour), 0)
	pattern := &entities.MemoryPattern{
		ID:          "pattern-1",
		MemoryIDs:   []string{a.ID, b.ID, c.ID},
		Confidence:  0.9,
		Occurrences: 3,
		Themes:      []string{"coffee"},
	}
	svc := newTestInsightService(store, stubPatterns{pattern}, nil)

	got, err := svc.GenerateInsights(context.Background(), InsightRequest{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entities.InsightPattern, got[0].Type)
	assert.Equal(t, []string{"pattern-1"}, got[0].RelatedPatterns)

	// A window that only holds one member produces nothing.
	start, end := insightClock.Add(-30*24*time.Hour), insightClock.Add(-10*24*time.Hour)
	other := newTestInsightService(store, stubPatterns{pattern}, nil)
	got, err = other.GenerateInsights(context.Background(), InsightRequest{WindowStart: &start, WindowEnd: &end})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerateInsights_ReminderAndSuggestion(t *testing.T) {
	store := newTestStore(t, config.DefaultMemoryConfig())
	forgotten := addAt(t, store, "call the plumber about the leak", insightClock.Add(-10*24*time.Hour), 1)
	seeds := make([]string, 0, 3)
	for _, thought := range []string{"x", "y", "z"} {
		m, err := store.AddMemory(context.Background(), "planting seeds in the garden", thought, entities.MemoryMetadata{})
		require.NoError(t, err)
		seeds = append(seeds, m.ID)
	}
	clusters := stubClusters{{ID: "cl", ItemIDs: []string{"x", "y", "z"}, Theme: "garden", Confidence: 0.9}}
	svc := newTestInsightService(store, stubPatterns{}, clusters)

	got, err := svc.GenerateInsights(context.Background(), InsightRequest{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ranked by confidence: the cluster scores 0.9, the memory 0.87.
	assert.Equal(t, entities.InsightSuggestion, got[0].Type)
	assert.Equal(t, seeds, got[0].RelatedMemories)
	assert.Equal(t, entities.InsightReminder, got[1].Type)
	assert.Equal(t, []string{forgotten.ID}, got[1].RelatedMemories)
}

func TestGenerateInsights_InvalidWindow(t *testing.T) {
	store := newTestStore(t, config.DefaultMemoryConfig())
	svc := newTestInsightService(store, stubPatterns{}, nil)
	start, end := insightClock, insightClock.Add(-time.Hour)

	_, err := svc.GenerateInsights(context.Background(), InsightRequest{WindowStart: &start, WindowEnd: &end})
	require.Error(t, err)
}

func TestMarkShown(t *testing.T) {
	store := newTestStore(t, config.DefaultMemoryConfig())
	addAt(t, store, "call the plumber about the leak", insightClock.Add(-10*24*time.Hour), 1)
	svc := newTestInsightService(store, stubPatterns{}, nil)

	got, err := svc.GenerateInsights(context.Background(), InsightRequest{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	shown, ok := svc.MarkShown(got[0].ID)
	require.True(t, ok)
	assert.True(t, shown.Shown)
	assert.True(t, svc.GetInsights(false)[0].Shown)

	_, ok = svc.MarkShown("missing")
	assert.False(t, ok)
}
