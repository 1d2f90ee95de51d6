package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"thoughtweb/domain/config"
	"thoughtweb/domain/core/entities"
)

const insightSnippetLength = 80

// InsightRules turns search results, patterns, memories and clusters into
// insights. The rules are pure; callers own storage and deduplication.
type InsightRules struct {
	config config.InsightConfig
	newID  func() string
}

// NewInsightRules creates the rule set. Unset fields of cfg take the
// defaults; a configuration that fails validation is replaced by them.
func NewInsightRules(cfg config.InsightConfig) *InsightRules {
	merged, err := config.MergeInsightConfig(cfg)
	if err != nil {
		merged = config.DefaultInsightConfig()
	}
	return &InsightRules{config: merged, newID: uuid.NewString}
}

// Config returns the thresholds in use.
func (r *InsightRules) Config() config.InsightConfig {
	return r.config
}

// ConnectionInsights surfaces past memories that strongly resemble the
// current context.
func (r *InsightRules) ConnectionInsights(contextText string, results []entities.MemorySearchResult, now time.Time) []*entities.MemoryInsight {
	insights := make([]*entities.MemoryInsight, 0)
	for _, res := range results {
		if res.Memory == nil || res.Similarity <= r.config.ConnectionSimilarity {
			continue
		}
		insights = append(insights, &entities.MemoryInsight{
			ID:   r.newID(),
			Type: entities.InsightConnection,
			Message: fmt.Sprintf("This connects to something you thought %s: \"%s\"",
				humanize.RelTime(res.Memory.CreatedAt, now, "ago", "from now"), snippet(res.Memory.Content)),
			Confidence:      res.Similarity,
			RelatedMemories: []string{res.Memory.ID},
			GeneratedAt:     now,
			TriggerContext:  contextText,
		})
	}
	return insights
}

// PatternInsights reports confident patterns that were active inside the
// [start, end] window.
func (r *InsightRules) PatternInsights(patterns []*entities.MemoryPattern, memories map[string]*entities.Memory, start, end, now time.Time) []*entities.MemoryInsight {
	insights := make([]*entities.MemoryInsight, 0)
	for _, p := range patterns {
		if p.Confidence <= r.config.PatternConfidence || p.Occurrences < r.config.PatternMinOccurrences {
			continue
		}

		inWindow := lo.CountBy(p.MemoryIDs, func(id string) bool {
			m, ok := memories[id]
			return ok && !m.CreatedAt.Before(start) && !m.CreatedAt.After(end)
		})
		if inWindow < r.config.PatternMinInWindow {
			continue
		}

		themes := "this topic"
		if len(p.Themes) > 0 {
			themes = strings.Join(lo.Slice(p.Themes, 0, 3), ", ")
		}
		insights = append(insights, &entities.MemoryInsight{
			ID:              r.newID(),
			Type:            entities.InsightPattern,
			Message:         fmt.Sprintf("You keep returning to %s (%d related thoughts)", themes, p.Occurrences),
			Confidence:      p.Confidence,
			RelatedMemories: append([]string{}, p.MemoryIDs...),
			RelatedPatterns: []string{p.ID},
			GeneratedAt:     now,
		})
	}
	return insights
}

// ReminderInsights picks confident memories that are recent but have not
// been looked at for a while.
func (r *InsightRules) ReminderInsights(memories []*entities.Memory, now time.Time) []*entities.MemoryInsight {
	forgotten := lo.Filter(memories, func(m *entities.Memory, _ int) bool {
		return m.Confidence > r.config.ReminderConfidence &&
			now.Sub(m.LastAccessedAt) > r.config.StaleAfter &&
			now.Sub(m.CreatedAt) <= r.config.ReminderMaxAge
	})
	sort.SliceStable(forgotten, func(i, j int) bool {
		return forgotten[i].Confidence > forgotten[j].Confidence
	})

	insights := make([]*entities.MemoryInsight, 0)
	for _, m := range lo.Slice(forgotten, 0, r.config.MaxReminders) {
		insights = append(insights, &entities.MemoryInsight{
			ID:   r.newID(),
			Type: entities.InsightReminder,
			Message: fmt.Sprintf("Remember this from %s? \"%s\"",
				humanize.RelTime(m.CreatedAt, now, "ago", "from now"), snippet(m.Content)),
			Confidence:      m.Confidence,
			RelatedMemories: []string{m.ID},
			GeneratedAt:     now,
		})
	}
	return insights
}

// SuggestionInsights proposes grouping the items of cohesive connection
// clusters. memoryIDs maps graph item ids to the memories recorded for
// them; a cluster needs at least two resolved memories to be suggested.
func (r *InsightRules) SuggestionInsights(clusters []*entities.ConnectionCluster, memoryIDs map[string]string, now time.Time) []*entities.MemoryInsight {
	strong := lo.Filter(clusters, func(c *entities.ConnectionCluster, _ int) bool {
		return c.Confidence >= r.config.SuggestionConfidence
	})
	sort.SliceStable(strong, func(i, j int) bool { return strong[i].Confidence > strong[j].Confidence })

	insights := make([]*entities.MemoryInsight, 0)
	for _, c := range strong {
		if len(insights) >= r.config.MaxSuggestions {
			break
		}
		related := lo.Uniq(lo.FilterMap(c.ItemIDs, func(id string, _ int) (string, bool) {
			memID, ok := memoryIDs[id]
			return memID, ok
		}))
		if len(related) < 2 {
			continue
		}

		theme := c.Theme
		if theme == "" {
			theme = "a shared idea"
		}
		insights = append(insights, &entities.MemoryInsight{
			ID:              r.newID(),
			Type:            entities.InsightSuggestion,
			Message:         fmt.Sprintf("%d thoughts form a cluster around %s. Consider linking them.", len(c.ItemIDs), theme),
			Confidence:      c.Confidence,
			RelatedMemories: related,
			GeneratedAt:     now,
		})
	}
	return insights
}

// MemoryIDsByItem maps every graph item id a memory can appear under to the
// memory's id: its thought id when it has one, and its own id.
func MemoryIDsByItem(memories []*entities.Memory) map[string]string {
	ids := make(map[string]string, len(memories)*2)
	for _, m := range memories {
		ids[m.ID] = m.ID
		if m.ThoughtID != "" {
			ids[m.ThoughtID] = m.ID
		}
	}
	return ids
}

// RankInsights orders insights by confidence, highest first.
func RankInsights(insights []*entities.MemoryInsight) []*entities.MemoryInsight {
	ranked := append([]*entities.MemoryInsight(nil), insights...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked
}

func snippet(content string) string {
	s := entities.Preview(content, insightSnippetLength)
	if len(s) < len(content) {
		s += "..."
	}
	return s
}
