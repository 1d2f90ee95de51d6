package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"thoughtweb/domain/config"
	"thoughtweb/domain/core/entities"
	"thoughtweb/domain/similarity"
	pkgerrors "thoughtweb/pkg/errors"
)

const (
	commonThemeRatio   = 0.5
	descriptionPreview = 60
)

// PatternEngine finds semantic, temporal, thematic and recurring patterns
// across the full memory set. Every run recomputes from scratch and replaces
// the stored patterns; identities are stable fingerprints so a pattern found
// again keeps its id and first detection time.
type PatternEngine struct {
	mu       sync.RWMutex
	config   config.PatternConfig
	patterns map[string]*entities.MemoryPattern
	order    []string
	now      func() time.Time
}

// NewPatternEngine creates an engine. Zero-valued fields of cfg fall back to
// the defaults.
func NewPatternEngine(cfg config.PatternConfig) *PatternEngine {
	merged, err := config.MergePatternConfig(cfg)
	if err != nil {
		merged = config.DefaultPatternConfig()
	}
	return &PatternEngine{
		config:   merged,
		patterns: make(map[string]*entities.MemoryPattern),
		now:      time.Now,
	}
}

// Config returns the effective configuration.
func (e *PatternEngine) Config() config.PatternConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

// SetConfig swaps thresholds for subsequent runs.
func (e *PatternEngine) SetConfig(cfg config.PatternConfig) error {
	merged, err := config.MergePatternConfig(cfg)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.config = merged
	e.mu.Unlock()
	return nil
}

// DetectPatterns runs the four detectors in order over memories and replaces
// the stored pattern set with the result. Patterns under
// MinPatternConfidence are dropped.
func (e *PatternEngine) DetectPatterns(ctx context.Context, memories []*entities.Memory) ([]*entities.MemoryPattern, error) {
	cfg := e.Config()
	now := e.now()

	detectors := []func(context.Context, []*entities.Memory, config.PatternConfig) ([]*entities.MemoryPattern, error){
		e.detectSemantic,
		e.detectTemporal,
		e.detectThematic,
		e.detectRecurring,
	}

	found := make([]*entities.MemoryPattern, 0)
	for _, detect := range detectors {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.NewCanceledError("detect patterns", err)
		}
		patterns, err := detect(ctx, memories, cfg)
		if err != nil {
			return nil, err
		}
		found = append(found, patterns...)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]*entities.MemoryPattern, 0, len(found))
	next := make(map[string]*entities.MemoryPattern, len(found))
	order := make([]string, 0, len(found))

	for _, p := range found {
		if p.Confidence < cfg.MinPatternConfidence {
			continue
		}
		if _, dup := next[p.ID]; dup {
			continue
		}
		p.DetectedAt = now
		p.UpdatedAt = now
		if prev, ok := e.patterns[p.ID]; ok {
			p.DetectedAt = prev.DetectedAt
		}
		next[p.ID] = p
		order = append(order, p.ID)
		result = append(result, p)
	}

	e.patterns = next
	e.order = order
	return clonePatterns(result), nil
}

// Patterns returns the patterns of the last run in detection order.
func (e *PatternEngine) Patterns() []*entities.MemoryPattern {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*entities.MemoryPattern, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.patterns[id])
	}
	return clonePatterns(out)
}

// GetPattern returns a stored pattern by id.
func (e *PatternEngine) GetPattern(id string) (*entities.MemoryPattern, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.patterns[id]
	if !ok {
		return nil, false
	}
	return clonePatterns([]*entities.MemoryPattern{p})[0], true
}

// detectSemantic groups memories whose embeddings are within MinSimilarity
// of a first-seen anchor.
func (e *PatternEngine) detectSemantic(ctx context.Context, memories []*entities.Memory, cfg config.PatternConfig) ([]*entities.MemoryPattern, error) {
	withEmbedding := lo.Filter(memories, func(m *entities.Memory, _ int) bool { return len(m.Embedding) > 0 })

	groups, err := greedyCluster(ctx, withEmbedding, cfg.MinSimilarity, func(a, b *entities.Memory) (float64, bool) {
		sim, err := similarity.CosineSimilarity(a.Embedding, b.Embedding)
		return sim, err == nil
	})
	if err != nil {
		return nil, err
	}

	patterns := make([]*entities.MemoryPattern, 0)
	for _, group := range groups {
		if len(group) < cfg.MinOccurrences {
			continue
		}
		themes := extractCommonThemes(group)
		label := themes
		if len(label) == 0 {
			label = similarity.ExtractKeywords(joinContent(group), 3)
		}
		patterns = append(patterns, newPattern(
			entities.PatternSemantic, group, themes,
			fmt.Sprintf("Recurring ideas about %s", describeThemes(label)),
		))
	}
	return patterns, nil
}

// detectTemporal buckets memories into fixed windows and keeps busy windows
// whose memories share a tag.
func (e *PatternEngine) detectTemporal(ctx context.Context, memories []*entities.Memory, cfg config.PatternConfig) ([]*entities.MemoryPattern, error) {
	window := max(cfg.TemporalWindow.Milliseconds(), 1)
	buckets := make(map[int64][]*entities.Memory)
	keys := make([]int64, 0)

	for _, m := range memories {
		key := floorDiv(m.CreatedAt.UnixMilli(), window)
		if _, ok := buckets[key]; !ok {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], m)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	patterns := make([]*entities.MemoryPattern, 0)
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.NewCanceledError("detect temporal patterns", err)
		}
		group := buckets[key]
		if len(group) < cfg.MinOccurrences {
			continue
		}
		themes := extractCommonThemes(group)
		if len(themes) == 0 {
			continue
		}
		start := time.UnixMilli(key * window).UTC()
		patterns = append(patterns, newPattern(
			entities.PatternTemporal, group, themes,
			fmt.Sprintf("%d memories about %s starting %s", len(group), describeThemes(themes), start.Format("Jan 2, 2006")),
		))
	}
	return patterns, nil
}

// detectThematic turns every tag carried by enough memories into a pattern.
func (e *PatternEngine) detectThematic(ctx context.Context, memories []*entities.Memory, cfg config.PatternConfig) ([]*entities.MemoryPattern, error) {
	byTag := make(map[string][]*entities.Memory)
	tags := make([]string, 0)

	for _, m := range memories {
		for _, tag := range lo.Uniq(m.Tags) {
			if _, ok := byTag[tag]; !ok {
				tags = append(tags, tag)
			}
			byTag[tag] = append(byTag[tag], m)
		}
	}

	patterns := make([]*entities.MemoryPattern, 0)
	for _, tag := range tags {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.NewCanceledError("detect thematic patterns", err)
		}
		group := byTag[tag]
		if len(group) < cfg.MinOccurrences {
			continue
		}
		themes := append([]string{tag}, lo.Without(extractCommonThemes(group), tag)...)
		p := newPattern(
			entities.PatternThematic, group, themes,
			fmt.Sprintf("%d memories share the theme '%s'", len(group), tag),
		)
		p.ID = entities.PatternFingerprint(p.Type, p.MemoryIDs, tag)
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// detectRecurring finds near-duplicate phrasing with literal token Jaccard.
func (e *PatternEngine) detectRecurring(ctx context.Context, memories []*entities.Memory, cfg config.PatternConfig) ([]*entities.MemoryPattern, error) {
	tokenSets := make(map[string][]string, len(memories))
	for _, m := range memories {
		tokenSets[m.ID] = similarity.TokenSet(m.Content)
	}

	groups, err := greedyCluster(ctx, memories, cfg.MinSimilarity, func(a, b *entities.Memory) (float64, bool) {
		return similarity.JaccardSimilarity(tokenSets[a.ID], tokenSets[b.ID]), true
	})
	if err != nil {
		return nil, err
	}

	patterns := make([]*entities.MemoryPattern, 0)
	for _, group := range groups {
		if len(group) < cfg.MinOccurrences {
			continue
		}
		patterns = append(patterns, newPattern(
			entities.PatternRecurring, group, extractCommonThemes(group),
			fmt.Sprintf("Recurring thought (%d times): \"%s\"", len(group), entities.Preview(group[0].Content, descriptionPreview)),
		))
	}
	return patterns, nil
}

// greedyCluster takes each unprocessed memory in order as an anchor and
// gathers every other unprocessed memory scoring at least threshold against
// it. Pairs the scorer rejects are skipped.
func greedyCluster(
	ctx context.Context,
	memories []*entities.Memory,
	threshold float64,
	score func(a, b *entities.Memory) (float64, bool),
) ([][]*entities.Memory, error) {
	processed := make(map[string]bool, len(memories))
	groups := make([][]*entities.Memory, 0)

	for i, anchor := range memories {
		if processed[anchor.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.NewCanceledError("cluster memories", err)
		}

		group := []*entities.Memory{anchor}
		processed[anchor.ID] = true
		for _, other := range memories[i+1:] {
			if processed[other.ID] {
				continue
			}
			if sim, ok := score(anchor, other); ok && sim >= threshold {
				group = append(group, other)
				processed[other.ID] = true
			}
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func newPattern(t entities.PatternType, group []*entities.Memory, themes []string, description string) *entities.MemoryPattern {
	ids := lo.Map(group, func(m *entities.Memory, _ int) string { return m.ID })
	if themes == nil {
		themes = []string{}
	}
	return &entities.MemoryPattern{
		ID:          entities.PatternFingerprint(t, ids),
		Description: description,
		MemoryIDs:   ids,
		Confidence:  PatternConfidence(group, t),
		Type:        t,
		Occurrences: len(group),
		Themes:      themes,
	}
}

// PatternConfidence is 0.5 + min(0.2, n*0.05) + avg member confidence*0.3,
// plus 0.1 for semantic and thematic patterns, capped at 1.
func PatternConfidence(memories []*entities.Memory, t entities.PatternType) float64 {
	if len(memories) == 0 {
		return 0
	}
	avg := lo.SumBy(memories, func(m *entities.Memory) float64 { return m.Confidence }) / float64(len(memories))

	c := 0.5 + min(0.2, float64(len(memories))*0.05) + avg*0.3
	if t == entities.PatternSemantic || t == entities.PatternThematic {
		c += 0.1
	}
	return min(1.0, c)
}

// extractCommonThemes returns tags carried by at least half of the group
// (rounded up), most frequent first, ties in first-seen order.
func extractCommonThemes(group []*entities.Memory) []string {
	if len(group) == 0 {
		return []string{}
	}
	threshold := int(math.Ceil(float64(len(group)) * commonThemeRatio))

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, m := range group {
		for _, tag := range lo.Uniq(m.Tags) {
			if counts[tag] == 0 {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}

	common := lo.Filter(order, func(tag string, _ int) bool { return counts[tag] >= threshold })
	sort.SliceStable(common, func(i, j int) bool { return counts[common[i]] > counts[common[j]] })
	return common
}

func describeThemes(themes []string) string {
	if len(themes) == 0 {
		return "related topics"
	}
	return strings.Join(lo.Slice(themes, 0, 3), ", ")
}

func joinContent(group []*entities.Memory) string {
	return strings.Join(lo.Map(group, func(m *entities.Memory, _ int) string { return m.Content }), " ")
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func clonePatterns(in []*entities.MemoryPattern) []*entities.MemoryPattern {
	return lo.Map(in, func(p *entities.MemoryPattern, _ int) *entities.MemoryPattern {
		cp := *p
		cp.MemoryIDs = append([]string{}, p.MemoryIDs...)
		cp.Themes = append([]string{}, p.Themes...)
		return &cp
	})
}
