package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"thoughtweb/domain/config"
	"thoughtweb/domain/core/entities"
	"thoughtweb/domain/similarity"
)

const (
	categoricalKeywords = 10
	semanticReasonTerms = 3

	temporalConfidenceFactor    = 0.8
	contextualConfidenceFactor  = 0.9
	categoricalConfidenceFactor = 0.85
)

// ConnectionCandidate is a scored relationship found by one detector, not
// yet placed in the graph.
type ConnectionCandidate struct {
	SourceID     string
	TargetID     string
	Type         entities.ConnectionType
	Weight       float64
	Confidence   float64
	Reason       string
	SharedThemes []string
	Metadata     map[string]any
}

// ToConnection stamps the candidate with an id and discovery time.
func (c ConnectionCandidate) ToConnection(id string, now time.Time) *entities.Connection {
	return &entities.Connection{
		ID:           id,
		SourceID:     c.SourceID,
		TargetID:     c.TargetID,
		Type:         c.Type,
		Weight:       c.Weight,
		Confidence:   c.Confidence,
		Reason:       c.Reason,
		SharedThemes: c.SharedThemes,
		DiscoveredAt: now,
		Metadata:     c.Metadata,
	}
}

// ConnectionDetector scores item pairs along the semantic, temporal,
// contextual and categorical dimensions. The detectors are independent: a
// pair can match any number of them.
type ConnectionDetector struct {
	config config.ConnectionConfig
}

// NewConnectionDetector creates a detector. Zero-valued fields of cfg fall
// back to the defaults; a configuration that fails validation is replaced by
// the defaults entirely.
func NewConnectionDetector(cfg config.ConnectionConfig) *ConnectionDetector {
	merged, err := config.MergeConnectionConfig(cfg)
	if err != nil {
		merged = config.DefaultConnectionConfig()
	}
	return &ConnectionDetector{config: merged}
}

// Config returns the effective configuration.
func (d *ConnectionDetector) Config() config.ConnectionConfig {
	return d.config
}

// Detect runs all four detectors for source against target. corpus should
// hold the content of every item in the pool so TF-IDF weights are
// meaningful.
func (d *ConnectionDetector) Detect(source, target entities.Item, corpus []string) []ConnectionCandidate {
	found := make([]ConnectionCandidate, 0, len(entities.ConnectionTypes))

	if c, ok := d.Semantic(source, target, corpus); ok {
		found = append(found, c)
	}
	if c, ok := d.Temporal(source, target); ok {
		found = append(found, c)
	}
	if c, ok := d.Contextual(source, target); ok {
		found = append(found, c)
	}
	if c, ok := d.Categorical(source, target); ok {
		found = append(found, c)
	}
	return found
}

// Semantic blends TF-IDF cosine, keyword overlap and bigram overlap.
func (d *ConnectionDetector) Semantic(source, target entities.Item, corpus []string) (ConnectionCandidate, bool) {
	weight := similarity.CombinedSimilarity(source.Content, target.Content, corpus, d.config.Weights)
	if weight < d.config.MinSemanticSimilarity {
		return ConnectionCandidate{}, false
	}

	shared := lo.Slice(similarity.SharedTokens(source.Content, target.Content), 0, semanticReasonTerms)
	reason := fmt.Sprintf("Similar content (%.0f%% match)", weight*100)
	if len(shared) > 0 {
		reason = "Shared ideas: " + strings.Join(shared, ", ")
	}

	return ConnectionCandidate{
		SourceID:     source.ID,
		TargetID:     target.ID,
		Type:         entities.ConnectionSemantic,
		Weight:       weight,
		Confidence:   weight,
		Reason:       reason,
		SharedThemes: shared,
	}, true
}

// Temporal links items captured within MaxTemporalDelta of each other, with
// weight decaying linearly to zero at the limit.
func (d *ConnectionDetector) Temporal(source, target entities.Item) (ConnectionCandidate, bool) {
	delta := source.Timestamp.Sub(target.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	if delta > d.config.MaxTemporalDelta {
		return ConnectionCandidate{}, false
	}

	weight := 1 - float64(delta)/float64(d.config.MaxTemporalDelta)

	reason := "Captured at the same time"
	if delta >= time.Second {
		reason = "Captured " + humanize.RelTime(source.Timestamp.Add(-delta), source.Timestamp, "apart", "apart")
	}

	return ConnectionCandidate{
		SourceID:     source.ID,
		TargetID:     target.ID,
		Type:         entities.ConnectionTemporal,
		Weight:       weight,
		Confidence:   weight * temporalConfidenceFactor,
		Reason:       reason,
		SharedThemes: []string{},
		Metadata:     map[string]any{"deltaSeconds": delta.Seconds()},
	}, true
}

// Contextual links items that share at least MinSharedTags tags.
func (d *ConnectionDetector) Contextual(source, target entities.Item) (ConnectionCandidate, bool) {
	tagsA := entities.NormalizeTags(source.Tags)
	tagsB := entities.NormalizeTags(target.Tags)
	if len(tagsA) == 0 || len(tagsB) == 0 {
		return ConnectionCandidate{}, false
	}

	shared := lo.Intersect(tagsA, tagsB)
	if len(shared) < d.config.MinSharedTags {
		return ConnectionCandidate{}, false
	}
	// first-seen order of the source's tags
	shared = lo.Filter(tagsA, func(t string, _ int) bool { return lo.Contains(shared, t) })

	weight := float64(len(shared)) / float64(max(len(tagsA), len(tagsB)))

	return ConnectionCandidate{
		SourceID:     source.ID,
		TargetID:     target.ID,
		Type:         entities.ConnectionContextual,
		Weight:       weight,
		Confidence:   weight * contextualConfidenceFactor,
		Reason:       "Shared tags: " + strings.Join(shared, ", "),
		SharedThemes: shared,
	}, true
}

// Categorical compares the top keywords of both items.
func (d *ConnectionDetector) Categorical(source, target entities.Item) (ConnectionCandidate, bool) {
	kwA := similarity.ExtractKeywords(source.Content, categoricalKeywords)
	kwB := similarity.ExtractKeywords(target.Content, categoricalKeywords)

	weight := similarity.JaccardSimilarity(kwA, kwB)
	if weight < d.config.MinCategoricalSimilarity || weight == 0 {
		return ConnectionCandidate{}, false
	}

	shared := lo.Filter(kwA, func(k string, _ int) bool { return lo.Contains(kwB, k) })

	return ConnectionCandidate{
		SourceID:     source.ID,
		TargetID:     target.ID,
		Type:         entities.ConnectionCategorical,
		Weight:       weight,
		Confidence:   weight * categoricalConfidenceFactor,
		Reason:       "Same topic: " + strings.Join(lo.Slice(shared, 0, semanticReasonTerms), ", "),
		SharedThemes: shared,
	}, true
}

// RankCandidates orders candidates by weight, highest first. Equal weights
// keep their detection order.
func RankCandidates(candidates []ConnectionCandidate) []ConnectionCandidate {
	ranked := append([]ConnectionCandidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Weight > ranked[j].Weight
	})
	return ranked
}

// LimitFanOut keeps at most maxPerSource candidates per source, preferring
// the heaviest, and returns the survivors in their original order.
func LimitFanOut(candidates []ConnectionCandidate, maxPerSource int) []ConnectionCandidate {
	if maxPerSource <= 0 {
		return candidates
	}

	type indexed struct {
		ConnectionCandidate
		pos int
	}
	withPos := lo.Map(candidates, func(c ConnectionCandidate, i int) indexed {
		return indexed{ConnectionCandidate: c, pos: i}
	})
	sort.SliceStable(withPos, func(i, j int) bool {
		return withPos[i].Weight > withPos[j].Weight
	})

	perSource := make(map[string]int)
	keep := make(map[int]bool)
	for _, c := range withPos {
		if perSource[c.SourceID] >= maxPerSource {
			continue
		}
		perSource[c.SourceID]++
		keep[c.pos] = true
	}

	return lo.Filter(candidates, func(_ ConnectionCandidate, i int) bool { return keep[i] })
}
