package entities

import (
	"sort"
	"strings"
	"time"
)

// InsightType classifies a generated insight.
type InsightType string

const (
	InsightConnection InsightType = "connection"
	InsightPattern    InsightType = "pattern"
	InsightReminder   InsightType = "reminder"
	InsightSuggestion InsightType = "suggestion"
)

// MemoryInsight is a human-readable observation backed by memories and,
// for pattern insights, the patterns that triggered it.
type MemoryInsight struct {
	ID              string      `json:"id"`
	Type            InsightType `json:"type"`
	Message         string      `json:"message"`
	Confidence      float64     `json:"confidence"`
	RelatedMemories []string    `json:"relatedMemories"`
	RelatedPatterns []string    `json:"relatedPatterns,omitempty"`
	GeneratedAt     time.Time   `json:"generatedAt"`
	Shown           bool        `json:"shown"`
	Dismissed       bool        `json:"dismissed"`
	TriggerContext  string      `json:"triggerContext,omitempty"`
}

// DedupKey identifies insights that say the same thing about the same
// memories.
func (i *MemoryInsight) DedupKey() string {
	ids := append([]string(nil), i.RelatedMemories...)
	sort.Strings(ids)
	return string(i.Type) + "|" + strings.Join(ids, ",")
}

// Clone returns a copy of the insight.
func (i *MemoryInsight) Clone() *MemoryInsight {
	cp := *i
	cp.RelatedMemories = append([]string{}, i.RelatedMemories...)
	if i.RelatedPatterns != nil {
		cp.RelatedPatterns = append([]string{}, i.RelatedPatterns...)
	}
	return &cp
}
