package entities

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PatternType names the detector that produced a pattern.
type PatternType string

const (
	PatternSemantic  PatternType = "semantic"
	PatternTemporal  PatternType = "temporal"
	PatternThematic  PatternType = "thematic"
	PatternRecurring PatternType = "recurring"
)

// patternNamespace seeds the name-based UUIDs used as pattern fingerprints.
var patternNamespace = uuid.MustParse("8f1c6f3e-4b7a-5d2e-9a61-0c3b7e5f2d14")

// MemoryPattern groups memories that share meaning, time, tags or phrasing.
type MemoryPattern struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	MemoryIDs   []string    `json:"memoryIds"`
	Confidence  float64     `json:"confidence"`
	Type        PatternType `json:"type"`
	DetectedAt  time.Time   `json:"detectedAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	Occurrences int         `json:"occurrences"`
	Themes      []string    `json:"themes"`
}

// PatternFingerprint derives a stable ID from the type, the member set and
// any qualifiers (such as the tag of a thematic pattern), so a re-detected
// pattern keeps its identity across runs.
func PatternFingerprint(t PatternType, memoryIDs []string, qualifiers ...string) string {
	ids := append([]string(nil), memoryIDs...)
	sort.Strings(ids)
	key := string(t) + ":" + strings.Join(ids, ",")
	if len(qualifiers) > 0 {
		key += "|" + strings.Join(qualifiers, ",")
	}
	return uuid.NewSHA1(patternNamespace, []byte(key)).String()
}
