package entities

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// ItemKind tells thoughts and memories apart when both flow through
// connection discovery.
type ItemKind string

const (
	ItemKindThought ItemKind = "thought"
	ItemKindMemory  ItemKind = "memory"
)

// Item is the common view of a thought or memory seen by connection
// discovery. ID and Timestamp are fixed at creation.
type Item struct {
	ID        string    `json:"id" validate:"required"`
	Content   string    `json:"content" validate:"required"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []string  `json:"tags,omitempty"`
	Kind      ItemKind  `json:"kind" validate:"omitempty,oneof=thought memory"`
}

// NormalizeTags lowercases, trims and dedupes tags keeping first-seen order.
func NormalizeTags(tags []string) []string {
	cleaned := lo.FilterMap(tags, func(t string, _ int) (string, bool) {
		t = strings.ToLower(strings.TrimSpace(t))
		return t, t != ""
	})
	return lo.Uniq(cleaned)
}

// Preview returns at most n runes of content.
func Preview(content string, n int) string {
	r := []rune(content)
	if len(r) <= n {
		return content
	}
	return string(r[:n])
}
