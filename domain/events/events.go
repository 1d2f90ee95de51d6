package events

import (
	"time"
)

// DomainEvent is the base interface for all domain events
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

const (
	TypeConnectionsDiscovered = "connections.discovered"
	TypeClustersDetected      = "clusters.detected"
	TypePatternsDetected      = "patterns.detected"
	TypeInsightsGenerated     = "insights.generated"
	TypeMemoryAdded           = "memory.added"
)

// ConnectionsDiscovered is raised after a discovery run that created edges.
type ConnectionsDiscovered struct {
	BaseEvent
	ItemIDs       []string       `json:"item_ids"`
	ConnectionIDs []string       `json:"connection_ids"`
	ByType        map[string]int `json:"by_type"`
	Duration      time.Duration  `json:"duration"`
}

// NewConnectionsDiscovered creates a ConnectionsDiscovered event
func NewConnectionsDiscovered(runID string, itemIDs, connectionIDs []string, byType map[string]int, d time.Duration, ts time.Time) ConnectionsDiscovered {
	return ConnectionsDiscovered{
		BaseEvent: BaseEvent{
			AggregateID: runID,
			EventType:   TypeConnectionsDiscovered,
			Timestamp:   ts,
			Version:     1,
		},
		ItemIDs:       itemIDs,
		ConnectionIDs: connectionIDs,
		ByType:        byType,
		Duration:      d,
	}
}

// ClustersDetected is raised after a clustering pass.
type ClustersDetected struct {
	BaseEvent
	ClusterIDs []string `json:"cluster_ids"`
}

// NewClustersDetected creates a ClustersDetected event
func NewClustersDetected(runID string, clusterIDs []string, ts time.Time) ClustersDetected {
	return ClustersDetected{
		BaseEvent: BaseEvent{
			AggregateID: runID,
			EventType:   TypeClustersDetected,
			Timestamp:   ts,
			Version:     1,
		},
		ClusterIDs: clusterIDs,
	}
}

// PatternsDetected is raised after a pattern detection run.
type PatternsDetected struct {
	BaseEvent
	PatternIDs []string `json:"pattern_ids"`
	Memories   int      `json:"memories"`
}

// NewPatternsDetected creates a PatternsDetected event
func NewPatternsDetected(runID string, patternIDs []string, memories int, ts time.Time) PatternsDetected {
	return PatternsDetected{
		BaseEvent: BaseEvent{
			AggregateID: runID,
			EventType:   TypePatternsDetected,
			Timestamp:   ts,
			Version:     1,
		},
		PatternIDs: patternIDs,
		Memories:   memories,
	}
}

// InsightsGenerated is raised when new insights were appended.
type InsightsGenerated struct {
	BaseEvent
	InsightIDs []string `json:"insight_ids"`
}

// NewInsightsGenerated creates an InsightsGenerated event
func NewInsightsGenerated(runID string, insightIDs []string, ts time.Time) InsightsGenerated {
	return InsightsGenerated{
		BaseEvent: BaseEvent{
			AggregateID: runID,
			EventType:   TypeInsightsGenerated,
			Timestamp:   ts,
			Version:     1,
		},
		InsightIDs: insightIDs,
	}
}

// MemoryAdded is raised when a memory is stored.
type MemoryAdded struct {
	BaseEvent
	ThoughtID string   `json:"thought_id,omitempty"`
	Tags      []string `json:"tags"`
}

// NewMemoryAdded creates a MemoryAdded event
func NewMemoryAdded(memoryID, thoughtID string, tags []string, ts time.Time) MemoryAdded {
	return MemoryAdded{
		BaseEvent: BaseEvent{
			AggregateID: memoryID,
			EventType:   TypeMemoryAdded,
			Timestamp:   ts,
			Version:     1,
		},
		ThoughtID: thoughtID,
		Tags:      tags,
	}
}
