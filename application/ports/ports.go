package ports

import (
	"context"
	"time"

	"thoughtweb/domain/core/entities"
	"thoughtweb/domain/events"
)

// Snapshot keys used by the services.
const (
	SnapshotKeyMemories    = "memories"
	SnapshotKeyConnections = "connections"
)

// SnapshotStore persists opaque JSON snapshots by key. The services decide
// what goes in a snapshot; the store decides where it lives.
type SnapshotStore interface {
	// Save writes data under key, replacing any previous snapshot
	Save(ctx context.Context, key string, data []byte) error

	// Load returns the snapshot under key or a not-found AppError
	Load(ctx context.Context, key string) ([]byte, error)
}

// EventPublisher delivers domain events to interested parties.
type EventPublisher interface {
	Publish(ctx context.Context, evts ...events.DomainEvent) error
}

// ItemSource supplies the current item pool to background discovery.
type ItemSource interface {
	// PendingItems returns items added since the last background run
	PendingItems(ctx context.Context) ([]entities.Item, error)

	// Items returns every known item in insertion order
	Items(ctx context.Context) ([]entities.Item, error)

	// MarkDiscovered clears the pending flag of the given items
	MarkDiscovered(ctx context.Context, ids []string) error
}

// Metrics records the service-level measurements the application cares
// about. Implementations must be safe for concurrent use.
type Metrics interface {
	DiscoveryRun(d time.Duration, itemCount int)
	DiscoverySkipped()
	ConnectionsCreated(t entities.ConnectionType, n int)
	ClustersDetected(n int)
	PatternRun(d time.Duration, patterns int)
	MemoryAdded()
	MemoryCacheAccess(hit bool)
	InsightsGenerated(t entities.InsightType, n int)
}

// NoopMetrics discards every measurement.
type NoopMetrics struct{}

func (NoopMetrics) DiscoveryRun(time.Duration, int)                 {}
func (NoopMetrics) DiscoverySkipped()                               {}
func (NoopMetrics) ConnectionsCreated(entities.ConnectionType, int) {}
func (NoopMetrics) ClustersDetected(int)                            {}
func (NoopMetrics) PatternRun(time.Duration, int)                   {}
func (NoopMetrics) MemoryAdded()                                    {}
func (NoopMetrics) MemoryCacheAccess(bool)                          {}
func (NoopMetrics) InsightsGenerated(entities.InsightType, int)     {}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, ...events.DomainEvent) error { return nil }
