package services

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"thoughtweb/application/ports"
	"thoughtweb/domain/config"
	"thoughtweb/domain/core/aggregates"
	"thoughtweb/domain/core/entities"
	"thoughtweb/domain/events"
	domainservices "thoughtweb/domain/services"
	pkgerrors "thoughtweb/pkg/errors"
	"thoughtweb/pkg/utils"
)

// ConnectionService owns the connection graph. Every mutation of the graph
// goes through it.
type ConnectionService struct {
	mu       sync.RWMutex
	graph    *aggregates.ConnectionGraph
	detector *domainservices.ConnectionDetector

	discovering atomic.Bool

	bgMu     sync.Mutex
	bgCron   *cron.Cron
	bgCancel context.CancelFunc

	snapshots ports.SnapshotStore
	publisher ports.EventPublisher
	metrics   ports.Metrics
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewConnectionService creates a service with an empty graph. Zero-valued
// fields of cfg fall back to the defaults.
func NewConnectionService(
	cfg config.ConnectionConfig,
	snapshots ports.SnapshotStore,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *ConnectionService {
	if publisher == nil {
		publisher = ports.NoopPublisher{}
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &ConnectionService{
		graph:     aggregates.NewConnectionGraph(),
		detector:  domainservices.NewConnectionDetector(cfg),
		snapshots: snapshots,
		publisher: publisher,
		metrics:   metrics,
		logger:    loggerOrNop(logger),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Config returns the thresholds in use.
func (s *ConnectionService) Config() config.ConnectionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detector.Config()
}

// UpdateConfig swaps thresholds for subsequent runs.
func (s *ConnectionService) UpdateConfig(cfg config.ConnectionConfig) error {
	merged, err := config.MergeConnectionConfig(cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.detector = domainservices.NewConnectionDetector(merged)
	s.mu.Unlock()

	s.logger.Info("Connection config updated",
		zap.Float64("minSemanticSimilarity", merged.MinSemanticSimilarity),
		zap.Duration("maxTemporalDelta", merged.MaxTemporalDelta),
		zap.Int("batchSize", merged.BatchSize),
	)
	return nil
}

// IsDiscovering reports whether a discovery run is in flight.
func (s *ConnectionService) IsDiscovering() bool {
	return s.discovering.Load()
}

// DiscoverConnections compares every new item with the existing pool and
// inserts what the four detectors find. The pool grows with each processed
// new item so items of the same call connect to each other. A call made
// while another run is in flight returns an empty result without doing any
// work; check IsDiscovering to tell the two apart. Running the same input
// twice inserts the connections twice.
func (s *ConnectionService) DiscoverConnections(ctx context.Context, newItems, existingItems []entities.Item) ([]*entities.Connection, error) {
	created, _, err := s.discover(ctx, newItems, existingItems)
	return created, err
}

func (s *ConnectionService) discover(ctx context.Context, newItems, existingItems []entities.Item) (_ []*entities.Connection, ran bool, err error) {
	if !s.discovering.CompareAndSwap(false, true) {
		s.metrics.DiscoverySkipped()
		s.logger.Debug("Discovery already in progress, skipping", zap.Int("newItems", len(newItems)))
		return []*entities.Connection{}, false, nil
	}
	defer s.discovering.Store(false)

	ctx, span := startSpan(ctx, "ConnectionService.DiscoverConnections")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("items.new", len(newItems)), attribute.Int("items.existing", len(existingItems)))

	start := s.now()
	runID := s.newID()

	s.mu.RLock()
	detector := s.detector
	s.mu.RUnlock()
	cfg := detector.Config()

	pool, corpus := s.preparePool(newItems, existingItems)

	created := make([]*entities.Connection, 0)
	byType := make(map[string]int)

	for batchNo, batch := range lo.Chunk(newItems, cfg.BatchSize) {
		for _, item := range batch {
			if cerr := ctx.Err(); cerr != nil {
				err = pkgerrors.NewCanceledError("discover connections", cerr)
				break
			}

			candidates := make([]domainservices.ConnectionCandidate, 0)
			for _, target := range pool.items {
				if target.ID == item.ID {
					continue
				}
				candidates = append(candidates, detector.Detect(item, target, corpus)...)
			}
			candidates = domainservices.LimitFanOut(candidates, cfg.MaxConnectionsPerItem)

			for _, c := range s.insertCandidates(candidates) {
				created = append(created, c)
				byType[string(c.Type)]++
			}
			pool.add(item)
		}
		if err != nil {
			break
		}
		s.logger.Debug("Discovery batch processed",
			zap.String("runID", runID),
			zap.Int("batch", batchNo),
			zap.Int("batchSize", len(batch)),
			zap.Int("connectionsSoFar", len(created)),
		)
	}

	clusters := s.recomputeClusters(cfg)

	elapsed := s.now().Sub(start)
	s.metrics.DiscoveryRun(elapsed, len(newItems))
	for t, n := range byType {
		s.metrics.ConnectionsCreated(entities.ConnectionType(t), n)
	}
	s.metrics.ClustersDetected(len(clusters))

	span.SetAttributes(attribute.Int("connections.created", len(created)), attribute.Int("clusters", len(clusters)))
	s.logger.Info("Discovery finished",
		zap.String("runID", runID),
		zap.Int("newItems", len(newItems)),
		zap.Int("connections", len(created)),
		zap.Int("clusters", len(clusters)),
		zap.Duration("duration", elapsed),
	)

	s.publishDiscovery(ctx, runID, newItems, created, byType, clusters, elapsed)
	return created, true, err
}

type candidatePool struct {
	items []entities.Item
	seen  map[string]bool
}

func (p *candidatePool) add(item entities.Item) {
	if p.seen[item.ID] {
		return
	}
	p.seen[item.ID] = true
	p.items = append(p.items, item)
}

// preparePool registers every item as a graph node and builds the starting
// pool and the TF-IDF corpus.
func (s *ConnectionService) preparePool(newItems, existingItems []entities.Item) (*candidatePool, []string) {
	pool := &candidatePool{seen: make(map[string]bool)}
	for _, item := range existingItems {
		pool.add(item)
	}

	corpus := lo.Map(pool.items, func(it entities.Item, _ int) string { return it.Content })
	counted := lo.SliceToMap(pool.items, func(it entities.Item) (string, bool) { return it.ID, true })
	for _, item := range newItems {
		if !counted[item.ID] {
			counted[item.ID] = true
			corpus = append(corpus, item.Content)
		}
	}

	s.mu.Lock()
	for _, item := range existingItems {
		s.graph.AddNode(item)
	}
	for _, item := range newItems {
		s.graph.AddNode(item)
	}
	s.mu.Unlock()

	return pool, corpus
}

// insertCandidates turns candidates into connections. A candidate that the
// graph rejects is logged and skipped.
func (s *ConnectionService) insertCandidates(candidates []domainservices.ConnectionCandidate) []*entities.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	inserted := make([]*entities.Connection, 0, len(candidates))
	for _, cand := range candidates {
		conn := cand.ToConnection(s.newID(), now)
		if err := s.graph.AddConnection(conn); err != nil {
			s.logger.Warn("Skipping connection candidate",
				zap.String("sourceID", cand.SourceID),
				zap.String("targetID", cand.TargetID),
				zap.String("type", string(cand.Type)),
				zap.Error(err),
			)
			continue
		}
		inserted = append(inserted, conn.Clone())
	}
	return inserted
}

func (s *ConnectionService) recomputeClusters(cfg config.ConnectionConfig) []*entities.ConnectionCluster {
	s.mu.Lock()
	defer s.mu.Unlock()

	clusters := s.graph.DetectClusters(aggregates.ClusterOptions{
		MinWeight: cfg.ClusterMinWeight,
		MinSize:   cfg.ClusterMinSize,
	}, s.now())
	s.graph.UpdateClusteringCoefficients()
	return cloneClusters(clusters)
}

func (s *ConnectionService) publishDiscovery(
	ctx context.Context,
	runID string,
	newItems []entities.Item,
	created []*entities.Connection,
	byType map[string]int,
	clusters []*entities.ConnectionCluster,
	elapsed time.Duration,
) {
	now := s.now()
	evts := []events.DomainEvent{
		events.NewClustersDetected(runID, lo.Map(clusters, func(c *entities.ConnectionCluster, _ int) string { return c.ID }), now),
	}
	if len(created) > 0 {
		evts = append([]events.DomainEvent{events.NewConnectionsDiscovered(
			runID,
			lo.Map(newItems, func(it entities.Item, _ int) string { return it.ID }),
			lo.Map(created, func(c *entities.Connection, _ int) string { return c.ID }),
			byType,
			elapsed,
			now,
		)}, evts...)
	}

	// Publishing must not fail a run whose results are already in the graph.
	if err := s.publisher.Publish(context.WithoutCancel(ctx), evts...); err != nil {
		s.logger.Warn("Failed to publish discovery events", zap.String("runID", runID), zap.Error(err))
	}
}

// AddItems registers items as nodes without running discovery. Existing
// nodes get their content and tags refreshed. It returns how many nodes were
// new.
func (s *ConnectionService) AddItems(items ...entities.Item) (int, error) {
	for _, item := range items {
		if err := utils.ValidateStruct(item); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, item := range items {
		if s.graph.AddNode(item) {
			added++
		}
	}
	return added, nil
}

// RemoveItem drops a node and every connection touching it.
func (s *ConnectionService) RemoveItem(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.RemoveNode(id)
}

// AddConnection inserts a hand-made connection. Missing ids and discovery
// times are filled in.
func (s *ConnectionService) AddConnection(c *entities.Connection) (*entities.Connection, error) {
	if c == nil {
		return nil, pkgerrors.NewValidationError("connection is required")
	}
	conn := c.Clone()
	if conn.ID == "" {
		conn.ID = s.newID()
	}
	if conn.DiscoveredAt.IsZero() {
		conn.DiscoveredAt = s.now()
	}
	if conn.SharedThemes == nil {
		conn.SharedThemes = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.graph.AddConnection(conn); err != nil {
		return nil, err
	}
	s.metrics.ConnectionsCreated(conn.Type, 1)
	return conn.Clone(), nil
}

// GetConnection returns a connection by id.
func (s *ConnectionService) GetConnection(id string) (*entities.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.graph.Connection(id)
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Connections returns every connection grouped by source in node order.
func (s *ConnectionService) Connections() []*entities.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneConnections(s.graph.Connections())
}

// ConnectionsFor returns the connections leaving or entering id.
func (s *ConnectionService) ConnectionsFor(id string) []*entities.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneConnections(s.graph.ConnectionsFor(id))
}

// ConfirmConnection accepts a connection, clearing any dismissal.
func (s *ConnectionService) ConfirmConnection(id string) (*entities.Connection, bool) {
	return s.mutateConnection(id, (*entities.Connection).Confirm)
}

// DismissConnection rejects a connection, clearing any confirmation.
func (s *ConnectionService) DismissConnection(id string) (*entities.Connection, bool) {
	return s.mutateConnection(id, (*entities.Connection).Dismiss)
}

// RecordView counts a view of a connection.
func (s *ConnectionService) RecordView(id string) (*entities.Connection, bool) {
	return s.mutateConnection(id, (*entities.Connection).RecordView)
}

func (s *ConnectionService) mutateConnection(id string, apply func(*entities.Connection)) (*entities.Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.graph.Connection(id)
	if !ok {
		return nil, false
	}
	apply(c)
	return c.Clone(), true
}

// FindPath returns the shortest directed path from source to target within
// maxDepth hops.
func (s *ConnectionService) FindPath(source, target string, maxDepth int) (*entities.ConnectionPath, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.graph.FindPath(source, target, maxDepth)
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// DetectClusters recomputes clusters and clustering coefficients over the
// current graph.
func (s *ConnectionService) DetectClusters(ctx context.Context) []*entities.ConnectionCluster {
	_, span := startSpan(ctx, "ConnectionService.DetectClusters")
	defer span.End()

	clusters := s.recomputeClusters(s.Config())
	s.metrics.ClustersDetected(len(clusters))
	span.SetAttributes(attribute.Int("clusters", len(clusters)))
	return clusters
}

// Clusters returns the clusters of the last clustering pass.
func (s *ConnectionService) Clusters() []*entities.ConnectionCluster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneClusters(s.graph.Clusters())
}

// AnalyzeItem reports the direct and indirect neighbourhood of an item and
// the clusters it belongs to.
func (s *ConnectionService) AnalyzeItem(id string) (*entities.ConnectionAnalysis, error) {
	start := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.graph.HasNode(id) {
		return nil, pkgerrors.NewNotFoundError("item").WithDetails(map[string]any{"id": id})
	}

	indirect := lo.Map(s.graph.IndirectPaths(id, aggregates.MaxIndirectConnections),
		func(p *entities.ConnectionPath, _ int) *entities.ConnectionPath { return p.Clone() })

	return &entities.ConnectionAnalysis{
		ItemID:              id,
		DirectConnections:   cloneConnections(s.graph.Outgoing(id)),
		IndirectConnections: indirect,
		Clusters:            cloneClusters(s.graph.ClustersContaining(id)),
		AnalyzedAt:          s.now(),
		ProcessingTime:      time.Since(start),
	}, nil
}

// Graph returns a read-only copy of nodes, edges and clusters.
func (s *ConnectionService) Graph() aggregates.GraphSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Snapshot(s.now())
}

// Stats summarizes the graph.
func (s *ConnectionService) Stats() entities.ConnectionStats {
	s.mu.RLock()
	stats := s.graph.Stats()
	s.mu.RUnlock()

	stats.Discovering = s.IsDiscovering()
	return stats
}

// ExportConnections serializes the graph.
func (s *ConnectionService) ExportConnections() ([]byte, error) {
	data, err := json.Marshal(s.Graph())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to encode graph snapshot")
	}
	return data, nil
}

// ImportConnections replaces the graph with a snapshot. The current graph is
// kept when the snapshot is rejected.
func (s *ConnectionService) ImportConnections(data []byte) error {
	var snap aggregates.GraphSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return pkgerrors.NewValidationError("malformed graph snapshot").WithCause(err)
	}
	g, err := aggregates.FromSnapshot(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.graph = g
	s.mu.Unlock()

	s.logger.Info("Connection graph imported",
		zap.Int("nodes", g.NodeCount()),
		zap.Int("connections", g.ConnectionCount()),
	)
	return nil
}

// Save writes the graph through the snapshot store.
func (s *ConnectionService) Save(ctx context.Context) (err error) {
	ctx, span := startSpan(ctx, "ConnectionService.Save")
	defer func() { endSpan(span, err) }()

	if s.snapshots == nil {
		return pkgerrors.NewUnavailableError("snapshot store")
	}
	data, err := s.ExportConnections()
	if err != nil {
		return err
	}
	if err := s.snapshots.Save(ctx, ports.SnapshotKeyConnections, data); err != nil {
		return pkgerrors.Wrap(err, "failed to save connections")
	}
	return nil
}

// Load replaces the graph with the saved snapshot.
func (s *ConnectionService) Load(ctx context.Context) (err error) {
	ctx, span := startSpan(ctx, "ConnectionService.Load")
	defer func() { endSpan(span, err) }()

	if s.snapshots == nil {
		return pkgerrors.NewUnavailableError("snapshot store")
	}
	data, err := s.snapshots.Load(ctx, ports.SnapshotKeyConnections)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load connections")
	}
	return s.ImportConnections(data)
}

// StartBackgroundDiscovery periodically runs discovery for the pending items
// of source, waiting DiscoveryInterval between runs. Ticks that land on a
// running discovery leave the items pending for the next one.
func (s *ConnectionService) StartBackgroundDiscovery(ctx context.Context, source ports.ItemSource) error {
	if source == nil {
		return pkgerrors.NewValidationError("item source is required")
	}

	s.bgMu.Lock()
	defer s.bgMu.Unlock()

	if s.bgCron != nil {
		return pkgerrors.NewConflictError("background discovery already running")
	}

	interval := s.Config().DiscoveryInterval
	jobCtx, cancel := context.WithCancel(ctx)

	c := cron.New(cron.WithLogger(cronLogger{s.logger.Named("discovery_cron")}))
	c.Schedule(cron.Every(interval), cron.FuncJob(func() {
		s.runBackgroundDiscovery(jobCtx, source)
	}))
	c.Start()

	s.bgCron = c
	s.bgCancel = cancel
	s.logger.Info("Background discovery started", zap.Duration("interval", interval))
	return nil
}

// StopBackgroundDiscovery stops the schedule and waits for a running tick.
// Calling it when nothing runs is a no-op.
func (s *ConnectionService) StopBackgroundDiscovery() {
	s.bgMu.Lock()
	c, cancel := s.bgCron, s.bgCancel
	s.bgCron, s.bgCancel = nil, nil
	s.bgMu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.logger.Info("Background discovery stopped")
}

func (s *ConnectionService) runBackgroundDiscovery(ctx context.Context, source ports.ItemSource) {
	if _, _, err := s.DiscoverPending(ctx, source); err != nil {
		s.logger.Warn("Background discovery ended early", zap.Error(err))
	}
}

// DiscoverPending runs discovery for the pending items of source against
// the rest of its pool and clears their pending flag. ran is false when
// another run was in flight or nothing was pending; the items then stay
// pending.
func (s *ConnectionService) DiscoverPending(ctx context.Context, source ports.ItemSource) (_ []*entities.Connection, ran bool, err error) {
	pending, err := source.PendingItems(ctx)
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "failed to read pending items")
	}
	if len(pending) == 0 {
		return []*entities.Connection{}, false, nil
	}

	all, err := source.Items(ctx)
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "failed to read item pool")
	}
	pendingIDs := lo.Map(pending, func(it entities.Item, _ int) string { return it.ID })
	existing := lo.Filter(all, func(it entities.Item, _ int) bool { return !lo.Contains(pendingIDs, it.ID) })

	conns, ran, err := s.discover(ctx, pending, existing)
	if err != nil || !ran {
		return conns, ran, err
	}
	if err := source.MarkDiscovered(ctx, pendingIDs); err != nil {
		return conns, true, pkgerrors.Wrap(err, "failed to mark items discovered")
	}
	return conns, true, nil
}

// cronLogger routes cron's own logging into zap.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

func cloneConnections(in []*entities.Connection) []*entities.Connection {
	return lo.Map(in, func(c *entities.Connection, _ int) *entities.Connection { return c.Clone() })
}

func cloneClusters(in []*entities.ConnectionCluster) []*entities.ConnectionCluster {
	return lo.Map(in, func(c *entities.ConnectionCluster, _ int) *entities.ConnectionCluster { return c.Clone() })
}
