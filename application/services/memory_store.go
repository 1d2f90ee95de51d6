package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"thoughtweb/application/ports"
	"thoughtweb/domain/config"
	"thoughtweb/domain/core/entities"
	"thoughtweb/domain/embedding"
	"thoughtweb/domain/events"
	"thoughtweb/domain/similarity"
	"thoughtweb/pkg/cache"
	pkgerrors "thoughtweb/pkg/errors"
	"thoughtweb/pkg/utils"
)

const (
	memoryKeywordTags  = 5
	memorySnapshotV1   = 1
	statsTopTags       = 10
	strongMatchFloor   = 0.7
	moderateMatchFloor = 0.5
)

// MemorySnapshot is the export format of the memory store.
type MemorySnapshot struct {
	Version    int                `json:"version"`
	Dimensions int                `json:"dimensions"`
	ExportedAt time.Time          `json:"exportedAt"`
	Memories   []*entities.Memory `json:"memories"`
}

// MemoryStore keeps memories in an authoritative map with an LRU front
// cache. Reads through GetMemory count as accesses; search and listing do
// not.
type MemoryStore struct {
	mu       sync.RWMutex
	config   config.MemoryConfig
	memories map[string]*entities.Memory
	order    []string
	cache    *cache.LRU[string, *entities.Memory]

	embedder  embedding.Embedder
	snapshots ports.SnapshotStore
	publisher ports.EventPublisher
	metrics   ports.Metrics
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewMemoryStore creates a store. Unset fields of cfg take the defaults. A
// nil embedder uses the hash generator sized by cfg; nil collaborators are
// replaced by no-ops.
func NewMemoryStore(
	cfg config.MemoryConfig,
	embedder embedding.Embedder,
	snapshots ports.SnapshotStore,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *MemoryStore {
	logger = loggerOrNop(logger)
	merged, err := config.MergeMemoryConfig(cfg)
	if err != nil {
		logger.Warn("Invalid memory configuration, using defaults", zap.Error(err))
		merged = config.DefaultMemoryConfig()
	}
	cfg = merged

	if embedder == nil {
		embedder = embedding.NewGenerator(cfg.EmbeddingDimensions)
	}
	if publisher == nil {
		publisher = ports.NoopPublisher{}
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}

	return &MemoryStore{
		config:    cfg,
		memories:  make(map[string]*entities.Memory),
		cache:     cache.NewLRU[string, *entities.Memory](cfg.CacheSize, logger.Named("memory_cache")),
		embedder:  embedder,
		snapshots: snapshots,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// AddMemory embeds content and stores it as a new memory.
func (s *MemoryStore) AddMemory(ctx context.Context, content, thoughtID string, meta entities.MemoryMetadata) (_ *entities.Memory, err error) {
	ctx, span := startSpan(ctx, "MemoryStore.AddMemory")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(content) == "" {
		return nil, pkgerrors.NewValidationError("memory content is required")
	}
	if err := utils.ValidateStruct(meta); err != nil {
		return nil, err
	}

	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, pkgerrors.Wrap(contextError("embed memory", err), "failed to embed memory")
	}
	if len(vec) != s.config.EmbeddingDimensions {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf(
			"embedder returned %d dimensions, store expects %d", len(vec), s.config.EmbeddingDimensions))
	}

	createdAt := s.now()
	if meta.CreatedAt != nil {
		createdAt = *meta.CreatedAt
	}
	tags := entities.NormalizeTags(append(append([]string{}, meta.Tags...),
		similarity.ExtractKeywords(content, memoryKeywordTags)...))

	m := &entities.Memory{
		ID:              s.newID(),
		Content:         content,
		ThoughtID:       thoughtID,
		Embedding:       vec,
		CreatedAt:       createdAt,
		LastAccessedAt:  createdAt,
		Confidence:      entities.InitialConfidence(meta.WonderScore, similarity.WordCount(content)),
		RelatedMemories: []string{},
		Tags:            tags,
	}

	s.mu.Lock()
	s.memories[m.ID] = m
	s.order = append(s.order, m.ID)
	s.cache.Put(m.ID, m)
	out := m.Clone()
	s.mu.Unlock()

	span.SetAttributes(attribute.String("memory.id", m.ID), attribute.Int("memory.tags", len(tags)))
	s.metrics.MemoryAdded()
	s.logger.Debug("Memory added",
		zap.String("memoryID", m.ID),
		zap.String("thoughtID", thoughtID),
		zap.Float64("confidence", m.Confidence),
		zap.Strings("tags", tags),
	)

	if perr := s.publisher.Publish(ctx, events.NewMemoryAdded(m.ID, thoughtID, tags, createdAt)); perr != nil {
		s.logger.Warn("Failed to publish memory event", zap.String("memoryID", m.ID), zap.Error(perr))
	}
	return out, nil
}

// GetMemory returns a memory and records the access. Missing ids return
// (nil, false).
func (s *MemoryStore) GetMemory(id string) (*entities.Memory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, hit := s.cache.Get(id)
	s.metrics.MemoryCacheAccess(hit)
	if !hit {
		var ok bool
		m, ok = s.memories[id]
		if !ok {
			return nil, false
		}
		s.cache.Put(id, m)
	}

	m.Touch(s.now())
	return m.Clone(), true
}

// Contains reports whether id is stored without counting an access.
func (s *MemoryStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.memories[id]
	return ok
}

// SearchMemories ranks stored memories by embedding similarity to the query
// text after applying the query filters.
func (s *MemoryStore) SearchMemories(ctx context.Context, q entities.MemoryQuery) (_ []entities.MemorySearchResult, err error) {
	ctx, span := startSpan(ctx, "MemoryStore.SearchMemories")
	defer func() { endSpan(span, err) }()

	if err := utils.ValidateStruct(q); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = s.config.SearchLimit
	}

	qvec, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, pkgerrors.Wrap(contextError("embed query", err), "failed to embed query")
	}
	queryTags := entities.NormalizeTags(q.Tags)

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]entities.MemorySearchResult, 0)
	for _, id := range s.order {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.NewCanceledError("search memories", err)
		}
		m := s.memories[id]
		if !matchesQuery(m, q, queryTags) {
			continue
		}

		sim, err := similarity.CosineSimilarity(qvec, m.Embedding)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "memory %s", m.ID)
		}
		if sim < s.config.SearchFloor {
			continue
		}
		results = append(results, entities.MemorySearchResult{
			Memory:      m.Clone(),
			Similarity:  sim,
			MatchReason: matchReason(queryTags, m.Tags, sim),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	results = lo.Slice(results, 0, limit)

	span.SetAttributes(attribute.Int("search.results", len(results)))
	return results, nil
}

func matchesQuery(m *entities.Memory, q entities.MemoryQuery, queryTags []string) bool {
	if m.Confidence < q.MinConfidence {
		return false
	}
	if len(queryTags) > 0 && len(lo.Intersect(queryTags, m.Tags)) == 0 {
		return false
	}
	if q.CreatedAfter != nil && m.CreatedAt.Before(*q.CreatedAfter) {
		return false
	}
	if q.CreatedBefore != nil && m.CreatedAt.After(*q.CreatedBefore) {
		return false
	}
	return true
}

func matchReason(queryTags, memoryTags []string, sim float64) string {
	shared := lo.Filter(queryTags, func(t string, _ int) bool { return lo.Contains(memoryTags, t) })
	switch {
	case len(shared) > 0:
		return "Shared tags: " + strings.Join(shared, ", ")
	case sim > strongMatchFloor:
		return "Strong semantic similarity"
	case sim > moderateMatchFloor:
		return "Moderate semantic similarity"
	default:
		return "Weak semantic similarity"
	}
}

// GetRelatedMemories returns the linked memories of id, or the most similar
// ones when nothing is linked yet. The bool is false when id is unknown.
func (s *MemoryStore) GetRelatedMemories(id string, limit int) ([]*entities.Memory, bool) {
	if limit <= 0 {
		limit = s.config.RelatedLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memories[id]
	if !ok {
		return nil, false
	}

	if len(m.RelatedMemories) > 0 {
		related := lo.FilterMap(m.RelatedMemories, func(rid string, _ int) (*entities.Memory, bool) {
			r, ok := s.memories[rid]
			if !ok {
				return nil, false
			}
			return r.Clone(), true
		})
		return lo.Slice(related, 0, limit), true
	}

	candidates := make([]embedding.Candidate, 0, len(s.order))
	for _, oid := range s.order {
		if oid == id {
			continue
		}
		candidates = append(candidates, embedding.Candidate{ID: oid, Vector: s.memories[oid].Embedding})
	}
	matches, err := embedding.FindSimilar(m.Embedding, candidates, limit, s.config.RelatedFloor)
	if err != nil {
		s.logger.Error("Related memory lookup failed", zap.String("memoryID", id), zap.Error(err))
		return []*entities.Memory{}, true
	}
	return lo.Map(matches, func(match embedding.Match, _ int) *entities.Memory {
		return s.memories[match.ID].Clone()
	}), true
}

// LinkPatterns records pattern co-membership in RelatedMemories. Existing
// links are kept and new ones appended in pattern order.
func (s *MemoryStore) LinkPatterns(patterns []*entities.MemoryPattern) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	linked := 0
	for _, p := range patterns {
		for _, id := range p.MemoryIDs {
			m, ok := s.memories[id]
			if !ok {
				continue
			}
			for _, other := range p.MemoryIDs {
				if other == id || lo.Contains(m.RelatedMemories, other) {
					continue
				}
				if _, exists := s.memories[other]; !exists {
					continue
				}
				m.RelatedMemories = append(m.RelatedMemories, other)
				linked++
			}
		}
	}
	return linked
}

// DeleteMemory removes a memory. Other memories keep any link to it.
func (s *MemoryStore) DeleteMemory(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memories[id]; !ok {
		return false
	}
	delete(s.memories, id)
	s.order = lo.Without(s.order, id)
	s.cache.Remove(id)
	return true
}

// Clear drops every memory.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.memories = make(map[string]*entities.Memory)
	s.order = nil
	s.cache.Purge()
}

// All returns copies of every memory in creation order.
func (s *MemoryStore) All() []*entities.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Map(s.order, func(id string, _ int) *entities.Memory {
		return s.memories[id].Clone()
	})
}

// Count returns the number of stored memories.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.memories)
}

// GetStats summarizes the store and its cache.
func (s *MemoryStore) GetStats() entities.MemoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs := s.cache.Stats()
	stats := entities.MemoryStats{
		TotalMemories:  len(s.memories),
		CachedMemories: cs.Items,
		CacheCapacity:  cs.Capacity,
		CacheHitRate:   cs.HitRate,
		TopTags:        []entities.TagCount{},
	}
	if len(s.memories) == 0 {
		return stats
	}

	tagCounts := make(map[string]int)
	var tagOrder []string
	var confidence float64
	oldest, newest := s.memories[s.order[0]].CreatedAt, s.memories[s.order[0]].CreatedAt

	for _, id := range s.order {
		m := s.memories[id]
		confidence += m.Confidence
		stats.TotalAccesses += m.AccessCount
		if m.CreatedAt.Before(oldest) {
			oldest = m.CreatedAt
		}
		if m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
		for _, t := range m.Tags {
			if tagCounts[t] == 0 {
				tagOrder = append(tagOrder, t)
			}
			tagCounts[t]++
		}
	}

	stats.AverageConfidence = confidence / float64(len(s.memories))
	stats.OldestMemory = &oldest
	stats.NewestMemory = &newest

	top := lo.Map(tagOrder, func(t string, _ int) entities.TagCount {
		return entities.TagCount{Tag: t, Count: tagCounts[t]}
	})
	sort.SliceStable(top, func(i, j int) bool { return top[i].Count > top[j].Count })
	stats.TopTags = lo.Slice(top, 0, statsTopTags)
	return stats
}

// ExportMemories serializes every memory in creation order.
func (s *MemoryStore) ExportMemories() ([]byte, error) {
	snap := MemorySnapshot{
		Version:    memorySnapshotV1,
		Dimensions: s.config.EmbeddingDimensions,
		ExportedAt: s.now(),
		Memories:   s.All(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to encode memory snapshot")
	}
	return data, nil
}

// ImportMemories replaces the whole store with a snapshot. The store is left
// untouched when the snapshot is rejected.
func (s *MemoryStore) ImportMemories(data []byte) error {
	var snap MemorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return pkgerrors.NewValidationError("malformed memory snapshot").WithCause(err)
	}

	memories := make(map[string]*entities.Memory, len(snap.Memories))
	order := make([]string, 0, len(snap.Memories))
	for i, m := range snap.Memories {
		if m == nil || m.ID == "" {
			return pkgerrors.NewValidationError(fmt.Sprintf("memory %d has no id", i))
		}
		if _, dup := memories[m.ID]; dup {
			return pkgerrors.NewValidationError("duplicate memory id " + m.ID)
		}
		if len(m.Embedding) != s.config.EmbeddingDimensions {
			return pkgerrors.NewValidationError(fmt.Sprintf(
				"memory %s has %d dimensions, expected %d", m.ID, len(m.Embedding), s.config.EmbeddingDimensions)).
				WithCode("DIMENSION_MISMATCH")
		}
		if m.RelatedMemories == nil {
			m.RelatedMemories = []string{}
		}
		memories[m.ID] = m
		order = append(order, m.ID)
	}

	s.mu.Lock()
	s.memories = memories
	s.order = order
	s.cache.Purge()
	s.mu.Unlock()

	s.logger.Info("Memories imported", zap.Int("count", len(order)))
	return nil
}

// Save writes the export through the snapshot store.
func (s *MemoryStore) Save(ctx context.Context) (err error) {
	ctx, span := startSpan(ctx, "MemoryStore.Save", trace.WithAttributes(attribute.String("snapshot.key", ports.SnapshotKeyMemories)))
	defer func() { endSpan(span, err) }()

	if s.snapshots == nil {
		return pkgerrors.NewUnavailableError("snapshot store")
	}
	data, err := s.ExportMemories()
	if err != nil {
		return err
	}
	if err := s.snapshots.Save(ctx, ports.SnapshotKeyMemories, data); err != nil {
		return pkgerrors.Wrap(err, "failed to save memories")
	}
	s.logger.Info("Memories saved", zap.Int("bytes", len(data)))
	return nil
}

// Load replaces the store with the saved snapshot.
func (s *MemoryStore) Load(ctx context.Context) (err error) {
	ctx, span := startSpan(ctx, "MemoryStore.Load", trace.WithAttributes(attribute.String("snapshot.key", ports.SnapshotKeyMemories)))
	defer func() { endSpan(span, err) }()

	if s.snapshots == nil {
		return pkgerrors.NewUnavailableError("snapshot store")
	}
	data, err := s.snapshots.Load(ctx, ports.SnapshotKeyMemories)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to load memories")
	}
	return s.ImportMemories(data)
}
