package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"thoughtweb/application/ports"
	"thoughtweb/domain/core/entities"
	"thoughtweb/domain/events"
	domainservices "thoughtweb/domain/services"
	pkgerrors "thoughtweb/pkg/errors"
	"thoughtweb/pkg/utils"
)

// ThoughtInput is a captured thought as it arrives from a client.
type ThoughtInput struct {
	ID          string     `json:"id,omitempty"`
	Content     string     `json:"content" validate:"required"`
	Tags        []string   `json:"tags,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	WonderScore float64    `json:"wonderScore,omitempty" validate:"gte=0,lte=1"`
}

// ThoughtResult reports what processing a batch of thoughts produced.
type ThoughtResult struct {
	Items       []entities.Item           `json:"items"`
	Memories    []*entities.Memory        `json:"memories"`
	Connections []*entities.Connection    `json:"connections"`
	Patterns    []*entities.MemoryPattern `json:"patterns"`
	// Deferred is set when connection discovery was left to the background
	// schedule or skipped because another run was in flight.
	Deferred bool `json:"deferred"`
}

// ThoughtProcessor turns captured thoughts into items, memories,
// connections and patterns.
type ThoughtProcessor struct {
	pool        *ItemPool
	memories    *MemoryStore
	connections *ConnectionService
	patterns    *domainservices.PatternEngine

	publisher ports.EventPublisher
	metrics   ports.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewThoughtProcessor wires the processor to its collaborators.
func NewThoughtProcessor(
	pool *ItemPool,
	memories *MemoryStore,
	connections *ConnectionService,
	patterns *domainservices.PatternEngine,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *ThoughtProcessor {
	if publisher == nil {
		publisher = ports.NoopPublisher{}
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &ThoughtProcessor{
		pool:        pool,
		memories:    memories,
		connections: connections,
		patterns:    patterns,
		publisher:   publisher,
		metrics:     metrics,
		logger:      loggerOrNop(logger),
		now:         time.Now,
	}
}

// ProcessThought handles a single thought.
func (p *ThoughtProcessor) ProcessThought(ctx context.Context, in ThoughtInput) (*ThoughtResult, error) {
	return p.ProcessThoughts(ctx, []ThoughtInput{in})
}

// ProcessThoughts stores each thought as a memory while connection
// discovery runs for the batch, then re-runs pattern detection over every
// memory and links pattern members. With background discovery enabled the
// items are only queued.
func (p *ThoughtProcessor) ProcessThoughts(ctx context.Context, inputs []ThoughtInput) (_ *ThoughtResult, err error) {
	ctx, span := startSpan(ctx, "ThoughtProcessor.ProcessThoughts")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("thoughts", len(inputs)))

	if len(inputs) == 0 {
		return nil, pkgerrors.NewValidationError("at least one thought is required")
	}

	items := make([]entities.Item, 0, len(inputs))
	for _, in := range inputs {
		if err := utils.ValidateStruct(in); err != nil {
			return nil, err
		}
		if strings.TrimSpace(in.Content) == "" {
			return nil, pkgerrors.NewValidationError("content is required")
		}
		items = append(items, p.toItem(in))
	}

	existing, err := p.pool.Items(ctx)
	if err != nil {
		return nil, err
	}

	result := &ThoughtResult{Items: items}
	background := p.connections.Config().EnableBackgroundDiscovery

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		memories := make([]*entities.Memory, 0, len(inputs))
		for i, in := range inputs {
			created := items[i].Timestamp
			m, err := p.memories.AddMemory(gctx, in.Content, items[i].ID, entities.MemoryMetadata{
				WonderScore: in.WonderScore,
				Tags:        items[i].Tags,
				CreatedAt:   &created,
			})
			if err != nil {
				return err
			}
			memories = append(memories, m)
		}
		result.Memories = memories
		return nil
	})
	if !background {
		g.Go(func() error {
			conns, ran, err := p.connections.discover(gctx, items, existing)
			if err != nil {
				return err
			}
			result.Connections = conns
			result.Deferred = !ran
			return nil
		})
	} else {
		result.Connections = []*entities.Connection{}
		result.Deferred = true
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Items join the pool only once their memories exist.
	for _, item := range items {
		p.pool.Add(item, result.Deferred)
	}
	if !result.Deferred {
		if err := p.pool.MarkDiscovered(ctx, lo.Map(items, func(it entities.Item, _ int) string { return it.ID })); err != nil {
			return nil, err
		}
	}

	patterns, err := p.DetectPatterns(ctx)
	if err != nil {
		return nil, err
	}
	result.Patterns = patterns

	p.logger.Info("Thoughts processed",
		zap.Int("thoughts", len(items)),
		zap.Int("connections", len(result.Connections)),
		zap.Int("patterns", len(patterns)),
		zap.Bool("deferred", result.Deferred),
	)
	return result, nil
}

// DetectPatterns runs pattern detection over every memory and records the
// co-membership links.
func (p *ThoughtProcessor) DetectPatterns(ctx context.Context) (_ []*entities.MemoryPattern, err error) {
	ctx, span := startSpan(ctx, "ThoughtProcessor.DetectPatterns")
	defer func() { endSpan(span, err) }()

	start := time.Now()
	memories := p.memories.All()
	patterns, err := p.patterns.DetectPatterns(ctx, memories)
	if err != nil {
		return nil, err
	}
	linked := p.memories.LinkPatterns(patterns)
	p.metrics.PatternRun(time.Since(start), len(patterns))

	span.SetAttributes(attribute.Int("patterns", len(patterns)), attribute.Int("links", linked))
	p.logger.Debug("Patterns detected",
		zap.Int("memories", len(memories)),
		zap.Int("patterns", len(patterns)),
		zap.Int("newLinks", linked),
	)

	ids := lo.Map(patterns, func(pt *entities.MemoryPattern, _ int) string { return pt.ID })
	if perr := p.publisher.Publish(ctx, events.NewPatternsDetected(uuid.NewString(), ids, len(memories), p.now())); perr != nil {
		p.logger.Warn("Failed to publish pattern event", zap.Error(perr))
	}
	return patterns, nil
}

// RestoreItems rebuilds the item pool from stored memories after a snapshot
// load. Restored items are not pending. It returns how many were added.
func (p *ThoughtProcessor) RestoreItems() int {
	added := 0
	for _, m := range p.memories.All() {
		item := m.AsItem()
		if m.ThoughtID != "" {
			item.ID = m.ThoughtID
			item.Kind = entities.ItemKindThought
		}
		if p.pool.Add(item, false) {
			added++
		}
	}
	return added
}

// Items returns the item pool in insertion order.
func (p *ThoughtProcessor) Items(ctx context.Context) ([]entities.Item, error) {
	return p.pool.Items(ctx)
}

func (p *ThoughtProcessor) toItem(in ThoughtInput) entities.Item {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := p.now()
	if in.Timestamp != nil {
		ts = *in.Timestamp
	}
	return entities.Item{
		ID:        id,
		Content:   in.Content,
		Timestamp: ts,
		Tags:      entities.NormalizeTags(in.Tags),
		Kind:      entities.ItemKindThought,
	}
}
