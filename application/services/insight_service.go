package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"thoughtweb/application/ports"
	"thoughtweb/domain/config"
	"thoughtweb/domain/core/entities"
	"thoughtweb/domain/events"
	domainservices "thoughtweb/domain/services"
	pkgerrors "thoughtweb/pkg/errors"
)

// MemoryReader is the part of the memory store insights read from.
type MemoryReader interface {
	SearchMemories(ctx context.Context, q entities.MemoryQuery) ([]entities.MemorySearchResult, error)
	All() []*entities.Memory
}

// PatternReader exposes the patterns of the last detection run.
type PatternReader interface {
	Patterns() []*entities.MemoryPattern
}

// ClusterReader exposes the clusters of the last clustering pass.
type ClusterReader interface {
	Clusters() []*entities.ConnectionCluster
}

// InsightRequest scopes one insight generation. A missing window ends now
// and spans InsightConfig.DefaultWindow.
type InsightRequest struct {
	ContextText string     `json:"contextText,omitempty"`
	WindowStart *time.Time `json:"windowStart,omitempty"`
	WindowEnd   *time.Time `json:"windowEnd,omitempty"`
}

// InsightService generates insights and keeps every one of them. Insights
// are never removed; dismissed ones are filtered on read.
type InsightService struct {
	mu       sync.RWMutex
	rules    *domainservices.InsightRules
	insights []*entities.MemoryInsight

	memories MemoryReader
	patterns PatternReader
	clusters ClusterReader

	publisher ports.EventPublisher
	metrics   ports.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewInsightService creates the service. clusters may be nil, which turns
// off suggestion insights.
func NewInsightService(
	cfg config.InsightConfig,
	memories MemoryReader,
	patterns PatternReader,
	clusters ClusterReader,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *InsightService {
	if publisher == nil {
		publisher = ports.NoopPublisher{}
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &InsightService{
		rules:     domainservices.NewInsightRules(cfg),
		insights:  []*entities.MemoryInsight{},
		memories:  memories,
		patterns:  patterns,
		clusters:  clusters,
		publisher: publisher,
		metrics:   metrics,
		logger:    loggerOrNop(logger),
		now:       time.Now,
	}
}

// GenerateInsights runs every rule, drops insights that repeat a live one,
// and appends the rest ranked by confidence. It returns only the new ones.
func (s *InsightService) GenerateInsights(ctx context.Context, req InsightRequest) (_ []*entities.MemoryInsight, err error) {
	ctx, span := startSpan(ctx, "InsightService.GenerateInsights")
	defer func() { endSpan(span, err) }()

	now := s.now()
	cfg := s.rules.Config()
	end := now
	if req.WindowEnd != nil {
		end = *req.WindowEnd
	}
	start := end.Add(-cfg.DefaultWindow)
	if req.WindowStart != nil {
		start = *req.WindowStart
	}
	if start.After(end) {
		return nil, pkgerrors.NewValidationError("window start must not be after window end")
	}

	candidates := make([]*entities.MemoryInsight, 0)

	if req.ContextText != "" {
		results, err := s.memories.SearchMemories(ctx, entities.MemoryQuery{
			Text:          req.ContextText,
			MinConfidence: cfg.ConnectionSearchMin,
			Limit:         cfg.ConnectionLimit,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to search memories for insights")
		}
		candidates = append(candidates, s.rules.ConnectionInsights(req.ContextText, results, now)...)
	}

	all := s.memories.All()
	byID := lo.SliceToMap(all, func(m *entities.Memory) (string, *entities.Memory) { return m.ID, m })
	candidates = append(candidates, s.rules.PatternInsights(s.patterns.Patterns(), byID, start, end, now)...)
	candidates = append(candidates, s.rules.ReminderInsights(all, now)...)
	if s.clusters != nil {
		candidates = append(candidates, s.rules.SuggestionInsights(s.clusters.Clusters(), domainservices.MemoryIDsByItem(all), now)...)
	}

	s.mu.Lock()
	live := make(map[string]bool)
	for _, in := range s.insights {
		if !in.Dismissed {
			live[in.DedupKey()] = true
		}
	}
	fresh := make([]*entities.MemoryInsight, 0, len(candidates))
	for _, in := range domainservices.RankInsights(candidates) {
		key := in.DedupKey()
		if live[key] {
			continue
		}
		live[key] = true
		fresh = append(fresh, in)
	}
	s.insights = append(s.insights, fresh...)
	out := cloneInsights(fresh)
	s.mu.Unlock()

	for t, n := range lo.CountValuesBy(fresh, func(in *entities.MemoryInsight) entities.InsightType { return in.Type }) {
		s.metrics.InsightsGenerated(t, n)
	}
	span.SetAttributes(attribute.Int("insights.candidates", len(candidates)), attribute.Int("insights.new", len(fresh)))
	s.logger.Debug("Insights generated",
		zap.Int("candidates", len(candidates)),
		zap.Int("new", len(fresh)),
		zap.Time("windowStart", start),
		zap.Time("windowEnd", end),
	)

	if len(fresh) > 0 {
		ids := lo.Map(fresh, func(in *entities.MemoryInsight, _ int) string { return in.ID })
		if perr := s.publisher.Publish(ctx, events.NewInsightsGenerated(uuid.NewString(), ids, now)); perr != nil {
			s.logger.Warn("Failed to publish insight event", zap.Error(perr))
		}
	}
	return out, nil
}

// GetInsights lists insights in generation order.
func (s *InsightService) GetInsights(includeDismissed bool) []*entities.MemoryInsight {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visible := lo.Filter(s.insights, func(in *entities.MemoryInsight, _ int) bool {
		return includeDismissed || !in.Dismissed
	})
	return cloneInsights(visible)
}

// DismissInsight hides an insight from default listings.
func (s *InsightService) DismissInsight(id string) (*entities.MemoryInsight, bool) {
	return s.mutate(id, func(in *entities.MemoryInsight) { in.Dismissed = true })
}

// MarkShown records that an insight was displayed.
func (s *InsightService) MarkShown(id string) (*entities.MemoryInsight, bool) {
	return s.mutate(id, func(in *entities.MemoryInsight) { in.Shown = true })
}

func (s *InsightService) mutate(id string, apply func(*entities.MemoryInsight)) (*entities.MemoryInsight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := lo.Find(s.insights, func(in *entities.MemoryInsight) bool { return in.ID == id })
	if !ok {
		return nil, false
	}
	apply(in)
	return in.Clone(), true
}

func cloneInsights(in []*entities.MemoryInsight) []*entities.MemoryInsight {
	return lo.Map(in, func(i *entities.MemoryInsight, _ int) *entities.MemoryInsight { return i.Clone() })
}
