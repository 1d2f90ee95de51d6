package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"thoughtweb/application/ports"
	"thoughtweb/application/services"
	"thoughtweb/domain/embedding"
	domainservices "thoughtweb/domain/services"
	"thoughtweb/infrastructure/config"
	"thoughtweb/infrastructure/messaging"
	"thoughtweb/infrastructure/messaging/eventbridge"
	"thoughtweb/infrastructure/observability"
	"thoughtweb/infrastructure/persistence"
	"thoughtweb/infrastructure/persistence/dynamodb"
	"thoughtweb/infrastructure/persistence/sqlite"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Environment == config.Production {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("environment", string(cfg.Environment))), nil
}

// ProvideAWSConfig creates AWS configuration. An endpoint override points
// every client at a local emulator.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWS.Region),
	)
	if err != nil {
		return aws.Config{}, err
	}
	if cfg.AWS.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
	}
	return awsCfg, nil
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideTracer installs the tracer provider and flushes it on cleanup
func ProvideTracer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRate:  cfg.Tracing.SampleRate,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideSnapshotStore selects the backend named by the configuration and
// wraps it with retries and a circuit breaker.
func ProvideSnapshotStore(
	ctx context.Context,
	cfg *config.Config,
	awsCfg aws.Config,
	collector *observability.Collector,
	logger *zap.Logger,
) (*persistence.ResilientStore, func(), error) {
	var (
		backend ports.SnapshotStore
		cleanup = func() {}
	)

	switch cfg.Storage.Provider {
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath, logger.Named("sqlite"))
		if err != nil {
			return nil, nil, err
		}
		backend = store
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close SQLite store", zap.Error(err))
			}
		}
	case "dynamodb":
		backend = dynamodb.NewStore(awsdynamodb.NewFromConfig(awsCfg), cfg.Storage.TableName, "", logger.Named("dynamodb"))
	default:
		backend = persistence.NewInMemoryStore()
	}

	logger.Info("Snapshot store selected", zap.String("provider", cfg.Storage.Provider))
	return persistence.NewResilientStore(backend, persistence.ResilientConfig{
		Name:             cfg.Storage.Provider + "-snapshots",
		MaxRetries:       cfg.Storage.Retry.MaxRetries,
		InitialDelay:     cfg.Storage.Retry.InitialDelay,
		MaxDelay:         cfg.Storage.Retry.MaxDelay,
		AttemptTimeout:   cfg.Storage.Timeout,
		BreakerRequests:  cfg.Storage.Breaker.MaxRequests,
		BreakerInterval:  cfg.Storage.Breaker.Interval,
		BreakerTimeout:   cfg.Storage.Breaker.OpenTimeout,
		FailureThreshold: cfg.Storage.Breaker.FailureThreshold,
	}, collector, logger.Named("store")), cleanup, nil
}

// ProvideEventPublisher creates the publisher named by the configuration
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	switch cfg.Events.Provider {
	case "eventbridge":
		return eventbridge.NewPublisher(
			awseventbridge.NewFromConfig(awsCfg),
			cfg.Events.EventBusName,
			cfg.Events.Source,
			logger.Named("eventbridge"),
		)
	case "log":
		return messaging.NewLogPublisher(logger)
	default:
		return ports.NoopPublisher{}
	}
}

// ProvideEmbedder creates the hash embedder behind an LRU
func ProvideEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	mem := cfg.Domain.Memory
	return embedding.NewCachedEmbedder(embedding.NewGenerator(mem.EmbeddingDimensions), mem.EmbeddingCacheSize)
}

// ProvideItemPool creates the shared item pool
func ProvideItemPool() *services.ItemPool {
	return services.NewItemPool()
}

// ProvideMemoryStore creates the memory store
func ProvideMemoryStore(
	cfg *config.Config,
	embedder embedding.Embedder,
	snapshots ports.SnapshotStore,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *services.MemoryStore {
	return services.NewMemoryStore(cfg.Domain.Memory, embedder, snapshots, publisher, metrics, logger.Named("memories"))
}

// ProvideConnectionService creates the connection service
func ProvideConnectionService(
	cfg *config.Config,
	snapshots ports.SnapshotStore,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *services.ConnectionService {
	return services.NewConnectionService(cfg.Domain.Connection, snapshots, publisher, metrics, logger.Named("connections"))
}

// ProvidePatternEngine creates the pattern engine
func ProvidePatternEngine(cfg *config.Config) *domainservices.PatternEngine {
	return domainservices.NewPatternEngine(cfg.Domain.Pattern)
}

// ProvideInsightService creates the insight service over the memory store,
// the pattern engine and the connection clusters.
func ProvideInsightService(
	cfg *config.Config,
	memories *services.MemoryStore,
	patterns *domainservices.PatternEngine,
	connections *services.ConnectionService,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *services.InsightService {
	return services.NewInsightService(cfg.Domain.Insight, memories, patterns, connections, publisher, metrics, logger.Named("insights"))
}

// ProvideThoughtProcessor creates the thought processor
func ProvideThoughtProcessor(
	pool *services.ItemPool,
	memories *services.MemoryStore,
	connections *services.ConnectionService,
	patterns *domainservices.PatternEngine,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *services.ThoughtProcessor {
	return services.NewThoughtProcessor(pool, memories, connections, patterns, publisher, metrics, logger.Named("processor"))
}
