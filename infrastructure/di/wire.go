//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"thoughtweb/application/ports"
	"thoughtweb/infrastructure/config"
	"thoughtweb/infrastructure/observability"
	"thoughtweb/infrastructure/persistence"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideCollector,
	ProvideTracer,
	ProvideSnapshotStore,
	ProvideEventPublisher,
	ProvideEmbedder,
	ProvideItemPool,
	ProvideMemoryStore,
	ProvideConnectionService,
	ProvidePatternEngine,
	ProvideInsightService,
	ProvideThoughtProcessor,
	wire.Bind(new(ports.SnapshotStore), new(*persistence.ResilientStore)),
	wire.Bind(new(ports.Metrics), new(*observability.Collector)),
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
