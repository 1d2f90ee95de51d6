package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoughtweb/application/ports"
	"thoughtweb/application/services"
	"thoughtweb/infrastructure/config"
	"thoughtweb/infrastructure/messaging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.NewLoader("", config.Staging).Load()
	require.NoError(t, err)
	cfg.Logging.Level = "error"
	cfg.Events.Provider = "none"
	return cfg
}

func TestProvideEventPublisher(t *testing.T) {
	tests := []struct {
		provider string
		check    func(t *testing.T, p ports.EventPublisher)
	}{
		{"none", func(t *testing.T, p ports.EventPublisher) { assert.IsType(t, ports.NoopPublisher{}, p) }},
		{"log", func(t *testing.T, p ports.EventPublisher) { assert.IsType(t, &messaging.LogPublisher{}, p) }},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Events.Provider = tt.provider
			tt.check(t, ProvideEventPublisher(cfg, awsConfigFor(t, cfg), nil))
		})
	}
}

func awsConfigFor(t *testing.T, cfg *config.Config) aws.Config {
	t.Helper()
	c, err := ProvideAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	return c
}

func TestProvideLogger_RejectsUnknownLevel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.Level = "loud"
	_, err := ProvideLogger(cfg)
	assert.Error(t, err)
}

func TestContainer_SnapshotsSurviveRestart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Provider = "sqlite"
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "snapshots.db")
	ctx := context.Background()

	first, cleanup, err := InitializeContainer(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, first.Start(ctx))

	_, err = first.Processor.ProcessThoughts(ctx, []services.ThoughtInput{
		{ID: "t1", Content: "I wonder why the sky is blue"},
		{ID: "t2", Content: "I wonder why the sky is blue"},
	})
	require.NoError(t, err)
	wantEdges := first.Connections.Stats().Connections
	require.NotZero(t, wantEdges)
	require.NoError(t, first.Shutdown(ctx))
	cleanup()

	second, cleanup, err := InitializeContainer(ctx, cfg)
	require.NoError(t, err)
	defer cleanup()
	require.NoError(t, second.Start(ctx))

	assert.Equal(t, 2, second.Memories.Count())
	assert.Equal(t, wantEdges, second.Connections.Stats().Connections)
	items, err := second.Pool.Items(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "closed", second.Store.State())
}

func TestContainer_ApplyConfig(t *testing.T) {
	cfg := testConfig(t)
	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	next := *cfg
	next.Domain.Connection.MinSemanticSimilarity = 0.9
	next.Domain.Pattern.MinOccurrences = 5
	c.ApplyConfig(&next)

	assert.Equal(t, 0.9, c.Connections.Config().MinSemanticSimilarity)
	assert.Equal(t, 5, c.Patterns.Config().MinOccurrences)
}
