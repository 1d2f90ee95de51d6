package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"thoughtweb/domain/events"
)

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(core))
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(),
		events.NewMemoryAdded("mem-1", "t-1", nil, ts),
		events.NewPatternsDetected("run-1", []string{"p-1"}, 4, ts),
	)
	require.NoError(t, err)

	entries := logs.FilterMessage("Domain event").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "events", entries[0].LoggerName)
	assert.Equal(t, events.TypeMemoryAdded, entries[0].ContextMap()["eventType"])
	assert.Equal(t, "run-1", entries[1].ContextMap()["aggregateID"])
}
