// Package messaging holds the event publishers that do not need a broker.
package messaging

import (
	"context"

	"go.uber.org/zap"

	"thoughtweb/application/ports"
	"thoughtweb/domain/events"
)

var _ ports.EventPublisher = (*LogPublisher)(nil)

// LogPublisher writes every event to the log. It is the local stand-in
// for EventBridge.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher logging at info level.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger.Named("events")}
}

// Publish logs each event with its envelope fields.
func (p *LogPublisher) Publish(_ context.Context, evts ...events.DomainEvent) error {
	for _, e := range evts {
		p.logger.Info("Domain event",
			zap.String("eventType", e.GetEventType()),
			zap.String("aggregateID", e.GetAggregateID()),
			zap.Time("timestamp", e.GetTimestamp()),
			zap.Int("version", e.GetVersion()),
			zap.Any("event", e),
		)
	}
	return nil
}
