// Package di wires thoughtweb's services to their infrastructure.
package di

import (
	"context"

	"go.uber.org/zap"

	"thoughtweb/application/ports"
	"thoughtweb/application/services"
	domainservices "thoughtweb/domain/services"
	"thoughtweb/infrastructure/config"
	"thoughtweb/infrastructure/observability"
	"thoughtweb/infrastructure/persistence"
	pkgerrors "thoughtweb/pkg/errors"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Store       *persistence.ResilientStore
	Collector   *observability.Collector
	Tracer      *observability.TracerProvider
	Publisher   ports.EventPublisher
	Pool        *services.ItemPool
	Memories    *services.MemoryStore
	Connections *services.ConnectionService
	Patterns    *domainservices.PatternEngine
	Insights    *services.InsightService
	Processor   *services.ThoughtProcessor
}

// Start restores the saved snapshots and starts background discovery when
// it is enabled. Missing snapshots are not an error.
func (c *Container) Start(ctx context.Context) error {
	if err := c.Memories.Load(ctx); err != nil && !pkgerrors.IsNotFound(err) {
		return err
	}
	if err := c.Connections.Load(ctx); err != nil && !pkgerrors.IsNotFound(err) {
		return err
	}
	restored := c.Processor.RestoreItems()
	if restored > 0 {
		if _, err := c.Processor.DetectPatterns(ctx); err != nil {
			return err
		}
	}
	c.Logger.Info("Snapshots restored",
		zap.Int("memories", c.Memories.Count()),
		zap.Int("items", restored),
	)

	if c.Connections.Config().EnableBackgroundDiscovery {
		return c.Connections.StartBackgroundDiscovery(ctx, c.Pool)
	}
	return nil
}

// ApplyConfig pushes reloaded domain thresholds into the running services.
func (c *Container) ApplyConfig(cfg *config.Config) {
	if err := c.Connections.UpdateConfig(cfg.Domain.Connection); err != nil {
		c.Logger.Error("Rejected connection config", zap.Error(err))
	}
	if err := c.Patterns.SetConfig(cfg.Domain.Pattern); err != nil {
		c.Logger.Error("Rejected pattern config", zap.Error(err))
	}
}

// Persist saves both snapshots.
func (c *Container) Persist(ctx context.Context) error {
	var errs []error
	if err := c.Memories.Save(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.Connections.Save(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		c.Logger.Error("Failed to save snapshots", zap.Errors("errors", errs))
		return errs[0]
	}
	c.Logger.Debug("Snapshots saved", zap.String("store", c.Store.State()))
	return nil
}

// Shutdown stops background work and saves both snapshots.
func (c *Container) Shutdown(ctx context.Context) error {
	c.Connections.StopBackgroundDiscovery()
	return c.Persist(ctx)
}
