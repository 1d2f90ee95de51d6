// Package rest exposes thoughtweb over HTTP.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"thoughtweb/infrastructure/di"
	"thoughtweb/interfaces/http/rest/handlers"
	"thoughtweb/interfaces/http/rest/middleware"
)

// Router creates and configures the HTTP router
type Router struct {
	container *di.Container
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(container *di.Container) *Router {
	return &Router{
		container: container,
		logger:    container.Logger.Named("http"),
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	c := rt.container
	cfg := c.Config
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Tracing())
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(c.Collector))
	router.Use(chimiddleware.RequestSize(cfg.Server.MaxRequestSize))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         cfg.CORS.MaxAge,
	}))

	health := handlers.NewHealthHandler(c.Store, c.Memories, c.Connections, rt.logger)
	router.Get("/health", health.Health)
	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, c.Collector.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/thoughts", handlers.NewThoughtHandler(c.Processor, rt.logger).ProcessThoughts)

		r.Route("/connections", func(r chi.Router) {
			h := handlers.NewConnectionHandler(c.Connections, c.Pool, rt.logger)
			r.Get("/", h.ListConnections)
			r.Post("/discover", h.Discover)
			r.Get("/{connectionID}", h.GetConnection)
			r.Post("/{connectionID}/confirm", h.ConfirmConnection)
			r.Post("/{connectionID}/dismiss", h.DismissConnection)
			r.Post("/{connectionID}/view", h.RecordView)
		})

		graph := handlers.NewGraphHandler(c.Connections, rt.logger)
		r.Route("/graph", func(r chi.Router) {
			r.Get("/", graph.GetGraph)
			r.Get("/stats", graph.GetStats)
			r.Get("/path", graph.FindPath)
			r.Get("/clusters", graph.ListClusters)
			r.Post("/clusters", graph.DetectClusters)
		})
		r.Get("/items/{itemID}/analysis", graph.AnalyzeItem)

		r.Route("/memories", func(r chi.Router) {
			h := handlers.NewMemoryHandler(c.Memories, rt.logger)
			r.Post("/", h.AddMemory)
			r.Post("/search", h.Search)
			r.Get("/stats", h.Stats)
			r.Get("/export", h.Export)
			r.Post("/import", h.Import)
			r.Get("/{memoryID}", h.GetMemory)
			r.Get("/{memoryID}/related", h.GetRelated)
		})

		r.Route("/patterns", func(r chi.Router) {
			h := handlers.NewPatternHandler(c.Processor, c.Patterns, rt.logger)
			r.Get("/", h.ListPatterns)
			r.Post("/detect", h.Detect)
			r.Get("/{patternID}", h.GetPattern)
		})

		r.Route("/insights", func(r chi.Router) {
			h := handlers.NewInsightHandler(c.Insights, rt.logger)
			r.Get("/", h.ListInsights)
			r.Post("/", h.Generate)
			r.Post("/{insightID}/dismiss", h.Dismiss)
			r.Post("/{insightID}/shown", h.MarkShown)
		})
	})

	return router
}
