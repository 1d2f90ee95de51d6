// Package observability exposes Prometheus metrics and OpenTelemetry
// tracing for thoughtweb.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"thoughtweb/application/ports"
	"thoughtweb/domain/core/entities"
)

var _ ports.Metrics = (*Collector)(nil)

// Collector holds every Prometheus metric of the application on a private
// registry, so several collectors can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Discovery metrics
	DiscoveryRuns     prometheus.Counter
	DiscoverySkips    prometheus.Counter
	DiscoveryDuration prometheus.Histogram
	DiscoveryItems    prometheus.Histogram
	Connections       *prometheus.CounterVec
	Clusters          prometheus.Gauge

	// Pattern and insight metrics
	PatternRuns      prometheus.Counter
	PatternDuration  prometheus.Histogram
	PatternsDetected prometheus.Gauge
	Insights         *prometheus.CounterVec

	// Memory metrics
	MemoriesAdded prometheus.Counter
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter

	// Snapshot store metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
}

// NewCollector creates a collector whose metric names are prefixed with
// namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		DiscoveryRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_runs_total",
			Help:      "Connection discovery runs that completed",
		}),
		DiscoverySkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_skipped_total",
			Help:      "Discovery requests skipped because a run was in progress",
		}),
		DiscoveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_duration_seconds",
			Help:      "Connection discovery run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		DiscoveryItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_items",
			Help:      "New items per discovery run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		Connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_created_total",
			Help:      "Connections created by discovery, by type",
		}, []string{"type"}),
		Clusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clusters",
			Help:      "Clusters found by the last clustering pass",
		}),
		PatternRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pattern_runs_total",
			Help:      "Pattern detection runs",
		}),
		PatternDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pattern_duration_seconds",
			Help:      "Pattern detection duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		PatternsDetected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "patterns",
			Help:      "Patterns found by the last detection run",
		}),
		Insights: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_generated_total",
			Help:      "Insights generated, by type",
		}, []string{"type"}),
		MemoriesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_added_total",
			Help:      "Memories added to the store",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_cache_hits_total",
			Help:      "Memory lookups served by the LRU cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_cache_misses_total",
			Help:      "Memory lookups that missed the LRU cache",
		}),
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Snapshot store operations",
		}, []string{"operation", "status"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Snapshot store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.DiscoveryRuns,
		c.DiscoverySkips,
		c.DiscoveryDuration,
		c.DiscoveryItems,
		c.Connections,
		c.Clusters,
		c.PatternRuns,
		c.PatternDuration,
		c.PatternsDetected,
		c.Insights,
		c.MemoriesAdded,
		c.CacheHits,
		c.CacheMisses,
		c.StoreOperations,
		c.StoreDuration,
	)
	return c
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) DiscoveryRun(d time.Duration, itemCount int) {
	c.DiscoveryRuns.Inc()
	c.DiscoveryDuration.Observe(d.Seconds())
	c.DiscoveryItems.Observe(float64(itemCount))
}

func (c *Collector) DiscoverySkipped() {
	c.DiscoverySkips.Inc()
}

func (c *Collector) ConnectionsCreated(t entities.ConnectionType, n int) {
	c.Connections.WithLabelValues(string(t)).Add(float64(n))
}

func (c *Collector) ClustersDetected(n int) {
	c.Clusters.Set(float64(n))
}

func (c *Collector) PatternRun(d time.Duration, patterns int) {
	c.PatternRuns.Inc()
	c.PatternDuration.Observe(d.Seconds())
	c.PatternsDetected.Set(float64(patterns))
}

func (c *Collector) MemoryAdded() {
	c.MemoriesAdded.Inc()
}

func (c *Collector) MemoryCacheAccess(hit bool) {
	if hit {
		c.CacheHits.Inc()
		return
	}
	c.CacheMisses.Inc()
}

func (c *Collector) InsightsGenerated(t entities.InsightType, n int) {
	c.Insights.WithLabelValues(string(t)).Add(float64(n))
}

// StoreOperation records one snapshot store call.
func (c *Collector) StoreOperation(op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.StoreOperations.WithLabelValues(op, status).Inc()
	c.StoreDuration.WithLabelValues(op).Observe(d.Seconds())
}

// HTTPRequest records one served request.
func (c *Collector) HTTPRequest(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
