package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"thoughtweb/domain/core/entities"
)

func TestCollector_RecordsApplicationMetrics(t *testing.T) {
	c := NewCollector("tw")

	c.DiscoveryRun(120*time.Millisecond, 3)
	c.DiscoverySkipped()
	c.ConnectionsCreated(entities.ConnectionSemantic, 4)
	c.ConnectionsCreated(entities.ConnectionTemporal, 1)
	c.ClustersDetected(2)
	c.PatternRun(time.Millisecond, 5)
	c.MemoryAdded()
	c.MemoryCacheAccess(true)
	c.MemoryCacheAccess(false)
	c.MemoryCacheAccess(false)
	c.InsightsGenerated(entities.InsightReminder, 2)
	c.StoreOperation("save", time.Millisecond, nil)
	c.StoreOperation("save", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.DiscoveryRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DiscoverySkips))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.Connections.WithLabelValues("semantic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Connections.WithLabelValues("temporal")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Clusters))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.PatternsDetected))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.MemoriesAdded))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheMisses))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Insights.WithLabelValues("reminder")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("save", "error")))
}

func TestCollector_SeparateRegistries(t *testing.T) {
	a := NewCollector("tw")
	b := NewCollector("tw")
	a.MemoryAdded()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.MemoriesAdded))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.MemoriesAdded))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("tw")
	c.HTTPRequest(http.MethodGet, "/api/v1/graph", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tw_http_requests_total{method="GET",route="/api/v1/graph",status="200"} 1`)
}

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, tp.Enabled())
	assert.NoError(t, tp.Shutdown(context.Background()))

	var nilProvider *TracerProvider
	assert.NoError(t, nilProvider.Shutdown(context.Background()))
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		name string
		cfg  TracingConfig
		want string
	}{
		{"development samples everything", TracingConfig{Environment: "development", SampleRate: 0.1}, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{"full rate samples everything", TracingConfig{Environment: "production", SampleRate: 1}, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{"production uses the ratio", TracingConfig{Environment: "production", SampleRate: 0.1}, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1)).Description()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newSampler(tt.cfg).Description())
		})
	}
}
