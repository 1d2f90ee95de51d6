package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoughtweb/infrastructure/config"
	"thoughtweb/infrastructure/di"
)

func newTestServer(t *testing.T) (*httptest.Server, *di.Container) {
	t.Helper()
	cfg, err := config.NewLoader("", config.Staging).Load()
	require.NoError(t, err)
	cfg.Logging.Level = "error"
	cfg.Events.Provider = "none"

	c, cleanup, err := di.InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	srv := httptest.NewServer(NewRouter(c).Setup())
	t.Cleanup(srv.Close)
	return srv, c
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func errorType(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	s, _ := e["type"].(string)
	return s
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "closed", body["store"])
}

func TestThoughtsToConnections(t *testing.T) {
	srv, _ := newTestServer(t)

	status, _ := do(t, srv, http.MethodPost, "/api/v1/thoughts", `{"id":"t1","content":"I wonder why the sky is blue","wonderScore":0.8}`)
	require.Equal(t, http.StatusCreated, status)
	status, body := do(t, srv, http.MethodPost, "/api/v1/thoughts", `{"id":"t2","content":"I wonder why the sky is blue"}`)
	require.Equal(t, http.StatusCreated, status)

	conns, ok := body["connections"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, conns)
	connID := conns[0].(map[string]any)["id"].(string)

	status, body = do(t, srv, http.MethodGet, "/api/v1/connections?item=t2", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, len(conns), body["count"])

	status, body = do(t, srv, http.MethodPost, "/api/v1/connections/"+connID+"/confirm", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["confirmed"])

	status, body = do(t, srv, http.MethodGet, "/api/v1/graph/path?from=t2&to=t1", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["length"])

	status, body = do(t, srv, http.MethodGet, "/api/v1/items/t2/analysis", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "t2", body["itemId"])
}

func TestThoughtsBatch(t *testing.T) {
	srv, c := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/api/v1/thoughts", `{"thoughts":[
		{"content":"espresso shot pulled","tags":["coffee"]},
		{"content":"pour over technique","tags":["coffee"]},
		{"content":"cold brew batch","tags":["coffee"]}
	]}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Len(t, body["items"], 3)
	assert.Equal(t, 3, c.Memories.Count())

	status, body = do(t, srv, http.MethodGet, "/api/v1/patterns", "")
	require.Equal(t, http.StatusOK, status)
	assert.NotZero(t, body["count"])
}

func TestErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		status   int
		wantType string
	}{
		{"blank content", http.MethodPost, "/api/v1/thoughts", `{"content":"  "}`, http.StatusBadRequest, "VALIDATION"},
		{"unknown field", http.MethodPost, "/api/v1/thoughts", `{"content":"x","mood":"sunny"}`, http.StatusBadRequest, "VALIDATION"},
		{"malformed json", http.MethodPost, "/api/v1/memories/search", `{`, http.StatusBadRequest, "VALIDATION"},
		{"search without text", http.MethodPost, "/api/v1/memories/search", `{}`, http.StatusBadRequest, "VALIDATION"},
		{"unknown connection", http.MethodGet, "/api/v1/connections/nope", "", http.StatusNotFound, "NOT_FOUND"},
		{"unknown memory", http.MethodGet, "/api/v1/memories/nope", "", http.StatusNotFound, "NOT_FOUND"},
		{"unknown item", http.MethodGet, "/api/v1/items/nope/analysis", "", http.StatusNotFound, "NOT_FOUND"},
		{"path without ends", http.MethodGet, "/api/v1/graph/path?from=a", "", http.StatusBadRequest, "VALIDATION"},
		{"bad depth", http.MethodGet, "/api/v1/graph/path?from=a&to=b&maxDepth=x", "", http.StatusBadRequest, "VALIDATION"},
		{"unknown insight", http.MethodPost, "/api/v1/insights/nope/dismiss", "", http.StatusNotFound, "NOT_FOUND"},
		{"bad import", http.MethodPost, "/api/v1/memories/import", `not json`, http.StatusBadRequest, "VALIDATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.wantType, errorType(body))
		})
	}
}

func TestMemoryExportImport(t *testing.T) {
	srv, c := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/api/v1/memories", `{"content":"notes on bread baking","metadata":{"tags":["baking"]}}`)
	require.Equal(t, http.StatusCreated, status)
	id := body["id"].(string)

	status, body = do(t, srv, http.MethodPost, "/api/v1/memories/search", `{"text":"bread baking"}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	resp, err := srv.Client().Get(srv.URL + "/api/v1/memories/export")
	require.NoError(t, err)
	export, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	c.Memories.Clear()
	resp, err = srv.Client().Post(srv.URL+"/api/v1/memories/import", "application/json", bytes.NewReader(export))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status, body = do(t, srv, http.MethodGet, "/api/v1/memories/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "notes on bread baking", body["content"])
}

func TestInsightsAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/api/v1/insights", "")
	require.Equal(t, http.StatusCreated, status)
	assert.EqualValues(t, 0, body["count"])

	status, _ = do(t, srv, http.MethodGet, "/api/v1/insights", "")
	require.Equal(t, http.StatusOK, status)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "thoughtweb_http_requests_total")
}
