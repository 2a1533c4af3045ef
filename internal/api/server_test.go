// internal/api/server_test.go
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FairForge/edgeplane/internal/config"
	"github.com/FairForge/edgeplane/internal/configstore"
	"github.com/FairForge/edgeplane/internal/explain"
	"github.com/FairForge/edgeplane/internal/logstore"
	"github.com/FairForge/edgeplane/internal/optimizer"
	"github.com/FairForge/edgeplane/internal/prefetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zap.NewNop()

	store, err := configstore.Open(t.TempDir(), 100, logger)
	require.NoError(t, err)

	return NewServer(
		config.Default(),
		logger,
		logstore.NewStore(1000, logger),
		store,
		explain.NewHistory(100),
		optimizer.NewOptimizer(optimizer.Config{}, nil, logger),
		prefetch.NewAnalyzer(prefetch.Config{}, logger),
	)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func sampleRecord(path string) map[string]any {
	return map[string]any{
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"client_ip":      "10.0.0.1",
		"request_path":   path,
		"request_method": "GET",
		"cache_status":   logstore.StatusHit,
		"edge_server":    "edge1",
		"ttl":            3600,
	}
}

func TestIngestSingleLog(t *testing.T) {
	s := newTestServer(t)

	w, body := doJSON(t, s, "POST", "/api/logs/ingest", sampleRecord("/index.html"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", body["status"])
	assert.NotEmpty(t, body["request_id"])
	assert.Equal(t, 1, s.logs.Len())
}

func TestIngestRejectsMalformedRecord(t *testing.T) {
	s := newTestServer(t)

	rec := sampleRecord("/index.html")
	delete(rec, "request_path")
	w, body := doJSON(t, s, "POST", "/api/logs/ingest", rec)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "request_path")
	assert.Zero(t, s.logs.Len())
}

func TestIngestRejectsInvalidJSON(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/logs/ingest", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestBatch(t *testing.T) {
	s := newTestServer(t)

	bad := sampleRecord("/c.css")
	delete(bad, "timestamp")
	batch := []map[string]any{sampleRecord("/a.html"), sampleRecord("/b.js"), bad}
	w, body := doJSON(t, s, "POST", "/api/logs/batch", batch)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["ingested"])
	assert.Equal(t, float64(1), body["rejected"])
}

func TestGetLogsWithFilters(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 5; i++ {
		rec := sampleRecord(fmt.Sprintf("/file%d.html", i))
		if i%2 == 0 {
			rec["edge_server"] = "edge2"
		}
		w, _ := doJSON(t, s, "POST", "/api/logs/ingest", rec)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, body := doJSON(t, s, "GET", "/api/logs?edge_server=edge2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), body["total_logs"])
	assert.Equal(t, float64(3), body["returned_logs"])

	w, body = doJSON(t, s, "GET", "/api/logs?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["returned_logs"])
}

func TestGetLogByRequestID(t *testing.T) {
	s := newTestServer(t)

	_, created := doJSON(t, s, "POST", "/api/logs/ingest", sampleRecord("/page.html"))
	id := created["request_id"].(string)

	w, body := doJSON(t, s, "GET", "/api/logs/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/page.html", body["request_path"])

	w, _ = doJSON(t, s, "GET", "/api/logs/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearLogs(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, "POST", "/api/logs/ingest", sampleRecord("/a.html"))
	require.Equal(t, 1, s.logs.Len())

	w, _ := doJSON(t, s, "DELETE", "/api/logs/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, s.logs.Len())
}

func TestLogStats(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, "POST", "/api/logs/ingest", sampleRecord("/a.html"))
	miss := sampleRecord("/b.html")
	miss["cache_status"] = logstore.StatusMiss
	doJSON(t, s, "POST", "/api/logs/ingest", miss)

	w, body := doJSON(t, s, "GET", "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["total_requests"])
	assert.Equal(t, float64(1), body["cache_hits"])
	assert.Equal(t, "50.00%", body["cache_hit_rate"])
}

func TestTTLRecommendationsEndpoint(t *testing.T) {
	s := newTestServer(t)

	err := s.store.ApplyTTL([]optimizer.TTLRecommendation{{
		File:           "/app.js",
		RecommendedTTL: 1800,
		TTLHuman:       "30m",
		Reason:         "standard caching policy applied",
	}})
	require.NoError(t, err)

	w, body := doJSON(t, s, "GET", "/api/v1/recommendations/ttl", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["total_rules"])
	recs := body["recommendations"].(map[string]any)
	assert.Contains(t, recs, "/app.js")
}

func TestPrefetchRecommendationsEndpoint(t *testing.T) {
	s := newTestServer(t)

	err := s.store.ApplyPrefetch([]prefetch.Rule{{
		TriggerFile:   "/index.html",
		PrefetchFiles: []string{"/style.css", "/main.js"},
		Confidence:    0.9,
	}})
	require.NoError(t, err)

	w, body := doJSON(t, s, "GET", "/api/v1/recommendations/prefetch", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["total_rules"])
}

func TestExplainabilityEndpoints(t *testing.T) {
	s := newTestServer(t)

	s.explanations.Add(explain.Explanation{
		RequestID:   "req-1",
		RequestPath: "/img/logo.png",
		CacheStatus: logstore.StatusHit,
	})

	w, body := doJSON(t, s, "GET", "/api/v1/explainability/recent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])

	w, body = doJSON(t, s, "GET", "/api/v1/explainability/req-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/img/logo.png", body["request_path"])

	w, _ = doJSON(t, s, "GET", "/api/v1/explainability/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfigHistoryEndpoint(t *testing.T) {
	s := newTestServer(t)

	require.NoError(t, s.store.ApplyTTL([]optimizer.TTLRecommendation{{File: "/a.css", RecommendedTTL: 1800}}))
	require.NoError(t, s.store.ApplyPrefetch([]prefetch.Rule{{TriggerFile: "/a.html", PrefetchFiles: []string{"/a.css"}}}))

	w, body := doJSON(t, s, "GET", "/api/v1/config/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["total_changes"])
}

func TestControlPlaneStats(t *testing.T) {
	s := newTestServer(t)

	require.NoError(t, s.store.ApplyTTL([]optimizer.TTLRecommendation{{File: "/a.css", RecommendedTTL: 1800}}))

	w, body := doJSON(t, s, "GET", "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["ttl_rules"])
	assert.Equal(t, "operational", body["status"])
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/", "/health", "/ready"} {
		w, _ := doJSON(t, s, "GET", path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestIngestRejectsOutOfRangeFields(t *testing.T) {
	s := newTestServer(t)

	rec := sampleRecord("/index.html")
	rec["cache_status"] = "PARTIAL"
	rec["ttl"] = -5
	w, body := doJSON(t, s, "POST", "/api/logs/ingest", rec)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "cache_status")
	assert.Zero(t, s.logs.Len())
}

func TestIngestBatchSkipsOutOfRangeRecords(t *testing.T) {
	s := newTestServer(t)

	bad := sampleRecord("/b.js")
	bad["bytes_sent"] = -1
	batch := []map[string]any{sampleRecord("/a.html"), bad}
	w, body := doJSON(t, s, "POST", "/api/logs/batch", batch)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["ingested"])
	assert.Equal(t, float64(1), body["rejected"])
	assert.Equal(t, 1, s.logs.Len())
}
