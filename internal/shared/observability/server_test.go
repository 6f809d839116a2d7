package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Health(t *testing.T) {
	s := NewServer(ServerConfig{Address: "127.0.0.1:0"})
	defer s.limiters.Close()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "up", body["status"])
}

type degraded struct{}

func (degraded) Check(context.Context) HealthStatus {
	return HealthStatus{Status: "degraded", Components: map[string]string{"cache": "unavailable"}}
}

func TestServer_HealthDegraded(t *testing.T) {
	s := NewServer(ServerConfig{Address: "127.0.0.1:0", Health: degraded{}})
	defer s.limiters.Close()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Components["cache"])
}

func TestServer_Metrics(t *testing.T) {
	s := NewServer(ServerConfig{Address: "127.0.0.1:0"})
	defer s.limiters.Close()

	FilesProcessedTotal.WithLabelValues(ResultRewritten).Inc()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "handbook_files_processed_total")
}

func TestServer_RateLimitsPerClient(t *testing.T) {
	s := NewServer(ServerConfig{Address: "127.0.0.1:0", RequestsPerSec: 0.001, Burst: 2})
	defer s.limiters.Close()
	h := s.Handler()

	get := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, get("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, get("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, get("10.0.0.2:1000"))
}
