package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caji-assist/replymode/internal/metrics"
)

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthzFollowsReadyFlag(t *testing.T) {
	s := New(0)
	h := s.Handler()

	rec, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", body["status"])

	s.SetReady(true)
	rec, body = get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestReadyzRunsChecks(t *testing.T) {
	s := New(0)
	s.SetReady(true)
	s.AddCheck("store", func(context.Context) error { return nil })
	h := s.Handler()

	rec, _ := get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	s.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	rec, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
	failed, _ := body["failed"].(map[string]any)
	assert.Equal(t, "connection refused", failed["redis"])
	assert.NotContains(t, failed, "store")
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.Replies.WithLabelValues("audio").Inc()

	rec, _ := get(t, New(0).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "replymode_replies_total")
}
