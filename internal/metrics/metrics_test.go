package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordToolCall(t *testing.T) {
	c := NewCollector()
	c.RecordToolCall("get_meals", "ok")
	c.RecordToolCall("get_meals", "ok")
	c.RecordToolCall("get_meals", "upstream_http_error")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.toolCalls.WithLabelValues("get_meals", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.toolCalls.WithLabelValues("get_meals", "upstream_http_error")))
}

func TestObserveUpstream(t *testing.T) {
	c := NewCollector()
	c.ObserveUpstream("GET", 200, 15*time.Millisecond)
	c.ObserveUpstream("GET", 0, time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(c.upstreamDuration))
}

func TestSetCatalog(t *testing.T) {
	c := NewCollector()
	c.SetCatalog(12, 2, 3)

	assert.Equal(t, 12.0, testutil.ToFloat64(c.catalogOps.WithLabelValues("built")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.catalogOps.WithLabelValues("skipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.catalogOps.WithLabelValues("filtered")))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector()
	b := NewCollector()
	a.RecordToolCall("get_meals", "ok")

	assert.Equal(t, 0.0, testutil.ToFloat64(b.toolCalls.WithLabelValues("get_meals", "ok")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordToolCall("post_meals", "ok")

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `openapi_mcp_tool_calls_total{outcome="ok",tool="post_meals"} 1`))
}
