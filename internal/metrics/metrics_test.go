package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues("agent", "agno-simple", "COMPLETED"))
	ObserveRun("agent", "agno-simple", "COMPLETED", 2*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(RunsTotal.WithLabelValues("agent", "agno-simple", "COMPLETED")))
}

func TestObserveTokens(t *testing.T) {
	ObserveTokens("qwen3:latest", 10, 0)
	assert.Equal(t, 10.0, testutil.ToFloat64(LLMTokens.WithLabelValues("qwen3:latest", "prompt")))
	assert.Equal(t, 0.0, testutil.ToFloat64(LLMTokens.WithLabelValues("qwen3:latest", "completion")))
}

func TestHandler(t *testing.T) {
	ToolCalls.WithLabelValues("think", "ok").Inc()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `superpod_tool_calls_total{outcome="ok",tool="think"}`)
}
