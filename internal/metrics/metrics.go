// Package metrics defines the Prometheus collectors of the AgentOS backend.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superpod_runs_total",
			Help: "Total number of agent, team and workflow runs",
		},
		[]string{"entity_type", "entity_id", "status"},
	)
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "superpod_run_duration_seconds",
			Help:    "Run duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"entity_type"},
	)
	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "superpod_workflow_step_duration_seconds",
			Help:    "Workflow step duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"workflow_id", "step"},
	)
	GateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superpod_gate_decisions_total",
			Help: "Quality gate and condition outcomes",
		},
		[]string{"workflow_id", "node", "passed"},
	)
	ToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superpod_tool_calls_total",
			Help: "Tool calls by outcome (ok, error, denied)",
		},
		[]string{"tool", "outcome"},
	)
	LLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superpod_llm_tokens_total",
			Help: "Tokens reported by the model server",
		},
		[]string{"model", "kind"},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(StepDuration)
	prometheus.MustRegister(GateDecisions)
	prometheus.MustRegister(ToolCalls)
	prometheus.MustRegister(LLMTokens)
}

// ObserveRun records one finished run.
func ObserveRun(entityType, entityID, status string, elapsed time.Duration) {
	RunsTotal.WithLabelValues(entityType, entityID, status).Inc()
	RunDuration.WithLabelValues(entityType).Observe(elapsed.Seconds())
}

// ObserveTokens records usage of one model call.
func ObserveTokens(model string, prompt, completion int) {
	if prompt > 0 {
		LLMTokens.WithLabelValues(model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		LLMTokens.WithLabelValues(model, "completion").Add(float64(completion))
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
