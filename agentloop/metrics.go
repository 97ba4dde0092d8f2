package agentloop

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRegistry collects all loop metrics.
var MetricsRegistry = prometheus.NewRegistry()

func init() {
	MetricsRegistry.MustRegister(
		toolExecutions, toolDuration,
		modelCalls, modelTokens,
		taskOutcomes, taskIterations,
	)
}

var toolExecutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "droidpilot_tool_executions_total",
		Help: "Tool executions by tool name and result status.",
	},
	[]string{"tool", "status"},
)

var toolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "droidpilot_tool_duration_seconds",
		Help:    "Tool execution latency in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

var modelCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "droidpilot_model_calls_total",
		Help: "Model completions by provider and outcome.",
	},
	[]string{"provider", "outcome"}, // ok | error
)

var modelTokens = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "droidpilot_model_tokens_total",
		Help: "Model token usage by direction.",
	},
	[]string{"direction"}, // input | output
)

var taskOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "droidpilot_task_outcomes_total",
		Help: "Finished tasks by terminal status.",
	},
	[]string{"status"}, // done | failed
)

var taskIterations = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "droidpilot_task_iterations",
		Help:    "Loop iterations consumed per task.",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	},
)

// MetricsHandler serves the loop metrics in Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(MetricsRegistry, promhttp.HandlerOpts{})
}
