// Package metrics defines the prometheus instrumentation for the run
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "proofgate"

// Metrics holds every collector the pipeline updates. Construct one
// per registry; collectors are registered on creation.
type Metrics struct {
	// RunsTotal counts completed runs by gate decision.
	RunsTotal *prometheus.CounterVec

	// ToolCallsTotal counts tool executions by tool and status.
	ToolCallsTotal *prometheus.CounterVec

	// BlockedCallsTotal counts calls stopped before execution, by source.
	BlockedCallsTotal *prometheus.CounterVec

	// ToolDurationSeconds observes tool execution latency by tool.
	ToolDurationSeconds *prometheus.HistogramVec

	// PolicyReloadsTotal counts policy reloads by outcome.
	PolicyReloadsTotal *prometheus.CounterVec
}

// New creates and registers the pipeline metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by gate decision.",
		}, []string{"decision"}),

		ToolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool name and status.",
		}, []string{"tool", "status"}),

		BlockedCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocked_calls_total",
			Help:      "Calls stopped before execution, by decision source.",
		}, []string{"source"}),

		ToolDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool execution latency.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"tool"}),

		PolicyReloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_reloads_total",
			Help:      "Policy reload attempts by outcome.",
		}, []string{"outcome"}),
	}
}
