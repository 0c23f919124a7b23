// Package metrics provides Prometheus metrics for the agentflow service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts total executions by final status.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentflow",
			Subsystem: "orchestrator",
			Name:      "runs_total",
			Help:      "Total number of agent executions by final status",
		},
		[]string{"status", "mode"}, // status: "completed", "failed"; mode: "graph", "intent"
	)

	// RunsActive tracks currently active executions.
	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agentflow",
			Subsystem: "orchestrator",
			Name:      "runs_active",
			Help:      "Number of currently running executions",
		},
	)

	// RunDuration tracks execution duration.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentflow",
			Subsystem: "orchestrator",
			Name:      "run_duration_seconds",
			Help:      "Execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	// StepsTotal counts plan steps executed by step type and outcome.
	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentflow",
			Subsystem: "orchestrator",
			Name:      "steps_total",
			Help:      "Total number of plan steps executed",
		},
		[]string{"type", "status"}, // status: "succeeded", "failed", "skipped"
	)

	// StepDuration tracks step execution duration.
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentflow",
			Subsystem: "orchestrator",
			Name:      "step_duration_seconds",
			Help:      "Plan step execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// PlansTotal counts plan generations by source and result.
	PlansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentflow",
			Subsystem: "orchestrator",
			Name:      "plans_total",
			Help:      "Total number of plans generated",
		},
		[]string{"source", "result"}, // source: "graph", "ai"; result: "ok", "degraded", "error"
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentflow",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agentflow",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SSEConnectionsActive tracks open log stream connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agentflow",
			Subsystem: "api",
			Name:      "sse_connections_active",
			Help:      "Number of currently open SSE log streams",
		},
	)

	// StoreOperations counts execution store operations.
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentflow",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of execution store operations",
		},
		[]string{"operation", "result"}, // operation: create, append_log, append_result, finalize; result: success, error
	)
)
