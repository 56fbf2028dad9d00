// Package metrics provides Prometheus metrics for genforge — counters,
// gauges, and histograms for routing decisions, the circuit breaker,
// rollbacks, generation runs, and health checks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Routing ────────────────────────────────────────────────────────────────

// RoutingDecisions tracks routing decisions by pipeline.
var RoutingDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "genforge",
	Name:      "routing_decisions_total",
	Help:      "Total routing decisions by target pipeline.",
}, []string{"pipeline"})

// CanaryRoutes tracks decisions made through the canary band.
var CanaryRoutes = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "genforge",
	Name:      "canary_routes_total",
	Help:      "Total routes to the new pipeline via canary sampling.",
})

// UnmatchedOutcomes tracks outcome reports for entities that were never routed.
var UnmatchedOutcomes = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "genforge",
	Name:      "unmatched_outcomes_total",
	Help:      "Total outcome reports that matched no outstanding route.",
})

// ─── Circuit Breaker ────────────────────────────────────────────────────────

// BreakerState tracks the current breaker state (0=CLOSED, 1=OPEN, 2=HALF_OPEN).
var BreakerState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "genforge",
	Name:      "breaker_state",
	Help:      "Current circuit breaker state (0=CLOSED, 1=OPEN, 2=HALF_OPEN).",
})

// BreakerTrips tracks transitions into the OPEN state.
var BreakerTrips = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "genforge",
	Name:      "breaker_trips_total",
	Help:      "Total circuit breaker trips.",
})

// Rollbacks tracks completed configuration rollbacks.
var Rollbacks = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "genforge",
	Name:      "rollbacks_total",
	Help:      "Total configuration rollbacks, automatic and manual.",
})

// ─── Generation ─────────────────────────────────────────────────────────────

// GenerationDuration tracks generation run duration in seconds by pipeline.
var GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "genforge",
	Name:      "generation_duration_seconds",
	Help:      "Generation run duration in seconds by pipeline.",
	Buckets:   prometheus.DefBuckets,
}, []string{"pipeline"})

// GenerationFailures tracks failed generation runs by pipeline.
var GenerationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "genforge",
	Name:      "generation_failures_total",
	Help:      "Total failed generation runs by pipeline.",
}, []string{"pipeline"})

// FilesWritten tracks generated source files written to disk.
var FilesWritten = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "genforge",
	Name:      "files_written_total",
	Help:      "Total generated source files written.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "genforge",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "genforge",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
