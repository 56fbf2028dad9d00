package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// gatheredNames returns the metric family names in the default registry.
// promauto registers with the default registry automatically; vector
// metrics only appear once a child has been touched.
func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestRoutingMetrics_Registered(t *testing.T) {
	RoutingDecisions.WithLabelValues("legacy").Inc()
	RoutingDecisions.WithLabelValues("new").Inc()

	names := gatheredNames(t)
	for _, want := range []string{
		"genforge_routing_decisions_total",
		"genforge_canary_routes_total",
		"genforge_unmatched_outcomes_total",
	} {
		if !names[want] {
			t.Errorf("%s not found in gathered metrics", want)
		}
	}
}

func TestBreakerMetrics_Registered(t *testing.T) {
	BreakerState.Set(0)

	names := gatheredNames(t)
	for _, want := range []string{
		"genforge_breaker_state",
		"genforge_breaker_trips_total",
		"genforge_rollbacks_total",
	} {
		if !names[want] {
			t.Errorf("%s not found in gathered metrics", want)
		}
	}
}

func TestGenerationMetrics_Registered(t *testing.T) {
	GenerationDuration.WithLabelValues("new").Observe(0.25)
	GenerationFailures.WithLabelValues("legacy").Inc()

	names := gatheredNames(t)
	for _, want := range []string{
		"genforge_generation_duration_seconds",
		"genforge_generation_failures_total",
		"genforge_files_written_total",
	} {
		if !names[want] {
			t.Errorf("%s not found in gathered metrics", want)
		}
	}
}

func TestHealthMetrics_Registered(t *testing.T) {
	HealthCheckStatus.WithLabelValues("audit_store").Set(1)
	HealthRecoveries.WithLabelValues("output_dir").Inc()

	names := gatheredNames(t)
	if !names["genforge_health_check_status"] {
		t.Error("genforge_health_check_status not found")
	}
	if !names["genforge_health_recoveries_total"] {
		t.Error("genforge_health_recoveries_total not found")
	}
}

func TestAllMetricFamilies_Namespaced(t *testing.T) {
	// Touch every vector so each family has at least one child.
	RoutingDecisions.WithLabelValues("legacy").Inc()
	GenerationDuration.WithLabelValues("legacy").Observe(0.1)
	GenerationFailures.WithLabelValues("new").Inc()
	HealthCheckStatus.WithLabelValues("migration").Set(1)
	HealthRecoveries.WithLabelValues("migration").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	count := 0
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "genforge_") {
			count++
		}
	}
	if count < 11 {
		t.Errorf("expected at least 11 genforge_ metric families, got %d", count)
	}
}
