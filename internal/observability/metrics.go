package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for orchestrator self-monitoring.
// It uses a custom registry to avoid polluting the global default.
type Metrics struct {
	Registry *prometheus.Registry

	// Apply metrics
	ApplyTotal    *prometheus.CounterVec
	ApplyDuration prometheus.Histogram

	// Rollout metrics
	RolloutWaitDuration prometheus.Histogram
	RolloutOutcomeTotal *prometheus.CounterVec

	// Endpoint metrics
	EndpointPollsTotal      *prometheus.CounterVec
	EndpointOutcomeTotal    *prometheus.CounterVec
	EndpointWaitDuration    prometheus.Histogram
	NodeAddressStrategyUsed *prometheus.CounterVec

	// Health check metrics
	HealthProbesTotal  *prometheus.CounterVec
	HealthWaitDuration prometheus.Histogram

	// Rollback metrics
	RollbackTotal *prometheus.CounterVec

	// Run metrics
	RunDuration prometheus.Histogram
	RunTotal    *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all Prometheus metrics
// registered on a custom registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		ApplyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubeship_apply_total",
			Help: "Total number of manifest apply attempts.",
		}, []string{"kind", "status"}),
		ApplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kubeship_apply_duration_seconds",
			Help:    "Duration of manifest apply operations in seconds.",
			Buckets: prometheus.DefBuckets,
		}),

		RolloutWaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kubeship_rollout_wait_duration_seconds",
			Help:    "Time spent waiting for deployment rollouts in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		RolloutOutcomeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubeship_rollout_outcome_total",
			Help: "Rollout wait outcomes.",
		}, []string{"outcome"}),

		EndpointPollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubeship_endpoint_polls_total",
			Help: "Total endpoint resolution polls.",
		}, []string{"service_type"}),
		EndpointOutcomeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubeship_endpoint_outcome_total",
			Help: "Endpoint resolution outcomes.",
		}, []string{"service_type", "outcome"}),
		EndpointWaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kubeship_endpoint_wait_duration_seconds",
			Help:    "Time spent resolving service endpoints in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		NodeAddressStrategyUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubeship_node_address_strategy_used_total",
			Help: "Which NodePort address strategy produced the result.",
		}, []string{"strategy"}),

		HealthProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubeship_health_probes_total",
			Help: "Total health check probes by result class.",
		}, []string{"class"}),
		HealthWaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kubeship_health_wait_duration_seconds",
			Help:    "Time spent health checking in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),

		RollbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubeship_rollback_total",
			Help: "Rollback attempts by outcome.",
		}, []string{"outcome"}),

		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kubeship_run_duration_seconds",
			Help:    "End-to-end orchestration run duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		RunTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kubeship_run_total",
			Help: "Orchestration runs by action and status.",
		}, []string{"action", "status"}),
	}

	reg.MustRegister(
		m.ApplyTotal,
		m.ApplyDuration,
		m.RolloutWaitDuration,
		m.RolloutOutcomeTotal,
		m.EndpointPollsTotal,
		m.EndpointOutcomeTotal,
		m.EndpointWaitDuration,
		m.NodeAddressStrategyUsed,
		m.HealthProbesTotal,
		m.HealthWaitDuration,
		m.RollbackTotal,
		m.RunDuration,
		m.RunTotal,
	)

	return m
}
