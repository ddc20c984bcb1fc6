package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExceptionsProcessed tracks exceptions processed per final outcome of
	// the decision path (delegated, auto_resolved, degraded, rejected)
	ExceptionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_exceptions_processed_total",
			Help: "Total number of exceptions processed",
		},
		[]string{"outcome"},
	)

	// Decisions tracks routing decisions per classification and destination
	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_decisions_total",
			Help: "Total routing decisions",
		},
		[]string{"classification", "severity", "destination"},
	)

	// Overrides tracks learned-policy overrides and exploration draws
	Overrides = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_policy_overrides_total",
			Help: "Routing decisions where the learned policy replaced the rule table",
		},
		[]string{"kind"}, // override, explore
	)

	// DelegationRetries tracks delegation publish retries per destination
	DelegationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_delegation_retries_total",
			Help: "Total delegation publish retries",
		},
		[]string{"destination"},
	)

	// DegradedDelegations tracks fallback deliveries to the default desk
	DegradedDelegations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_degraded_delegations_total",
			Help: "Delegations redirected to the fallback desk after exhausted retries",
		},
	)

	// LifecycleAnomalies tracks rejected illegal lifecycle transitions
	LifecycleAnomalies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_lifecycle_anomalies_total",
			Help: "Illegal lifecycle transitions rejected",
		},
	)

	// SLABreaches tracks cases escalated by the SLA sweep
	SLABreaches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_sla_breaches_total",
			Help: "Cases escalated after missing their SLA deadline",
		},
	)

	// EpisodesObserved tracks episodes applied to the policy model
	EpisodesObserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_episodes_observed_total",
			Help: "Training episodes applied to the policy model",
		},
		[]string{"kind"}, // automatic, supervised, replay
	)

	// PolicyTableSize tracks the number of state-action entries learned
	PolicyTableSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "triage_policy_table_entries",
			Help: "Number of state-action entries in the policy table",
		},
	)

	// PolicyEpsilon tracks the current exploration rate
	PolicyEpsilon = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "triage_policy_epsilon",
			Help: "Current epsilon-greedy exploration rate",
		},
	)

	// DecisionLatency tracks classify-through-delegate latency
	DecisionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "triage_decision_latency_seconds",
			Help:    "Latency of the classify-score-route-delegate path",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SnapshotFailures tracks failed model checkpoint writes
	SnapshotFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_snapshot_failures_total",
			Help: "Model checkpoint writes that failed",
		},
	)
)
