package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the rule engine and its host process.

var (
	// Evaluation Session Metrics
	SessionEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rulegate_session_evaluation_duration_seconds",
			Help:    "Wall time from BeginEvaluation to EndEvaluation for one session",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1μs to ~0.52s
		},
		[]string{"outcome"}, // outcome: ok|exhausted|violations|error
	)

	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rulegate_sessions_started_total",
			Help: "Total number of evaluation sessions started",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rulegate_sessions_active",
			Help: "Number of evaluation sessions currently running",
		},
	)

	// Tuple/Rule Evaluation Metrics
	TupleEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rulegate_tuple_evaluation_duration_seconds",
			Help:    "Time taken to evaluate one candidate tuple against one rule's condition",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20),
		},
		[]string{"rule", "matched"}, // matched: true|false
	)

	RuleFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulegate_rule_fired_total",
			Help: "Total number of times a rule's consequence fired",
		},
		[]string{"rule"},
	)

	MutexWinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulegate_mutex_wins_total",
			Help: "Total number of mutex-group activations won by a rule",
		},
		[]string{"mutex_group", "rule"},
	)

	ViolationsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulegate_violations_recorded_total",
			Help: "Total number of violation-category events recorded",
		},
		[]string{"rule"},
	)

	SessionExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulegate_session_exhausted_total",
			Help: "Total number of sessions ended by budget exhaustion",
		},
		[]string{"reason"}, // reason: max_evaluations|max_duration_ms|max_violations
	)

	// Rule Definition Store Metrics
	RuleLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rulegate_rule_load_duration_seconds",
			Help:    "Time taken to parse and compile one rule definition",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20),
		},
	)

	RuleLoadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulegate_rule_load_total",
			Help: "Total number of rule definition load attempts",
		},
		[]string{"status"}, // status: success|error
	)

	RulesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rulegate_rules_active",
			Help: "Number of currently loaded rule definitions",
		},
	)

	// Fact Space Metrics
	FactsInsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rulegate_facts_inserted_total",
			Help: "Total number of facts inserted into a fact space",
		},
		[]string{"fact_type"},
	)

	FactSpaceSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rulegate_fact_space_size",
			Help:    "Number of live facts in a fact space at end of evaluation",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16), // 1 to 32768
		},
	)

	// HTTP Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rulegate_http_request_duration_seconds",
			Help:    "Duration of HTTP requests handled by the host process",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Runtime Metrics
	GoroutinesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rulegate_goroutines_active",
			Help: "Number of active goroutines in the host process",
		},
	)

	GCPauseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rulegate_gc_pause_duration_seconds",
			Help:    "Duration of garbage collection pauses",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 20), // 10μs to ~5.2s
		},
	)
)
