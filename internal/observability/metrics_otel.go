package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OpenTelemetry metrics mirroring metrics.go's Prometheus vector metrics.
// Platform-agnostic: works with Prometheus, SigNoz, Kibana, Grafana, etc.,
// via whichever OTel meter provider the host wires in (see otel.go).

var (
	meter = otel.Meter("rulegate.engine")

	metricsOnce sync.Once

	sessionEvaluationDuration metric.Float64Histogram
	sessionsStartedTotal      metric.Int64Counter
	tupleEvaluationDuration   metric.Float64Histogram
	ruleFiredTotal            metric.Int64Counter
	mutexWinsTotal            metric.Int64Counter
	violationsRecordedTotal   metric.Int64Counter
	sessionExhaustedTotal     metric.Int64Counter
	ruleLoadDuration          metric.Float64Histogram
	ruleLoadTotal             metric.Int64Counter
	rulesActive               metric.Int64UpDownCounter
	factsInsertedTotal        metric.Int64Counter
)

// InitMetrics initializes the OpenTelemetry metric instruments. Call this
// once during application startup.
func InitMetrics() error {
	var err error
	metricsOnce.Do(func() {
		sessionEvaluationDuration, err = meter.Float64Histogram(
			"rulegate.session_evaluation_duration",
			metric.WithDescription("Wall time from BeginEvaluation to EndEvaluation for one session"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return
		}

		sessionsStartedTotal, err = meter.Int64Counter(
			"rulegate.sessions_started_total",
			metric.WithDescription("Total number of evaluation sessions started"),
		)
		if err != nil {
			return
		}

		tupleEvaluationDuration, err = meter.Float64Histogram(
			"rulegate.tuple_evaluation_duration",
			metric.WithDescription("Time taken to evaluate one candidate tuple against one rule's condition"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return
		}

		ruleFiredTotal, err = meter.Int64Counter(
			"rulegate.rule_fired_total",
			metric.WithDescription("Total number of times a rule's consequence fired"),
		)
		if err != nil {
			return
		}

		mutexWinsTotal, err = meter.Int64Counter(
			"rulegate.mutex_wins_total",
			metric.WithDescription("Total number of mutex-group activations won by a rule"),
		)
		if err != nil {
			return
		}

		violationsRecordedTotal, err = meter.Int64Counter(
			"rulegate.violations_recorded_total",
			metric.WithDescription("Total number of violation-category events recorded"),
		)
		if err != nil {
			return
		}

		sessionExhaustedTotal, err = meter.Int64Counter(
			"rulegate.session_exhausted_total",
			metric.WithDescription("Total number of sessions ended by budget exhaustion"),
		)
		if err != nil {
			return
		}

		ruleLoadDuration, err = meter.Float64Histogram(
			"rulegate.rule_load_duration",
			metric.WithDescription("Time taken to parse and compile one rule definition"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return
		}

		ruleLoadTotal, err = meter.Int64Counter(
			"rulegate.rule_load_total",
			metric.WithDescription("Total number of rule definition load attempts"),
		)
		if err != nil {
			return
		}

		rulesActive, err = meter.Int64UpDownCounter(
			"rulegate.rules_active",
			metric.WithDescription("Number of currently loaded rule definitions"),
		)
		if err != nil {
			return
		}

		factsInsertedTotal, err = meter.Int64Counter(
			"rulegate.facts_inserted_total",
			metric.WithDescription("Total number of facts inserted into a fact space"),
		)
	})
	return err
}

// RecordSessionEvaluation records one session's duration and outcome.
func RecordSessionEvaluation(ctx context.Context, outcome string, durationSeconds float64) {
	sessionsStartedTotal.Add(ctx, 1)
	sessionEvaluationDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("outcome", outcome), // ok|exhausted|violations|error
	))
}

// RecordTupleEvaluation records one rule-condition evaluation.
func RecordTupleEvaluation(ctx context.Context, ruleName string, matched bool, durationSeconds float64) {
	tupleEvaluationDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("rule", ruleName),
		attribute.Bool("matched", matched),
	))
}

// RecordRuleFiredMetric increments the fired-rule and, if applicable,
// mutex-group-winner counters.
func RecordRuleFiredMetric(ctx context.Context, ruleName, mutexGroup string) {
	ruleFiredTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", ruleName)))
	if mutexGroup != "" {
		mutexWinsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("mutex_group", mutexGroup),
			attribute.String("rule", ruleName),
		))
	}
}

// RecordViolationMetric increments the violation counter for ruleName.
func RecordViolationMetric(ctx context.Context, ruleName string) {
	violationsRecordedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", ruleName)))
}

// RecordSessionExhaustedMetric increments the exhaustion counter for reason.
func RecordSessionExhaustedMetric(ctx context.Context, reason string) {
	sessionExhaustedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordRuleLoad records a rule definition load attempt.
func RecordRuleLoad(ctx context.Context, status string, durationSeconds float64) {
	ruleLoadDuration.Record(ctx, durationSeconds)
	ruleLoadTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// UpdateActiveRules adjusts the active rule-definition gauge by delta.
func UpdateActiveRules(ctx context.Context, delta int64) {
	rulesActive.Add(ctx, delta)
}

// RecordFactInserted increments the facts-inserted counter for factType.
func RecordFactInserted(ctx context.Context, factType string) {
	factsInsertedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("fact_type", factType)))
}
