package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/ruleforge/engine/internal/results"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the OpenTelemetry tracer for the rule engine host process.
var Tracer = otel.Tracer("rulegate.engine")

// StartSessionSpan creates a traced evaluation session.
func StartSessionSpan(ctx context.Context, sessionID string, namespaces []string) (context.Context, trace.Span) {
	return Tracer.Start(ctx, "session.evaluate",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.StringSlice("session.namespaces", namespaces),
		),
	)
}

// RecordSessionResult closes out a session span with the outcome of
// Evaluate: total tuples evaluated, rules fired, and violations recorded.
func RecordSessionResult(span trace.Span, res *results.Results, evalErr error) {
	span.SetAttributes(
		attribute.Int64("session.total_evaluated", res.TotalEvaluated),
		attribute.Int64("session.total_fired", res.TotalFired),
		attribute.Int64("session.violation_count", res.ViolationCount),
	)

	outcome := "ok"
	switch {
	case evalErr != nil:
		outcome = "error"
		span.SetStatus(codes.Error, evalErr.Error())
		span.RecordError(evalErr)
	case res.ViolationCount > 0:
		outcome = "violations"
	}

	duration := res.Completed.Sub(res.Started)
	SessionEvaluationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// StartTupleEvaluationSpan traces one candidate tuple being checked
// against a single rule's condition.
func StartTupleEvaluationSpan(ctx context.Context, ruleName string) (context.Context, trace.Span) {
	return Tracer.Start(ctx, "rule.evaluate",
		trace.WithAttributes(attribute.String("rule.name", ruleName)),
	)
}

// RecordTupleResult records whether a rule's condition matched and how
// long evaluation took.
func RecordTupleResult(span trace.Span, ruleName string, matched bool, duration time.Duration) {
	span.SetAttributes(attribute.Bool("rule.matched", matched))
	TupleEvaluationDuration.WithLabelValues(ruleName, fmt.Sprintf("%t", matched)).Observe(duration.Seconds())

	if matched {
		span.AddEvent("rule.matched")
	}
}

// RecordRuleFired marks a rule's consequence as having fired, and (if
// part of a mutex group) which group it won.
func RecordRuleFired(span trace.Span, ruleName, mutexGroup string) {
	span.AddEvent("rule.fired", trace.WithAttributes(attribute.String("rule.name", ruleName)))
	RuleFiredTotal.WithLabelValues(ruleName).Inc()
	if mutexGroup != "" {
		MutexWinsTotal.WithLabelValues(mutexGroup, ruleName).Inc()
	}
}

// RecordViolation records one violation-category event against its
// owning rule.
func RecordViolation(span trace.Span, event results.RuleEvent) {
	span.AddEvent("rule.violation", trace.WithAttributes(
		attribute.String("rule.name", event.RuleName),
		attribute.String("violation.group", event.Group),
		attribute.String("violation.message", event.Message),
	))
	ViolationsRecordedTotal.WithLabelValues(event.RuleName).Inc()
}

// StartRuleLoadSpan creates a traced rule definition load operation.
func StartRuleLoadSpan(ctx context.Context, ruleID string) (context.Context, trace.Span) {
	return Tracer.Start(ctx, "rule.load",
		trace.WithAttributes(attribute.String("rule.id", ruleID)),
	)
}

// RecordRuleLoadResult records rule load success or failure.
func RecordRuleLoadResult(span trace.Span, err error, duration time.Duration) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		RuleLoadTotal.WithLabelValues("error").Inc()
	} else {
		span.SetStatus(codes.Ok, "rule loaded")
		RuleLoadTotal.WithLabelValues("success").Inc()
	}

	RuleLoadDuration.Observe(duration.Seconds())
}

// RecordSessionExhausted increments the exhaustion counter for the given
// termination reason (max_evaluations|max_duration_ms|max_violations).
func RecordSessionExhausted(reason string) {
	SessionExhaustedTotal.WithLabelValues(reason).Inc()
}
