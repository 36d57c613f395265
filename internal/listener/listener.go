// Package listener defines the engine's observability capability: a set of
// synchronous callbacks invoked at well-defined points during evaluation.
// Callers outside the CORE wire real logging/tracing/metrics sinks to it;
// the engine itself depends only on the interface.
package listener

import (
	"github.com/ruleforge/engine/internal/results"
	"github.com/ruleforge/engine/internal/rule"
)

// EvaluationListener receives synchronous notifications during one
// evaluation session. Every call happens inline on the evaluating
// goroutine; implementations must not mutate the fact space or block for
// any meaningful duration.
type EvaluationListener interface {
	BeginEvaluation()
	BeginTupleEvaluation(facts []any)
	FiringRule(r *rule.CompiledRule)
	FiredRule(r *rule.CompiledRule, modified bool)
	EndTupleEvaluation(facts []any)
	EndEvaluation()
	EventCreated(e results.RuleEvent)
	Debug(template string, args ...any)
	Warning(template string, args ...any)
}

// NoOp is the default EvaluationListener: every call is a no-op.
type NoOp struct{}

func (NoOp) BeginEvaluation()                                   {}
func (NoOp) BeginTupleEvaluation(facts []any)                   {}
func (NoOp) FiringRule(r *rule.CompiledRule)                    {}
func (NoOp) FiredRule(r *rule.CompiledRule, modified bool)       {}
func (NoOp) EndTupleEvaluation(facts []any)                     {}
func (NoOp) EndEvaluation()                                     {}
func (NoOp) EventCreated(e results.RuleEvent)                   {}
func (NoOp) Debug(template string, args ...any)                 {}
func (NoOp) Warning(template string, args ...any)               {}

var _ EvaluationListener = NoOp{}
