// Package ruleset is the public surface described as "EXTERNAL INTERFACES":
// a compiled, sealed RuleSet that builder code populates once, then hands
// out independent per-evaluation contexts that may run concurrently on
// separate goroutines.
package ruleset

import (
	"reflect"

	"github.com/ruleforge/engine/internal/engine"
	"github.com/ruleforge/engine/internal/factspace"
	"github.com/ruleforge/engine/internal/results"
	"github.com/ruleforge/engine/internal/rule"
	"github.com/ruleforge/engine/internal/ruletree"
	"github.com/ruleforge/engine/internal/session"
)

// RuleSet is the compiled, sealable rule collection builder code populates
// before any evaluation. Once sealed (which happens on the first
// EvaluationContext's first Evaluate) it is read-only and safe to share
// across sessions evaluating concurrently on separate goroutines; the fact
// space, context and results each session owns are not shareable.
type RuleSet struct {
	tree       *ruletree.RuleTree
	namespaces []string
	clock      engine.Clock
}

// New returns an empty RuleSet identified by id, unfiltered by namespace.
func New(id string) *RuleSet {
	return &RuleSet{tree: ruletree.New(id)}
}

// WithNamespaces restricts evaluation to rules whose namespace has one of
// prefixes as a plain string prefix (nil/empty means unfiltered).
func (rs *RuleSet) WithNamespaces(prefixes ...string) *RuleSet {
	rs.namespaces = prefixes
	return rs
}

// WithClock overrides the engine's time source — used by test harnesses
// wanting deterministic MaxDurationMs behavior.
func (rs *RuleSet) WithClock(c engine.Clock) *RuleSet {
	rs.clock = c
	return rs
}

// Add registers rules against the given parameter types, matching
// tree.add(types, rules) from the authoring contract: arity must match
// len(types) and the set must not yet be sealed.
func (rs *RuleSet) Add(types []reflect.Type, rules []*rule.CompiledRule) error {
	return rs.tree.Add(types, rules)
}

// EvaluationContext creates a new session context bound to fs (a fresh,
// empty *factspace.FactSpace unless the caller pre-populates one), ready to
// receive AddFacts calls before Evaluate is called.
func (rs *RuleSet) EvaluationContext(fs *factspace.FactSpace) *session.Context {
	return session.New(fs)
}

func (rs *RuleSet) engine() *engine.Engine {
	e := engine.New(rs.tree, rs.namespaces)
	if rs.clock != nil {
		e.Clock = rs.clock
	}
	return e
}

// Evaluate runs the engine against ctx to quiescence or a session limit.
// See internal/engine.Engine.Evaluate for the full termination contract.
func (rs *RuleSet) Evaluate(ctx *session.Context) (*results.Results, error) {
	return rs.engine().Evaluate(ctx)
}

// Decide evaluates a fresh session seeded with facts and reports whether
// its final score meets threshold.
func (rs *RuleSet) Decide(threshold float64, facts ...any) (bool, error) {
	ctx := rs.EvaluationContext(factspace.New())
	if err := ctx.AddFacts(facts...); err != nil {
		return false, err
	}
	res, err := rs.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	return res.Decide(threshold), nil
}

// TryValidate evaluates a fresh session seeded with facts with exceptions
// suppressed, returning whether it ended violation-free and the violation
// events recorded, if any.
func (rs *RuleSet) TryValidate(facts ...any) (ok bool, violations []results.RuleEvent, err error) {
	ctx := rs.EvaluationContext(factspace.New())
	ctx.SuppressExceptions = true
	if err := ctx.AddFacts(facts...); err != nil {
		return false, nil, err
	}
	res, err := rs.Evaluate(ctx)
	if err != nil {
		return false, nil, err
	}
	violations = res.Violations()
	return len(violations) == 0, violations, nil
}
