// Package rule defines the compiled, arity-erased representation every
// authored rule collapses into: a namespace/name/arity/salience/mutex
// envelope around opaque condition and consequence closures.
package rule

import (
	"fmt"
	"reflect"
	"time"

	"github.com/ruleforge/engine/internal/factspace"
	"github.com/ruleforge/engine/internal/results"
)

// SessionAPI is the callback surface a condition, consequence, cascade
// action or foreach body may use on the evaluation context currently bound
// to the running fire step. Declared here rather than imported from the
// session package so rule carries no dependency on session; *session.Context
// satisfies this interface structurally.
type SessionAPI interface {
	InsertFact(fact any) (factspace.Identity, error)
	ModifyFact(selector factspace.Selector) (factspace.Selector, error)
	RetractFact(selector factspace.Selector) error
	EmitEvent(category results.Category, group, message string)
	Affirm(weight float64)
	Veto(weight float64)
	Lookup(name string, key any) (any, bool)
}

// Condition is a boolean predicate over a rule's bound fact tuple.
type Condition func(facts []any) bool

// Consequence is a rule's side-effecting action, invoked with the fact
// tuple it was activated against.
type Consequence func(ctx SessionAPI, facts []any) error

// ForeachSpec describes a ForeachRule's inner body: it iterates a child
// collection extracted from the single bound parent fact. Children never
// enter the fact space and never participate in tuple matching.
type ForeachSpec struct {
	// Children extracts the candidate child collection from the bound
	// parent fact.
	Children func(parent any) []any
	// Condition filters children; a child passes if Condition(child) is true.
	Condition func(child any) bool
	// Consequence runs once per filtered child.
	Consequence func(ctx SessionAPI, parent any, child any) error
}

// Activation is a (rule, tuple) pair whose conditions were satisfied and
// that is eligible to fire. For ForeachRule it additionally carries the
// filtered child list.
type Activation struct {
	Rule     *CompiledRule
	Children []any
}

// CompiledRule is the engine's erased view of one authored rule: whatever
// arity-specific builder produced it, by the time the rule tree and engine
// see it, it is this one shape.
type CompiledRule struct {
	Namespace string
	Name      string

	Arity      int
	ParamTypes []reflect.Type

	Salience int64
	Mutex    string

	Inception  time.Time // zero value means unbounded
	Expiration time.Time // zero value means unbounded

	OnlyFiresOnce bool
	Negated       bool

	Conditions  []Condition
	Consequence Consequence

	// ModifyExtractor, if set, is called after Consequence runs and
	// returns the fact value the engine must treat as modified (its
	// selector is invalidated and reissued), even though Consequence
	// itself never called ModifyFact.
	ModifyExtractor func(facts []any) any

	// CascadeAction, if set, makes this rule a Cascade: it activates
	// unconditionally (Conditions are never consulted) and its Fire step
	// only runs CascadeAction, which is expected to insert new facts.
	CascadeAction func(ctx SessionAPI) error

	// Foreach, if set, makes this an arity-1 ForeachRule; Conditions and
	// Consequence are ignored in favor of Foreach's per-child versions.
	Foreach *ForeachSpec

	// MessageTemplate and MessageExtractors back Render: a template with
	// %v-style verbs, one per extractor, each extractor pulling one
	// positional value out of the bound fact tuple.
	MessageTemplate   string
	MessageExtractors []func(facts []any) any
}

// InWindow reports whether now falls within [Inception, Expiration],
// treating a zero Inception/Expiration as unbounded on that side.
func (r *CompiledRule) InWindow(now time.Time) bool {
	if !r.Inception.IsZero() && now.Before(r.Inception) {
		return false
	}
	if !r.Expiration.IsZero() && now.After(r.Expiration) {
		return false
	}
	return true
}

// Evaluate returns an Activation iff the rule is a Cascade (which always
// succeeds), a ForeachRule with at least one matching child, or an ordinary
// rule whose every condition evaluates to true XOR Negated.
func (r *CompiledRule) Evaluate(facts []any) (*Activation, bool) {
	if r.CascadeAction != nil {
		return &Activation{Rule: r}, true
	}
	if r.Foreach != nil {
		return r.evaluateForeach(facts)
	}
	for _, cond := range r.Conditions {
		if cond(facts) == r.Negated {
			return nil, false
		}
	}
	return &Activation{Rule: r}, true
}

func (r *CompiledRule) evaluateForeach(facts []any) (*Activation, bool) {
	parent := facts[0]
	children := r.Foreach.Children(parent)

	seen := make(map[any]bool, len(children))
	var matched []any
	for _, child := range children {
		if seen[child] {
			continue
		}
		seen[child] = true
		if r.Foreach.Condition(child) {
			matched = append(matched, child)
		}
	}
	if len(matched) == 0 {
		return nil, false
	}
	return &Activation{Rule: r, Children: matched}, true
}

// Fire runs the rule's side effects for act and returns any error they
// produce. It does not report mutation: the engine treats every Cascade as
// mutating and otherwise consults ModifyExtractor and the context's own
// mutation tracking.
func (r *CompiledRule) Fire(ctx SessionAPI, facts []any, act *Activation) error {
	if r.CascadeAction != nil {
		return r.CascadeAction(ctx)
	}
	if r.Foreach != nil {
		parent := facts[0]
		for _, child := range act.Children {
			if err := r.Foreach.Consequence(ctx, parent, child); err != nil {
				return err
			}
		}
		return nil
	}
	return r.Consequence(ctx, facts)
}

// Render formats MessageTemplate by substituting each MessageExtractor's
// result over facts, in order, rendering a nil extractor result as the
// literal string "null" so output is reproducible regardless of locale.
func (r *CompiledRule) Render(facts []any) string {
	args := make([]any, len(r.MessageExtractors))
	for i, extract := range r.MessageExtractors {
		v := extract(facts)
		if v == nil {
			args[i] = "null"
			continue
		}
		args[i] = v
	}
	return fmt.Sprintf(r.MessageTemplate, args...)
}
