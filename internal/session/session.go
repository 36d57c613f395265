// Package session implements the per-evaluation EvaluationContext: the
// fact space, results, lookup tables, listener binding and limits that
// together describe one use of a rule set. A Context is created for
// exactly one evaluation and is never reused across sessions.
package session

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/ruleforge/engine/internal/factspace"
	"github.com/ruleforge/engine/internal/listener"
	"github.com/ruleforge/engine/internal/results"
)

// Default limits, as specified for a newly created Context.
const (
	DefaultMaxEvaluations = 500_000
	DefaultMaxDurationMs  = 10_000
)

// DefaultMaxViolations is the default "unbounded" violation ceiling.
const DefaultMaxViolations = math.MaxInt64

// ErrEvaluationInProgress is returned by AddFacts/AddAllFacts once the
// engine has begun evaluating — adding facts mid-session has no defined
// plan semantics, so Context refuses rather than silently misbehaving.
var ErrEvaluationInProgress = errors.New("session: cannot add facts once evaluation has started")

// LookupMissingError is returned by LookupOrError for an unknown table name
// or an unknown key within a known table.
type LookupMissingError struct {
	Table string
	Key   any
}

func (e *LookupMissingError) Error() string {
	if e.Key == nil {
		return fmt.Sprintf("session: no lookup table named %q", e.Table)
	}
	return fmt.Sprintf("session: lookup table %q has no entry for key %v", e.Table, e.Key)
}

// Context is one evaluation session's state. It is not safe for concurrent
// use; a session is never time-sliced across goroutines.
type Context struct {
	Facts    *factspace.FactSpace
	Results  *results.Results
	Listener listener.EvaluationListener

	MaxEvaluations int64
	MaxDurationMs  int64
	MaxViolations  int64

	ThrowOnViolations  bool
	ThrowOnNoRules     bool
	SuppressExceptions bool

	lookups map[string]map[any]any

	evaluating      bool
	mutated         bool
	currentRuleName string
}

// New creates a Context bound to fs, with the default limits and a no-op
// listener.
func New(fs *factspace.FactSpace) *Context {
	return &Context{
		Facts:          fs,
		Results:        results.New(time.Now()),
		Listener:       listener.NoOp{},
		MaxEvaluations: DefaultMaxEvaluations,
		MaxDurationMs:  DefaultMaxDurationMs,
		MaxViolations:  DefaultMaxViolations,
		lookups:        make(map[string]map[any]any),
	}
}

// AddFacts inserts facts, in order, before evaluation begins.
func (ctx *Context) AddFacts(facts ...any) error {
	if ctx.evaluating {
		return ErrEvaluationInProgress
	}
	_, err := ctx.Facts.AddAll(facts)
	return err
}

// AddAllFacts is AddFacts taking a slice, for callers already holding one.
func (ctx *Context) AddAllFacts(facts []any) error {
	return ctx.AddFacts(facts...)
}

// AddLookup registers a named lookup table backed by an existing map.
func (ctx *Context) AddLookup(name string, table map[any]any) {
	ctx.lookups[name] = table
}

// AddLookupFromItems builds a named lookup table by applying keyOf to each
// item.
func (ctx *Context) AddLookupFromItems(name string, items []any, keyOf func(item any) any) {
	table := make(map[any]any, len(items))
	for _, item := range items {
		table[keyOf(item)] = item
	}
	ctx.lookups[name] = table
}

// Lookup resolves key within the named table, satisfying rule.SessionAPI.
func (ctx *Context) Lookup(name string, key any) (any, bool) {
	table, ok := ctx.lookups[name]
	if !ok {
		return nil, false
	}
	v, ok := table[key]
	return v, ok
}

// LookupOrError is Lookup but returning *LookupMissingError on miss,
// matching the boundary error kind named for rule-facing lookup failures.
func (ctx *Context) LookupOrError(name string, key any) (any, error) {
	table, ok := ctx.lookups[name]
	if !ok {
		return nil, &LookupMissingError{Table: name}
	}
	v, ok := table[key]
	if !ok {
		return nil, &LookupMissingError{Table: name, Key: key}
	}
	return v, nil
}

// Lookup resolves key in the table named after T's concise type name,
// matching the "lookup<T>(key)" convenience described for the context API.
func Lookup[T any](ctx *Context, key any) (T, bool) {
	var zero T
	name := reflect.TypeOf((*T)(nil)).Elem().Name()
	v, ok := ctx.Lookup(name, key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// InsertFact satisfies rule.SessionAPI, tracking that a mutation occurred
// this fire step.
func (ctx *Context) InsertFact(fact any) (factspace.Identity, error) {
	id, err := ctx.Facts.InsertFact(fact)
	if err == nil {
		ctx.mutated = true
	}
	return id, err
}

// ModifyFact satisfies rule.SessionAPI.
func (ctx *Context) ModifyFact(selector factspace.Selector) (factspace.Selector, error) {
	next, err := ctx.Facts.ModifyFact(selector)
	if err == nil {
		ctx.mutated = true
	}
	return next, err
}

// RetractFact satisfies rule.SessionAPI.
func (ctx *Context) RetractFact(selector factspace.Selector) error {
	err := ctx.Facts.RetractFact(selector)
	if err == nil {
		ctx.mutated = true
	}
	return err
}

// EmitEvent records an event tagged with whichever rule is currently
// firing (see RunFireStep) and notifies the listener.
func (ctx *Context) EmitEvent(category results.Category, group, message string) {
	e := results.RuleEvent{Category: category, RuleName: ctx.currentRuleName, Group: group, Message: message}
	ctx.Results.EmitEvent(e)
	ctx.Listener.EventCreated(e)
}

// Affirm satisfies rule.SessionAPI.
func (ctx *Context) Affirm(weight float64) { ctx.Results.Affirm(weight) }

// Veto satisfies rule.SessionAPI.
func (ctx *Context) Veto(weight float64) { ctx.Results.Veto(weight) }

// MarkEvaluating flips the guard that rejects AddFacts once the engine has
// started a session; called once by the engine before planning begins.
func (ctx *Context) MarkEvaluating() { ctx.evaluating = true }

// ApplyModifyExtractor honors a CompiledRule's ModifyExtractor: if fact is
// already present in the fact space, invalidate and reissue its selector
// and report the mutation, even though the consequence never called
// ModifyFact directly.
func (ctx *Context) ApplyModifyExtractor(fact any) (bool, error) {
	if fact == nil {
		return false, nil
	}
	sel, ok := ctx.Facts.SelectorOfFact(fact)
	if !ok {
		return false, nil
	}
	if _, err := ctx.Facts.ModifyFact(sel); err != nil {
		return false, err
	}
	ctx.mutated = true
	return true, nil
}

// RunFireStep is the scoped acquisition the engine performs around every
// fire step: it resets the per-step mutation flag, tags subsequently emitted
// events with ruleName, and guarantees the rule-name tag is released on every
// exit path — including a panic unwinding through fn, which is why the release
// happens in a defer rather than after a plain return. This is the Go
// reading of a "current context bound for the duration of one fire step":
// rather than a goroutine-local slot (which independent concurrent
// sessions on different goroutines would corrupt if it were shared), the
// context is simply the *Context the engine already holds and passes
// explicitly to Fire as rule.SessionAPI — RunFireStep only needs to scope
// the per-step bookkeeping that lives on that same value.
func (ctx *Context) RunFireStep(ruleName string, fn func() error) (mutated bool, err error) {
	ctx.mutated = false
	ctx.currentRuleName = ruleName
	defer func() {
		ctx.currentRuleName = ""
	}()

	err = fn()
	return ctx.mutated, err
}
