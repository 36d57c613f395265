// Package engine implements the forward-chaining evaluation loop: snapshot
// the fact space into a plan, fire eligible rules under mutex and fire-once
// constraints, re-plan whenever a fire step mutates the fact space, and
// repeat to quiescence or a session limit.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/ruleforge/engine/internal/evalplan"
	"github.com/ruleforge/engine/internal/results"
	"github.com/ruleforge/engine/internal/ruletree"
	"github.com/ruleforge/engine/internal/session"
	"github.com/ruleforge/engine/pkg/codec"
)

// ErrNoRulesEvaluated is raised when Context.ThrowOnNoRules is set and a
// session completed having evaluated zero candidates.
var ErrNoRulesEvaluated = errors.New("engine: no rules were evaluated")

// ErrEvaluationExhausted is raised when a session hits MaxEvaluations before
// reaching quiescence — a runaway forward-chain, not a clean termination.
var ErrEvaluationExhausted = errors.New("engine: evaluation exhausted its evaluation budget")

// ViolationsExistError is raised when Context.ThrowOnViolations is set and a
// session completed having recorded at least one Violation-category event.
type ViolationsExistError struct {
	Violations []results.RuleEvent
}

func (e *ViolationsExistError) Error() string {
	return fmt.Sprintf("engine: %d violation(s) recorded", len(e.Violations))
}

// Clock abstracts wall-clock time so MaxDurationMs truncation is
// deterministically testable without a real sleep.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Engine evaluates one rule tree against however many sessions are built
// against it; the tree is immutable (sealed) from an evaluating session's
// point of view, so one Engine may safely back concurrent sessions on
// separate goroutines, each with its own *session.Context.
type Engine struct {
	Tree       *ruletree.RuleTree
	Namespaces []string
	Clock      Clock
}

// New returns an Engine over tree, restricted to namespaces (nil means
// unfiltered), using the real wall clock.
func New(tree *ruletree.RuleTree, namespaces []string) *Engine {
	return &Engine{Tree: tree, Namespaces: namespaces, Clock: realClock{}}
}

// fireKey identifies one (rule, concrete tuple) pairing for the fire-once
// table: the rule's identity plus its selector-tuple packed through
// pkg/codec, exactly the "concrete fact-tuple identity" key the codec
// package exists to produce.
type fireKey struct {
	rule string
	tup  uint64
}

func fireKeyFor(cand evalplan.Candidate) (fireKey, error) {
	values := make([]uint16, len(cand.Selectors))
	for i, s := range cand.Selectors {
		values[i] = uint16(s)
	}
	tup, err := codec.EncodeSelector(values)
	if err != nil {
		return fireKey{}, err
	}
	return fireKey{rule: cand.Rule.Namespace + "." + cand.Rule.Name, tup: tup}, nil
}

// Evaluate runs ctx to quiescence (or a limit) against e.Tree, implementing
// the full cycle: plan, filter fire-once candidates, partition by mutex
// group taking the first activation per group, fire, re-plan on any
// mutation, and stop when a full pass fires nothing new or a session limit
// is hit.
func (e *Engine) Evaluate(ctx *session.Context) (*results.Results, error) {
	ctx.MarkEvaluating()
	start := e.Clock.Now()
	ctx.Results.Started = start
	ctx.Listener.BeginEvaluation()

	builder := evalplan.NewBuilder(e.Tree, e.Namespaces)
	fired := make(map[fireKey]bool)

	var exhaustionErr error

cycles:
	for {
		if ctx.Results.TotalEvaluated >= ctx.MaxEvaluations {
			exhaustionErr = ErrEvaluationExhausted
			break
		}
		if ctx.MaxDurationMs > 0 && e.Clock.Now().Sub(start).Milliseconds() >= ctx.MaxDurationMs {
			break
		}
		if ctx.Results.ViolationCount >= ctx.MaxViolations {
			break
		}

		plan, err := builder.Build(ctx.Facts, e.Clock.Now())
		if err != nil {
			return nil, err
		}

		mutexWon := make(map[string]bool)
		anyMutation := false

		for _, cand := range plan.Candidates {
			key, err := fireKeyFor(cand)
			if err != nil {
				return nil, err
			}
			if cand.Rule.OnlyFiresOnce && fired[key] {
				continue
			}

			facts, err := ctx.Facts.GetTuple(cand.Selectors)
			if err != nil {
				// A selector went stale within this same pass (an earlier
				// candidate's fire already retracted/modified it) — skip,
				// the next planning cycle will pick up whatever is current.
				continue
			}

			ctx.Results.TotalEvaluated++
			ctx.Listener.BeginTupleEvaluation(facts)

			act, ok := cand.Rule.Evaluate(facts)
			if !ok {
				ctx.Listener.EndTupleEvaluation(facts)
				continue
			}
			if cand.Rule.Mutex != "" && mutexWon[cand.Rule.Mutex] {
				ctx.Listener.EndTupleEvaluation(facts)
				continue
			}

			ctx.Listener.FiringRule(cand.Rule)
			mutated, err := ctx.RunFireStep(cand.Rule.Name, func() error {
				return cand.Rule.Fire(ctx, facts, act)
			})
			if err != nil {
				ctx.Listener.EndTupleEvaluation(facts)
				return ctx.Results, err
			}
			if cand.Rule.CascadeAction != nil {
				// Cascade implies modified = true unconditionally, regardless
				// of whether the action itself happened to mutate the fact
				// space.
				mutated = true
			}

			if cand.Rule.ModifyExtractor != nil {
				modFact := cand.Rule.ModifyExtractor(facts)
				extractorMutated, err := ctx.ApplyModifyExtractor(modFact)
				if err != nil {
					ctx.Listener.EndTupleEvaluation(facts)
					return ctx.Results, err
				}
				mutated = mutated || extractorMutated
			}

			ctx.Results.RecordFire(cand.Rule.Name)
			if cand.Rule.Mutex != "" {
				mutexWon[cand.Rule.Mutex] = true
				ctx.Results.MutexWinners[cand.Rule.Mutex] = cand.Rule.Name
			}
			if cand.Rule.OnlyFiresOnce {
				fired[key] = true
			}

			ctx.Listener.FiredRule(cand.Rule, mutated)
			ctx.Listener.EndTupleEvaluation(facts)

			if mutated {
				anyMutation = true
				break // re-plan against the mutated fact space immediately
			}
		}

		if !anyMutation {
			break cycles
		}
	}

	return e.finish(ctx, exhaustionErr)
}

func (e *Engine) finish(ctx *session.Context, exhaustionErr error) (*results.Results, error) {
	ctx.Results.Completed = e.Clock.Now()
	ctx.Listener.EndEvaluation()

	var err error
	switch {
	case exhaustionErr != nil:
		err = exhaustionErr
	case ctx.ThrowOnNoRules && ctx.Results.TotalEvaluated == 0:
		err = ErrNoRulesEvaluated
	case ctx.ThrowOnViolations && ctx.Results.ViolationCount > 0:
		err = &ViolationsExistError{Violations: ctx.Results.Violations()}
	}

	if err != nil && ctx.SuppressExceptions {
		err = nil
	}
	return ctx.Results, err
}

