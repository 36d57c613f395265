package engine

import (
	"reflect"
	"testing"
	"time"

	"github.com/ruleforge/engine/internal/factspace"
	"github.com/ruleforge/engine/internal/results"
	"github.com/ruleforge/engine/internal/rule"
	"github.com/ruleforge/engine/internal/ruletree"
	"github.com/ruleforge/engine/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name string
	Age  int
}

type order struct {
	ID     int
	Amount float64
}

func newEngine(t *testing.T, types []reflect.Type, rules []*rule.CompiledRule) (*Engine, *factspace.FactSpace) {
	t.Helper()
	tr := ruletree.New("t")
	require.NoError(t, tr.Add(types, rules))
	return New(tr, nil), factspace.New()
}

func TestEvaluate_FiresOnceByDefault(t *testing.T) {
	fires := 0
	r := &rule.CompiledRule{
		Namespace: "app", Name: "greet", Arity: 1,
		ParamTypes: []reflect.Type{reflect.TypeOf(person{})},
		Conditions: []rule.Condition{func(facts []any) bool { return true }},
		Consequence: func(ctx rule.SessionAPI, facts []any) error {
			fires++
			return nil
		},
	}
	e, fs := newEngine(t, r.ParamTypes, []*rule.CompiledRule{r})
	_, _, err := fs.Add(&person{Name: "Alice", Age: 30})
	require.NoError(t, err)

	ctx := session.New(fs)
	res, err := e.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fires)
	assert.EqualValues(t, 1, res.TotalFired)
}

func TestEvaluate_MutexGroupExactlyOneWinner(t *testing.T) {
	var fired []string
	makeRule := func(name string, salience int64) *rule.CompiledRule {
		return &rule.CompiledRule{
			Namespace: "app", Name: name, Arity: 1, Salience: salience, Mutex: "decision",
			ParamTypes: []reflect.Type{reflect.TypeOf(person{})},
			Conditions: []rule.Condition{func(facts []any) bool { return true }},
			Consequence: func(ctx rule.SessionAPI, facts []any) error {
				fired = append(fired, name)
				return nil
			},
		}
	}
	low := makeRule("low-salience-wins", 1)
	high := makeRule("high-salience-loses", 999)

	tr := ruletree.New("t")
	require.NoError(t, tr.Add([]reflect.Type{reflect.TypeOf(person{})}, []*rule.CompiledRule{low, high}))
	e := New(tr, nil)

	fs := factspace.New()
	_, _, err := fs.Add(&person{Name: "Alice", Age: 30})
	require.NoError(t, err)

	ctx := session.New(fs)
	_, err = e.Evaluate(ctx)
	require.NoError(t, err)

	require.Len(t, fired, 1)
	assert.Equal(t, "low-salience-wins", fired[0])
	assert.Equal(t, "low-salience-wins", ctx.Results.MutexWinners["decision"])
	// Both candidates are resolved and evaluated even though only one fires:
	// mutex grouping gates firing, not evaluation.
	assert.EqualValues(t, 2, ctx.Results.TotalEvaluated)
}

func TestEvaluate_FireOnceSuppressesRepeatActivationAcrossReplan(t *testing.T) {
	fireCount := 0
	notifier := &rule.CompiledRule{
		Namespace: "app", Name: "notify-once", Arity: 1, OnlyFiresOnce: true,
		ParamTypes: []reflect.Type{reflect.TypeOf(person{})},
		Conditions: []rule.Condition{func(facts []any) bool { return true }},
		Consequence: func(ctx rule.SessionAPI, facts []any) error {
			fireCount++
			ctx.InsertFact(&order{ID: fireCount, Amount: 1})
			return nil
		},
	}
	// A second rule on `order` forces at least one more re-plan cycle after
	// notify-once has already fired, so we can confirm it does not fire again.
	orderSeen := 0
	orderRule := &rule.CompiledRule{
		Namespace: "app", Name: "see-order", Arity: 1,
		ParamTypes: []reflect.Type{reflect.TypeOf(order{})},
		Conditions: []rule.Condition{func(facts []any) bool { return true }},
		Consequence: func(ctx rule.SessionAPI, facts []any) error {
			orderSeen++
			return nil
		},
	}

	tr := ruletree.New("t")
	require.NoError(t, tr.Add([]reflect.Type{reflect.TypeOf(person{})}, []*rule.CompiledRule{notifier}))
	require.NoError(t, tr.Add([]reflect.Type{reflect.TypeOf(order{})}, []*rule.CompiledRule{orderRule}))
	e := New(tr, nil)

	fs := factspace.New()
	_, _, err := fs.Add(&person{Name: "Alice", Age: 30})
	require.NoError(t, err)

	ctx := session.New(fs)
	_, err = e.Evaluate(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, fireCount, "fire-once rule must not re-fire once its tuple has already fired")
	assert.Equal(t, 1, orderSeen)
}

func TestEvaluate_ForwardChains_InsertedFactTriggersNewRule(t *testing.T) {
	var triggeredOrderID int
	adult := &rule.CompiledRule{
		Namespace: "app", Name: "flag-adult", Arity: 1, OnlyFiresOnce: true,
		ParamTypes: []reflect.Type{reflect.TypeOf(person{})},
		Conditions: []rule.Condition{func(facts []any) bool { return facts[0].(*person).Age >= 18 }},
		Consequence: func(ctx rule.SessionAPI, facts []any) error {
			ctx.InsertFact(&order{ID: 42, Amount: 10})
			return nil
		},
	}
	onOrder := &rule.CompiledRule{
		Namespace: "app", Name: "on-order", Arity: 1,
		ParamTypes: []reflect.Type{reflect.TypeOf(order{})},
		Conditions: []rule.Condition{func(facts []any) bool { return true }},
		Consequence: func(ctx rule.SessionAPI, facts []any) error {
			triggeredOrderID = facts[0].(*order).ID
			return nil
		},
	}

	tr := ruletree.New("t")
	require.NoError(t, tr.Add([]reflect.Type{reflect.TypeOf(person{})}, []*rule.CompiledRule{adult}))
	require.NoError(t, tr.Add([]reflect.Type{reflect.TypeOf(order{})}, []*rule.CompiledRule{onOrder}))
	e := New(tr, nil)

	fs := factspace.New()
	_, _, err := fs.Add(&person{Name: "Alice", Age: 30})
	require.NoError(t, err)

	ctx := session.New(fs)
	_, err = e.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, triggeredOrderID, "inserting a fact mid-session must make it visible to rules in the same session")
}

func TestEvaluate_NegatedRuleFiresOnAbsence(t *testing.T) {
	fired := false
	r := &rule.CompiledRule{
		Namespace: "app", Name: "no-minors", Arity: 1, Negated: true,
		ParamTypes: []reflect.Type{reflect.TypeOf(person{})},
		Conditions: []rule.Condition{func(facts []any) bool { return facts[0].(*person).Age < 18 }},
		Consequence: func(ctx rule.SessionAPI, facts []any) error {
			fired = true
			return nil
		},
	}
	e, fs := newEngine(t, r.ParamTypes, []*rule.CompiledRule{r})
	_, _, err := fs.Add(&person{Name: "Alice", Age: 30})
	require.NoError(t, err)

	ctx := session.New(fs)
	_, err = e.Evaluate(ctx)
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestEvaluate_ViolationsExistErrorWhenThrowEnabled(t *testing.T) {
	r := &rule.CompiledRule{
		Namespace: "app", Name: "flag-violation", Arity: 1,
		ParamTypes: []reflect.Type{reflect.TypeOf(person{})},
		Conditions: []rule.Condition{func(facts []any) bool { return true }},
		Consequence: func(ctx rule.SessionAPI, facts []any) error {
			ctx.EmitEvent(results.Violation, "age", "too young")
			return nil
		},
	}
	e, fs := newEngine(t, r.ParamTypes, []*rule.CompiledRule{r})
	_, _, err := fs.Add(&person{Name: "Bob", Age: 12})
	require.NoError(t, err)

	ctx := session.New(fs)
	ctx.ThrowOnViolations = true
	res, err := e.Evaluate(ctx)
	require.Error(t, err)
	var verr *ViolationsExistError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.EqualValues(t, 1, res.ViolationCount)
}

func TestEvaluate_SuppressExceptionsHidesViolationsError(t *testing.T) {
	r := &rule.CompiledRule{
		Namespace: "app", Name: "flag-violation", Arity: 1,
		ParamTypes: []reflect.Type{reflect.TypeOf(person{})},
		Conditions: []rule.Condition{func(facts []any) bool { return true }},
		Consequence: func(ctx rule.SessionAPI, facts []any) error {
			ctx.EmitEvent(results.Violation, "age", "too young")
			return nil
		},
	}
	e, fs := newEngine(t, r.ParamTypes, []*rule.CompiledRule{r})
	_, _, err := fs.Add(&person{Name: "Bob", Age: 12})
	require.NoError(t, err)

	ctx := session.New(fs)
	ctx.ThrowOnViolations = true
	ctx.SuppressExceptions = true
	_, err = e.Evaluate(ctx)
	require.NoError(t, err)
}

func TestEvaluate_NoRulesEvaluatedError(t *testing.T) {
	tr := ruletree.New("t")
	e := New(tr, nil)
	fs := factspace.New()
	_, _, err := fs.Add(&person{Name: "Alice", Age: 30})
	require.NoError(t, err)

	ctx := session.New(fs)
	ctx.ThrowOnNoRules = true
	_, err = e.Evaluate(ctx)
	assert.ErrorIs(t, err, ErrNoRulesEvaluated)
}

// steppingClock advances by step on every call after the first, letting a
// test force MaxDurationMs to trip deterministically without a real sleep.
type steppingClock struct {
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func TestEvaluate_MaxDurationExceeded(t *testing.T) {
	counter := 0
	r := &rule.CompiledRule{
		Namespace: "app", Name: "spawn", Arity: 1,
		ParamTypes: []reflect.Type{reflect.TypeOf(order{})},
		Conditions: []rule.Condition{func(facts []any) bool { return true }},
		Consequence: func(ctx rule.SessionAPI, facts []any) error {
			counter++
			ctx.InsertFact(&order{ID: counter, Amount: float64(counter)})
			return nil
		},
	}
	e, fs := newEngine(t, r.ParamTypes, []*rule.CompiledRule{r})
	e.Clock = &steppingClock{now: time.Unix(0, 0), step: 100 * time.Millisecond}
	_, _, err := fs.Add(&order{ID: 0, Amount: 0})
	require.NoError(t, err)

	ctx := session.New(fs)
	ctx.MaxDurationMs = 500
	res, err := e.Evaluate(ctx)
	require.NoError(t, err, "duration exhaustion ends the session cleanly, it does not raise")
	assert.Greater(t, counter, 0)
	assert.False(t, res.Completed.IsZero())
}

func TestEvaluate_MaxEvaluationsExhausted(t *testing.T) {
	// Every fire inserts a fresh order, so the forward chain never goes
	// quiet on its own; MaxEvaluations must cut it off.
	counter := 0
	r := &rule.CompiledRule{
		Namespace: "app", Name: "spawn", Arity: 1,
		ParamTypes: []reflect.Type{reflect.TypeOf(order{})},
		Conditions: []rule.Condition{func(facts []any) bool { return true }},
		Consequence: func(ctx rule.SessionAPI, facts []any) error {
			counter++
			ctx.InsertFact(&order{ID: counter, Amount: float64(counter)})
			return nil
		},
	}
	e, fs := newEngine(t, r.ParamTypes, []*rule.CompiledRule{r})
	_, _, err := fs.Add(&order{ID: 0, Amount: 0})
	require.NoError(t, err)

	ctx := session.New(fs)
	ctx.MaxEvaluations = 5
	_, err = e.Evaluate(ctx)
	assert.ErrorIs(t, err, ErrEvaluationExhausted)
	assert.LessOrEqual(t, ctx.Results.TotalEvaluated, ctx.MaxEvaluations+1)
}

// A Cascade is registered and matched like any other rule (its Arity and
// ParamTypes index it into the rule tree the same way); what makes it a
// Cascade is that Evaluate ignores conditions entirely and Fire only runs
// CascadeAction. This test exercises that pair of methods directly, without
// a tuple or a tree, to isolate the behavior from plan/fire-loop mechanics
// already covered by the other tests in this file.
func TestCascade_AlwaysActivatesAndRunsItsAction(t *testing.T) {
	var inserted *order
	cascade := &rule.CompiledRule{
		Namespace: "app", Name: "seed",
		CascadeAction: func(ctx rule.SessionAPI) error {
			inserted = &order{ID: 1, Amount: 1}
			_, err := ctx.InsertFact(inserted)
			return err
		},
	}

	act, ok := cascade.Evaluate(nil)
	require.True(t, ok)

	fs := factspace.New()
	ctx := session.New(fs)
	require.NoError(t, cascade.Fire(ctx, nil, act))
	require.NotNil(t, inserted)

	_, ok = fs.SelectorOfFact(inserted)
	assert.True(t, ok, "cascade's inserted fact must be visible in the fact space")
}

// TestCascade_ImpliesMutatedEvenWithoutAnInsert exercises the cascade rule
// through the engine's own fire loop rather than calling Evaluate/Fire
// directly. The action deliberately does nothing the engine could detect as
// a mutation (no insert/modify/retract), so without the engine forcing
// modified = true for any CascadeAction, the loop would quiesce after one
// pass; since it never goes quiet on its own here, MaxEvaluations is the
// only thing that can stop it.
func TestCascade_ImpliesMutatedEvenWithoutAnInsert(t *testing.T) {
	runs := 0
	cascade := &rule.CompiledRule{
		Namespace: "app", Name: "noop-cascade", Arity: 1,
		ParamTypes: []reflect.Type{reflect.TypeOf(person{})},
		CascadeAction: func(ctx rule.SessionAPI) error {
			runs++
			return nil
		},
	}
	e, fs := newEngine(t, cascade.ParamTypes, []*rule.CompiledRule{cascade})
	_, _, err := fs.Add(&person{Name: "Alice", Age: 30})
	require.NoError(t, err)

	ctx := session.New(fs)
	ctx.MaxEvaluations = 5
	_, err = e.Evaluate(ctx)

	assert.ErrorIs(t, err, ErrEvaluationExhausted)
	assert.Greater(t, runs, 1, "cascade must keep re-firing across re-plans, not quiesce after its first fire")
}
