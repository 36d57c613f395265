package ruleset

import (
	"reflect"
	"testing"

	"github.com/ruleforge/engine/internal/factspace"
	"github.com/ruleforge/engine/internal/results"
	"github.com/ruleforge/engine/internal/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name string
	Age  int
}

func TestDecide_ComparesScoreToThreshold(t *testing.T) {
	rs := New("t")
	affirmOld := &rule.CompiledRule{
		Namespace: "app", Name: "affirm-adult", Arity: 1,
		ParamTypes: []reflect.Type{reflect.TypeOf(person{})},
		Conditions: []rule.Condition{func(facts []any) bool { return facts[0].(*person).Age >= 18 }},
		Consequence: func(ctx rule.SessionAPI, facts []any) error {
			ctx.Affirm(10)
			return nil
		},
	}
	vetoMinor := &rule.CompiledRule{
		Namespace: "app", Name: "veto-minor", Arity: 1,
		ParamTypes: []reflect.Type{reflect.TypeOf(person{})},
		Conditions: []rule.Condition{func(facts []any) bool { return facts[0].(*person).Age < 18 }},
		Consequence: func(ctx rule.SessionAPI, facts []any) error {
			ctx.Veto(3)
			return nil
		},
	}
	require.NoError(t, rs.Add([]reflect.Type{reflect.TypeOf(person{})}, []*rule.CompiledRule{affirmOld, vetoMinor}))

	ok, err := rs.Decide(5, &person{Name: "Alice", Age: 30})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rs.Decide(15, &person{Name: "Alice", Age: 30})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTryValidate_ReturnsViolationsWithoutRaising(t *testing.T) {
	rs := New("t")
	flag := &rule.CompiledRule{
		Namespace: "app", Name: "flag-minor", Arity: 1,
		ParamTypes: []reflect.Type{reflect.TypeOf(person{})},
		Conditions: []rule.Condition{func(facts []any) bool { return facts[0].(*person).Age < 18 }},
		Consequence: func(ctx rule.SessionAPI, facts []any) error {
			ctx.EmitEvent(results.Violation, "age", "too young")
			return nil
		},
	}
	require.NoError(t, rs.Add([]reflect.Type{reflect.TypeOf(person{})}, []*rule.CompiledRule{flag}))

	ok, violations, err := rs.TryValidate(&person{Name: "Bob", Age: 12})
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, violations, 1)
	assert.Equal(t, "too young", violations[0].Message)

	ok, violations, err = rs.TryValidate(&person{Name: "Alice", Age: 30})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, violations)
}

func TestEvaluationContext_AllowsManualFactsAndEvaluate(t *testing.T) {
	rs := New("t")
	fired := false
	r := &rule.CompiledRule{
		Namespace: "app", Name: "greet", Arity: 1,
		ParamTypes: []reflect.Type{reflect.TypeOf(person{})},
		Conditions: []rule.Condition{func(facts []any) bool { return true }},
		Consequence: func(ctx rule.SessionAPI, facts []any) error {
			fired = true
			return nil
		},
	}
	require.NoError(t, rs.Add([]reflect.Type{reflect.TypeOf(person{})}, []*rule.CompiledRule{r}))

	ctx := rs.EvaluationContext(factspace.New())
	require.NoError(t, ctx.AddFacts(&person{Name: "Alice", Age: 30}))

	res, err := rs.Evaluate(ctx)
	require.NoError(t, err)
	assert.True(t, fired)
	assert.EqualValues(t, 1, res.TotalFired)
}
