package api

import (
	"fmt"
	"reflect"

	"github.com/ruleforge/engine/internal/dslrule"
	"github.com/ruleforge/engine/internal/results"
	"github.com/ruleforge/engine/internal/rule"
	"github.com/ruleforge/engine/internal/ruleset"
	"github.com/ruleforge/engine/internal/storage"
)

var factType = reflect.TypeOf(&dslrule.Fact{})

// BuildRuleSet compiles every enabled RuleDefinition into an arity-1
// CompiledRule over dslrule.Fact and assembles them into a fresh,
// sealable RuleSet. This is the one DSL-driven authoring path; higher
// arity rules, cascades and ForeachRules have no RuleDefinition analog and
// are never produced here.
func BuildRuleSet(id string, defs []storage.RuleDefinition) (*ruleset.RuleSet, error) {
	rs := ruleset.New(id)

	var compiled []*rule.CompiledRule
	for _, def := range defs {
		if !def.Enabled {
			continue
		}

		cr, err := compileRuleDefinition(def)
		if err != nil {
			return nil, fmt.Errorf("rulecompiler: %s: %w", def.ID(), err)
		}
		compiled = append(compiled, cr)
	}

	if len(compiled) == 0 {
		return rs, nil
	}

	if err := rs.Add([]reflect.Type{factType}, compiled); err != nil {
		return nil, fmt.Errorf("rulecompiler: %w", err)
	}
	return rs, nil
}

func compileRuleDefinition(def storage.RuleDefinition) (*rule.CompiledRule, error) {
	predicate, err := dslrule.Compile(def.Condition)
	if err != nil {
		return nil, err
	}

	factTypeName := def.FactType
	group := def.ViolationGroup
	message := def.ViolationMessage
	if message == "" {
		message = def.Name + " condition matched"
	}

	condition := func(facts []any) bool {
		if len(facts) == 0 {
			return false
		}
		f, ok := facts[0].(*dslrule.Fact)
		if !ok || f.Type != factTypeName {
			return false
		}
		return predicate(facts)
	}

	consequence := func(ctx rule.SessionAPI, facts []any) error {
		ctx.EmitEvent(results.Violation, group, message)
		return nil
	}

	return &rule.CompiledRule{
		Namespace:     def.Namespace,
		Name:          def.Name,
		Arity:         1,
		ParamTypes:    []reflect.Type{factType},
		Salience:      def.Salience,
		Mutex:         def.Mutex,
		Negated:       def.Negated,
		OnlyFiresOnce: def.OnlyFiresOnce,
		Conditions:    []rule.Condition{condition},
		Consequence:   consequence,
	}, nil
}
