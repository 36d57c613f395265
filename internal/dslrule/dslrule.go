// Package dslrule compiles a small textual condition language into a
// rule.Condition closure, so a storage.RuleDefinition loaded from a rules
// file (or submitted over the rules API) can describe an arity-1 rule's
// predicate without writing Go.
//
// Grammar (AND binds tighter than OR, left to right, no grouping):
//
//	expr       = andExpr ( "or" andExpr )*
//	andExpr    = comparison ( "and" comparison )*
//	comparison = field operator literal
//	operator   = "==" | "!=" | ">=" | "<=" | ">" | "<"
//	literal    = string | number | "true" | "false" | identifier
//
// field names a key of the bound Fact's Fields map.
package dslrule

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Fact is the envelope every dynamically-typed, host-submitted fact shares
// so the engine's fact space can index them all under one reflect.Type.
// A RuleDefinition's FactType names which Fact.Type a compiled condition
// expects; the condition itself reads Fact.Fields.
//
// Callers always insert a *Fact, never a Fact value: factspace.FactSpace
// keys facts by reference identity, and a Fact holding a map field is not
// a comparable value.
type Fact struct {
	Type   string
	Fields map[string]any
}

// Expression is the root of a parsed condition.
type Expression struct {
	Or []*AndExpr `parser:"@@ ( \"or\" @@ )*"`
}

// AndExpr is one or-branch: a conjunction of comparisons.
type AndExpr struct {
	Comparisons []*Comparison `parser:"@@ ( \"and\" @@ )*"`
}

// Comparison is a single field/operator/literal test.
type Comparison struct {
	Field    string   `parser:"@Ident"`
	Operator string   `parser:"@(\"==\" | \"!=\" | \">=\" | \"<=\" | \">\" | \"<\")"`
	Value    *Literal `parser:"@@"`
}

// Literal is a comparison's right-hand side.
type Literal struct {
	String *string  `parser:"@String"`
	Number *float64 `parser:"| @Float | @Int"`
	Bool   *string  `parser:"| @(\"true\" | \"false\")"`
	Ident  *string  `parser:"| @Ident"`
}

var conditionLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\n\r]+`},
	{Name: "Keyword", Pattern: `\b(and|or|true|false)\b`},
	{Name: "Float", Pattern: `\d+\.\d+`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Operator", Pattern: `==|!=|<=|>=|<|>`},
})

var parser = participle.MustBuild[Expression](
	participle.Lexer(conditionLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
)

// Parse parses a condition string into its AST without compiling it.
func Parse(src string) (*Expression, error) {
	return parser.ParseString("", src)
}

// Compile parses src and returns a rule.Condition-shaped closure that
// evaluates it against facts[0], which must be a *Fact. A compile error is
// returned eagerly so a bad rules file fails at load time, never at
// evaluation time.
func Compile(src string) (func(facts []any) bool, error) {
	expr, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("dslrule: parse %q: %w", src, err)
	}

	return func(facts []any) bool {
		if len(facts) == 0 {
			return false
		}
		f, ok := facts[0].(*Fact)
		if !ok {
			return false
		}
		return evalExpression(expr, *f)
	}, nil
}

func evalExpression(e *Expression, f Fact) bool {
	for _, and := range e.Or {
		if evalAnd(and, f) {
			return true
		}
	}
	return false
}

func evalAnd(a *AndExpr, f Fact) bool {
	for _, c := range a.Comparisons {
		if !evalComparison(c, f) {
			return false
		}
	}
	return true
}

func evalComparison(c *Comparison, f Fact) bool {
	fieldVal, present := f.Fields[c.Field]
	if !present {
		return false
	}
	return compare(fieldVal, c.Operator, c.Value)
}
