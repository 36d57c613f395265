// Package ruletree implements the polymorphic, arity-aware fact-type
// discriminator: an index from an ordered tuple of runtime fact types to
// the compiled rules whose declared parameter types each admit the
// corresponding tuple position.
package ruletree

import (
	"errors"
	"reflect"
	"strings"

	"github.com/ruleforge/engine/internal/rule"
	"github.com/ruleforge/engine/pkg/fsm"
)

// MaxArity is the largest rule arity the tree indexes by type path; arity-4
// rules bypass the type-path tree entirely and are matched by linear scan
// over a side table (see the arity-4 notes in DESIGN.md for why: the packed signature used
// elsewhere to cache type-slot combinations has no spare terminator bit
// left at arity 4).
const MaxArity = 4

var (
	// ErrSealed is returned by Add once the tree has been sealed by a
	// first call to FindRules.
	ErrSealed = errors.New("ruletree: add after seal")
	// ErrInvalidArity is returned by Add for arity outside [1,4].
	ErrInvalidArity = errors.New("ruletree: arity must be between 1 and 4")
	// ErrArityMismatch is returned by Add when a rule's declared Arity
	// does not match len(types).
	ErrArityMismatch = errors.New("ruletree: rule arity does not match types length")
)

// node is one depth level of the type-path tree. edges maps a declared
// parameter type to the subtree for facts assignable to it; order records
// edges in insertion order so FindRules can preserve it in results.
type node struct {
	edges map[reflect.Type]*node
	order []reflect.Type
	rules []*rule.CompiledRule
}

func newNode() *node {
	return &node{edges: make(map[reflect.Type]*node)}
}

func (n *node) child(t reflect.Type) *node {
	c, ok := n.edges[t]
	if !ok {
		c = newNode()
		n.edges[t] = c
		n.order = append(n.order, t)
	}
	return c
}

// arity4Entry is one arity-4 rule-set registration, matched by linear
// positional assignability scan instead of a packed-signature tree path.
type arity4Entry struct {
	types []reflect.Type
	rules []*rule.CompiledRule
}

// RuleTree is append-only while Build and read-only once Sealed; the first
// FindRules call seals it.
type RuleTree struct {
	roots  [MaxArity + 1]*node // index 0 unused; arities 1..3 live in the tree
	arity4 []arity4Entry
	state  *fsm.TreeFSM
}

// New returns an empty RuleTree in the Build state.
func New(id string) *RuleTree {
	var t RuleTree
	for i := 1; i <= 3; i++ {
		t.roots[i] = newNode()
	}
	t.state = fsm.NewTreeFSM(id)
	return &t
}

// Add registers rules under the type path types. All rules must share
// arity len(types). Fails with ErrSealed once the tree has been sealed, and
// with ErrInvalidArity/ErrArityMismatch for malformed input.
func (t *RuleTree) Add(types []reflect.Type, rules []*rule.CompiledRule) error {
	arity := len(types)
	if arity < 1 || arity > MaxArity {
		return ErrInvalidArity
	}
	if t.state.State() == fsm.TreeSealed {
		return ErrSealed
	}
	for _, r := range rules {
		if r.Arity != arity {
			return ErrArityMismatch
		}
	}

	if arity == MaxArity {
		t.arity4 = append(t.arity4, arity4Entry{types: types, rules: rules})
		return nil
	}

	n := t.roots[arity]
	for _, typ := range types {
		n = n.child(typ)
	}
	n.rules = append(n.rules, rules...)
	return nil
}

// FindRules returns every rule whose declared parameter types are each
// assignable from the corresponding position of types, restricted to
// namespaces (empty namespaces means no filter). The first call seals the
// tree.
func (t *RuleTree) FindRules(types []reflect.Type, namespaces []string) []*rule.CompiledRule {
	if t.state.State() == fsm.TreeBuild {
		_ = t.state.Transition(fsm.TreeEventSeal)
	}

	arity := len(types)
	if arity == MaxArity {
		return t.findArity4(types, namespaces)
	}
	if arity < 1 || arity > 3 {
		return nil
	}

	var out []*rule.CompiledRule
	collect(t.roots[arity], types, 0, namespaces, &out)
	return out
}

func collect(n *node, query []reflect.Type, depth int, namespaces []string, out *[]*rule.CompiledRule) {
	if depth == len(query) {
		for _, r := range n.rules {
			if namespaceAllowed(r.Namespace, namespaces) {
				*out = append(*out, r)
			}
		}
		return
	}
	for _, edgeType := range n.order {
		if !assignableFrom(edgeType, query[depth]) {
			continue
		}
		collect(n.edges[edgeType], query, depth+1, namespaces, out)
	}
}

func (t *RuleTree) findArity4(types []reflect.Type, namespaces []string) []*rule.CompiledRule {
	var out []*rule.CompiledRule
	for _, entry := range t.arity4 {
		matched := true
		for i, edgeType := range entry.types {
			if !assignableFrom(edgeType, types[i]) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		for _, r := range entry.rules {
			if namespaceAllowed(r.Namespace, namespaces) {
				out = append(out, r)
			}
		}
	}
	return out
}

// Clear empties the tree and reopens it for Build.
func (t *RuleTree) Clear() {
	for i := 1; i <= 3; i++ {
		t.roots[i] = newNode()
	}
	t.arity4 = nil
	if t.state.State() == fsm.TreeSealed {
		_ = t.state.Transition(fsm.TreeEventClear)
	}
}

// Sealed reports whether the first FindRules call has happened.
func (t *RuleTree) Sealed() bool { return t.state.State() == fsm.TreeSealed }

// assignableFrom reports whether a fact of queryType may bind to a
// parameter declared as edgeType: exact type match, queryType is a pointer
// to edgeType (facts are held by reference), or edgeType is an interface
// queryType implements.
func assignableFrom(edgeType, queryType reflect.Type) bool {
	if edgeType == queryType {
		return true
	}
	if queryType.Kind() == reflect.Ptr && queryType.Elem() == edgeType {
		return true
	}
	if edgeType.Kind() == reflect.Interface {
		return queryType.Implements(edgeType)
	}
	return false
}

func namespaceAllowed(namespace string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(namespace, p) {
			return true
		}
	}
	return false
}
