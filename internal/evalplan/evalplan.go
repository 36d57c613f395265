// Package evalplan builds, for one fact-space snapshot, the ordered list of
// (rule, selector-tuple) activation candidates the evaluation engine will
// consider this planning cycle.
package evalplan

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/ruleforge/engine/internal/factspace"
	"github.com/ruleforge/engine/internal/rule"
	"github.com/ruleforge/engine/internal/ruletree"
	"github.com/ruleforge/engine/pkg/codec"
)

// MaxArity mirrors ruletree.MaxArity: the planner enumerates combinations
// for arities 1..4.
const MaxArity = ruletree.MaxArity

// Candidate is one activation the engine will evaluate: a rule paired with
// the concrete selector-tuple it would bind against.
type Candidate struct {
	Rule      *rule.CompiledRule
	Selectors []factspace.Selector
}

// Plan is an ordered list of candidates, sorted stably by
// (salience ascending, rule name ascending) as spec.md requires; tuple
// insertion order (the third tie-break) falls out naturally because
// candidates are generated in fact-space insertion order to begin with.
type Plan struct {
	Candidates []Candidate
}

// Builder caches the rule tree's FindRules results per type-slot-index
// combination across planning cycles within one session, keyed by a packed
// pkg/codec signature for arities 1..3 and by a fixed-size array for arity
// 4 (which pkg/codec cannot pack — see ruletree's side table).
type Builder struct {
	Tree       *ruletree.RuleTree
	Namespaces []string

	cache  map[uint32][]*rule.CompiledRule
	cache4 map[[MaxArity]int][]*rule.CompiledRule
}

// NewBuilder returns a Builder querying tree, restricted to namespaces
// (nil/empty means unfiltered).
func NewBuilder(tree *ruletree.RuleTree, namespaces []string) *Builder {
	return &Builder{
		Tree:       tree,
		Namespaces: namespaces,
		cache:      make(map[uint32][]*rule.CompiledRule),
		cache4:     make(map[[MaxArity]int][]*rule.CompiledRule),
	}
}

// Build snapshots fs's schema and produces a sorted Plan of every
// (rule, selector-tuple) candidate whose rule is in its time window at now.
func (b *Builder) Build(fs *factspace.FactSpace, now time.Time) (*Plan, error) {
	schema := fs.Schema()

	var candidates []Candidate
	for k := 1; k <= MaxArity; k++ {
		if len(schema) == 0 {
			break
		}
		for _, combo := range cartesianIndices(len(schema), k) {
			rules, err := b.rulesFor(combo, schema)
			if err != nil {
				return nil, err
			}
			if len(rules) == 0 {
				continue
			}

			tuples := selectorTuples(fs, schema, combo)
			if len(tuples) == 0 {
				continue
			}

			for _, r := range rules {
				if !r.InWindow(now) {
					continue
				}
				for _, sels := range tuples {
					candidates = append(candidates, Candidate{Rule: r, Selectors: sels})
				}
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Rule.Salience != candidates[j].Rule.Salience {
			return candidates[i].Rule.Salience < candidates[j].Rule.Salience
		}
		return candidates[i].Rule.Name < candidates[j].Rule.Name
	})

	return &Plan{Candidates: candidates}, nil
}

func (b *Builder) rulesFor(combo []int, schema []factspace.TypeSlot) ([]*rule.CompiledRule, error) {
	types := make([]reflect.Type, len(combo))
	for i, idx := range combo {
		types[i] = schema[idx].Type
	}

	if len(combo) <= codec.MaxSignatureArity {
		idxBytes := make([]byte, len(combo))
		for i, idx := range combo {
			if idx > 255 {
				return nil, fmt.Errorf("evalplan: schema has more than 256 type slots, cannot pack index %d", idx)
			}
			idxBytes[i] = byte(idx)
		}
		key, err := codec.EncodeSignature(idxBytes)
		if err != nil {
			return nil, err
		}
		if cached, ok := b.cache[key]; ok {
			return cached, nil
		}
		rules := b.Tree.FindRules(types, b.Namespaces)
		b.cache[key] = rules
		return rules, nil
	}

	var key [MaxArity]int
	copy(key[:], combo)
	if cached, ok := b.cache4[key]; ok {
		return cached, nil
	}
	rules := b.Tree.FindRules(types, b.Namespaces)
	b.cache4[key] = rules
	return rules, nil
}

// cartesianIndices returns every ordered k-length tuple of indices in
// [0,n), with repetition, in nested lexicographic order.
func cartesianIndices(n, k int) [][]int {
	if k == 0 {
		return [][]int{{}}
	}
	var out [][]int
	var build func(prefix []int)
	build = func(prefix []int) {
		if len(prefix) == k {
			combo := make([]int, k)
			copy(combo, prefix)
			out = append(out, combo)
			return
		}
		for i := 0; i < n; i++ {
			build(append(prefix, i))
		}
	}
	build(nil)
	return out
}

// selectorTuples returns the cartesian product of the live selectors of
// each slot named by combo, in slot order.
func selectorTuples(fs *factspace.FactSpace, schema []factspace.TypeSlot, combo []int) [][]factspace.Selector {
	perSlot := make([][]factspace.Selector, len(combo))
	for i, idx := range combo {
		ids := schema[idx].Identities
		sels := make([]factspace.Selector, 0, len(ids))
		for _, id := range ids {
			if sel, ok := fs.Selector(id); ok {
				sels = append(sels, sel)
			}
		}
		if len(sels) == 0 {
			return nil
		}
		perSlot[i] = sels
	}

	var out [][]factspace.Selector
	var build func(prefix []factspace.Selector, pos int)
	build = func(prefix []factspace.Selector, pos int) {
		if pos == len(perSlot) {
			tuple := make([]factspace.Selector, len(prefix))
			copy(tuple, prefix)
			out = append(out, tuple)
			return
		}
		for _, sel := range perSlot[pos] {
			build(append(prefix, sel), pos+1)
		}
	}
	build(nil, 0)
	return out
}
