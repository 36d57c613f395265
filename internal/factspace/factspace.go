// Package factspace implements the typed, multi-index fact store that backs
// one evaluation session: stable identities, selector invalidation on
// modify, and per-runtime-type slots the rule tree and evaluation engine
// enumerate when building a plan.
package factspace

import (
	"fmt"
	"reflect"
)

// Identity is a stable, monotonically increasing handle assigned to a fact
// the first time it enters a FactSpace. It never changes for the life of
// the fact.
type Identity int64

// Selector is a per-session handle to an Identity. Unlike Identity, a
// Selector is invalidated by Modify and reissued, which is what forces
// activations built against the old selector to go stale. It is
// deliberately 16 bits wide: pkg/codec packs up to four of these into one
// uint64 to key the fire-once activation table, and a single evaluation
// session is never expected to carry more than 65535 live selectors at
// once.
type Selector uint16

// TypeSlot is the ordered set of identities of facts sharing exactly one
// runtime type. Subtyping/assignability is resolved by the rule tree, not
// here — a TypeSlot only ever holds facts of its own exact type.
type TypeSlot struct {
	Type       reflect.Type
	Identities []Identity
}

// InvalidSelectorError is returned by Modify, Retract, GetTuple and
// GetIdentityFromSelector when a selector no longer resolves to a live
// fact — either it was never issued, or it was invalidated by an earlier
// Modify or Retract.
type InvalidSelectorError struct {
	Selector Selector
}

func (e *InvalidSelectorError) Error() string {
	return fmt.Sprintf("factspace: invalid selector %d", e.Selector)
}

// FactSpace is owned by exactly one evaluation context on one goroutine at
// a time; callers serialize access themselves (the evaluation engine never
// calls it from more than one fire step at once), so it carries no lock of
// its own.
type FactSpace struct {
	slots     map[reflect.Type]*TypeSlot
	slotOrder []reflect.Type

	identityOfFact map[any]Identity
	factOfIdentity map[Identity]any
	typeOfIdentity map[Identity]reflect.Type

	identityOfSelector map[Selector]Identity
	selectorOfIdentity map[Identity]Selector

	nextIdentity Identity
	nextSelector Selector
	version      uint64
}

// New returns an empty FactSpace.
func New() *FactSpace {
	return &FactSpace{
		slots:              make(map[reflect.Type]*TypeSlot),
		identityOfFact:     make(map[any]Identity),
		factOfIdentity:     make(map[Identity]any),
		typeOfIdentity:     make(map[Identity]reflect.Type),
		identityOfSelector: make(map[Selector]Identity),
		selectorOfIdentity: make(map[Identity]Selector),
	}
}

// Version is a structural counter incremented on every Add, Modify and
// Retract. The engine does not read it: it re-plans when a fire step
// reports a mutation through session.Context.RunFireStep.
func (fs *FactSpace) Version() uint64 { return fs.version }

// Add inserts fact if it is not already present (compared by reference
// identity — fact must be a comparable value, typically a pointer). Adding
// an already-present instance is a no-op and returns the existing Identity
// with added=false.
func (fs *FactSpace) Add(fact any) (id Identity, added bool, err error) {
	if existing, ok := fs.identityOfFact[fact]; ok {
		return existing, false, nil
	}

	typ := reflect.TypeOf(fact)
	slot, ok := fs.slots[typ]
	if !ok {
		slot = &TypeSlot{Type: typ}
		fs.slots[typ] = slot
		fs.slotOrder = append(fs.slotOrder, typ)
	}

	id = fs.nextIdentity
	fs.nextIdentity++
	slot.Identities = append(slot.Identities, id)

	sel := fs.nextSelector
	fs.nextSelector++

	fs.identityOfFact[fact] = id
	fs.factOfIdentity[id] = fact
	fs.typeOfIdentity[id] = typ
	fs.identityOfSelector[sel] = id
	fs.selectorOfIdentity[id] = sel

	fs.version++
	return id, true, nil
}

// AddAll inserts facts in order, exactly as repeated calls to Add would:
// duplicates already present are skipped idempotently.
func (fs *FactSpace) AddAll(facts []any) ([]Identity, error) {
	ids := make([]Identity, len(facts))
	for i, f := range facts {
		id, _, err := fs.Add(f)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// InsertFact is the consequence-facing alias for Add; same semantics.
func (fs *FactSpace) InsertFact(fact any) (Identity, error) {
	id, _, err := fs.Add(fact)
	return id, err
}

// Selector returns the live selector currently naming identity, used by the
// evaluation engine when it enumerates a TypeSlot's identities into
// selector-tuples for a plan.
func (fs *FactSpace) Selector(id Identity) (Selector, bool) {
	sel, ok := fs.selectorOfIdentity[id]
	return sel, ok
}

// SelectorOfFact returns the live selector for a fact value already present
// in the space, used to honor a rule's ModifyExtractor: the consequence
// mutated fact in place without calling ModifyFact itself, so the engine
// looks up its selector here and invalidates/reissues it on fact's behalf.
func (fs *FactSpace) SelectorOfFact(fact any) (Selector, bool) {
	id, ok := fs.identityOfFact[fact]
	if !ok {
		return 0, false
	}
	return fs.Selector(id)
}

// ModifyFact invalidates selector and issues a new one for the same
// identity. The fact does not move within its TypeSlot.
func (fs *FactSpace) ModifyFact(selector Selector) (Selector, error) {
	id, ok := fs.identityOfSelector[selector]
	if !ok {
		return 0, &InvalidSelectorError{Selector: selector}
	}

	delete(fs.identityOfSelector, selector)

	next := fs.nextSelector
	fs.nextSelector++
	fs.identityOfSelector[next] = id
	fs.selectorOfIdentity[id] = next

	fs.version++
	return next, nil
}

// RetractFact invalidates selector, removes its identity from the fact
// space entirely, and clears every map referencing it. Subsequent
// resolution of selector (or any selector formerly pointing at the same
// identity) fails.
func (fs *FactSpace) RetractFact(selector Selector) error {
	id, ok := fs.identityOfSelector[selector]
	if !ok {
		return &InvalidSelectorError{Selector: selector}
	}

	fact := fs.factOfIdentity[id]
	typ := fs.typeOfIdentity[id]

	if slot, ok := fs.slots[typ]; ok {
		for i, slotID := range slot.Identities {
			if slotID == id {
				slot.Identities = append(slot.Identities[:i], slot.Identities[i+1:]...)
				break
			}
		}
	}

	delete(fs.identityOfSelector, selector)
	delete(fs.selectorOfIdentity, id)
	delete(fs.factOfIdentity, id)
	delete(fs.typeOfIdentity, id)
	delete(fs.identityOfFact, fact)

	fs.version++
	return nil
}

// GetTuple resolves each selector to its identity's current fact value, in
// order. Any invalid selector makes the whole call fail.
func (fs *FactSpace) GetTuple(selectors []Selector) ([]any, error) {
	facts := make([]any, len(selectors))
	for i, sel := range selectors {
		id, ok := fs.identityOfSelector[sel]
		if !ok {
			return nil, &InvalidSelectorError{Selector: sel}
		}
		facts[i] = fs.factOfIdentity[id]
	}
	return facts, nil
}

// GetIdentityFromSelector resolves each selector to its Identity, in order.
func (fs *FactSpace) GetIdentityFromSelector(selectors []Selector) ([]Identity, error) {
	ids := make([]Identity, len(selectors))
	for i, sel := range selectors {
		id, ok := fs.identityOfSelector[sel]
		if !ok {
			return nil, &InvalidSelectorError{Selector: sel}
		}
		ids[i] = id
	}
	return ids, nil
}

// GetFactTypes looks up the runtime type of each identity.
func (fs *FactSpace) GetFactTypes(ids []Identity) []reflect.Type {
	types := make([]reflect.Type, len(ids))
	for i, id := range ids {
		types[i] = fs.typeOfIdentity[id]
	}
	return types
}

// Schema returns the fact space's TypeSlots in the order each type's first
// fact was inserted. The returned slots are snapshots; mutating the
// returned slice does not affect the FactSpace.
func (fs *FactSpace) Schema() []TypeSlot {
	out := make([]TypeSlot, len(fs.slotOrder))
	for i, typ := range fs.slotOrder {
		slot := fs.slots[typ]
		ids := make([]Identity, len(slot.Identities))
		copy(ids, slot.Identities)
		out[i] = TypeSlot{Type: typ, Identities: ids}
	}
	return out
}
