package factspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name string
	Age  int
}

func TestAdd_SameInstanceIsNoOp(t *testing.T) {
	fs := New()
	p := &person{Name: "Alice", Age: 25}

	id1, added1, err := fs.Add(p)
	require.NoError(t, err)
	assert.True(t, added1)

	id2, added2, err := fs.Add(p)
	require.NoError(t, err)
	assert.False(t, added2)
	assert.Equal(t, id1, id2)
}

func TestAdd_DistinctInstancesYieldDistinctIdentities(t *testing.T) {
	fs := New()
	a := &person{Name: "Alice", Age: 25}
	b := &person{Name: "Bob", Age: 30}

	idA, _, err := fs.Add(a)
	require.NoError(t, err)
	idB, _, err := fs.Add(b)
	require.NoError(t, err)

	assert.NotEqual(t, idA, idB)
}

func TestModifyFact_InvalidatesOldSelector(t *testing.T) {
	fs := New()
	p := &person{Name: "Alice", Age: 25}
	id, _, err := fs.Add(p)
	require.NoError(t, err)

	oldSel, ok := fs.Selector(id)
	require.True(t, ok)

	newSel, err := fs.ModifyFact(oldSel)
	require.NoError(t, err)
	assert.NotEqual(t, oldSel, newSel)

	_, err = fs.GetTuple([]Selector{oldSel})
	assert.Error(t, err)

	facts, err := fs.GetTuple([]Selector{newSel})
	require.NoError(t, err)
	assert.Same(t, p, facts[0])
}

func TestRetractFact_InvalidatesSelectorAndRemovesFromSlot(t *testing.T) {
	fs := New()
	p := &person{Name: "Alice", Age: 25}
	id, _, err := fs.Add(p)
	require.NoError(t, err)
	sel, _ := fs.Selector(id)

	require.NoError(t, fs.RetractFact(sel))

	_, err = fs.GetTuple([]Selector{sel})
	assert.Error(t, err)

	schema := fs.Schema()
	require.Len(t, schema, 1)
	assert.Empty(t, schema[0].Identities)
}

func TestVersion_IncrementsOnMutation(t *testing.T) {
	fs := New()
	p := &person{Name: "Alice", Age: 25}
	assert.EqualValues(t, 0, fs.Version())

	_, _, err := fs.Add(p)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fs.Version())

	sel, _ := fs.Selector(0)
	_, err = fs.ModifyFact(sel)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fs.Version())
}

func TestSchema_OrderMatchesFirstInsertion(t *testing.T) {
	fs := New()
	type order struct{ ID int }

	p := &person{Name: "Alice"}
	o := &order{ID: 1}
	_, _, err := fs.Add(o)
	require.NoError(t, err)
	_, _, err = fs.Add(p)
	require.NoError(t, err)

	schema := fs.Schema()
	require.Len(t, schema, 2)
	assert.Equal(t, "order", schema[0].Type.Elem().Name())
	assert.Equal(t, "person", schema[1].Type.Elem().Name())
}

func TestModifyFact_UnknownSelectorFails(t *testing.T) {
	fs := New()
	_, err := fs.ModifyFact(999)
	require.Error(t, err)

	var invalidErr *InvalidSelectorError
	require.ErrorAs(t, err, &invalidErr)
}

func TestAddAll_PreservesOrderAndDedups(t *testing.T) {
	fs := New()
	p := &person{Name: "Alice"}
	b := &person{Name: "Bob"}

	ids, err := fs.AddAll([]any{p, b, p})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, ids[0], ids[2])
}
