package results

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitEvent_DedupsByValueButAlwaysCountsViolations(t *testing.T) {
	r := New(time.Now())

	e := RuleEvent{Category: Violation, RuleName: "r1", Group: "age", Message: "too young"}
	r.EmitEvent(e)
	r.EmitEvent(e)
	r.EmitEvent(e)

	assert.EqualValues(t, 3, r.ViolationCount, "ViolationCount increments on every emit, deduped or not")
	assert.Len(t, r.Events(), 1, "identical events collapse to one entry")
}

func TestEmitEvent_DistinctMessagesAreDistinctEvents(t *testing.T) {
	r := New(time.Now())
	r.EmitEvent(RuleEvent{Category: Warning, RuleName: "r1", Group: "age", Message: "a"})
	r.EmitEvent(RuleEvent{Category: Warning, RuleName: "r1", Group: "age", Message: "b"})

	assert.Len(t, r.Events(), 2)
	assert.EqualValues(t, 0, r.ViolationCount)
}

func TestEvents_PreservesFirstSeenOrder(t *testing.T) {
	r := New(time.Now())
	r.EmitEvent(RuleEvent{Category: Info, RuleName: "r1", Message: "first"})
	r.EmitEvent(RuleEvent{Category: Info, RuleName: "r2", Message: "second"})
	r.EmitEvent(RuleEvent{Category: Info, RuleName: "r1", Message: "first"}) // dup, no reorder

	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "first", events[0].Message)
	assert.Equal(t, "second", events[1].Message)
}

func TestScoreAndDecide(t *testing.T) {
	r := New(time.Now())
	r.Affirm(2.5)
	r.Affirm(1)
	r.Veto(1.5)

	assert.InDelta(t, 2.0, r.Score(), 0.0001)
	assert.True(t, r.Decide(2.0))
	assert.False(t, r.Decide(2.1))
}

func TestEventsByCategoryGroupRule(t *testing.T) {
	r := New(time.Now())
	r.EmitEvent(RuleEvent{Category: Violation, RuleName: "r1", Group: "billing", Message: "m1"})
	r.EmitEvent(RuleEvent{Category: Warning, RuleName: "r2", Group: "billing", Message: "m2"})
	r.EmitEvent(RuleEvent{Category: Violation, RuleName: "r1", Group: "shipping", Message: "m3"})

	assert.Len(t, r.EventsByCategory(Violation), 2)
	assert.Len(t, r.EventsByGroup("billing"), 2)
	assert.Len(t, r.EventsByRule("r1"), 2)
	assert.Len(t, r.ViolationsByGroup()["shipping"], 1)
}

func TestRecordFire_TracksTotalsAndPerRuleCounts(t *testing.T) {
	r := New(time.Now())
	r.RecordFire("a")
	r.RecordFire("a")
	r.RecordFire("b")

	assert.EqualValues(t, 3, r.TotalFired)
	assert.EqualValues(t, 2, r.FiredRules["a"])
	assert.EqualValues(t, 1, r.FiredRules["b"])
}

func TestSnapshot_ReflectsCurrentState(t *testing.T) {
	start := time.Now()
	r := New(start)
	r.Completed = start.Add(50 * time.Millisecond)
	r.Affirm(3)
	r.EmitEvent(RuleEvent{Category: Violation, RuleName: "r1", Message: "m"})

	snap := r.Snapshot()
	assert.EqualValues(t, 1, snap.ViolationCount)
	assert.InDelta(t, 3.0, snap.Score, 0.0001)
	assert.GreaterOrEqual(t, snap.DurationMillis, int64(50))
	assert.Len(t, snap.Events, 1)
}
