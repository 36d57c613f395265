// Package results holds the append-only output of one evaluation session:
// deduplicated events, fire counters, mutex winners and the running
// affirm/veto score.
package results

import "time"

// Category classifies a RuleEvent.
type Category int

const (
	Info Category = iota
	Warning
	Violation
)

func (c Category) String() string {
	switch c {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Violation:
		return "violation"
	default:
		return "unknown"
	}
}

// RuleEvent is equal to, and hashes the same as, any other event sharing
// its (Category, RuleName, Group, Message) — this is what lets identical
// violations emitted across re-evaluation passes collapse into one entry
// in Results.Events while still incrementing ViolationCount every time.
type RuleEvent struct {
	Category Category
	RuleName string
	Group    string
	Message  string
}

type eventKey struct {
	category Category
	ruleName string
	group    string
	message  string
}

func (e RuleEvent) key() eventKey {
	return eventKey{category: e.Category, ruleName: e.RuleName, group: e.Group, message: e.Message}
}

// Results is the mutable, append-only output of one evaluation session. It
// lives inside a session.Context and is not safe for concurrent use — a
// single session is never time-sliced.
type Results struct {
	events    map[eventKey]RuleEvent
	eventOrder []eventKey

	TotalEvaluated int64
	TotalFired     int64
	ViolationCount int64

	Started   time.Time
	Completed time.Time

	FiredRules   map[string]int64
	MutexWinners map[string]string

	Scratch map[string]any

	Affirmations float64
	Vetos        float64
}

// New returns an empty Results with Started set to now.
func New(now time.Time) *Results {
	return &Results{
		events:       make(map[eventKey]RuleEvent),
		FiredRules:   make(map[string]int64),
		MutexWinners: make(map[string]string),
		Scratch:      make(map[string]any),
		Started:      now,
	}
}

// EmitEvent records event, deduplicated by value. ViolationCount still
// increments on every Violation-category call regardless of dedup — see
// DESIGN.md for why both behaviors coexist.
func (r *Results) EmitEvent(e RuleEvent) {
	if e.Category == Violation {
		r.ViolationCount++
	}
	k := e.key()
	if _, exists := r.events[k]; !exists {
		r.events[k] = e
		r.eventOrder = append(r.eventOrder, k)
	}
}

// Affirm adds w to the running affirmations total.
func (r *Results) Affirm(w float64) { r.Affirmations += w }

// Veto adds w to the running vetos total.
func (r *Results) Veto(w float64) { r.Vetos += w }

// Score is affirmations minus vetos.
func (r *Results) Score() float64 { return r.Affirmations - r.Vetos }

// Decide reports whether Score meets or exceeds threshold.
func (r *Results) Decide(threshold float64) bool { return r.Score() >= threshold }

// RecordFire bumps TotalFired and the per-rule fire count for ruleName.
func (r *Results) RecordFire(ruleName string) {
	r.TotalFired++
	r.FiredRules[ruleName]++
}

// Events returns all recorded events in first-seen order.
func (r *Results) Events() []RuleEvent {
	out := make([]RuleEvent, len(r.eventOrder))
	for i, k := range r.eventOrder {
		out[i] = r.events[k]
	}
	return out
}

// Violations returns only Violation-category events.
func (r *Results) Violations() []RuleEvent {
	return r.EventsByCategory(Violation)
}

// EventsByCategory filters Events() by category.
func (r *Results) EventsByCategory(c Category) []RuleEvent {
	var out []RuleEvent
	for _, k := range r.eventOrder {
		e := r.events[k]
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

// EventsByGroup filters Events() by group name.
func (r *Results) EventsByGroup(group string) []RuleEvent {
	var out []RuleEvent
	for _, k := range r.eventOrder {
		e := r.events[k]
		if e.Group == group {
			out = append(out, e)
		}
	}
	return out
}

// EventsByRule filters Events() by rule name.
func (r *Results) EventsByRule(ruleName string) []RuleEvent {
	var out []RuleEvent
	for _, k := range r.eventOrder {
		e := r.events[k]
		if e.RuleName == ruleName {
			out = append(out, e)
		}
	}
	return out
}

// ViolationsByGroup buckets Violation-category events by group name.
func (r *Results) ViolationsByGroup() map[string][]RuleEvent {
	out := make(map[string][]RuleEvent)
	for _, k := range r.eventOrder {
		e := r.events[k]
		if e.Category == Violation {
			out[e.Group] = append(out[e.Group], e)
		}
	}
	return out
}

// DurationMillis is Completed-Started rounded to a 64-bit integer.
func (r *Results) DurationMillis() int64 {
	return r.Completed.Sub(r.Started).Milliseconds()
}

// Snapshot is a plain-data view of Results suitable for JSON/YAML
// marshaling (Results itself holds an unexported map and isn't directly
// serializable).
type Snapshot struct {
	Events         []RuleEvent      `json:"events" yaml:"events"`
	TotalEvaluated int64            `json:"total_evaluated" yaml:"total_evaluated"`
	TotalFired     int64            `json:"total_fired" yaml:"total_fired"`
	ViolationCount int64            `json:"violation_count" yaml:"violation_count"`
	DurationMillis int64            `json:"duration_ms" yaml:"duration_ms"`
	FiredRules     map[string]int64 `json:"fired_rules" yaml:"fired_rules"`
	MutexWinners   map[string]string `json:"mutex_winners" yaml:"mutex_winners"`
	Affirmations   float64          `json:"affirmations" yaml:"affirmations"`
	Vetos          float64          `json:"vetos" yaml:"vetos"`
	Score          float64          `json:"score" yaml:"score"`
}

// Snapshot returns a serializable copy of r's current state.
func (r *Results) Snapshot() Snapshot {
	return Snapshot{
		Events:         r.Events(),
		TotalEvaluated: r.TotalEvaluated,
		TotalFired:     r.TotalFired,
		ViolationCount: r.ViolationCount,
		DurationMillis: r.DurationMillis(),
		FiredRules:     r.FiredRules,
		MutexWinners:   r.MutexWinners,
		Affirmations:   r.Affirmations,
		Vetos:          r.Vetos,
		Score:          r.Score(),
	}
}
