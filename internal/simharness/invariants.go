package simharness

import (
	"fmt"

	"github.com/ruleforge/engine/internal/dslrule"
)

// Invariant is a property that must hold of a Harness at a given point in a
// simulation run.
type Invariant func(*Harness) (bool, string)

// NamedInvariant pairs an invariant with the name it's reported under.
type NamedInvariant struct {
	Name      string
	Invariant Invariant
}

// InvariantViolation records one failed invariant check, with enough context
// (seed, simulated time) to reproduce the run that found it.
type InvariantViolation struct {
	Name          string
	Message       string
	SimulatedTime string
	Seed          int64
}

// InvariantChecker runs a set of named invariants against a Harness and
// records any that fail.
type InvariantChecker struct {
	invariants []NamedInvariant
	violations []InvariantViolation
}

// NewInvariantChecker creates a checker pre-registered with the rule-store
// persistence properties (the fault-injection invariants); evaluation-engine
// invariants (salience, mutex, determinism) are registered by the caller
// since they need a prepared rule set.
func NewInvariantChecker() *InvariantChecker {
	ic := &InvariantChecker{}
	ic.Register("rule_persistence", RulePersistenceInvariant)
	ic.Register("no_duplicate_rule_ids", NoDuplicateRuleIDsInvariant)
	ic.Register("atomic_writes", AtomicWriteInvariant)
	ic.Register("idempotent_recovery", IdempotentRecoveryInvariant)
	return ic
}

// Register adds a named invariant to the checker.
func (ic *InvariantChecker) Register(name string, inv Invariant) {
	ic.invariants = append(ic.invariants, NamedInvariant{Name: name, Invariant: inv})
}

// CheckAll runs every registered invariant against h, returning whether all
// of them held.
func (ic *InvariantChecker) CheckAll(h *Harness) bool {
	allPass := true
	for _, named := range ic.invariants {
		if pass, message := named.Invariant(h); !pass {
			allPass = false
			ic.violations = append(ic.violations, InvariantViolation{
				Name:          named.Name,
				Message:       message,
				SimulatedTime: h.Now().String(),
				Seed:          h.Seed(),
			})
		}
	}
	return allPass
}

// Violations returns every invariant failure recorded so far.
func (ic *InvariantChecker) Violations() []InvariantViolation {
	return ic.violations
}

// -------------------------------------------------------------------
// Rule store / persistence invariants
// -------------------------------------------------------------------

// RulePersistenceInvariant: rule definitions survive a crash and restart
// unchanged, matching the disk rule store's recovery contract.
func RulePersistenceInvariant(h *Harness) (bool, string) {
	before := h.GetRules()
	countBefore := len(before)

	if err := h.CrashAndRestart(); err != nil {
		return false, fmt.Sprintf("crash/restart failed: %v", err)
	}

	after := h.GetRules()
	if len(after) != countBefore {
		return false, fmt.Sprintf("rule count changed: %d before, %d after restart", countBefore, len(after))
	}

	beforeByID := make(map[string]string, len(before))
	for _, d := range before {
		beforeByID[d.ID()] = d.Condition
	}
	for _, d := range after {
		cond, ok := beforeByID[d.ID()]
		if !ok {
			return false, fmt.Sprintf("rule %s appeared after restart with no pre-restart counterpart", d.ID())
		}
		if cond != d.Condition {
			return false, fmt.Sprintf("rule %s condition changed across restart: %q -> %q", d.ID(), cond, d.Condition)
		}
	}
	return true, ""
}

// NoDuplicateRuleIDsInvariant: the store never holds two definitions with
// the same namespace.name identity.
func NoDuplicateRuleIDsInvariant(h *Harness) (bool, string) {
	seen := make(map[string]bool)
	for _, d := range h.GetRules() {
		if seen[d.ID()] {
			return false, fmt.Sprintf("duplicate rule id: %s", d.ID())
		}
		seen[d.ID()] = true
	}
	return true, ""
}

// AtomicWriteInvariant: whatever is currently committed to disk decodes into
// well-formed definitions, even under fault injection — a rule store
// persist() that only partially lands (e.g. a truncated write that still
// gets renamed into place) would surface here as a rule with an empty
// condition or identity.
func AtomicWriteInvariant(h *Harness) (bool, string) {
	for _, d := range h.GetRules() {
		if d.Namespace == "" || d.Name == "" {
			return false, fmt.Sprintf("rule with empty identity found (namespace=%q name=%q): possible torn write", d.Namespace, d.Name)
		}
		if d.Condition == "" {
			return false, fmt.Sprintf("rule %s has empty condition: possible torn write", d.ID())
		}
		if _, err := dslrule.Parse(d.Condition); err != nil {
			return false, fmt.Sprintf("rule %s condition %q fails to parse after persistence: %v", d.ID(), d.Condition, err)
		}
	}
	return true, ""
}

// IdempotentRecoveryInvariant: restarting twice in a row is stable — the
// second restart must reproduce exactly what the first one recovered.
func IdempotentRecoveryInvariant(h *Harness) (bool, string) {
	first := h.GetRules()
	firstByID := make(map[string]string, len(first))
	for _, d := range first {
		firstByID[d.ID()] = d.Condition
	}

	if err := h.CrashAndRestart(); err != nil {
		return false, fmt.Sprintf("second restart failed: %v", err)
	}

	second := h.GetRules()
	if len(second) != len(first) {
		return false, fmt.Sprintf("rule count changed on second restart: %d -> %d", len(first), len(second))
	}
	for _, d := range second {
		cond, ok := firstByID[d.ID()]
		if !ok {
			return false, fmt.Sprintf("rule %s appeared only after second restart", d.ID())
		}
		if cond != d.Condition {
			return false, fmt.Sprintf("rule %s condition unstable across restarts: %q -> %q", d.ID(), cond, d.Condition)
		}
	}
	return true, ""
}

// NoDataLossUnderFaultsInvariant: the rule count never decreases as a result
// of generating more rules, even with fault injection enabled — a rejected
// write (disk full) must fail the create, not silently drop an existing one.
func NoDataLossUnderFaultsInvariant(h *Harness) (bool, string) {
	before := len(h.GetRules())
	for i := 0; i < 10; i++ {
		h.GenerateRule()
	}
	after := len(h.GetRules())
	if after < before {
		return false, fmt.Sprintf("rule count decreased under fault injection: %d -> %d", before, after)
	}
	return true, ""
}

// GracefulDegradationInvariant: the store keeps accepting new rules after a
// burst of fault-injected operations, rather than latching into a permanent
// failure state.
func GracefulDegradationInvariant(h *Harness) (bool, string) {
	def := h.GenerateRule()
	if def.Name == "" {
		// one rejected create under fault injection is expected; a second,
		// independent attempt must still be able to succeed.
		def = h.GenerateRule()
		if def.Name == "" {
			return false, "store rejected two consecutive rule creations: possible permanent failure state"
		}
	}
	return true, ""
}

// -------------------------------------------------------------------
// Evaluation invariants (exercise the compiled rule set directly)
// -------------------------------------------------------------------

// DeterministicEvaluationInvariant: evaluating the same fact against the
// current rule set twice, in two independent sessions, produces the same
// score and violation count both times.
func DeterministicEvaluationInvariant(h *Harness) (bool, string) {
	fact := &dslrule.Fact{Type: "probe", Fields: map[string]any{"value": 500}}

	first, err := h.EvaluateFacts(fact)
	if err != nil {
		return false, fmt.Sprintf("first evaluation failed: %v", err)
	}
	second, err := h.EvaluateFacts(fact)
	if err != nil {
		return false, fmt.Sprintf("second evaluation failed: %v", err)
	}

	if first.Score() != second.Score() {
		return false, fmt.Sprintf("non-deterministic score: %v then %v", first.Score(), second.Score())
	}
	if len(first.Violations()) != len(second.Violations()) {
		return false, fmt.Sprintf("non-deterministic violation count: %d then %d", len(first.Violations()), len(second.Violations()))
	}
	return true, ""
}
