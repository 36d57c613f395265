package simharness

import "github.com/ruleforge/engine/internal/storage"

// sampleProbeRule builds a RuleDefinition over fact type "probe" with the
// given condition, enabled and ready to persist.
func sampleProbeRule(name, condition string) storage.RuleDefinition {
	return storage.RuleDefinition{
		Namespace:        "sim",
		Name:             name,
		FactType:         "probe",
		Salience:         100,
		Condition:        condition,
		ViolationGroup:   "sim",
		ViolationMessage: "probe violation",
		Enabled:          true,
	}
}
