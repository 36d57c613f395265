package storage

import "time"

// RuleDefinition is the serializable, host-facing record a rule-definition
// file (or the rules API) describes: enough to compile one arity-1 rule via
// internal/dslrule without writing Go. Higher-arity rules, cascades and
// ForeachRules are still authored as Go builder code per spec.md §6's
// "rule-authoring input" contract — this is the one DSL-driven path.
type RuleDefinition struct {
	Namespace string `yaml:"namespace" json:"namespace"`
	Name      string `yaml:"name" json:"name"`

	// FactType names the single fact type this rule's condition and
	// violation message are evaluated against, resolved against the host's
	// registered fact types at load time.
	FactType string `yaml:"fact_type" json:"fact_type"`

	Salience      int64 `yaml:"salience" json:"salience"`
	Mutex         string `yaml:"mutex,omitempty" json:"mutex,omitempty"`
	Negated       bool  `yaml:"negated,omitempty" json:"negated,omitempty"`
	OnlyFiresOnce bool  `yaml:"fire_once,omitempty" json:"fire_once,omitempty"`

	// Condition is compiled by internal/dslrule into a func(facts []any) bool.
	Condition string `yaml:"condition" json:"condition"`

	ViolationGroup   string `yaml:"violation_group,omitempty" json:"violation_group,omitempty"`
	ViolationMessage string `yaml:"violation_message,omitempty" json:"violation_message,omitempty"`

	Enabled bool `yaml:"enabled" json:"enabled"`

	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

// ID is the definition's storage key: a rule-definition file or API call
// names a rule by namespace and name together, matching CompiledRule's own
// identity fields.
func (d RuleDefinition) ID() string {
	return d.Namespace + "." + d.Name
}
