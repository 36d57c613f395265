package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ruleforge/engine/internal/dslrule"
	"github.com/ruleforge/engine/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// YAMLRuleFile is the bulk-import document shape: a list of rule
// definitions, one file covering any number of namespaces.
type YAMLRuleFile struct {
	Rules []YAMLRule `yaml:"rules"`
}

// YAMLRule is a single rule definition as it appears in an import file.
// Distinct from storage.RuleDefinition's own YAML shape because an import
// file additionally carries a documentation-only example.
type YAMLRule struct {
	Namespace        string                `yaml:"namespace"`
	Name             string                `yaml:"name"`
	FactType         string                `yaml:"fact_type"`
	Salience         int64                 `yaml:"salience"`
	Mutex            string                `yaml:"mutex"`
	Negated          bool                  `yaml:"negated"`
	FireOnce         bool                  `yaml:"fire_once"`
	Condition        string                `yaml:"condition"`
	ViolationGroup   string                `yaml:"violation_group"`
	ViolationMessage string                `yaml:"violation_message"`
	ExampleViolation *YAMLExampleViolation `yaml:"example_violation,omitempty"`
}

// YAMLExampleViolation documents a fact shape expected to trigger the rule.
// Carried through the import file for readability only; never persisted.
type YAMLExampleViolation struct {
	Description string           `yaml:"description"`
	Fact        map[string]any   `yaml:"fact"`
}

// ImportRules handles POST /api/rules/import
// Accepts a YAML file describing multiple rule definitions and bulk
// imports them into the disk-backed rule store.
func (h *RuleHandlers) ImportRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "ImportRules")
		defer span.End()
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}

	var yamlFile YAMLRuleFile
	if err := yaml.Unmarshal(body, &yamlFile); err != nil {
		respondError(w, http.StatusBadRequest, "invalid YAML format: "+err.Error())
		return
	}

	if len(yamlFile.Rules) == 0 {
		respondError(w, http.StatusBadRequest, "no rules found in YAML file")
		return
	}

	results := ImportResults{
		Total:    len(yamlFile.Rules),
		Errors:   make([]ImportError, 0),
		Imported: make([]storage.RuleDefinition, 0),
	}

	now := time.Now()

	for i, yamlRule := range yamlFile.Rules {
		if yamlRule.Namespace == "" || yamlRule.Name == "" {
			results.Failed++
			results.Errors = append(results.Errors, ImportError{
				Index:   i,
				RuleID:  yamlRule.Namespace + "." + yamlRule.Name,
				Message: "missing required fields: namespace, name",
			})
			continue
		}

		if yamlRule.FactType == "" || yamlRule.Condition == "" {
			results.Failed++
			results.Errors = append(results.Errors, ImportError{
				Index:   i,
				RuleID:  yamlRule.Namespace + "." + yamlRule.Name,
				Message: "missing required fields: fact_type, condition",
			})
			continue
		}

		condition := strings.TrimSpace(yamlRule.Condition)
		if _, err := dslrule.Parse(condition); err != nil {
			results.Failed++
			results.Errors = append(results.Errors, ImportError{
				Index:   i,
				RuleID:  yamlRule.Namespace + "." + yamlRule.Name,
				Message: fmt.Sprintf("invalid condition: %v", err),
			})
			continue
		}

		def := storage.RuleDefinition{
			Namespace:        yamlRule.Namespace,
			Name:             yamlRule.Name,
			FactType:         yamlRule.FactType,
			Salience:         yamlRule.Salience,
			Mutex:            yamlRule.Mutex,
			Negated:          yamlRule.Negated,
			OnlyFiresOnce:    yamlRule.FireOnce,
			Condition:        condition,
			ViolationGroup:   yamlRule.ViolationGroup,
			ViolationMessage: yamlRule.ViolationMessage,
			Enabled:          true,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if err := h.store.Create(def); err != nil {
			results.Failed++
			results.Errors = append(results.Errors, ImportError{
				Index:   i,
				RuleID:  def.ID(),
				Message: fmt.Sprintf("failed to create rule: %v", err),
			})
			continue
		}

		results.Succeeded++
		results.Imported = append(results.Imported, def)
	}

	if h.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(
			attribute.Int("import.total", results.Total),
			attribute.Int("import.succeeded", results.Succeeded),
			attribute.Int("import.failed", results.Failed),
		)
	}

	if results.Failed > 0 {
		respondJSON(w, http.StatusMultiStatus, results)
	} else {
		respondJSON(w, http.StatusOK, results)
	}
}

// ImportResults represents the response from bulk import.
type ImportResults struct {
	Total     int                       `json:"total"`
	Succeeded int                       `json:"succeeded"`
	Failed    int                       `json:"failed"`
	Errors    []ImportError             `json:"errors,omitempty"`
	Imported  []storage.RuleDefinition `json:"imported"`
}

// ImportError represents a single import failure.
type ImportError struct {
	Index   int    `json:"index"`
	RuleID  string `json:"rule_id,omitempty"`
	Message string `json:"message"`
}
