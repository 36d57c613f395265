package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ruleforge/engine/internal/dslrule"
	"github.com/ruleforge/engine/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RuleHandlers provides HTTP handlers for the rule-definition CRUD API.
type RuleHandlers struct {
	store  *storage.DiskRuleStore
	tracer trace.Tracer
}

// NewRuleHandlers creates rule API handlers.
func NewRuleHandlers(store *storage.DiskRuleStore, tracer trace.Tracer) *RuleHandlers {
	return &RuleHandlers{
		store:  store,
		tracer: tracer,
	}
}

// GetRules handles GET /api/rules
func (h *RuleHandlers) GetRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "GetRules")
		defer span.End()
	}

	rules, err := h.store.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules: "+err.Error())
		return
	}

	if h.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.Int("rules.count", len(rules)))
	}

	respondJSON(w, http.StatusOK, rules)
}

// GetRuleByID handles GET /api/rules/{id}
func (h *RuleHandlers) GetRuleByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "GetRuleByID")
		defer span.End()
	}

	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing rule id")
		return
	}

	rule, err := h.store.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "rule not found: "+id)
		return
	}

	if h.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("rule.id", rule.ID()))
	}

	respondJSON(w, http.StatusOK, rule)
}

// CreateRule handles POST /api/rules
func (h *RuleHandlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "CreateRule")
		defer span.End()
	}

	var def storage.RuleDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if def.Namespace == "" || def.Name == "" || def.FactType == "" || def.Condition == "" {
		respondError(w, http.StatusBadRequest, "missing required fields: namespace, name, fact_type, condition")
		return
	}

	if _, err := dslrule.Parse(def.Condition); err != nil {
		respondError(w, http.StatusBadRequest, "invalid condition: "+err.Error())
		return
	}

	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now

	if err := h.store.Create(def); err != nil {
		respondError(w, http.StatusConflict, "failed to create rule: "+err.Error())
		return
	}

	if h.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("rule.id", def.ID()))
	}

	respondJSON(w, http.StatusCreated, def)
}

// UpdateRule handles PUT /api/rules/{id}
func (h *RuleHandlers) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "UpdateRule")
		defer span.End()
	}

	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing rule id")
		return
	}

	existing, err := h.store.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "rule not found: "+id)
		return
	}

	var def storage.RuleDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if def.Condition != "" {
		if _, err := dslrule.Parse(def.Condition); err != nil {
			respondError(w, http.StatusBadRequest, "invalid condition: "+err.Error())
			return
		}
	}

	def.Namespace = existing.Namespace
	def.Name = existing.Name
	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now()

	if err := h.store.Update(def); err != nil {
		respondError(w, http.StatusNotFound, "rule not found: "+id)
		return
	}

	if h.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("rule.id", def.ID()))
	}

	respondJSON(w, http.StatusOK, def)
}

// DeleteRule handles DELETE /api/rules/{id}
func (h *RuleHandlers) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "DeleteRule")
		defer span.End()
	}

	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing rule id")
		return
	}

	if err := h.store.Delete(id); err != nil {
		respondError(w, http.StatusNotFound, "rule not found: "+id)
		return
	}

	if h.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("rule.id", id))
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "rule deleted",
		"id":      id,
	})
}
