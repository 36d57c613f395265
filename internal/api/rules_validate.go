package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ruleforge/engine/internal/dslrule"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ValidateRuleRequest is the request body for condition validation.
type ValidateRuleRequest struct {
	Condition string `json:"condition"`
}

// ValidateRuleResponse is the response for condition validation.
type ValidateRuleResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	AST   string `json:"ast,omitempty"`
}

// ValidateRule handles POST /api/rules/validate
// Validates a condition expression's syntax without saving it.
func (h *RuleHandlers) ValidateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "ValidateRule")
		defer span.End()
	}

	var req ValidateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Condition == "" {
		respondError(w, http.StatusBadRequest, "missing required field: condition")
		return
	}

	expr, err := dslrule.Parse(req.Condition)
	if err != nil {
		if h.tracer != nil {
			span := trace.SpanFromContext(ctx)
			span.SetAttributes(
				attribute.Bool("validation.valid", false),
				attribute.String("validation.error", err.Error()),
			)
		}

		respondJSON(w, http.StatusOK, ValidateRuleResponse{
			Valid: false,
			Error: err.Error(),
		})
		return
	}

	if h.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.Bool("validation.valid", true))
	}

	respondJSON(w, http.StatusOK, ValidateRuleResponse{
		Valid: true,
		AST:   formatAST(expr),
	})
}

// formatAST renders a compact, debugging-oriented summary of a parsed
// condition: the number of or-branches and comparisons per branch.
func formatAST(expr *dslrule.Expression) string {
	if expr == nil {
		return "nil"
	}

	summary := fmt.Sprintf("%d or-branch(es)", len(expr.Or))
	for i, and := range expr.Or {
		summary += fmt.Sprintf(" [branch %d: %d comparison(s)]", i, len(and.Comparisons))
	}
	return summary
}
