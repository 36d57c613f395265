package api

import (
	"encoding/json"
	"net/http"

	"github.com/ruleforge/engine/internal/dslrule"
	"github.com/ruleforge/engine/internal/observability"
	"github.com/ruleforge/engine/internal/results"
	"github.com/ruleforge/engine/internal/storage"
	"go.opentelemetry.io/otel/trace"
)

// SessionHandlers provides the fact-submission/evaluate/results API: the
// host-facing surface a caller drives across one or more requests to
// accumulate facts into a session, run it against the currently enabled
// rule definitions, and fetch the outcome.
type SessionHandlers struct {
	store    *storage.DiskRuleStore
	sessions *sessionManager
	tracer   trace.Tracer
}

// NewSessionHandlers creates fact/evaluate/results API handlers backed by
// store's current rule definitions.
func NewSessionHandlers(store *storage.DiskRuleStore, tracer trace.Tracer) *SessionHandlers {
	return &SessionHandlers{
		store:    store,
		sessions: newSessionManager(),
		tracer:   tracer,
	}
}

// submitFactRequest is the POST /api/facts request body. Session is
// optional; omitting it starts a new session.
type submitFactRequest struct {
	Session string         `json:"session,omitempty"`
	Type    string         `json:"type"`
	Fields  map[string]any `json:"fields"`
}

type submitFactResponse struct {
	Session string `json:"session"`
}

// SubmitFact handles POST /api/facts
func (h *SessionHandlers) SubmitFact(w http.ResponseWriter, r *http.Request) {
	var req submitFactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Type == "" {
		respondError(w, http.StatusBadRequest, "missing required field: type")
		return
	}

	sessionID, hs := h.sessions.getOrCreate(req.Session)
	if hs.evaluated {
		respondError(w, http.StatusConflict, "session already evaluated: "+sessionID)
		return
	}

	fact := &dslrule.Fact{Type: req.Type, Fields: req.Fields}
	if _, err := hs.ctx.InsertFact(fact); err != nil {
		respondError(w, http.StatusBadRequest, "failed to insert fact: "+err.Error())
		return
	}

	observability.RecordFactInserted(r.Context(), req.Type)
	respondJSON(w, http.StatusAccepted, submitFactResponse{Session: sessionID})
}

// evaluateRequest is the POST /api/evaluate request body.
type evaluateRequest struct {
	Session string `json:"session"`
}

// EvaluateResponse summarizes a completed session's outcome.
type EvaluateResponse struct {
	Session string `json:"session"`
	results.Snapshot
}

// Evaluate handles POST /api/evaluate
func (h *SessionHandlers) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "Evaluate")
		defer span.End()
	}

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Session == "" {
		respondError(w, http.StatusBadRequest, "missing required field: session")
		return
	}

	hs, ok := h.sessions.get(req.Session)
	if !ok {
		respondError(w, http.StatusNotFound, "session not found: "+req.Session)
		return
	}
	if hs.evaluated {
		respondJSON(w, http.StatusOK, summarize(req.Session, hs))
		return
	}

	defs, err := h.store.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load rule definitions: "+err.Error())
		return
	}

	rs, err := BuildRuleSet(req.Session, defs)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "failed to compile rule definitions: "+err.Error())
		return
	}

	_, evalSpan := observability.StartSessionSpan(ctx, req.Session, nil)
	defer evalSpan.End()

	res, evalErr := rs.Evaluate(hs.ctx)
	observability.RecordSessionResult(evalSpan, res, evalErr)

	hs.results = res
	hs.evalErr = evalErr
	hs.evaluated = true

	if evalErr != nil {
		respondError(w, http.StatusUnprocessableEntity, "evaluation failed: "+evalErr.Error())
		return
	}

	respondJSON(w, http.StatusOK, summarize(req.Session, hs))
}

func summarize(sessionID string, hs *hostSession) EvaluateResponse {
	resp := EvaluateResponse{Session: sessionID}
	if hs.results != nil {
		resp.Snapshot = hs.results.Snapshot()
	}
	return resp
}

// GetResults handles GET /api/results/{session}
func (h *SessionHandlers) GetResults(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing session id")
		return
	}

	hs, ok := h.sessions.get(sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "session not found: "+sessionID)
		return
	}
	if !hs.evaluated {
		respondError(w, http.StatusConflict, "session has not been evaluated yet: "+sessionID)
		return
	}

	respondJSON(w, http.StatusOK, summarize(sessionID, hs))
}
