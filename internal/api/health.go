package api

import (
	"net/http"

	"github.com/ruleforge/engine/internal/storage"
)

// HealthHandlers provides liveness and readiness probes.
type HealthHandlers struct {
	version string
	store   *storage.DiskRuleStore
}

// NewHealthHandlers creates liveness/readiness handlers. version is
// reported in the liveness body; store is probed for readiness (a
// reachable, loaded rule store means the process is ready to serve
// evaluate/facts traffic).
func NewHealthHandlers(version string, store *storage.DiskRuleStore) *HealthHandlers {
	return &HealthHandlers{version: version, store: store}
}

// Health handles GET /health — liveness: the process is up and serving.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.version,
	})
}

// Ready handles GET /ready — readiness: the rule store is loaded and
// usable.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	count := h.store.Count()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ready",
		"rules_count": count,
	})
}
