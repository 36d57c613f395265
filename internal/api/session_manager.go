package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruleforge/engine/internal/factspace"
	"github.com/ruleforge/engine/internal/results"
	"github.com/ruleforge/engine/internal/session"
)

// hostSession is one fact-accumulation/evaluate/results round trip as seen
// over the HTTP API: a session.Context collecting facts across zero or
// more POST /api/facts calls until POST /api/evaluate runs it to
// completion, after which its Results are retrievable by session ID.
type hostSession struct {
	ctx       *session.Context
	results   *results.Results
	evalErr   error
	evaluated bool
	createdAt time.Time
}

// sessionManager holds every in-flight or completed host session in
// memory, keyed by a generated session ID. Sessions are a host-process
// convenience scoped to this process's lifetime; nothing persists them
// across restarts.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[string]*hostSession
}

func newSessionManager() *sessionManager {
	return &sessionManager{sessions: make(map[string]*hostSession)}
}

// getOrCreate returns the session for id, creating a fresh one if id is
// empty or unknown. Returns the (possibly new) session ID alongside it.
func (m *sessionManager) getOrCreate(id string) (string, *hostSession) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if s, ok := m.sessions[id]; ok {
			return id, s
		}
	}

	newID := uuid.NewString()
	s := &hostSession{
		ctx:       session.New(factspace.New()),
		createdAt: time.Now(),
	}
	m.sessions[newID] = s
	return newID, s
}

func (m *sessionManager) get(id string) (*hostSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}
