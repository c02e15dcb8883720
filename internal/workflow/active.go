package workflow

import "sync"

// ActiveRuns tracks which sessions have a run in flight.
type ActiveRuns struct {
	mu       sync.Mutex
	sessions map[string]struct{}
}

func NewActiveRuns() *ActiveRuns {
	return &ActiveRuns{sessions: make(map[string]struct{})}
}

// TryAcquire marks the session busy. It returns false when a run is
// already in flight for it.
func (a *ActiveRuns) TryAcquire(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.sessions[sessionID]; busy {
		return false
	}
	a.sessions[sessionID] = struct{}{}
	return true
}

func (a *ActiveRuns) Release(sessionID string) {
	a.mu.Lock()
	delete(a.sessions, sessionID)
	a.mu.Unlock()
}
