package app

import (
	"sync"

	"livequiz-service/internal/domain"
)

// SessionLiveness lets an infra layer mirror which sessions are live
// (e.g. Redis markers). Failures are the implementation's to swallow;
// the in-memory registry stays authoritative.
type SessionLiveness interface {
	MarkLive(quizID string)
	ClearLive(quizID string)
}

// SessionRegistry owns the set of active quiz sessions. Discovery scans
// it for the first Active session. Safe for concurrent use; it never
// holds its own lock while touching a session's lock beyond reading the
// phase.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
	liveness SessionLiveness
}

func NewSessionRegistry(liveness SessionLiveness) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		liveness: liveness,
	}
}

// Put registers a session under its id, replacing any previous one.
func (r *SessionRegistry) Put(session *Session) {
	r.mu.Lock()
	if _, ok := r.sessions[session.ID()]; !ok {
		r.order = append(r.order, session.ID())
	}
	r.sessions[session.ID()] = session
	r.mu.Unlock()

	if r.liveness != nil {
		r.liveness.MarkLive(session.ID())
	}
}

// Get returns the session for a quiz id.
func (r *SessionRegistry) Get(quizID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[quizID]
	return s, ok
}

// FirstActive returns the earliest-registered session currently in the
// Active phase. Discovery resolves participants with no known quiz id.
func (r *SessionRegistry) FirstActive() (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if s := r.sessions[id]; s != nil && s.Phase() == domain.PhaseActive {
			return s, true
		}
	}
	return nil, false
}

// ByHost returns the sessions created by a host, in registration order.
func (r *SessionRegistry) ByHost(hostID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, id := range r.order {
		if s := r.sessions[id]; s != nil && s.HostID() == hostID {
			out = append(out, s)
		}
	}
	return out
}

// Delete removes a session from the active set. Unknown ids are a no-op.
func (r *SessionRegistry) Delete(quizID string) {
	r.mu.Lock()
	if _, ok := r.sessions[quizID]; ok {
		delete(r.sessions, quizID)
		for i, id := range r.order {
			if id == quizID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if r.liveness != nil {
		r.liveness.ClearLive(quizID)
	}
}
