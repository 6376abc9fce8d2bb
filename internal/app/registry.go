package app

import (
	"sync"

	"livequiz-service/internal/domain"
)

// Sender delivers an outbound event to one connection. Implementations
// must not block; the transport backs this with a buffered channel.
type Sender func(domain.OutboundEvent)

// Connection is the registry's bookkeeping record for one live socket.
type Connection struct {
	ID            string
	Role          domain.Role
	QuizID        string
	ParticipantID string
	send          Sender
}

// Registry maps live connections to their role and attachment. It carries
// no business state and is the one structure shared across sessions, so
// every method is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*Connection
	onDetach func(Connection)
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// OnDetach installs the callback invoked (outside the registry lock) when
// a registered connection is unregistered. The dispatcher uses it for
// disconnect cleanup.
func (r *Registry) OnDetach(fn func(Connection)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDetach = fn
}

// Register adds a connection with its outbound sender. Registering an
// existing id replaces the sender but keeps the attachment.
func (r *Registry) Register(connID string, send Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[connID]; ok {
		c.send = send
		return
	}
	r.conns[connID] = &Connection{ID: connID, send: send}
}

// Unregister removes a connection. Unknown ids are a no-op.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
	}
	detach := r.onDetach
	r.mu.Unlock()

	if ok && detach != nil {
		detach(*c)
	}
}

// Attach records the role and quiz (and, for participants, the
// participant id) a connection is bound to.
func (r *Registry) Attach(connID string, role domain.Role, quizID, participantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return false
	}
	c.Role = role
	c.QuizID = quizID
	c.ParticipantID = participantID
	return true
}

// HostConnections returns the ids of connections attached as the given
// host.
func (r *Registry) HostConnections(hostID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for id, c := range r.conns {
		if c.Role == domain.RoleHost && c.ParticipantID == hostID {
			out = append(out, id)
		}
	}
	return out
}

// Lookup returns the connection record for an id.
func (r *Registry) Lookup(connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}

// Send delivers an event to a single connection; unknown ids are dropped.
func (r *Registry) Send(connID string, ev domain.OutboundEvent) {
	r.mu.RLock()
	c, ok := r.conns[connID]
	r.mu.RUnlock()
	if ok && c.send != nil {
		c.send(ev)
	}
}
