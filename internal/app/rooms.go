package app

import (
	"sync"

	"go.uber.org/zap"

	"livequiz-service/internal/domain"
)

// Room names used by the dispatcher.
const roomLobby = "lobby"

// HostRoom is the delivery group for the single host of a quiz.
func HostRoom(quizID string) string { return "host:" + quizID }

// QuizRoom is the delivery group for all participants of a quiz.
func QuizRoom(quizID string) string { return "quiz:" + quizID }

// Rooms groups connections into named broadcast groups and fans events out
// through the registry's senders. Membership is purely a delivery-list
// concern; it carries no business state.
type Rooms struct {
	registry *Registry
	logger   *zap.Logger

	mu      sync.RWMutex
	rooms   map[string]map[string]struct{}
	members map[string]map[string]struct{} // connID -> rooms, for LeaveAll
}

func NewRooms(registry *Registry, logger *zap.Logger) *Rooms {
	return &Rooms{
		registry: registry,
		logger:   logger,
		rooms:    make(map[string]map[string]struct{}),
		members:  make(map[string]map[string]struct{}),
	}
}

// Join adds a connection to a room. Joining twice is a no-op.
func (r *Rooms) Join(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]struct{})
	}
	r.rooms[room][connID] = struct{}{}
	if r.members[connID] == nil {
		r.members[connID] = make(map[string]struct{})
	}
	r.members[connID][room] = struct{}{}
}

// Leave removes a connection from a room; unknown pairs are a no-op.
func (r *Rooms) Leave(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, room)
}

// LeaveAll removes a connection from every room it joined.
func (r *Rooms) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.members[connID] {
		r.leaveLocked(connID, room)
	}
}

func (r *Rooms) leaveLocked(connID, room string) {
	if set, ok := r.rooms[room]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.rooms, room)
		}
	}
	if set, ok := r.members[connID]; ok {
		delete(set, room)
		if len(set) == 0 {
			delete(r.members, connID)
		}
	}
}

// Broadcast delivers an event to every connection currently in a room.
// An empty room is a no-op, not an error.
func (r *Rooms) Broadcast(room string, ev domain.OutboundEvent) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.rooms[room]))
	for connID := range r.rooms[room] {
		ids = append(ids, connID)
	}
	r.mu.RUnlock()

	for _, connID := range ids {
		r.registry.Send(connID, ev)
	}
	if len(ids) > 0 {
		r.logger.Debug("broadcast",
			zap.String("room", room),
			zap.String("event", ev.Type),
			zap.Int("recipients", len(ids)))
	}
}

// SendTo delivers an event to a single connection.
func (r *Rooms) SendTo(connID string, ev domain.OutboundEvent) {
	r.registry.Send(connID, ev)
}

// Count returns the current membership size of a room.
func (r *Rooms) Count(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}
