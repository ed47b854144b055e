package chat

import (
	"errors"
	"sync"
)

// ErrDuplicateConnection means a connection ID was registered twice.
var ErrDuplicateConnection = errors.New("connection already registered")

// session is the live state of one connection: who it is and which
// room, if any, it currently occupies. The identity is fixed at
// connect time; only the room changes.
type session struct {
	userID   int64
	username string
	roomID   int64 // 0 = not in a room
}

// Registry maps live connections to identities and room occupancy. It
// has its own lock, independent of the Directory's: connection churn
// must never contend with message persistence.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*session
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*session)}
}

// Register records a new connection. The connection ID must be fresh.
func (r *Registry) Register(connID string, userID int64, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; ok {
		return ErrDuplicateConnection
	}
	r.conns[connID] = &session{userID: userID, username: username}
	return nil
}

// Join sets the connection's current room, replacing any previous one.
// A connection occupies at most one room at a time; the returned
// prevRoomID lets the caller stop delivery for the old room.
func (r *Registry) Join(connID string, roomID int64) (prevRoomID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.conns[connID]
	if !ok {
		return 0, errors.New("connection not registered")
	}
	prev := s.roomID
	s.roomID = roomID
	if prev == roomID {
		return 0, nil
	}
	return prev, nil
}

// Leave clears the connection's current room and reports which room it
// was in, so typing state for that room can be cleaned up.
func (r *Registry) Leave(connID string) (roomID int64, username string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.conns[connID]
	if !exists || s.roomID == 0 {
		return 0, "", false
	}
	roomID = s.roomID
	s.roomID = 0
	return roomID, s.username, true
}

// Unregister removes the connection entirely, implicitly leaving its
// room first. Safe to call concurrently with an in-flight send for the
// same connection: the send either lands in the buffer of a connection
// about to be discarded, or finds no current room and is dropped.
func (r *Registry) Unregister(connID string) (roomID int64, username string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.conns[connID]
	if !exists {
		return 0, "", false
	}
	delete(r.conns, connID)
	if s.roomID == 0 {
		return 0, s.username, false
	}
	return s.roomID, s.username, true
}

// Current returns the connection's identity and room.
func (r *Registry) Current(connID string) (userID int64, username string, roomID int64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.conns[connID]
	if !exists {
		return 0, "", 0, false
	}
	return s.userID, s.username, s.roomID, true
}

// ConnectionsInRoom returns the IDs of every connection currently
// joined to the room. Reflects joins and leaves immediately.
func (r *Registry) ConnectionsInRoom(roomID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, s := range r.conns {
		if s.roomID == roomID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
