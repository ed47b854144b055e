package room

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store is the persistence backend for the room directory. All methods
// must be individually atomic; ordering across calls is the Directory's
// job.
type Store interface {
	CreateRoom(ctx context.Context, name, code string, ownerID int64) (*Room, error)
	RoomByID(ctx context.Context, id int64) (*Room, error)
	RoomByCode(ctx context.Context, code string) (*Room, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	AddMember(ctx context.Context, roomID, userID int64) error
	BlockUser(ctx context.Context, roomID, userID int64) error
	AddUserRoom(ctx context.Context, userID, roomID int64) error
	UserRooms(ctx context.Context, userID int64) ([]*Summary, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	AppendMessage(ctx context.Context, roomID, userID int64, username, text string) (*Message, error)
	Messages(ctx context.Context, roomID int64) ([]*Message, error)
}

// MemStore is an in-memory Store. It backs tests and keeps the server
// usable without Postgres.
type MemStore struct {
	mu        sync.RWMutex
	rooms     map[int64]*Room
	byCode    map[string]int64
	messages  map[int64][]*Message
	userRooms map[int64][]int64
	users     map[int64]bool
	nextRoom  int64
	nextMsg   int64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		rooms:     make(map[int64]*Room),
		byCode:    make(map[string]int64),
		messages:  make(map[int64][]*Message),
		userRooms: make(map[int64][]int64),
		users:     make(map[int64]bool),
	}
}

// PutUser registers a user ID so membership checks pass. The Postgres
// store reads the users table instead; here callers seed identities.
func (s *MemStore) PutUser(id int64) {
	s.mu.Lock()
	s.users[id] = true
	s.mu.Unlock()
}

func (s *MemStore) UserExists(_ context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID], nil
}

func (s *MemStore) CreateRoom(_ context.Context, name, code string, ownerID int64) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRoom++
	r := &Room{
		ID:        s.nextRoom,
		Name:      name,
		Code:      code,
		Members:   []int64{ownerID},
		CreatedAt: time.Now(),
	}
	s.rooms[r.ID] = r
	s.byCode[code] = r.ID
	return cloneRoom(r), nil
}

func (s *MemStore) RoomByID(_ context.Context, id int64) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return cloneRoom(r), nil
}

func (s *MemStore) RoomByCode(_ context.Context, code string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return cloneRoom(s.rooms[id]), nil
}

func (s *MemStore) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byCode[code]
	return ok, nil
}

func (s *MemStore) AddMember(_ context.Context, roomID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if !r.IsMember(userID) {
		r.Members = append(r.Members, userID)
	}
	return nil
}

func (s *MemStore) BlockUser(_ context.Context, roomID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if !r.IsBlocked(userID) {
		r.Blocked = append(r.Blocked, userID)
	}
	return nil
}

func (s *MemStore) AddUserRoom(_ context.Context, userID, roomID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.userRooms[userID] {
		if id == roomID {
			return nil
		}
	}
	s.userRooms[userID] = append(s.userRooms[userID], roomID)
	return nil
}

func (s *MemStore) UserRooms(_ context.Context, userID int64) ([]*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.userRooms[userID]
	result := make([]*Summary, 0, len(ids))
	for _, id := range ids {
		r, ok := s.rooms[id]
		if !ok {
			continue
		}
		result = append(result, &Summary{ID: r.ID, Name: r.Name, Code: r.Code, CreatedAt: r.CreatedAt})
	}
	return result, nil
}

func (s *MemStore) AppendMessage(_ context.Context, roomID, userID int64, username, text string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return nil, ErrRoomNotFound
	}
	s.nextMsg++
	m := &Message{
		ID:        s.nextMsg,
		RoomID:    roomID,
		UserID:    userID,
		Username:  username,
		Text:      text,
		CreatedAt: time.Now(),
	}
	s.messages[roomID] = append(s.messages[roomID], m)
	return cloneMessage(m), nil
}

func (s *MemStore) Messages(_ context.Context, roomID int64) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[roomID]
	result := make([]*Message, len(msgs))
	for i, m := range msgs {
		result[i] = cloneMessage(m)
	}
	// Append order already matches ID order; keep it explicit.
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func cloneRoom(r *Room) *Room {
	c := *r
	c.Members = append([]int64(nil), r.Members...)
	c.Blocked = append([]int64(nil), r.Blocked...)
	return &c
}

func cloneMessage(m *Message) *Message {
	c := *m
	return &c
}
