package room

import (
	"context"
	"strings"
	"sync"
)

// Directory is the authoritative view of rooms, membership, block
// lists, and the message log. It serializes mutations per room so every
// member observes appends in one total order, while operations on
// different rooms proceed concurrently.
type Directory struct {
	store Store

	// appendHook, when set, runs inside the room's serialization point
	// after a successful append, so hook calls observe messages in log
	// order. Used for the backlog cache.
	appendHook func(*Message)

	// createMu makes generate-then-insert atomic for room creation, so
	// two concurrent creates can't race the same fresh code.
	createMu sync.Mutex

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewDirectory creates a Directory on top of the given store.
func NewDirectory(store Store) *Directory {
	return &Directory{
		store: store,
		locks: make(map[int64]*sync.Mutex),
	}
}

// SetAppendHook registers a callback invoked under the room lock after
// every successful append. Must be set before the directory serves
// traffic; it is not safe to change concurrently with Append.
func (d *Directory) SetAppendHook(hook func(*Message)) {
	d.appendHook = hook
}

// roomLock returns the mutex serializing mutations for one room.
func (d *Directory) roomLock(roomID int64) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[roomID] = l
	}
	return l
}

// Create allocates a fresh unique code, creates the room with the owner
// as its only member, and records the room on the owner's profile.
// Repeated calls always create distinct rooms.
func (d *Directory) Create(ctx context.Context, name string, ownerID int64) (*Room, error) {
	ok, err := d.store.UserExists(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	d.createMu.Lock()
	defer d.createMu.Unlock()

	code, err := generateUniqueCode(ctx, d.store)
	if err != nil {
		return nil, err
	}
	r, err := d.store.CreateRoom(ctx, name, code, ownerID)
	if err != nil {
		return nil, err
	}
	if err := d.store.AddUserRoom(ctx, ownerID, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

// Join adds the user to the room with the given code. It fails with
// ErrRoomNotFound for unknown codes and ErrUserBlocked for users on the
// block list. Joining twice is a no-op, so it is safe to retry.
func (d *Directory) Join(ctx context.Context, userID int64, code string) (*Room, error) {
	r, err := d.store.RoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	lock := d.roomLock(r.ID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a concurrent Block must win over a join
	// that looked clean a moment ago.
	r, err = d.store.RoomByID(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if r.IsBlocked(userID) {
		return nil, ErrUserBlocked
	}

	ok, err := d.store.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	if err := d.store.AddMember(ctx, r.ID, userID); err != nil {
		return nil, err
	}
	if err := d.store.AddUserRoom(ctx, userID, r.ID); err != nil {
		return nil, err
	}
	return d.store.RoomByID(ctx, r.ID)
}

// Block adds the user to the room's block list. It does not evict a
// seated member: blocking only prevents future joins, and a live
// session opened before the block keeps working.
func (d *Directory) Block(ctx context.Context, code string, userID int64) (*Room, error) {
	r, err := d.store.RoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	lock := d.roomLock(r.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := d.store.BlockUser(ctx, r.ID, userID); err != nil {
		return nil, err
	}
	return d.store.RoomByID(ctx, r.ID)
}

// Append validates and persists a message with a server-assigned
// timestamp, returning the stored copy. The stored copy is the
// canonical broadcast payload so every recipient sees identical
// timestamps; client-supplied timestamps never reach the log.
func (d *Directory) Append(ctx context.Context, roomID, userID int64, username, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	lock := d.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := d.store.RoomByID(ctx, roomID); err != nil {
		return nil, err
	}
	msg, err := d.store.AppendMessage(ctx, roomID, userID, username, text)
	if err != nil {
		return nil, err
	}
	if d.appendHook != nil {
		d.appendHook(msg)
	}
	return msg, nil
}

// Messages returns the room's full message log in append order.
func (d *Directory) Messages(ctx context.Context, roomID int64) ([]*Message, error) {
	if _, err := d.store.RoomByID(ctx, roomID); err != nil {
		return nil, err
	}
	return d.store.Messages(ctx, roomID)
}

// RoomsForUser lists the rooms on a user's profile, without message bodies.
func (d *Directory) RoomsForUser(ctx context.Context, userID int64) ([]*Summary, error) {
	return d.store.UserRooms(ctx, userID)
}

// RoomByCode resolves a code without mutating anything.
func (d *Directory) RoomByCode(ctx context.Context, code string) (*Room, error) {
	return d.store.RoomByCode(ctx, code)
}
