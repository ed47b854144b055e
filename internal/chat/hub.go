package chat

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Ratnesh125/chatapp/internal/room"
)

// Hub fans events out to every connection joined to a room. One hub
// owns all live room state for the process; rooms have no closed
// state and stay joinable for as long as the directory knows them.
type Hub struct {
	registry  *Registry
	directory *room.Directory
	cache     *MessageCache // nil when Redis is not configured
	typing    *TypingTracker

	mu      sync.RWMutex
	clients map[string]*Client

	// roomMu serializes each room's deliveries: a send persists and
	// broadcasts as one step, a join seats the connection and queues
	// the history frame as one step. This is what keeps history ahead
	// of live events and every message delivered exactly once.
	locksMu   sync.Mutex
	roomLocks map[int64]*sync.Mutex
}

// NewHub creates a hub over the given directory. cache may be nil, in
// which case backlog delivery always reads the directory.
func NewHub(directory *room.Directory, cache *MessageCache) *Hub {
	return newHub(directory, cache, defaultQuietPeriod)
}

func newHub(directory *room.Directory, cache *MessageCache, quiet time.Duration) *Hub {
	h := &Hub{
		registry:  NewRegistry(),
		directory: directory,
		cache:     cache,
		clients:   make(map[string]*Client),
		roomLocks: make(map[int64]*sync.Mutex),
	}
	h.typing = NewTypingTrackerQuiet(quiet, h.typingChanged)
	if cache != nil {
		// Cache writes run inside the directory's per-room lock so the
		// cached list always matches the log's append order.
		directory.SetAppendHook(cache.Append)
	}
	return h
}

// Registry exposes the connection registry, mostly for tests and stats.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// roomLock returns the mutex serializing one room's deliveries.
func (h *Hub) roomLock(roomID int64) *sync.Mutex {
	h.locksMu.Lock()
	defer h.locksMu.Unlock()
	l, ok := h.roomLocks[roomID]
	if !ok {
		l = &sync.Mutex{}
		h.roomLocks[roomID] = l
	}
	return l
}

// Connect registers a new connection. Fails if the connection ID is
// already registered.
func (h *Hub) Connect(c *Client) error {
	if err := h.registry.Register(c.ID, c.UserID, c.Username); err != nil {
		return err
	}
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	return nil
}

// Disconnect tears a connection down: leave the current room, clear
// typing state, drop the client. Safe to run concurrently with an
// in-flight send for the same connection; at worst the send lands in
// a buffer nobody drains anymore.
func (h *Hub) Disconnect(c *Client) {
	roomID, username, inRoom := h.registry.Unregister(c.ID)
	if inRoom {
		h.typing.Stop(roomID, username)
	}

	h.mu.Lock()
	_, present := h.clients[c.ID]
	delete(h.clients, c.ID)
	h.mu.Unlock()

	if present {
		close(c.send)
	}
}

// JoinRoom seats the connection in the room with the given code and
// delivers the room's backlog to this connection only, so a joining
// client sees full history before live updates. A connection occupies
// one room at a time; any previous room is left implicitly.
func (h *Hub) JoinRoom(c *Client, code string) {
	ctx := context.Background()

	rm, err := h.directory.Join(ctx, c.UserID, code)
	if err != nil {
		h.sendError(c, joinErrorText(err))
		return
	}

	// Seat and queue the history frame under the room lock. A send
	// racing this join either lands fully before it (in the backlog,
	// not delivered live) or fully after (live only), never both.
	lock := h.roomLock(rm.ID)
	lock.Lock()
	prev, err := h.registry.Join(c.ID, rm.ID)
	if err != nil {
		lock.Unlock()
		return
	}
	backlog, berr := h.backlog(ctx, rm.ID)
	if berr != nil {
		log.Printf("chat: backlog for room %d failed: %v", rm.ID, berr)
		backlog = []*room.Message{}
	}
	h.sendTo(c, encodeEvent(EventHistory, HistoryPayload{RoomID: rm.ID, Messages: backlog}))
	lock.Unlock()

	if prev != 0 {
		h.typing.Stop(prev, c.Username)
	}
}

// LeaveRoom clears the connection's room. No presence broadcast goes
// out beyond typing cleanup.
func (h *Hub) LeaveRoom(c *Client) {
	roomID, username, ok := h.registry.Leave(c.ID)
	if ok {
		h.typing.Stop(roomID, username)
	}
}

// SendMessage persists the text and fans the stored copy out to every
// connection in the sender's room, the sender included. The persisted
// copy is the single source of truth for ordering and timestamps; the
// sender gets no separate optimistic echo. A connection with no
// current room, or empty text, is dropped silently.
func (h *Hub) SendMessage(c *Client, text string) {
	_, username, roomID, ok := h.registry.Current(c.ID)
	if !ok || roomID == 0 {
		return
	}

	// Persist and broadcast under the room lock so connections observe
	// messages in log order and a concurrent join never sees a message
	// both in its backlog and live.
	lock := h.roomLock(roomID)
	lock.Lock()
	msg, err := h.directory.Append(context.Background(), roomID, c.UserID, username, text)
	if err != nil {
		lock.Unlock()
		if errors.Is(err, room.ErrEmptyMessage) {
			return
		}
		// Not persisted means not broadcast: either everyone sees the
		// message or nobody does. The sender alone hears about it.
		h.sendError(c, "failed to send message")
		return
	}
	h.broadcast(roomID, encodeEvent(EventMessage, msg), "")
	lock.Unlock()
}

// PostMessage persists a message arriving outside the socket path (the
// REST post endpoint) and relays it to the room's live connections,
// under the same serialization as socket sends.
func (h *Hub) PostMessage(ctx context.Context, roomID, userID int64, username, text string) (*room.Message, error) {
	lock := h.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := h.directory.Append(ctx, roomID, userID, username, text)
	if err != nil {
		return nil, err
	}
	h.broadcast(roomID, encodeEvent(EventMessage, msg), "")
	return msg, nil
}

// Typing records a typing-state change for the connection's current
// room. Signals from a connection outside any room are dropped.
func (h *Hub) Typing(c *Client, active bool) {
	_, username, roomID, ok := h.registry.Current(c.ID)
	if !ok || roomID == 0 {
		return
	}
	if active {
		h.typing.Start(roomID, c.ID, username)
	} else {
		h.typing.Stop(roomID, username)
	}
}

// TypingUsers returns the current typing display list for a room.
func (h *Hub) TypingUsers(roomID int64) []string {
	return h.typing.Typing(roomID)
}

// typingChanged is the tracker callback: push the updated display list
// to everyone in the room except the typer's own connection. Taking
// the room lock keeps typing frames behind a joiner's history frame.
func (h *Hub) typingChanged(roomID int64, connID, username string, typing []string, stopped bool) {
	event := EventTyping
	if stopped {
		event = EventStopTyping
	}
	frame := encodeEvent(event, TypingPayload{Username: username, Typing: typing})

	lock := h.roomLock(roomID)
	lock.Lock()
	h.broadcast(roomID, frame, connID)
	lock.Unlock()
}

// backlog returns the room's full message history, serving from the
// cache when it is known to be complete and rewarming it otherwise.
func (h *Hub) backlog(ctx context.Context, roomID int64) ([]*room.Message, error) {
	if h.cache != nil {
		cached := h.cache.Recent(roomID)
		// A list at the retention limit may be truncated history, so
		// only a shorter warm list can stand in for the full log.
		if len(cached) > 0 && len(cached) < h.cache.MaxSize() {
			return cached, nil
		}
	}

	msgs, err := h.directory.Messages(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if h.cache != nil && len(msgs) > 0 {
		h.cache.Warm(roomID, msgs)
	}
	return msgs, nil
}

// broadcast pushes a frame to every connection in the room, skipping
// the connection with ID excludeConn when set. Slow consumers lose the
// frame rather than stalling the room.
func (h *Hub) broadcast(roomID int64, frame []byte, excludeConn string) {
	if frame == nil {
		return
	}

	ids := h.registry.ConnectionsInRoom(roomID)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range ids {
		if id == excludeConn {
			continue
		}
		c, ok := h.clients[id]
		if !ok {
			continue
		}
		select {
		case c.send <- frame:
		default:
			log.Printf("chat: send buffer full for %s, dropping frame", c.Username)
		}
	}
}

// sendTo delivers a frame to a single connection. Errors and backlog
// never propagate past the connection that asked for them.
func (h *Hub) sendTo(c *Client, frame []byte) {
	if frame == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
		log.Printf("chat: send buffer full for %s, dropping frame", c.Username)
	}
}

func (h *Hub) sendError(c *Client, msg string) {
	h.sendTo(c, encodeEvent(EventError, ErrorPayload{Message: msg}))
}

func joinErrorText(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, room.ErrUserBlocked):
		return "you are blocked from this room"
	case errors.Is(err, room.ErrUserNotFound):
		return "user not found"
	default:
		return "failed to join room"
	}
}
