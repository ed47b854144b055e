package chat

import (
	"sort"
	"sync"
	"time"
)

// defaultQuietPeriod is how long after the last typing signal an entry
// survives before it expires.
const defaultQuietPeriod = 3 * time.Second

// typingEntry tracks one typing user. gen identifies the last armed
// timer; a timer that fires with any other generation must not clear
// the entry. connID is the connection that last signaled.
type typingEntry struct {
	gen    uint64
	connID string
	timer  *time.Timer
}

// TypingNotify is called whenever a room's typing set changes. typing
// is the full display list after the change; stopped is true when the
// change removed username. connID identifies the typer's connection so
// the broadcast can skip it.
type TypingNotify func(roomID int64, connID, username string, typing []string, stopped bool)

// TypingTracker keeps the ephemeral per-room set of currently typing
// usernames, each with an automatic expiry.
type TypingTracker struct {
	mu      sync.Mutex
	rooms   map[int64]map[string]*typingEntry
	nextGen uint64
	quiet   time.Duration
	notify  TypingNotify
}

// NewTypingTracker creates a tracker with the default 3s quiet period.
func NewTypingTracker(notify TypingNotify) *TypingTracker {
	return NewTypingTrackerQuiet(defaultQuietPeriod, notify)
}

// NewTypingTrackerQuiet creates a tracker with a caller-chosen quiet
// period. Tests shorten it.
func NewTypingTrackerQuiet(quiet time.Duration, notify TypingNotify) *TypingTracker {
	return &TypingTracker{
		rooms:  make(map[int64]map[string]*typingEntry),
		quiet:  quiet,
		notify: notify,
	}
}

// Start adds or refreshes a typing entry and (re)arms its expiry timer.
func (t *TypingTracker) Start(roomID int64, connID, username string) {
	t.mu.Lock()
	users, ok := t.rooms[roomID]
	if !ok {
		users = make(map[string]*typingEntry)
		t.rooms[roomID] = users
	}

	entry, ok := users[username]
	if ok {
		entry.timer.Stop()
	} else {
		entry = &typingEntry{}
		users[username] = entry
	}
	// Generations are tracker-global and never reused, so a timer armed
	// for an earlier entry can never match a re-created one.
	t.nextGen++
	gen := t.nextGen
	entry.gen = gen
	entry.connID = connID
	entry.timer = time.AfterFunc(t.quiet, func() {
		t.expire(roomID, username, gen)
	})
	list := t.listLocked(roomID)
	t.mu.Unlock()

	if t.notify != nil {
		t.notify(roomID, connID, username, list, false)
	}
}

// Stop removes a typing entry immediately, whether from an explicit
// stop-typing signal or the user leaving the room. No-op if absent.
func (t *TypingTracker) Stop(roomID int64, username string) {
	t.mu.Lock()
	entry, ok := t.rooms[roomID][username]
	if !ok {
		t.mu.Unlock()
		return
	}
	entry.timer.Stop()
	connID := entry.connID
	t.removeLocked(roomID, username)
	list := t.listLocked(roomID)
	t.mu.Unlock()

	if t.notify != nil {
		t.notify(roomID, connID, username, list, true)
	}
}

// expire is the timer callback. It only removes the entry if no
// refresh or remove-and-restart happened since the timer was armed.
func (t *TypingTracker) expire(roomID int64, username string, gen uint64) {
	t.mu.Lock()
	entry, ok := t.rooms[roomID][username]
	if !ok || entry.gen != gen {
		t.mu.Unlock()
		return
	}
	connID := entry.connID
	t.removeLocked(roomID, username)
	list := t.listLocked(roomID)
	t.mu.Unlock()

	if t.notify != nil {
		t.notify(roomID, connID, username, list, true)
	}
}

// Typing returns the room's current typing display list, sorted for a
// stable payload.
func (t *TypingTracker) Typing(roomID int64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listLocked(roomID)
}

func (t *TypingTracker) listLocked(roomID int64) []string {
	users := t.rooms[roomID]
	list := make([]string, 0, len(users))
	for name := range users {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

func (t *TypingTracker) removeLocked(roomID int64, username string) {
	users := t.rooms[roomID]
	delete(users, username)
	if len(users) == 0 {
		delete(t.rooms, roomID)
	}
}
