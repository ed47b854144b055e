package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func newTestDirectory(t *testing.T, userIDs ...int64) (*Directory, *MemStore) {
	t.Helper()
	store := NewMemStore()
	for _, id := range userIDs {
		store.PutUser(id)
	}
	return NewDirectory(store), store
}

func TestCreateRoomCodesAreDistinct(t *testing.T) {
	d, _ := newTestDirectory(t, 1)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		r, err := d.Create(ctx, fmt.Sprintf("room-%d", i), 1)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if len(r.Code) != 6 {
			t.Fatalf("expected 6-char code, got %q", r.Code)
		}
		if seen[r.Code] {
			t.Fatalf("duplicate code %q", r.Code)
		}
		seen[r.Code] = true
	}
}

func TestCreateRoomSeatsOwner(t *testing.T) {
	d, _ := newTestDirectory(t, 1)
	ctx := context.Background()

	r, err := d.Create(ctx, "Lobby", 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(r.Members) != 1 || r.Members[0] != 1 {
		t.Errorf("expected members [1], got %v", r.Members)
	}

	rooms, err := d.RoomsForUser(ctx, 1)
	if err != nil {
		t.Fatalf("rooms for user: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != r.ID {
		t.Errorf("expected room on owner profile, got %v", rooms)
	}
}

func TestCreateRoomUnknownOwner(t *testing.T) {
	d, _ := newTestDirectory(t, 1)
	if _, err := d.Create(context.Background(), "Lobby", 99); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestJoinRoom(t *testing.T) {
	d, _ := newTestDirectory(t, 1, 2)
	ctx := context.Background()

	r, err := d.Create(ctx, "Lobby", 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	joined, err := d.Join(ctx, 2, r.Code)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(joined.Members) != 2 || joined.Members[0] != 1 || joined.Members[1] != 2 {
		t.Errorf("expected members [1 2] in join order, got %v", joined.Members)
	}

	rooms, err := d.RoomsForUser(ctx, 2)
	if err != nil {
		t.Fatalf("rooms for user: %v", err)
	}
	if len(rooms) != 1 {
		t.Errorf("expected room on joiner profile, got %v", rooms)
	}
}

func TestJoinRoomIdempotent(t *testing.T) {
	d, _ := newTestDirectory(t, 1, 2)
	ctx := context.Background()

	r, _ := d.Create(ctx, "Lobby", 1)
	for i := 0; i < 3; i++ {
		if _, err := d.Join(ctx, 2, r.Code); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}

	joined, _ := d.Join(ctx, 2, r.Code)
	if len(joined.Members) != 2 {
		t.Errorf("expected 2 members after repeated joins, got %v", joined.Members)
	}

	rooms, _ := d.RoomsForUser(ctx, 2)
	if len(rooms) != 1 {
		t.Errorf("expected 1 profile entry after repeated joins, got %d", len(rooms))
	}
}

func TestJoinRoomUnknownCode(t *testing.T) {
	d, _ := newTestDirectory(t, 1)
	if _, err := d.Join(context.Background(), 1, "ZZZZZZ"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestJoinRoomUnknownUser(t *testing.T) {
	d, _ := newTestDirectory(t, 1)
	r, _ := d.Create(context.Background(), "Lobby", 1)
	if _, err := d.Join(context.Background(), 42, r.Code); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestBlockedUserCannotJoin(t *testing.T) {
	d, _ := newTestDirectory(t, 1, 2)
	ctx := context.Background()

	r, _ := d.Create(ctx, "Lobby", 1)
	if _, err := d.Block(ctx, r.Code, 2); err != nil {
		t.Fatalf("block: %v", err)
	}

	if _, err := d.Join(ctx, 2, r.Code); !errors.Is(err, ErrUserBlocked) {
		t.Fatalf("expected ErrUserBlocked, got %v", err)
	}
}

// Blocking prevents future joins but does not retract an existing
// membership: a seated member stays seated. Known gap, kept on purpose.
func TestBlockDoesNotEvictSeatedMember(t *testing.T) {
	d, _ := newTestDirectory(t, 1, 2)
	ctx := context.Background()

	r, _ := d.Create(ctx, "Lobby", 1)
	if _, err := d.Join(ctx, 2, r.Code); err != nil {
		t.Fatalf("join: %v", err)
	}

	blocked, err := d.Block(ctx, r.Code, 2)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if !blocked.IsMember(2) {
		t.Error("expected blocked user to remain a member")
	}
	if !blocked.IsBlocked(2) {
		t.Error("expected user on block list")
	}

	// Rejoining after leaving is what the block prevents.
	if _, err := d.Join(ctx, 2, r.Code); !errors.Is(err, ErrUserBlocked) {
		t.Fatalf("expected ErrUserBlocked on rejoin, got %v", err)
	}
}

func TestBlockIdempotent(t *testing.T) {
	d, _ := newTestDirectory(t, 1, 2)
	ctx := context.Background()

	r, _ := d.Create(ctx, "Lobby", 1)
	d.Block(ctx, r.Code, 2)
	blocked, err := d.Block(ctx, r.Code, 2)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if len(blocked.Blocked) != 1 {
		t.Errorf("expected 1 block entry, got %v", blocked.Blocked)
	}
}

func TestAppendAssignsServerTimestamp(t *testing.T) {
	d, _ := newTestDirectory(t, 1)
	ctx := context.Background()

	r, _ := d.Create(ctx, "Lobby", 1)
	msg, err := d.Append(ctx, r.ID, 1, "alice", "  hi  ")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if msg.Text != "hi" {
		t.Errorf("expected trimmed text %q, got %q", "hi", msg.Text)
	}
	if msg.CreatedAt.IsZero() {
		t.Error("expected server-assigned timestamp")
	}
	if msg.Username != "alice" {
		t.Errorf("expected denormalized username, got %q", msg.Username)
	}
}

func TestAppendEmptyText(t *testing.T) {
	d, _ := newTestDirectory(t, 1)
	ctx := context.Background()

	r, _ := d.Create(ctx, "Lobby", 1)
	if _, err := d.Append(ctx, r.ID, 1, "alice", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestAppendUnknownRoom(t *testing.T) {
	d, _ := newTestDirectory(t, 1)
	if _, err := d.Append(context.Background(), 99, 1, "alice", "hi"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestConcurrentAppendsKeepTotalOrder(t *testing.T) {
	d, _ := newTestDirectory(t, 1)
	ctx := context.Background()

	r, _ := d.Create(ctx, "Lobby", 1)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := d.Append(ctx, r.ID, 1, "alice", fmt.Sprintf("msg-%d", i)); err != nil {
				t.Errorf("append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	msgs, err := d.Messages(ctx, r.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != n {
		t.Fatalf("expected %d messages exactly once, got %d", n, len(msgs))
	}

	seen := make(map[string]bool)
	for i, m := range msgs {
		if seen[m.Text] {
			t.Fatalf("duplicate message %q", m.Text)
		}
		seen[m.Text] = true
		if i > 0 && msgs[i-1].ID >= m.ID {
			t.Fatalf("messages out of order at %d: %d then %d", i, msgs[i-1].ID, m.ID)
		}
	}

	// Two reads observe the same resulting order.
	again, _ := d.Messages(ctx, r.ID)
	for i := range msgs {
		if msgs[i].ID != again[i].ID {
			t.Fatalf("orders differ at index %d", i)
		}
	}
}

func TestMessagesUnknownRoom(t *testing.T) {
	d, _ := newTestDirectory(t, 1)
	if _, err := d.Messages(context.Background(), 7); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRoomsForUserOmitsMessages(t *testing.T) {
	d, _ := newTestDirectory(t, 1)
	ctx := context.Background()

	r, _ := d.Create(ctx, "Lobby", 1)
	d.Append(ctx, r.ID, 1, "alice", "hi")

	rooms, err := d.RoomsForUser(ctx, 1)
	if err != nil {
		t.Fatalf("rooms for user: %v", err)
	}
	if len(rooms) != 1 {
		t.Fatalf("expected 1 room, got %d", len(rooms))
	}
	if rooms[0].Name != "Lobby" || rooms[0].Code != r.Code {
		t.Errorf("unexpected summary %+v", rooms[0])
	}
}
