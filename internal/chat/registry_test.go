package chat

import (
	"errors"
	"testing"
)

func TestRegistryRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("c1", 1, "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("c1", 2, "bob"); !errors.Is(err, ErrDuplicateConnection) {
		t.Fatalf("expected ErrDuplicateConnection, got %v", err)
	}
}

func TestRegistryJoinReplacesRoom(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", 1, "alice")

	prev, err := r.Join("c1", 10)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if prev != 0 {
		t.Errorf("expected no previous room, got %d", prev)
	}

	prev, err = r.Join("c1", 20)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if prev != 10 {
		t.Errorf("expected previous room 10, got %d", prev)
	}

	if ids := r.ConnectionsInRoom(10); len(ids) != 0 {
		t.Errorf("expected no stale entry in old room, got %v", ids)
	}
	if ids := r.ConnectionsInRoom(20); len(ids) != 1 || ids[0] != "c1" {
		t.Errorf("expected [c1] in new room, got %v", ids)
	}
}

func TestRegistryJoinSameRoomTwice(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", 1, "alice")
	r.Join("c1", 10)

	prev, err := r.Join("c1", 10)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if prev != 0 {
		t.Errorf("rejoining the same room should not report a previous room, got %d", prev)
	}
}

func TestRegistryLeave(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", 1, "alice")
	r.Join("c1", 10)

	roomID, username, ok := r.Leave("c1")
	if !ok || roomID != 10 || username != "alice" {
		t.Fatalf("expected leave of room 10 by alice, got %d %q %v", roomID, username, ok)
	}

	if _, _, ok := r.Leave("c1"); ok {
		t.Error("second leave should report not-in-room")
	}
	if ids := r.ConnectionsInRoom(10); len(ids) != 0 {
		t.Errorf("expected no connections after leave, got %v", ids)
	}
}

func TestRegistryUnregisterImpliesLeave(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", 1, "alice")
	r.Join("c1", 10)

	roomID, username, ok := r.Unregister("c1")
	if !ok || roomID != 10 || username != "alice" {
		t.Fatalf("expected unregister from room 10, got %d %q %v", roomID, username, ok)
	}

	if _, _, _, ok := r.Current("c1"); ok {
		t.Error("expected connection gone after unregister")
	}
	if r.Count() != 0 {
		t.Errorf("expected 0 connections, got %d", r.Count())
	}

	// Unregistering an unknown connection is a no-op.
	if _, _, ok := r.Unregister("c1"); ok {
		t.Error("expected not-in-room for unknown connection")
	}
}

func TestRegistryConnectionsInRoom(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", 1, "alice")
	r.Register("c2", 2, "bob")
	r.Register("c3", 3, "carol")
	r.Join("c1", 10)
	r.Join("c2", 10)
	r.Join("c3", 20)

	ids := r.ConnectionsInRoom(10)
	if len(ids) != 2 {
		t.Fatalf("expected 2 connections in room 10, got %v", ids)
	}
	found := map[string]bool{}
	for _, id := range ids {
		found[id] = true
	}
	if !found["c1"] || !found["c2"] {
		t.Errorf("expected c1 and c2, got %v", ids)
	}
}
