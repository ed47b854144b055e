package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ratnesh125/chatapp/internal/middleware"
	"github.com/Ratnesh125/chatapp/internal/room"
	"github.com/Ratnesh125/chatapp/internal/user"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// bridgedStore lets the room layer see the accounts created through the
// user service, the way the server wires its in-memory mode.
type bridgedStore struct {
	*room.MemStore
	users user.Store
}

func (s *bridgedStore) UserExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.users.UserByID(ctx, id)
	if errors.Is(err, user.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type wsTestServer struct {
	srv       *httptest.Server
	users     *user.Service
	directory *room.Directory
}

func newWsTestServer(t *testing.T) *wsTestServer {
	t.Helper()

	userRepo := user.NewMemRepository()
	userService := user.NewService(userRepo, "ws-test-secret")
	store := &bridgedStore{MemStore: room.NewMemStore(), users: userRepo}
	directory := room.NewDirectory(store)
	hub := NewHub(directory, nil)

	r := chi.NewRouter()
	auth := middleware.NewAuthMiddleware(userService)
	r.Group(func(r chi.Router) {
		r.Use(auth.Handle)
		r.Get("/ws", NewHandler(hub).ServeWs)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &wsTestServer{srv: srv, users: userService, directory: directory}
}

// signup registers an account and returns a valid token for it.
func (ts *wsTestServer) signup(t *testing.T, name string) (int64, string) {
	t.Helper()
	ctx := context.Background()
	email := fmt.Sprintf("%s@example.com", name)
	u, err := ts.users.Signup(ctx, &user.SignupRequest{Name: name, Email: email, Password: "hunter2"})
	if err != nil {
		t.Fatalf("signup %s: %v", name, err)
	}
	resp, err := ts.users.Signin(ctx, &user.SigninRequest{Email: email, Password: "hunter2"})
	if err != nil {
		t.Fatalf("signin %s: %v", name, err)
	}
	return u.ID, resp.AccessToken
}

func (ts *wsTestServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(Envelope{Type: eventType, Payload: raw}); err != nil {
		t.Fatalf("write %s: %v", eventType, err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn, wantType string) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	if env.Type != wantType {
		t.Fatalf("expected %q event, got %q", wantType, env.Type)
	}
	return env.Payload
}

func TestServeWsRejectsMissingAndBadTokens(t *testing.T) {
	ts := newWsTestServer(t)
	base := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"

	for _, url := range []string{base, base + "?token=not-a-token"} {
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Fatalf("expected dial %s to fail", url)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s, got %+v", url, resp)
		}
	}
}

func TestWebsocketRoomSession(t *testing.T) {
	ts := newWsTestServer(t)
	ctx := context.Background()

	aliceID, aliceToken := ts.signup(t, "alice")
	_, bobToken := ts.signup(t, "bob")
	rm, err := ts.directory.Create(ctx, "Lobby", aliceID)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	alice := ts.dial(t, aliceToken)
	bob := ts.dial(t, bobToken)

	sendEvent(t, alice, EventJoinRoom, JoinPayload{RoomCode: rm.Code})
	readEvent(t, alice, EventHistory)
	sendEvent(t, bob, EventJoinRoom, JoinPayload{RoomCode: rm.Code})
	readEvent(t, bob, EventHistory)

	sendEvent(t, alice, EventSendMessage, SendPayload{Text: "hello room"})

	var got room.Message
	for _, conn := range []*websocket.Conn{alice, bob} {
		if err := json.Unmarshal(readEvent(t, conn, EventMessage), &got); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		if got.Text != "hello room" || got.Username != "alice" {
			t.Fatalf("unexpected message %+v", got)
		}
	}

	// Typing signals reach the other member but not the typer.
	sendEvent(t, bob, EventTyping, struct{}{})
	var p TypingPayload
	if err := json.Unmarshal(readEvent(t, alice, EventTyping), &p); err != nil {
		t.Fatalf("decode typing: %v", err)
	}
	if p.Username != "bob" {
		t.Fatalf("expected typing from bob, got %+v", p)
	}
	sendEvent(t, bob, EventStopTyping, struct{}{})
	readEvent(t, alice, EventStopTyping)

	// The persisted log matches what went over the wire.
	msgs, err := ts.directory.Messages(ctx, rm.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "hello room" {
		t.Fatalf("unexpected persisted log: %+v", msgs)
	}
}

func TestWebsocketJoinUnknownCode(t *testing.T) {
	ts := newWsTestServer(t)
	_, token := ts.signup(t, "alice")

	conn := ts.dial(t, token)
	sendEvent(t, conn, EventJoinRoom, JoinPayload{RoomCode: "ZZZZZZ"})

	var p ErrorPayload
	if err := json.Unmarshal(readEvent(t, conn, EventError), &p); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if p.Message == "" {
		t.Fatal("expected an error message for unknown code")
	}
}
