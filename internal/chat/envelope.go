package chat

import (
	"encoding/json"
	"log"

	"github.com/Ratnesh125/chatapp/internal/room"
)

// Envelope is the JSON frame exchanged over the websocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event types.
const (
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"
)

// Outbound event types.
const (
	EventMessage = "message"
	EventHistory = "history"
	EventError   = "error"
)

// JoinPayload is sent by the client to enter a room by code.
type JoinPayload struct {
	RoomCode string `json:"roomCode"`
}

// SendPayload carries the text of an outbound chat message. Any
// client-supplied timestamp is ignored; the persisted copy is canonical.
type SendPayload struct {
	Text string `json:"text"`
}

// TypingPayload announces a typing-state change. Typing is the full
// display list of currently typing usernames, not a boolean.
type TypingPayload struct {
	Username string   `json:"username"`
	Typing   []string `json:"typing"`
}

// ErrorPayload is delivered only to the connection that caused it.
type ErrorPayload struct {
	Message string `json:"message"`
}

// HistoryPayload is the room backlog delivered on join, before any
// live events.
type HistoryPayload struct {
	RoomID   int64           `json:"room_id"`
	Messages []*room.Message `json:"messages"`
}

// encodeEvent marshals a typed payload into envelope bytes. A marshal
// failure here is a programming error; log and return nil so callers
// skip the write.
func encodeEvent(eventType string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("chat: failed to marshal %s payload: %v", eventType, err)
		return nil
	}
	frame, err := json.Marshal(Envelope{Type: eventType, Payload: data})
	if err != nil {
		log.Printf("chat: failed to marshal %s envelope: %v", eventType, err)
		return nil
	}
	return frame
}
