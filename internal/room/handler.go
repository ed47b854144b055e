package room

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Ratnesh125/chatapp/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Notifier persists a message and relays it to the room's live
// connections, under the same per-room serialization as socket sends.
// Satisfied by the chat hub; kept as an interface so this package
// stays independent of the realtime layer.
type Notifier interface {
	PostMessage(ctx context.Context, roomID, userID int64, username, text string) (*Message, error)
}

type Handler struct {
	directory *Directory
	notifier  Notifier
}

func NewHandler(directory *Directory, notifier Notifier) *Handler {
	return &Handler{directory: directory, notifier: notifier}
}

type createRequest struct {
	RoomName string `json:"roomName"`
}

type joinRequest struct {
	RoomCode string `json:"roomCode"`
}

type blockRequest struct {
	UserID int64 `json:"userId"`
}

type postMessageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := middleware.Identity(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RoomName == "" {
		http.Error(w, "roomName is required", http.StatusBadRequest)
		return
	}

	rm, err := h.directory.Create(r.Context(), req.RoomName, userID)
	if err != nil {
		writeDirectoryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"room": rm, "roomCode": rm.Code})
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := middleware.Identity(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RoomCode == "" {
		http.Error(w, "roomCode is required", http.StatusBadRequest)
		return
	}

	rm, err := h.directory.Join(r.Context(), userID, req.RoomCode)
	if err != nil {
		writeDirectoryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rm)
}

func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == 0 {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	rm, err := h.directory.Block(r.Context(), code, req.UserID)
	if err != nil {
		writeDirectoryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rm)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(chi.URLParam(r, "roomID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	msgs, err := h.directory.Messages(r.Context(), roomID)
	if err != nil {
		writeDirectoryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID, username, ok := middleware.Identity(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomID, err := strconv.ParseInt(chi.URLParam(r, "roomID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var msg *Message
	if h.notifier != nil {
		msg, err = h.notifier.PostMessage(r.Context(), roomID, userID, username, req.Text)
	} else {
		msg, err = h.directory.Append(r.Context(), roomID, userID, username, req.Text)
	}
	if err != nil {
		writeDirectoryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}

func (h *Handler) UserRooms(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := middleware.Identity(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rooms, err := h.directory.RoomsForUser(r.Context(), userID)
	if err != nil {
		writeDirectoryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rooms)
}

// writeDirectoryError maps the directory's error taxonomy to HTTP
// status codes. Unknown errors stay opaque.
func writeDirectoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		http.Error(w, "room not found", http.StatusNotFound)
	case errors.Is(err, ErrUserNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	case errors.Is(err, ErrUserBlocked):
		http.Error(w, "you are blocked from this room", http.StatusForbidden)
	case errors.Is(err, ErrEmptyMessage):
		http.Error(w, "message text is required", http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
