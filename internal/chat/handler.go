package chat

import (
	"log"
	"net/http"

	"github.com/Ratnesh125/chatapp/internal/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (Dev mode)
	},
}

// Handler upgrades authenticated HTTP requests to websocket sessions.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// ServeWs expects the auth middleware to have run; the identity it put
// in the context is trusted for the lifetime of the connection.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, username, ok := middleware.Identity(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		hub:      h.hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
	}

	if err := h.hub.Connect(client); err != nil {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
