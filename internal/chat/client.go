package chat

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum frame size allowed from peer.
	sendBufferSize = 256
)

// Client is the middleman between one websocket connection and the hub.
// ID and the user identity are fixed at connect time.
type Client struct {
	ID       string
	UserID   int64
	Username string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump pumps frames from the websocket into the hub. Malformed
// frames are dropped silently: one connection's garbage must never
// affect other connections or rooms.
func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("chat: read error for %s: %v", c.Username, err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch env.Type {
		case EventJoinRoom:
			var p JoinPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil || p.RoomCode == "" {
				continue
			}
			c.hub.JoinRoom(c, p.RoomCode)

		case EventLeaveRoom:
			c.hub.LeaveRoom(c)

		case EventSendMessage:
			var p SendPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				continue
			}
			c.hub.SendMessage(c, p.Text)

		case EventTyping:
			c.hub.Typing(c, true)

		case EventStopTyping:
			c.hub.Typing(c, false)
		}
	}
}

// writePump pumps frames from the send channel to the websocket
// connection, with the keep-alive ping loop.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
