package room

import "time"

// Room is the durable identity of a chat room. Members preserves join
// order; Blocked holds users who may no longer join (a blocked user who
// is already seated keeps their membership, see Directory.Block).
type Room struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Members   []int64   `json:"members"`
	Blocked   []int64   `json:"blocked"`
	CreatedAt time.Time `json:"created_at"`
}

// IsBlocked reports whether the user may not join this room.
func (r *Room) IsBlocked(userID int64) bool {
	for _, id := range r.Blocked {
		if id == userID {
			return true
		}
	}
	return false
}

// IsMember reports whether the user is already seated in this room.
func (r *Room) IsMember(userID int64) bool {
	for _, id := range r.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// Message is one entry in a room's append-only log. Username is
// denormalized at creation time so history stays stable even if the
// author renames later. CreatedAt is always server-assigned.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is a room without its message log, for directory listings.
type Summary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}
