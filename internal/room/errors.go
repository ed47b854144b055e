package room

import "errors"

var (
	// ErrRoomNotFound means no room exists with the given code or ID.
	ErrRoomNotFound = errors.New("room not found")

	// ErrUserNotFound means the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserBlocked means the user is on the room's block list.
	ErrUserBlocked = errors.New("user is blocked from this room")

	// ErrEmptyMessage means the message text is empty after trimming.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrCodeExhausted means code generation hit its retry cap without
	// finding a free code. Not expected in practice.
	ErrCodeExhausted = errors.New("room code generation exhausted")
)
