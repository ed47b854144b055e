package room

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGStore is the Postgres-backed Store.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateRoom(ctx context.Context, name, code string, ownerID int64) (*Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	r := &Room{Name: name, Code: code, Members: []int64{ownerID}}
	err = tx.QueryRowContext(ctx,
		"INSERT INTO rooms (name, code) VALUES ($1, $2) RETURNING id, created_at",
		name, code,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)",
		r.ID, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("seat owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PGStore) RoomByID(ctx context.Context, id int64) (*Room, error) {
	return s.loadRoom(ctx, "SELECT id, name, code, created_at FROM rooms WHERE id = $1", id)
}

func (s *PGStore) RoomByCode(ctx context.Context, code string) (*Room, error) {
	return s.loadRoom(ctx, "SELECT id, name, code, created_at FROM rooms WHERE code = $1", code)
}

func (s *PGStore) loadRoom(ctx context.Context, query string, arg any) (*Room, error) {
	r := &Room{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&r.ID, &r.Name, &r.Code, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	r.Members, err = s.userIDs(ctx,
		"SELECT user_id FROM room_members WHERE room_id = $1 ORDER BY joined_at, user_id", r.ID)
	if err != nil {
		return nil, err
	}
	r.Blocked, err = s.userIDs(ctx,
		"SELECT user_id FROM room_blocks WHERE room_id = $1 ORDER BY blocked_at, user_id", r.ID)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PGStore) userIDs(ctx context.Context, query string, roomID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PGStore) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1)", code,
	).Scan(&exists)
	return exists, err
}

func (s *PGStore) AddMember(ctx context.Context, roomID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO room_members (room_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		roomID, userID,
	)
	return err
}

func (s *PGStore) BlockUser(ctx context.Context, roomID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO room_blocks (room_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		roomID, userID,
	)
	return err
}

func (s *PGStore) AddUserRoom(ctx context.Context, userID, roomID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO user_rooms (user_id, room_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		userID, roomID,
	)
	return err
}

func (s *PGStore) UserRooms(ctx context.Context, userID int64) ([]*Summary, error) {
	query := `
		SELECT r.id, r.name, r.code, r.created_at
		FROM user_rooms ur
		JOIN rooms r ON r.id = ur.room_id
		WHERE ur.user_id = $1
		ORDER BY ur.added_at, r.id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*Summary{}
	for rows.Next() {
		sum := &Summary{}
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Code, &sum.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, sum)
	}
	return result, rows.Err()
}

func (s *PGStore) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)", userID,
	).Scan(&exists)
	return exists, err
}

func (s *PGStore) AppendMessage(ctx context.Context, roomID, userID int64, username, text string) (*Message, error) {
	m := &Message{RoomID: roomID, UserID: userID, Username: username, Text: text}
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO messages (room_id, user_id, username, content) VALUES ($1, $2, $3, $4) RETURNING id, created_at",
		roomID, userID, username, text,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return m, nil
}

func (s *PGStore) Messages(ctx context.Context, roomID int64) ([]*Message, error) {
	query := `
		SELECT id, room_id, user_id, username, content, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []*Message{}
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Username, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
