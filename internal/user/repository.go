package user

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// Store is the persistence surface the service needs.
type Store interface {
	CreateUser(ctx context.Context, u *User) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id int64) (*User, error)
}

// Repository is the Postgres-backed Store.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, u *User) (*User, error) {
	if _, err := r.UserByEmail(ctx, u.Email); err == nil {
		return nil, ErrEmailTaken
	}

	query := "INSERT INTO users (name, email, password) VALUES ($1, $2, $3) RETURNING id"
	if err := r.db.QueryRowContext(ctx, query, u.Name, u.Email, u.Password).Scan(&u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	query := "SELECT id, name, email, password FROM users WHERE email = $1"

	err := r.db.QueryRowContext(ctx, query, email).Scan(&u.ID, &u.Name, &u.Email, &u.Password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *Repository) UserByID(ctx context.Context, id int64) (*User, error) {
	u := &User{}
	query := "SELECT id, name, email, password FROM users WHERE id = $1"

	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// MemRepository is an in-memory Store for tests and DB-less runs.
type MemRepository struct {
	mu      sync.Mutex
	byEmail map[string]*User
	byID    map[int64]*User
	nextID  int64
}

func NewMemRepository() *MemRepository {
	return &MemRepository{
		byEmail: make(map[string]*User),
		byID:    make(map[int64]*User),
	}
}

func (r *MemRepository) CreateUser(_ context.Context, u *User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return nil, ErrEmailTaken
	}
	r.nextID++
	u.ID = r.nextID
	c := *u
	r.byEmail[u.Email] = &c
	r.byID[u.ID] = &c
	return u, nil
}

func (r *MemRepository) UserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *MemRepository) UserByID(_ context.Context, id int64) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}
