package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/Ratnesh125/chatapp/internal/chat"
	"github.com/Ratnesh125/chatapp/internal/db"
	appMiddleware "github.com/Ratnesh125/chatapp/internal/middleware"
	"github.com/Ratnesh125/chatapp/internal/room"
	"github.com/Ratnesh125/chatapp/internal/user"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// cacheSize is how many recent messages per room stay in Redis for
// backlog delivery.
const cacheSize = 200

// memRoomStore answers user-existence checks from the account store so
// the in-memory room store sees the same users the signup flow created.
// With Postgres both stores read the shared users table instead.
type memRoomStore struct {
	*room.MemStore
	users user.Store
}

func (s *memRoomStore) UserExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.users.UserByID(ctx, id)
	if errors.Is(err, user.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func main() {
	addr := flag.String("addr", ":8080", "http service address")
	flag.Parse()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	// Persistence: Postgres when DB_DSN is set, in-memory otherwise.
	var (
		userStore user.Store
		roomStore room.Store
	)
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		database, err := db.NewDatabase(dsn)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		log.Println("Connected to PostgreSQL")

		if err := database.AutoMigrate(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Database schema initialized")

		userStore = user.NewRepository(database.Conn)
		roomStore = room.NewPGStore(database.Conn)
	} else {
		log.Println("DB_DSN not set, using in-memory stores")
		userStore = user.NewMemRepository()
		roomStore = &memRoomStore{MemStore: room.NewMemStore(), users: userStore}
	}

	// Redis backlog cache, optional.
	var cache *chat.MessageCache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Println("Connected to Redis")
		cache = chat.NewMessageCache(redisClient, cacheSize)
	}

	userService := user.NewService(userStore, jwtSecret)
	userHandler := user.NewHandler(userService)

	directory := room.NewDirectory(roomStore)
	hub := chat.NewHub(directory, cache)
	chatHandler := chat.NewHandler(hub)
	roomHandler := room.NewHandler(directory, hub)

	authMiddleware := appMiddleware.NewAuthMiddleware(userService)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Post("/api/users/signup", userHandler.Signup)
	r.Post("/api/users/signin", userHandler.Signin)

	// Protected routes (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		// WebSocket (real-time)
		r.Get("/ws", chatHandler.ServeWs)

		r.Post("/api/rooms/create", roomHandler.Create)
		r.Post("/api/rooms/join", roomHandler.Join)
		r.Post("/api/rooms/{code}/block", roomHandler.Block)
		r.Get("/api/rooms/{roomID}/messages", roomHandler.ListMessages)
		r.Post("/api/rooms/{roomID}/messages", roomHandler.PostMessage)
		r.Get("/api/users/rooms", roomHandler.UserRooms)
	})

	log.Printf("Server starting on %s", *addr)
	if err := http.ListenAndServe(*addr, r); err != nil {
		log.Fatal(err)
	}
}
