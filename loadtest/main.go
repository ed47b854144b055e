package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BaseURL   = "http://localhost:8080"
	WSURL     = "ws://localhost:8080/ws"
	RoomCount = 200 // Pairs of users, one room each.
	MsgCount  = 20  // Messages per user.
)

type authResponse struct {
	Token string `json:"access_token"`
	ID    int64  `json:"id"`
	Name  string `json:"name"`
}

type createRoomResponse struct {
	RoomCode string `json:"roomCode"`
}

func main() {
	log.Printf("Starting load test: %d rooms, %d users, %d messages each", RoomCount, RoomCount*2, MsgCount)
	var wg sync.WaitGroup

	for i := 0; i < RoomCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Println("Load test complete")
}

func runPair(pairID int) {
	userA := fmt.Sprintf("u_%d_a", pairID)
	userB := fmt.Sprintf("u_%d_b", pairID)
	pass := "password123"

	tokenA := authenticate(userA, pass)
	tokenB := authenticate(userB, pass)
	if tokenA == "" || tokenB == "" {
		return
	}

	code := createRoom(tokenA, fmt.Sprintf("loadtest-%d", pairID))
	if code == "" {
		return
	}

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go chatInRoom(&wsWg, tokenA, code, userA)
	go chatInRoom(&wsWg, tokenB, code, userB)
	wsWg.Wait()
}

// authenticate signs up (ignoring already-exists errors) and signs in.
func authenticate(name, password string) string {
	email := name + "@loadtest.local"
	postJSON("/api/users/signup", map[string]string{"name": name, "email": email, "password": password})

	resp, err := postJSON("/api/users/signin", map[string]string{"email": email, "password": password})
	if err != nil {
		log.Printf("signin failed [%s]: %v", name, err)
		return ""
	}
	defer resp.Body.Close()

	var data authResponse
	json.NewDecoder(resp.Body).Decode(&data)
	return data.Token
}

func createRoom(token, name string) string {
	body, _ := json.Marshal(map[string]string{"roomName": name})
	req, _ := http.NewRequest("POST", BaseURL+"/api/rooms/create", bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		log.Printf("create room failed: %v", err)
		return ""
	}
	defer resp.Body.Close()

	var data createRoomResponse
	json.NewDecoder(resp.Body).Decode(&data)
	return data.RoomCode
}

func chatInRoom(wg *sync.WaitGroup, token, code, user string) {
	defer wg.Done()

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?token=%s", WSURL, token), nil)
	if err != nil {
		log.Printf("ws connect failed [%s]: %v", user, err)
		return
	}
	defer conn.Close()

	// Drain inbound frames so the server's send buffer never fills.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	join := map[string]any{"type": "joinRoom", "payload": map[string]string{"roomCode": code}}
	if err := conn.WriteJSON(join); err != nil {
		log.Printf("join failed [%s]: %v", user, err)
		return
	}

	for i := 0; i < MsgCount; i++ {
		msg := map[string]any{
			"type":    "sendMessage",
			"payload": map[string]string{"text": fmt.Sprintf("loadtest msg %d from %s", i, user)},
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("send failed [%s]: %v", user, err)
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	log.Printf("%s finished sending %d msgs", user, MsgCount)
}

func postJSON(endpoint string, data any) (*http.Response, error) {
	body, _ := json.Marshal(data)
	return http.Post(BaseURL+endpoint, "application/json", bytes.NewBuffer(body))
}
