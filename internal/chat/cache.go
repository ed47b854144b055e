package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/Ratnesh125/chatapp/internal/room"
	"github.com/redis/go-redis/v9"
)

const cacheTimeout = 2 * time.Second

// cacheKey returns the Redis key for a room's recent-message list.
func cacheKey(roomID int64) string {
	return fmt.Sprintf("room:%d:messages", roomID)
}

// MessageCache keeps each room's most recent messages in Redis so
// backlog delivery on join doesn't always hit the directory. It is a
// cache, not a store: misses fall through to the directory and the
// cache is rewarmed from the canonical log.
type MessageCache struct {
	client  redis.Cmdable
	maxSize int64
}

// NewMessageCache creates a cache retaining up to maxSize messages per room.
func NewMessageCache(client redis.Cmdable, maxSize int) *MessageCache {
	return &MessageCache{
		client:  client,
		maxSize: int64(maxSize),
	}
}

// Append adds a persisted message to the room's list, trimming to maxSize.
func (c *MessageCache) Append(msg *room.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("cache: failed to marshal message: %v", err)
		return
	}

	key := cacheKey(msg.RoomID)
	pipe := c.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -c.maxSize, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("cache: failed to append message: %v", err)
		// The list is now missing a message; drop it so the next read
		// rewarms from the canonical log instead of serving a gap.
		c.Invalidate(msg.RoomID)
	}
}

// Invalidate drops a room's cached list. Best effort; if the delete
// also fails, reads will fail too and fall through to the directory.
func (c *MessageCache) Invalidate(roomID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	if err := c.client.Del(ctx, cacheKey(roomID)).Err(); err != nil {
		log.Printf("cache: failed to invalidate room %d: %v", roomID, err)
	}
}

// Recent returns the cached messages for a room, oldest first. An
// empty result means a cold cache, not an empty room.
func (c *MessageCache) Recent(roomID int64) []*room.Message {
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	vals, err := c.client.LRange(ctx, cacheKey(roomID), 0, -1).Result()
	if err != nil {
		log.Printf("cache: failed to read messages: %v", err)
		return nil
	}

	msgs := make([]*room.Message, 0, len(vals))
	for _, v := range vals {
		var m room.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			continue
		}
		msgs = append(msgs, &m)
	}
	return msgs
}

// Warm replaces the room's cached list with the tail of the canonical log.
func (c *MessageCache) Warm(roomID int64, msgs []*room.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	if int64(len(msgs)) > c.maxSize {
		msgs = msgs[int64(len(msgs))-c.maxSize:]
	}

	key := cacheKey(roomID)
	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, key, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("cache: failed to warm room %d: %v", roomID, err)
	}
}

// MaxSize returns the per-room retention limit. A cached list shorter
// than this is known to be the room's complete log.
func (c *MessageCache) MaxSize() int {
	return int(c.maxSize)
}

// Count returns the number of cached messages for a room.
func (c *MessageCache) Count(roomID int64) int {
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	n, err := c.client.LLen(ctx, cacheKey(roomID)).Result()
	if err != nil {
		log.Printf("cache: failed to count messages: %v", err)
		return 0
	}
	return int(n)
}
