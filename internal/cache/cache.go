// Package cache provides the ephemeral per-user message buffer backed by
// Redis. Entries are advisory: a cache outage degrades recall quality but
// never blocks the relay path, so every operation returns errors for the
// caller to log and move past.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis client with the key layout used for per-user
// conversation buffers.
type Cache struct {
	rdb redis.UniversalClient
}

// New returns a Cache over the provided Redis client.
func New(rdb redis.UniversalClient) *Cache {
	return &Cache{rdb: rdb}
}

func userKey(userID int64) string {
	return fmt.Sprintf("user:%d:messages", userID)
}

// Append pushes an entry onto the tail of the user's buffer.
func (c *Cache) Append(ctx context.Context, userID int64, entry string) error {
	return c.rdb.RPush(ctx, userKey(userID), entry).Err()
}

// Recent returns up to limit entries from the tail of the user's buffer,
// oldest first. A limit <= 0 returns the whole buffer.
func (c *Cache) Recent(ctx context.Context, userID int64, limit int) ([]string, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	return c.rdb.LRange(ctx, userKey(userID), start, -1).Result()
}

// Clear removes the user's buffer entirely.
func (c *Cache) Clear(ctx context.Context, userID int64) error {
	return c.rdb.Del(ctx, userKey(userID)).Err()
}

// Ping verifies connectivity to the Redis backend.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
