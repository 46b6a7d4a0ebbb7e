// Package leaderboard maintains a Redis sorted-set mirror of lifetime step
// totals, fed by the step event stream. It serves fast top-N reads without
// touching Postgres; the authoritative ranking still comes from the store.
package leaderboard

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const lifetimeKey = "stepquest:leaderboard:lifetime"

// Cache wraps the Redis connection holding the lifetime mirror.
type Cache struct {
	client *redis.Client
}

// NewCache connects to Redis using a URL of the form redis://host:port/db.
func NewCache(url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = 5 * time.Second
	return &Cache{client: redis.NewClient(opts)}, nil
}

// Ping verifies connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ApplyDelta folds a signed step delta into a user's mirrored lifetime total.
// Negative deltas are ignored so the mirror matches the monotonic counter.
func (c *Cache) ApplyDelta(ctx context.Context, userID string, delta int) error {
	if delta <= 0 {
		return nil
	}
	return c.client.ZIncrBy(ctx, lifetimeKey, float64(delta), userID).Err()
}

// Entry is one mirrored leaderboard row.
type Entry struct {
	UserID string
	Steps  int64
}

// Top returns the highest mirrored lifetime totals, best first.
func (c *Cache) Top(ctx context.Context, n int64) ([]Entry, error) {
	if n <= 0 {
		n = 10
	}
	members, err := c.client.ZRevRangeWithScores(ctx, lifetimeKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(members))
	for _, member := range members {
		userID, ok := member.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, Entry{UserID: userID, Steps: int64(member.Score)})
	}
	return entries, nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
