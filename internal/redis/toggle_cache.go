package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const toggleTTL = time.Minute

// ToggleCache caches the per-user auto-reschedule feature toggle so sweep
// passes don't hammer user_settings.
type ToggleCache interface {
	// Get returns (value, found, error). found=false means cache miss.
	Get(ctx context.Context, userID string) (bool, bool, error)
	Set(ctx context.Context, userID string, enabled bool) error
}

type toggleCache struct {
	client *redis.Client
}

// NewToggleCache returns a Redis-backed ToggleCache.
func NewToggleCache(client *redis.Client) ToggleCache {
	return &toggleCache{client: client}
}

func toggleKey(userID string) string { return "resched:toggle:" + userID }

func (c *toggleCache) Get(ctx context.Context, userID string) (bool, bool, error) {
	val, err := c.client.Get(ctx, toggleKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("toggle cache get for %s: %w", userID, err)
	}
	return val == "1", true, nil
}

func (c *toggleCache) Set(ctx context.Context, userID string, enabled bool) error {
	val := "0"
	if enabled {
		val = "1"
	}
	if err := c.client.Set(ctx, toggleKey(userID), val, toggleTTL).Err(); err != nil {
		return fmt.Errorf("toggle cache set for %s: %w", userID, err)
	}
	return nil
}
