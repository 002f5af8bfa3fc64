package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCounter is a Counter shared by every process using the same Redis.
// Keys are INCR'd and given a TTL on the hit that creates them.
type redisCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisCounter creates a Redis-backed counter.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	counter := NewRedisCounter(client, "asyncecho:")
func NewRedisCounter(client *redis.Client, prefix string) Counter {
	return &redisCounter{
		client: client,
		prefix: prefix,
	}
}

// Hit implements Counter.
func (c *redisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	if window <= 0 {
		return 0, ErrInvalidWindow
	}

	k := c.prefix + key
	n, err := c.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	if n == 1 {
		if err := c.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, fmt.Errorf("failed to set counter window: %w", err)
		}
	}

	return n, nil
}

// Reset implements Counter.
func (c *redisCounter) Reset(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset counter: %w", err)
	}
	return nil
}
