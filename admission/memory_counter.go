package admission

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryCounter is an in-process Counter backed by go-cache. Each key holds
// an int64 that expires with its window.
type MemoryCounter struct {
	cache *cache.Cache
}

// NewMemoryCounter creates an empty in-memory counter.
//
// Parameters:
//   - cleanupInterval: Interval at which expired windows are purged
//
// Returns:
//   - A new *MemoryCounter
func NewMemoryCounter(cleanupInterval time.Duration) *MemoryCounter {
	return &MemoryCounter{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

// Hit implements Counter.
func (c *MemoryCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	if window <= 0 {
		return 0, ErrInvalidWindow
	}

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		// Add fails while a live window exists for key
		if err := c.cache.Add(key, int64(1), window); err == nil {
			return 1, nil
		}

		// Increment fails if the window expired since Add; start over
		if n, err := c.cache.IncrementInt64(key, 1); err == nil {
			return n, nil
		}
	}
}

// Reset implements Counter.
func (c *MemoryCounter) Reset(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.cache.Delete(key)
	return nil
}

// ItemCount returns the number of keys with a window, including expired ones
// not yet purged.
func (c *MemoryCounter) ItemCount() int {
	return c.cache.ItemCount()
}
