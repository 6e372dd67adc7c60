package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Invalidator drops stale read-through cache entries after a write.
// Failures are logged and swallowed: the cache is a side channel,
// never a correctness dependency.
type Invalidator interface {
	Invalidate(ctx context.Context, pattern string)
}

// Store adds the read side used by listing handlers.
type Store interface {
	Invalidator
	GetJSON(ctx context.Context, key string, dest any) bool
	SetJSON(ctx context.Context, key string, value any)
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// GetJSON reads key into dest, reporting whether a usable entry was found.
// Read errors degrade to a miss.
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache read error key=%s err=%v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		log.Printf("cache decode error key=%s err=%v", key, err)
		return false
	}
	return true
}

func (c *RedisCache) SetJSON(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("cache encode error key=%s err=%v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("cache write error key=%s err=%v", key, err)
	}
}

// Invalidate deletes every key matching pattern, scanning in batches so
// large keyspaces never block the server.
func (c *RedisCache) Invalidate(ctx context.Context, pattern string) {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			log.Printf("cache invalidation error pattern=%s err=%v", pattern, err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				log.Printf("cache invalidation error pattern=%s err=%v", pattern, err)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// Noop satisfies Store when no cache is configured, e.g. in tests.
type Noop struct{}

func (Noop) Invalidate(context.Context, string)        {}
func (Noop) GetJSON(context.Context, string, any) bool { return false }
func (Noop) SetJSON(context.Context, string, any)      {}
