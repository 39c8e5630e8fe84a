package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/nearby-deals/internal/model"
)

// DefaultKey is the Redis key holding the active offer snapshot.
const DefaultKey = "nearby-deals:offers:active"

// RedisClient is the subset of redis.Cmdable used by RedisCache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCache shares the snapshot between API instances, so an invalidation
// after a redemption is seen by every instance.
type RedisCache struct {
	client RedisClient
	key    string
}

// NewRedisCache creates a RedisCache storing the snapshot under key.
// An empty key selects DefaultKey.
func NewRedisCache(client RedisClient, key string) *RedisCache {
	if key == "" {
		key = DefaultKey
	}
	return &RedisCache{client: client, key: key}
}

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// Get returns the cached snapshot. A missing key is a miss, not an error.
func (c *RedisCache) Get(ctx context.Context) ([]model.Offer, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", c.key, err)
	}

	var offers []model.Offer
	if err := json.Unmarshal(data, &offers); err != nil {
		return nil, false, fmt.Errorf("decode offer snapshot: %w", err)
	}
	return offers, true, nil
}

// Set stores offers under the cache key for ttl.
func (c *RedisCache) Set(ctx context.Context, offers []model.Offer, ttl time.Duration) error {
	data, err := json.Marshal(offers)
	if err != nil {
		return fmt.Errorf("encode offer snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key, err)
	}
	return nil
}

// Invalidate deletes the cache key.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", c.key, err)
	}
	return nil
}
