package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache caches entitlement snapshots in front of the durable store
// for the client feature-gating read path. A cache miss is (nil, nil).
type SnapshotCache interface {
	Get(ctx context.Context, appUserID string) (*Snapshot, error)
	Set(ctx context.Context, appUserID string, s *Snapshot) error
	Invalidate(ctx context.Context, appUserID string) error
}

const defaultCacheTTL = 5 * time.Minute

// RedisSnapshotCache is a SnapshotCache backed by redis.
type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSnapshotCache creates a redis-backed cache. A non-positive ttl
// falls back to the default.
func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisSnapshotCache{client: client, ttl: ttl}
}

func cacheKey(appUserID string) string {
	return "entitlement:" + appUserID
}

func (c *RedisSnapshotCache) Get(ctx context.Context, appUserID string) (*Snapshot, error) {
	raw, err := c.client.Get(ctx, cacheKey(appUserID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		// A corrupt entry behaves like a miss; it will be overwritten on the
		// next Set.
		return nil, nil
	}
	return &s, nil
}

func (c *RedisSnapshotCache) Set(ctx context.Context, appUserID string, s *Snapshot) error {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(appUserID), raw, c.ttl).Err()
}

func (c *RedisSnapshotCache) Invalidate(ctx context.Context, appUserID string) error {
	return c.client.Del(ctx, cacheKey(appUserID)).Err()
}
