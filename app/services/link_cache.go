package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/url-shortener/utils"
	"github.com/redis/go-redis/v9"
)

// CachedLink maps an alias to its link id. Both are immutable, so an entry never goes stale;
// the target URL is always read from the store.
type CachedLink struct {
	ID uint `json:"id"`
}

// LinkCache is a cache-aside store for alias resolution. A miss is (nil, nil).
type LinkCache interface {
	Get(ctx context.Context, alias string) (*CachedLink, error)
	Set(ctx context.Context, alias string, link CachedLink) error
	Invalidate(ctx context.Context, alias string) error
}

// RedisLinkCache implements LinkCache on redis
type RedisLinkCache struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLinkCache(rc *redis.Client, prefix string, ttl time.Duration) *RedisLinkCache {
	return &RedisLinkCache{rc: rc, prefix: prefix, ttl: ttl}
}

func (c *RedisLinkCache) key(alias string) string {
	return c.prefix + utils.ShortLinkCacheKey + alias
}

func (c *RedisLinkCache) Get(ctx context.Context, alias string) (*CachedLink, error) {
	bs, err := c.rc.Get(ctx, c.key(alias)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached link: %w", err)
	}

	var link CachedLink
	if err := json.Unmarshal(bs, &link); err != nil {
		// Corrupt entries are dropped and treated as a miss
		_ = c.rc.Del(ctx, c.key(alias)).Err()
		return nil, nil
	}
	return &link, nil
}

func (c *RedisLinkCache) Set(ctx context.Context, alias string, link CachedLink) error {
	bs, err := json.Marshal(link)
	if err != nil {
		return err
	}
	if err := c.rc.Set(ctx, c.key(alias), bs, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache link: %w", err)
	}
	return nil
}

func (c *RedisLinkCache) Invalidate(ctx context.Context, alias string) error {
	if err := c.rc.Del(ctx, c.key(alias)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached link: %w", err)
	}
	return nil
}

// NoopLinkCache is used when caching is disabled
type NoopLinkCache struct{}

func (NoopLinkCache) Get(context.Context, string) (*CachedLink, error) { return nil, nil }
func (NoopLinkCache) Set(context.Context, string, CachedLink) error    { return nil }
func (NoopLinkCache) Invalidate(context.Context, string) error         { return nil }
