// Package cache is a Redis-backed read-through cache in front of the store's
// hottest lookups: tag resolution and blob length. The store remains the
// single source of truth; the cache only shortens round-trips and is
// invalidated on every write through it.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/registryx/registryx/internal/config"
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(cfg *config.Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect redis: %w", err)
	}
	return &Cache{client: client, ttl: 5 * time.Minute}, nil
}

func tagKey(repository, name string) string {
	return "registryx:tag:" + repository + ":" + name
}

func lengthKey(digest string) string {
	return "registryx:bloblen:" + digest
}

// TagDigest returns the cached digest a tag resolves to, or "", false if
// absent (a miss, not necessarily NotFound — callers still consult the
// store).
func (c *Cache) TagDigest(ctx context.Context, repository, name string) (string, bool) {
	v, err := c.client.Get(ctx, tagKey(repository, name)).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (c *Cache) SetTagDigest(ctx context.Context, repository, name, digest string) {
	c.client.Set(ctx, tagKey(repository, name), digest, c.ttl)
}

func (c *Cache) InvalidateTag(ctx context.Context, repository, name string) {
	c.client.Del(ctx, tagKey(repository, name))
}

// BlobLength returns the cached byte length of digest, or 0, false if absent.
func (c *Cache) BlobLength(ctx context.Context, digest string) (int64, bool) {
	v, err := c.client.Get(ctx, lengthKey(digest)).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *Cache) SetBlobLength(ctx context.Context, digest string, length int64) {
	c.client.Set(ctx, lengthKey(digest), length, c.ttl)
}

func (c *Cache) InvalidateBlob(ctx context.Context, digest string) {
	c.client.Del(ctx, lengthKey(digest))
}
