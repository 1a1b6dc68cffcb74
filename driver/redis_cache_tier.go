package driver

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCacheTier is a shared byte cache so replicas reuse each other's results.
type RedisCacheTier struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCacheTier(client redis.UniversalClient, prefix string) *RedisCacheTier {
	return &RedisCacheTier{client: client, prefix: prefix + "cache:"}
}

// Get returns found=false on a miss.
func (c *RedisCacheTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, newDriverError("CacheGet", err)
	}
	return b, true, nil
}

func (c *RedisCacheTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return newDriverError("CacheSet", err)
	}
	return nil
}

// Purge deletes every cached key starting with keyPrefix.
func (c *RedisCacheTier) Purge(ctx context.Context, keyPrefix string) error {
	iter := c.client.Scan(ctx, 0, c.prefix+keyPrefix+"*", 200).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 200 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return newDriverError("CachePurge", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return newDriverError("CachePurge", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return newDriverError("CachePurge", err)
		}
	}
	return nil
}
