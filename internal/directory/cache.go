// Package directory holds shared plumbing for the role and route catalogs.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ListCache keeps one JSON-encoded catalog listing in Redis. Writes to the
// catalog must call Invalidate in the same request; stale role or route data
// directly produces wrong access decisions.
type ListCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	group  singleflight.Group
}

// NewListCache constructs a ListCache. A nil client disables caching; Get
// then always consults the loader.
func NewListCache(client *redis.Client, key string, ttl time.Duration) *ListCache {
	return &ListCache{client: client, key: key, ttl: ttl}
}

// Get unmarshals the cached listing into dest, filling the cache through the
// loader on a miss. Concurrent misses share a single loader call.
func (c *ListCache) Get(ctx context.Context, dest any, load func(ctx context.Context) (any, error)) error {
	if c == nil || c.client == nil {
		value, err := load(ctx)
		if err != nil {
			return err
		}
		return reencode(value, dest)
	}

	if data, err := c.client.Get(ctx, c.key).Bytes(); err == nil {
		return json.Unmarshal(data, dest)
	} else if !errors.Is(err, redis.Nil) {
		return err
	}

	raw, err, _ := c.group.Do(c.key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

// Invalidate drops the cached listing. Callers invoke it synchronously on
// every create, update and activation change.
func (c *ListCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, c.key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func reencode(value, dest any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
