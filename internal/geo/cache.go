package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatewatch-systems/gatewatch/internal/metrics"
)

// CachedResolver wraps a Resolver with a Redis cache so repeat lookups for
// the same IP don't hit the upstream service. Cache failures fall through to
// the inner resolver.
type CachedResolver struct {
	inner Resolver
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedResolver creates a caching layer over inner.
func NewCachedResolver(inner Resolver, client *redis.Client, ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedResolver{inner: inner, redis: client, ttl: ttl}
}

// Resolve returns the cached location for ip, or resolves and caches it.
func (c *CachedResolver) Resolve(ctx context.Context, ip string) (*Location, error) {
	key := cacheKey(ip)

	data, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var loc Location
		if err := json.Unmarshal([]byte(data), &loc); err == nil {
			metrics.GeoCacheHits.Inc()
			return &loc, nil
		}
	} else if !errors.Is(err, redis.Nil) && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	loc, err := c.inner.Resolve(ctx, ip)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(loc); err == nil {
		// Best effort: a failed cache write never fails the lookup.
		c.redis.Set(ctx, key, payload, c.ttl)
	}
	return loc, nil
}

func cacheKey(ip string) string {
	return fmt.Sprintf("geo:%s", ip)
}
