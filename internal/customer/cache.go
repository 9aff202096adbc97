package customer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultCacheTTL is used when CachedSource is built with a zero TTL.
const DefaultCacheTTL = 10 * time.Minute

const cacheKeyPrefix = "crosssell:customer:"

// CachedSource fronts a Source with a Redis read-through cache for single
// customer lookups. Only found customers are cached. Redis failures are
// logged and the lookup falls through to the wrapped source.
type CachedSource struct {
	Source
	rdb redis.Cmdable
	ttl time.Duration
}

// NewCachedSource wraps src with a Redis cache.
func NewCachedSource(src Source, rdb redis.Cmdable, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{Source: src, rdb: rdb, ttl: ttl}
}

// GetCustomerByID implements Lookup.
func (c *CachedSource) GetCustomerByID(ctx context.Context, customerID string) (Record, error) {
	key := cacheKeyPrefix + customerID

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rec Record
		if jerr := json.Unmarshal(raw, &rec); jerr == nil {
			return rec, nil
		}
		zap.L().Warn("customer: discarding corrupt cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		zap.L().Warn("customer: cache read failed", zap.String("key", key), zap.Error(err))
	}

	rec, err := c.Source.GetCustomerByID(ctx, customerID)
	if err != nil || rec == nil {
		return rec, err
	}

	if data, jerr := json.Marshal(rec); jerr == nil {
		if serr := c.rdb.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			zap.L().Warn("customer: cache write failed", zap.String("key", key), zap.Error(serr))
		}
	}
	return rec, nil
}

// Invalidate drops the cached entry for a customer.
func (c *CachedSource) Invalidate(ctx context.Context, customerID string) error {
	return c.rdb.Del(ctx, cacheKeyPrefix+customerID).Err()
}

// Name implements Source.
func (c *CachedSource) Name() string {
	return c.Source.Name() + "+redis"
}
