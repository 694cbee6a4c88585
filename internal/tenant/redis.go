package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yanizio/blooms/internal/logger"
	"github.com/yanizio/blooms/internal/metrics"
	"github.com/yanizio/blooms/internal/site"
)

// DefaultRedisPrefix namespaces site keys in a shared Redis.
const DefaultRedisPrefix = "site:"

// RedisCache is a Cache shared between instances.  Records are stored as
// JSON with the TTL applied by Redis.  Transport errors degrade to a miss
// so a Redis outage falls through to the datastore.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
	log    *zap.Logger
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache wraps an already-connected client.  An empty prefix selects
// DefaultRedisPrefix.
func NewRedisCache(rdb redis.UniversalClient, prefix string, log *zap.Logger) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache{rdb: rdb, prefix: prefix, log: logger.OrGlobal(log).Named("site_cache")}
}

func (c *RedisCache) key(k site.LookupKey) string { return c.prefix + k.String() }

func (c *RedisCache) Get(ctx context.Context, key site.LookupKey) (*site.Record, bool) {
	raw, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.SiteCacheMissesTotal.WithLabelValues("redis").Inc()
		return nil, false
	case err != nil:
		c.log.Warn("redis get failed", zap.Stringer("key", key), zap.Error(err))
		metrics.SiteCacheErrorsTotal.Inc()
		metrics.SiteCacheMissesTotal.WithLabelValues("redis").Inc()
		return nil, false
	}

	var rec site.Record
	if err := decodeRecord(raw, &rec); err != nil {
		c.log.Warn("corrupt cached site dropped", zap.Stringer("key", key), zap.Error(err))
		metrics.SiteCacheErrorsTotal.Inc()
		metrics.SiteCacheMissesTotal.WithLabelValues("redis").Inc()
		_ = c.rdb.Del(ctx, c.key(key)).Err()
		return nil, false
	}
	metrics.SiteCacheHitsTotal.WithLabelValues("redis").Inc()
	return &rec, true
}

func (c *RedisCache) Put(ctx context.Context, key site.LookupKey, rec *site.Record, ttl time.Duration) {
	if rec == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		c.log.Error("encode site for cache", zap.Stringer("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
		c.log.Warn("redis set failed", zap.Stringer("key", key), zap.Error(err))
		metrics.SiteCacheErrorsTotal.Inc()
	}
}

// decodeRecord unmarshals a cached value and rejects records that would
// not have passed the store boundary.
func decodeRecord(raw []byte, rec *site.Record) error {
	if err := json.Unmarshal(raw, rec); err != nil {
		return err
	}
	return rec.Validate()
}
