package tenant

import (
	"context"
	"time"

	"github.com/yanizio/blooms/internal/site"
)

// TieredCache fronts a shared Cache with a short-lived local one.  Local
// entries live for at most localTTL so edits made on another instance
// become visible within that window.
type TieredCache struct {
	local    Cache
	shared   Cache
	localTTL time.Duration
}

var _ Cache = (*TieredCache)(nil)

// NewTieredCache composes local and shared.  localTTL caps the lifetime of
// local copies; when zero the full ttl passed to Put is used.
func NewTieredCache(local, shared Cache, localTTL time.Duration) *TieredCache {
	return &TieredCache{local: local, shared: shared, localTTL: localTTL}
}

func (c *TieredCache) Get(ctx context.Context, key site.LookupKey) (*site.Record, bool) {
	if rec, ok := c.local.Get(ctx, key); ok {
		return rec, true
	}
	rec, ok := c.shared.Get(ctx, key)
	if !ok {
		return nil, false
	}
	if c.localTTL > 0 {
		c.local.Put(ctx, key, rec, c.localTTL)
	}
	return rec, true
}

func (c *TieredCache) Put(ctx context.Context, key site.LookupKey, rec *site.Record, ttl time.Duration) {
	if rec == nil || ttl <= 0 {
		return
	}
	c.shared.Put(ctx, key, rec, ttl)
	c.local.Put(ctx, key, rec, c.capTTL(ttl))
}

func (c *TieredCache) capTTL(ttl time.Duration) time.Duration {
	if c.localTTL > 0 && (ttl <= 0 || ttl > c.localTTL) {
		return c.localTTL
	}
	return ttl
}
