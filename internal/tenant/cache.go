package tenant

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/blooms/internal/cache"
	"github.com/yanizio/blooms/internal/logger"
	"github.com/yanizio/blooms/internal/metrics"
	"github.com/yanizio/blooms/internal/site"
)

// Static defaults.  cmd/web overrides them from config.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 10000
)

// Cache maps a LookupKey to a site snapshot.  Implementations must be safe
// for concurrent use; racing Puts for one key resolve as last-writer-wins.
// A ttl <= 0 makes Put a no-op.
type Cache interface {
	Get(ctx context.Context, key site.LookupKey) (*site.Record, bool)
	Put(ctx context.Context, key site.LookupKey, rec *site.Record, ttl time.Duration)
}

// MemoryOptions configures a MemoryCache.
type MemoryOptions struct {
	MaxEntries    int              // LRU bound; DefaultMaxEntries when zero
	SweepInterval time.Duration    // background expiry sweep; disabled when zero
	Now           func() time.Time // clock; time.Now when nil
	Logger        *zap.Logger
}

// MemoryCache is the process-local Cache.  Expired entries are treated as
// absent and removed on the read that discovers them.
type MemoryCache struct {
	mu   sync.Mutex
	lru  *cache.LRU[site.LookupKey, *entry]
	now  func() time.Time
	log  *zap.Logger
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache constructs a MemoryCache and, when SweepInterval > 0,
// starts the background sweeper.  Call Close to stop it.
func NewMemoryCache(opts MemoryOptions) *MemoryCache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &MemoryCache{
		now:  opts.Now,
		log:  logger.OrGlobal(opts.Logger).Named("site_cache"),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	c.lru = cache.New(opts.MaxEntries, func(key site.LookupKey, _ *entry) {
		c.log.Debug("site evicted (LRU pressure)", zap.Stringer("key", key))
		metrics.SiteCacheEvictTotal.Inc()
	})

	if opts.SweepInterval > 0 {
		go c.sweepLoop(opts.SweepInterval)
	} else {
		close(c.done)
	}
	return c
}

// Get returns a copy of the cached record for key.
func (c *MemoryCache) Get(_ context.Context, key site.LookupKey) (*site.Record, bool) {
	c.mu.Lock()
	ent, ok := c.lru.Get(key)
	if ok && ent.expired(c.now()) {
		c.lru.Remove(key)
		metrics.SiteCacheEvictTotal.Inc()
		ok = false
	}
	size := c.lru.Len()
	c.mu.Unlock()

	metrics.SiteCacheEntries.Set(float64(size))
	if !ok {
		metrics.SiteCacheMissesTotal.WithLabelValues("memory").Inc()
		return nil, false
	}
	metrics.SiteCacheHitsTotal.WithLabelValues("memory").Inc()
	rec := ent.rec
	return &rec, true
}

// Put stores a snapshot of rec under key.
func (c *MemoryCache) Put(_ context.Context, key site.LookupKey, rec *site.Record, ttl time.Duration) {
	if rec == nil || ttl <= 0 {
		return
	}
	ent := &entry{rec: *rec, storedAt: c.now(), ttl: ttl}

	c.mu.Lock()
	c.lru.Add(key, ent)
	size := c.lru.Len()
	c.mu.Unlock()

	metrics.SiteCacheEntries.Set(float64(size))
}

// Len reports the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Close stops the sweeper, if running.  Safe to call more than once.
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	<-c.done
	return nil
}
