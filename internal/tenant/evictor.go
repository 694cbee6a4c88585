// evictor.go houses the optional sweep loop for MemoryCache.  Every
// SweepInterval it scans the LRU and removes entries whose TTL has passed,
// so idle keys do not linger until the next read or LRU pressure.
//
// Reads already expire entries lazily; the sweeper only bounds memory held
// by keys that are never read again.
package tenant

import (
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/blooms/internal/metrics"
	"github.com/yanizio/blooms/internal/site"
)

func (c *MemoryCache) sweepLoop(interval time.Duration) {
	defer close(c.done)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			if n := c.sweep(); n > 0 {
				c.log.Debug("expired sites swept", zap.Int("count", n))
			}
		}
	}
}

// sweep removes every expired entry and returns how many it dropped.
func (c *MemoryCache) sweep() int {
	now := c.now()

	c.mu.Lock()
	var stale []site.LookupKey
	c.lru.Range(func(key site.LookupKey, ent *entry) bool {
		if ent.expired(now) {
			stale = append(stale, key)
		}
		return true
	})
	for _, key := range stale {
		c.lru.Remove(key)
	}
	size := c.lru.Len()
	c.mu.Unlock()

	metrics.SiteCacheEvictTotal.Add(float64(len(stale)))
	metrics.SiteCacheEntries.Set(float64(size))
	return len(stale)
}
