// internal/tenant/entry.go
//
// MemoryCache entry.
//
// An entry holds a value copy of the site row plus its insertion time and
// TTL.  Entries are replaced wholesale by Put and never mutated in place,
// so a reader holding one never observes a torn record.
package tenant

import (
	"time"

	"github.com/yanizio/blooms/internal/site"
)

type entry struct {
	rec      site.Record
	storedAt time.Time
	ttl      time.Duration
}

// expired reports whether more than ttl has elapsed since insertion.
func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}
