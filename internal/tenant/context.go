// context.go defines the per-request tenant Context attached once a site
// resolves.  Downstream handlers read it from the request context; the
// rendering layer behind a proxy reads the same values from headers and the
// signed cookie written by Propagator.
package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yanizio/blooms/internal/site"
)

// Context describes the site a request was resolved to.
type Context struct {
	SiteID       uuid.UUID
	Subdomain    string
	CustomDomain string // empty when the site has none
	Hostname     string // normalized request host
	CacheHit     bool
	Latency      time.Duration // time spent resolving
	ResolvedAt   time.Time
}

// NewContext builds a Context from a resolved record.
func NewContext(rec *site.Record, host string, cacheHit bool, latency time.Duration, at time.Time) Context {
	return Context{
		SiteID:       rec.ID,
		Subdomain:    rec.Subdomain,
		CustomDomain: rec.CustomDomain,
		Hostname:     host,
		CacheHit:     cacheHit,
		Latency:      latency,
		ResolvedAt:   at,
	}
}

type ctxKey struct{}

// WithContext stores tc on ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext fetches the tenant Context, if any.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}
