// internal/tenant/lookup.go
//
// Site lookup service.
//
// Lookup turns a site.LookupKey into a Result by consulting the Cache first
// and the datastore second.  Concurrent misses for one key share a single
// query through singleflight; the query runs under its own timeout so one
// slow row cannot stall every request for that host.
//
// Notes
//   - Only successful lookups are cached.  NotFound and DatastoreError are
//     never remembered, so a site created a moment ago resolves on the next
//     request.
//   - The shared query is detached from the first caller's cancellation;
//     each caller still stops waiting when its own context ends.
package tenant

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/blooms/internal/logger"
	"github.com/yanizio/blooms/internal/metrics"
	"github.com/yanizio/blooms/internal/site"
)

// DefaultLookupTimeout bounds one datastore query.
const DefaultLookupTimeout = 300 * time.Millisecond

// Status is the three-way outcome of a lookup.
type Status int

const (
	StatusFound Status = iota
	StatusNotFound
	StatusDatastoreError
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	default:
		return "datastore_error"
	}
}

// Result carries the lookup verdict.  Site is set only for StatusFound and
// Err only for StatusDatastoreError.
type Result struct {
	Status   Status
	Site     *site.Record
	CacheHit bool
	Err      error
}

// Finder is the datastore surface Lookup needs; *site.Store satisfies it.
type Finder interface {
	FindActiveBy(ctx context.Context, key site.LookupKey) (*site.Record, error)
}

// LookupOptions configures a Lookup.
type LookupOptions struct {
	TTL     time.Duration // cache lifetime of found sites; DefaultTTL when zero
	Timeout time.Duration // per-query bound; DefaultLookupTimeout when zero
	Logger  *zap.Logger
}

// Lookup is safe for concurrent use.
type Lookup struct {
	store   Finder
	cache   Cache
	ttl     time.Duration
	timeout time.Duration
	sfg     singleflight.Group
	log     *zap.Logger
}

// NewLookup wires a Finder and a Cache.
func NewLookup(store Finder, c Cache, opts LookupOptions) *Lookup {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultLookupTimeout
	}
	return &Lookup{
		store:   store,
		cache:   c,
		ttl:     opts.TTL,
		timeout: opts.Timeout,
		log:     logger.OrGlobal(opts.Logger).Named("site_lookup"),
	}
}

// Find resolves key.  It never returns a Go error; failures are folded into
// Result.Status so callers can route on them.
func (l *Lookup) Find(ctx context.Context, key site.LookupKey) Result {
	if rec, ok := l.cachedWithin(ctx, key); ok {
		metrics.SiteLookupTotal.WithLabelValues(StatusFound.String()).Inc()
		return Result{Status: StatusFound, Site: rec, CacheHit: true}
	}

	ch := l.sfg.DoChan(key.String(), func() (interface{}, error) {
		return l.load(context.WithoutCancel(ctx), key)
	})

	var res Result
	select {
	case out := <-ch:
		res = l.classify(key, out)
	case <-ctx.Done():
		res = Result{Status: StatusDatastoreError, Err: ctx.Err()}
	}
	metrics.SiteLookupTotal.WithLabelValues(res.Status.String()).Inc()
	return res
}

// load performs the bounded query and fills the cache on success.
func (l *Lookup) load(ctx context.Context, key site.LookupKey) (*site.Record, error) {
	// Double-check after the singleflight barrier.
	if rec, ok := l.cachedWithin(ctx, key); ok {
		return rec, nil
	}

	qctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	rec, err := l.store.FindActiveBy(qctx, key)
	if err != nil {
		return nil, err
	}

	pctx, pcancel := context.WithTimeout(ctx, l.timeout)
	defer pcancel()
	l.cache.Put(pctx, key, rec, l.ttl)
	return rec, nil
}

// cachedWithin reads the cache under the lookup timeout.  A read that runs
// out of time is a miss.
func (l *Lookup) cachedWithin(ctx context.Context, key site.LookupKey) (*site.Record, bool) {
	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.cache.Get(cctx, key)
}

func (l *Lookup) classify(key site.LookupKey, out singleflight.Result) Result {
	if out.Err == nil {
		// Shared callers each get their own copy.
		rec := *out.Val.(*site.Record)
		return Result{Status: StatusFound, Site: &rec}
	}
	if errors.Is(out.Err, site.ErrNotFound) {
		return Result{Status: StatusNotFound}
	}
	l.log.Warn("site lookup failed",
		zap.Stringer("key", key),
		zap.Bool("timeout", errors.Is(out.Err, context.DeadlineExceeded)),
		zap.Error(out.Err))
	return Result{Status: StatusDatastoreError, Err: out.Err}
}
