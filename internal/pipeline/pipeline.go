// internal/pipeline/pipeline.go
//
// Host-resolution middleware.
//
// Context
// -------
// Every request passes through Pipeline.Middleware before it reaches the
// render layer.  The middleware decides exactly one Outcome:
//
//  1. RouteTable short-circuits bypass and admin paths.
//  2. The Classifier splits development and main-app hosts, which get the
//     session-based auth check, from tenant hosts.
//  3. Tenant hosts go through Resolver → Lookup → access policy → security
//     filter.  Every failure maps to a redirect on the application domain.
//  4. On success the tenant Context is put on the request context and
//     published by the Propagator.
//
// Failure isolation
// -----------------
// Deciding the outcome runs under recover.  A panic there is logged with
// its stack and the request passes through with no tenant context and with
// inbound tenant headers stripped.  Panics raised by the next handler are
// not swallowed.
//
// Notes
// -----
//   - Inbound X-Site-* headers are always removed before forwarding; only
//     the propagator writes them.
//   - Auth provider errors are logged and treated as "no user".
package pipeline

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanizio/blooms/internal/auth"
	"github.com/yanizio/blooms/internal/hostname"
	"github.com/yanizio/blooms/internal/logger"
	"github.com/yanizio/blooms/internal/metrics"
	"github.com/yanizio/blooms/internal/site"
	"github.com/yanizio/blooms/internal/tenant"
)

// HeaderRequestID carries the per-request correlation ID.
const HeaderRequestID = "X-Request-Id"

// SiteLookup resolves a key; *tenant.Lookup satisfies it.
type SiteLookup interface {
	Find(ctx context.Context, key site.LookupKey) tenant.Result
}

// AccessPolicy decides site visibility; *acl.Evaluator satisfies it.
type AccessPolicy interface {
	CanView(ctx context.Context, rec *site.Record, viewer *auth.User) bool
}

// Options wires a Pipeline.  Every field except Logger, Now, and
// ReservedSubdomains is required.
type Options struct {
	Classifier         *hostname.Classifier
	Resolver           *hostname.Resolver
	Lookup             SiteLookup
	Access             AccessPolicy
	Auth               auth.Provider
	Propagator         *tenant.Propagator
	Routes             *RouteTable
	AppBaseURL         string
	ReservedSubdomains []string
	Logger             *zap.Logger
	Now                func() time.Time
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	classifier *hostname.Classifier
	resolver   *hostname.Resolver
	lookup     SiteLookup
	access     AccessPolicy
	auth       auth.Provider
	prop       *tenant.Propagator
	routes     *RouteTable
	router     *OutcomeRouter
	security   *SecurityFilter
	reserved   map[string]struct{}
	log        *zap.Logger
	now        func() time.Time
}

// New validates opts and builds a Pipeline.
func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Classifier == nil, opts.Resolver == nil:
		return nil, errors.New("pipeline: classifier and resolver are required")
	case opts.Lookup == nil, opts.Access == nil, opts.Auth == nil:
		return nil, errors.New("pipeline: lookup, access, and auth are required")
	case opts.Propagator == nil, opts.Routes == nil:
		return nil, errors.New("pipeline: propagator and routes are required")
	case opts.AppBaseURL == "":
		return nil, errors.New("pipeline: app base URL is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := logger.OrGlobal(opts.Logger).Named("pipeline")

	reserved := make(map[string]struct{}, len(opts.ReservedSubdomains))
	for _, l := range opts.ReservedSubdomains {
		reserved[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
	}

	router := NewOutcomeRouter(opts.AppBaseURL)
	return &Pipeline{
		classifier: opts.Classifier,
		resolver:   opts.Resolver,
		lookup:     opts.Lookup,
		access:     opts.Access,
		auth:       opts.Auth,
		prop:       opts.Propagator,
		routes:     opts.Routes,
		router:     router,
		security:   NewSecurityFilter(opts.Propagator, router, log),
		reserved:   reserved,
		log:        log,
		now:        opts.Now,
	}, nil
}

// decision is the result of evaluating one request.
type decision struct {
	outcome  Outcome
	req      *http.Request // forwarded request on passthrough
	respond  http.Handler  // terminal response when not passthrough
	detail   Detail
	resolved bool // tenant path taken; latency is observed
}

// Middleware returns the chi-compatible wrapper.
func (p *Pipeline) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := p.now()

		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
			r.Header.Set(HeaderRequestID, reqID)
		}
		w.Header().Set(HeaderRequestID, reqID)

		d := p.evaluate(w, r, start)
		elapsed := p.now().Sub(start)

		metrics.ResolutionOutcomesTotal.WithLabelValues(d.outcome.String()).Inc()
		if d.resolved {
			metrics.ResolutionSeconds.Observe(elapsed.Seconds())
		}
		p.logOutcome(r, reqID, d, elapsed)

		if d.outcome.Passthrough() {
			next.ServeHTTP(w, d.req)
			return
		}
		d.respond.ServeHTTP(w, r)
	})
}

// evaluate decides the outcome under recover.
func (p *Pipeline) evaluate(w http.ResponseWriter, r *http.Request, start time.Time) (d decision) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("tenant resolution panicked; passing through",
				zap.Any("panic", rec),
				zap.String("host", r.Host),
				zap.String("request_id", r.Header.Get(HeaderRequestID)),
				zap.Stack("stack"))
			tenant.StripHeaders(r.Header)
			tenant.StripHeaders(w.Header())
			d = decision{outcome: Recovered, req: r}
		}
	}()
	return p.decide(w, r, start)
}

func (p *Pipeline) decide(w http.ResponseWriter, r *http.Request, start time.Time) decision {
	route := p.routes.Classify(r.URL.Path)
	switch route {
	case RouteBypass:
		tenant.StripHeaders(r.Header)
		return decision{outcome: Bypass, req: r}
	case RouteAdmin:
		tenant.StripHeaders(r.Header)
		return decision{outcome: Admin, req: r}
	}

	switch p.classifier.Classify(r.Host) {
	case hostname.Development:
		return p.mainApp(r, route, Development)
	case hostname.MainApplication:
		return p.mainApp(r, route, MainAppPassthrough)
	}
	return p.siteDomain(w, r, start)
}

// mainApp runs the session check for development and main-app hosts.
func (p *Pipeline) mainApp(r *http.Request, route RouteCategory, pass Outcome) decision {
	tenant.StripHeaders(r.Header)
	if route != RouteProtected && route != RouteAuth {
		return decision{outcome: pass, req: r}
	}

	user := p.currentUser(r)
	switch {
	case route == RouteProtected && user == nil:
		return p.redirect(RedirectLogin, Detail{Path: r.URL.RequestURI()})
	case route == RouteAuth && user != nil:
		return p.redirect(RedirectDashboard, Detail{})
	}
	if user != nil {
		r = r.WithContext(auth.WithUser(r.Context(), user))
	}
	return decision{outcome: pass, req: r}
}

// siteDomain resolves a tenant host.
func (p *Pipeline) siteDomain(w http.ResponseWriter, r *http.Request, start time.Time) decision {
	res := p.resolver.Resolve(r.Host)
	detail := Detail{Hostname: res.Host}
	if !res.Valid {
		return p.resolvedRedirect(InvalidHostname, detail)
	}
	if res.Key.Kind == site.KindSubdomain {
		detail.Subdomain = res.Key.Value
	}

	ctx := r.Context()
	found := p.lookup.Find(ctx, res.Key)
	switch found.Status {
	case tenant.StatusNotFound:
		return p.resolvedRedirect(p.notFoundOutcome(res.Key), detail)
	case tenant.StatusDatastoreError:
		return p.resolvedRedirect(DatastoreError, detail)
	}
	rec := found.Site
	detail.SiteName = rec.Name

	var viewer *auth.User
	if !rec.Published {
		viewer = p.currentUser(r)
	}
	if !p.access.CanView(ctx, rec, viewer) {
		return p.resolvedRedirect(SiteUnpublishedNoAccess, detail)
	}

	if sr := p.security.Apply(r, rec); !sr.OK {
		return decision{outcome: SecurityViolation, respond: sr.Response, detail: detail, resolved: true}
	}

	tenant.StripHeaders(r.Header)
	now := p.now()
	tc := tenant.NewContext(rec, res.Host, found.CacheHit, now.Sub(start), now)
	ctx = tenant.WithContext(ctx, tc)
	if viewer != nil {
		ctx = auth.WithUser(ctx, viewer)
	}
	fwd := r.WithContext(ctx)
	if err := p.prop.Attach(w, fwd, tc); err != nil {
		p.log.Error("attach tenant context", zap.String("site_id", rec.ID.String()), zap.Error(err))
	}
	return decision{outcome: Success, req: fwd, detail: detail, resolved: true}
}

func (p *Pipeline) notFoundOutcome(key site.LookupKey) Outcome {
	if key.Kind == site.KindCustomDomain {
		return SiteNotFoundCustomDomain
	}
	if _, ok := p.reserved[key.Value]; ok {
		return SiteNotFoundGeneric
	}
	return SiteNotFoundSubdomainAvailable
}

// currentUser asks the auth provider, treating errors as no user.
func (p *Pipeline) currentUser(r *http.Request) *auth.User {
	u, err := p.auth.CurrentUser(r)
	if err != nil {
		p.log.Warn("auth provider error; treating as anonymous",
			zap.String("request_id", r.Header.Get(HeaderRequestID)),
			zap.Error(err))
		return nil
	}
	return u
}

func (p *Pipeline) redirect(o Outcome, d Detail) decision {
	return decision{
		outcome: o,
		detail:  d,
		respond: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p.router.Redirect(w, r, o, d)
		}),
	}
}

func (p *Pipeline) resolvedRedirect(o Outcome, d Detail) decision {
	dec := p.redirect(o, d)
	dec.resolved = true
	return dec
}

func (p *Pipeline) logOutcome(r *http.Request, reqID string, d decision, elapsed time.Duration) {
	level := zap.DebugLevel
	if !d.outcome.Passthrough() {
		level = zap.InfoLevel
	}
	ce := p.log.Check(level, "tenant resolution")
	if ce == nil {
		return
	}
	ce.Write(
		zap.String("request_id", reqID),
		zap.String("outcome", d.outcome.String()),
		zap.String("host", r.Host),
		zap.String("path", r.URL.Path),
		zap.String("location", p.router.Target(d.outcome, d.detail)),
		zap.Duration("elapsed", elapsed),
	)
}
