// internal/pipeline/security.go
//
// Cross-tenant isolation checks.
//
// Context
// -------
// Once a host resolves to a site, nothing else in the request may claim a
// different identity.  Two carriers are checked:
//
//   - inbound X-Site-Id, X-Site-Subdomain, and X-Custom-Domain headers,
//     which a client or a misconfigured proxy could forge;
//   - the signed site-context cookie left by an earlier response.
//
// A mismatch yields a pre-built response: the context cookie is expired and
// the browser is sent to /security-error on the application domain.  The
// event is logged at WARN with security_violation=true so it can be alerted
// on separately from not-found traffic.
//
// Notes
// -----
//   - An expired but correctly signed cookie is ignored; it is simply
//     replaced by the propagator.
//   - Header comparison is case-insensitive; DNS names are.
package pipeline

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanizio/blooms/internal/hostname"
	"github.com/yanizio/blooms/internal/logger"
	"github.com/yanizio/blooms/internal/requestinfo"
	"github.com/yanizio/blooms/internal/site"
	"github.com/yanizio/blooms/internal/tenant"
)

// Violation reasons, sent as the `error` query parameter.
const (
	ReasonSiteIDMismatch       = "site_id_mismatch"
	ReasonSubdomainMismatch    = "subdomain_mismatch"
	ReasonCustomDomainMismatch = "custom_domain_mismatch"
	ReasonInvalidCookie        = "invalid_context_cookie"
	ReasonCrossTenantCookie    = "cross_tenant_cookie"
)

// SecurityResult is the filter's verdict.  Response is set when OK is
// false and must be served as-is.
type SecurityResult struct {
	OK       bool
	Reason   string
	Response http.Handler
}

// SecurityFilter enforces cross-tenant isolation.
type SecurityFilter struct {
	prop   *tenant.Propagator
	router *OutcomeRouter
	log    *zap.Logger
}

// NewSecurityFilter wires the propagator (for cookie verification and
// clearing) and the router (for the error target).
func NewSecurityFilter(prop *tenant.Propagator, router *OutcomeRouter, log *zap.Logger) *SecurityFilter {
	return &SecurityFilter{prop: prop, router: router, log: logger.OrGlobal(log).Named("security")}
}

// Apply checks r against the resolved site.
func (f *SecurityFilter) Apply(r *http.Request, rec *site.Record) SecurityResult {
	reason := f.check(r, rec)
	if reason == "" {
		return SecurityResult{OK: true}
	}

	host := hostname.Normalize(r.Host)
	fields := append([]zap.Field{
		zap.Bool("security_violation", true),
		zap.String("reason", reason),
		zap.String("host", host),
		zap.String("site_id", rec.ID.String()),
		zap.String("request_id", r.Header.Get(HeaderRequestID)),
	}, requestinfo.Describe(r).Fields()...)
	f.log.Warn("cross-tenant request rejected", fields...)

	target := f.router.SecurityErrorURL(reason, host)
	return SecurityResult{
		Reason: reason,
		Response: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.prop.Clear(w)
			http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		}),
	}
}

func (f *SecurityFilter) check(r *http.Request, rec *site.Record) string {
	if v := r.Header.Get(tenant.HeaderSiteID); v != "" {
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil || id != rec.ID {
			return ReasonSiteIDMismatch
		}
	}
	if v := r.Header.Get(tenant.HeaderSubdomain); v != "" && !strings.EqualFold(strings.TrimSpace(v), rec.Subdomain) {
		return ReasonSubdomainMismatch
	}
	if v := r.Header.Get(tenant.HeaderCustomDomain); v != "" && !strings.EqualFold(strings.TrimSpace(v), rec.CustomDomain) {
		return ReasonCustomDomainMismatch
	}

	tc, err := f.prop.Read(r)
	switch {
	case errors.Is(err, tenant.ErrNoContext), errors.Is(err, tenant.ErrContextExpired):
		return ""
	case err != nil:
		return ReasonInvalidCookie
	case tc.SiteID != rec.ID:
		return ReasonCrossTenantCookie
	}
	return ""
}
