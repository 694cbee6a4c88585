// internal/tenant/propagate.go
//
// Tenant context propagation.
//
// Context
// -------
// Once a site resolves, downstream handlers (and a renderer sitting behind
// the reverse proxy) need to know which site they are serving.  Propagator
// publishes the tenant Context three ways:
//
//   - X-Site-* headers on the forwarded request,
//   - the same headers on the response,
//   - a signed HS256 cookie so later requests can be cross-checked by the
//     security filter.
//
// Notes
// -----
//   - iat/exp derive from Context.ResolvedAt, so one Context always encodes
//     to one cookie value.
//   - Attach replaces any Set-Cookie line it wrote earlier instead of
//     appending a second one.
package tenant

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Propagated header names.
const (
	HeaderSiteID       = "X-Site-Id"
	HeaderSubdomain    = "X-Site-Subdomain"
	HeaderCustomDomain = "X-Custom-Domain"
	HeaderHostname     = "X-Site-Hostname"
	HeaderCache        = "X-Site-Cache"
	HeaderResolutionMs = "X-Site-Resolution-Ms"
)

// Headers lists every header Propagator owns.  Inbound copies are untrusted.
var Headers = []string{
	HeaderSiteID,
	HeaderSubdomain,
	HeaderCustomDomain,
	HeaderHostname,
	HeaderCache,
	HeaderResolutionMs,
}

// Cookie defaults.
const (
	DefaultCookieName = "blooms_site"
	DefaultCookieTTL  = 24 * time.Hour
	MaxCookieTTL      = 24 * time.Hour
)

var (
	// ErrNoContext means the request carried no context cookie.
	ErrNoContext = errors.New("no site context cookie")

	// ErrContextExpired means the cookie is genuine but past exp.
	ErrContextExpired = errors.New("site context cookie expired")

	// ErrContextInvalid means the cookie failed signature or claim checks.
	ErrContextInvalid = errors.New("site context cookie invalid")
)

// PropagatorOptions configures a Propagator.
type PropagatorOptions struct {
	CookieName string
	Secret     []byte
	TTL        time.Duration // capped at MaxCookieTTL
	Secure     bool
}

// Propagator writes and reads tenant context.  Safe for concurrent use.
type Propagator struct {
	name   string
	secret []byte
	ttl    time.Duration
	secure bool
}

// NewPropagator validates opts.  The secret must be non-empty.
func NewPropagator(opts PropagatorOptions) (*Propagator, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("propagator: empty signing secret")
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 || opts.TTL > MaxCookieTTL {
		opts.TTL = DefaultCookieTTL
	}
	return &Propagator{
		name:   opts.CookieName,
		secret: opts.Secret,
		ttl:    opts.TTL,
		secure: opts.Secure,
	}, nil
}

// CookieName returns the configured context cookie name.
func (p *Propagator) CookieName() string { return p.name }

type contextClaims struct {
	Subdomain    string `json:"sub_domain"`
	CustomDomain string `json:"custom_domain,omitempty"`
	Hostname     string `json:"hostname"`
	jwt.RegisteredClaims
}

// Encode signs tc into a cookie value.
func (p *Propagator) Encode(tc Context) (string, error) {
	claims := contextClaims{
		Subdomain:    tc.Subdomain,
		CustomDomain: tc.CustomDomain,
		Hostname:     tc.Hostname,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tc.SiteID.String(),
			IssuedAt:  jwt.NewNumericDate(tc.ResolvedAt),
			ExpiresAt: jwt.NewNumericDate(tc.ResolvedAt.Add(p.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign site context: %w", err)
	}
	return signed, nil
}

// Decode verifies a cookie value.  A genuine but expired token returns the
// decoded Context together with ErrContextExpired.
func (p *Propagator) Decode(value string) (Context, error) {
	var claims contextClaims
	_, err := jwt.ParseWithClaims(value, &claims,
		func(*jwt.Token) (interface{}, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	var tc Context
	id, idErr := uuid.Parse(claims.Subject)
	if idErr == nil {
		tc = Context{
			SiteID:       id,
			Subdomain:    claims.Subdomain,
			CustomDomain: claims.CustomDomain,
			Hostname:     claims.Hostname,
		}
		if claims.IssuedAt != nil {
			tc.ResolvedAt = claims.IssuedAt.Time
		}
	}

	switch {
	case err == nil && idErr == nil:
		return tc, nil
	case errors.Is(err, jwt.ErrTokenExpired) && idErr == nil:
		return tc, fmt.Errorf("%w: %v", ErrContextExpired, err)
	case err != nil:
		return Context{}, fmt.Errorf("%w: %v", ErrContextInvalid, err)
	default:
		return Context{}, fmt.Errorf("%w: subject %q", ErrContextInvalid, claims.Subject)
	}
}

// Read decodes the context cookie on r.
func (p *Propagator) Read(r *http.Request) (Context, error) {
	c, err := r.Cookie(p.name)
	if err != nil || c.Value == "" {
		return Context{}, ErrNoContext
	}
	return p.Decode(c.Value)
}

// Attach publishes tc on the response and on r, which is forwarded
// downstream.  r may be nil.
func (p *Propagator) Attach(w http.ResponseWriter, r *http.Request, tc Context) error {
	value, err := p.Encode(tc)
	if err != nil {
		return err
	}
	setCookie(w.Header(), &http.Cookie{
		Name:     p.name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(p.ttl / time.Second),
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	})

	writeHeaders(w.Header(), tc)
	if r != nil {
		writeHeaders(r.Header, tc)
	}
	return nil
}

// Clear expires the context cookie.
func (p *Propagator) Clear(w http.ResponseWriter) {
	setCookie(w.Header(), &http.Cookie{
		Name:     p.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// StripHeaders removes every propagated header from h.
func StripHeaders(h http.Header) {
	for _, name := range Headers {
		h.Del(name)
	}
}

func writeHeaders(h http.Header, tc Context) {
	StripHeaders(h)
	h.Set(HeaderSiteID, tc.SiteID.String())
	h.Set(HeaderSubdomain, tc.Subdomain)
	if tc.CustomDomain != "" {
		h.Set(HeaderCustomDomain, tc.CustomDomain)
	}
	h.Set(HeaderHostname, tc.Hostname)
	if tc.CacheHit {
		h.Set(HeaderCache, "hit")
	} else {
		h.Set(HeaderCache, "miss")
	}
	ms := float64(tc.Latency.Microseconds()) / 1000
	h.Set(HeaderResolutionMs, strconv.FormatFloat(ms, 'f', 2, 64))
}

// setCookie adds c to h, dropping any earlier Set-Cookie line for the same
// cookie name.
func setCookie(h http.Header, c *http.Cookie) {
	line := c.String()
	if line == "" {
		return
	}
	prefix := c.Name + "="
	existing := h.Values("Set-Cookie")
	kept := make([]string, 0, len(existing)+1)
	for _, v := range existing {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h["Set-Cookie"] = append(kept, line)
}
