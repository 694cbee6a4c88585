package tenant

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newPropagator(t *testing.T) *Propagator {
	t.Helper()
	p, err := NewPropagator(PropagatorOptions{Secret: testSecret, Secure: true})
	require.NoError(t, err)
	return p
}

func sampleContext() Context {
	return Context{
		SiteID:       uuid.MustParse("7f1c2a8e-4a0b-4c4e-9a53-0b8f5c7d9e11"),
		Subdomain:    "acme",
		CustomDomain: "shop.acme.com",
		Hostname:     "shop.acme.com",
		CacheHit:     true,
		Latency:      1500 * time.Microsecond,
		ResolvedAt:   time.Now().Truncate(time.Second),
	}
}

func TestNewPropagator_RequiresSecret(t *testing.T) {
	_, err := NewPropagator(PropagatorOptions{})
	assert.Error(t, err)
}

func TestNewPropagator_CapsTTL(t *testing.T) {
	p, err := NewPropagator(PropagatorOptions{Secret: testSecret, TTL: 72 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, MaxCookieTTL, p.ttl)
	assert.Equal(t, DefaultCookieName, p.CookieName())
}

func TestAttach_HeadersAndCookie(t *testing.T) {
	p := newPropagator(t)
	tc := sampleContext()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, p.Attach(w, r, tc))

	for _, h := range []http.Header{w.Header(), r.Header} {
		assert.Equal(t, tc.SiteID.String(), h.Get(HeaderSiteID))
		assert.Equal(t, "acme", h.Get(HeaderSubdomain))
		assert.Equal(t, "shop.acme.com", h.Get(HeaderCustomDomain))
		assert.Equal(t, "shop.acme.com", h.Get(HeaderHostname))
		assert.Equal(t, "hit", h.Get(HeaderCache))
		assert.Equal(t, "1.50", h.Get(HeaderResolutionMs))
	}

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, DefaultCookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.Empty(t, c.Domain, "host-only cookie")
	assert.Equal(t, int(DefaultCookieTTL/time.Second), c.MaxAge)
}

func TestAttach_NoCustomDomainHeaderWhenUnset(t *testing.T) {
	p := newPropagator(t)
	tc := sampleContext()
	tc.CustomDomain = ""
	tc.CacheHit = false

	w := httptest.NewRecorder()
	require.NoError(t, p.Attach(w, nil, tc))
	assert.Empty(t, w.Header().Values(HeaderCustomDomain))
	assert.Equal(t, "miss", w.Header().Get(HeaderCache))
}

func TestAttach_Idempotent(t *testing.T) {
	p := newPropagator(t)
	tc := sampleContext()

	w := httptest.NewRecorder()
	w.Header().Add("Set-Cookie", "other=1; Path=/")
	require.NoError(t, p.Attach(w, nil, tc))
	once := w.Header().Clone()
	require.NoError(t, p.Attach(w, nil, tc))

	assert.Equal(t, once, w.Header())
	assert.Len(t, w.Header().Values("Set-Cookie"), 2)
	assert.Len(t, w.Header().Values(HeaderSiteID), 1)
}

func TestEncode_Deterministic(t *testing.T) {
	p := newPropagator(t)
	tc := sampleContext()

	a, err := p.Encode(tc)
	require.NoError(t, err)
	b, err := p.Encode(tc)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRead_RoundTrip(t *testing.T) {
	p := newPropagator(t)
	tc := sampleContext()

	w := httptest.NewRecorder()
	require.NoError(t, p.Attach(w, nil, tc))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}
	got, err := p.Read(r)
	require.NoError(t, err)
	assert.Equal(t, tc.SiteID, got.SiteID)
	assert.Equal(t, tc.Subdomain, got.Subdomain)
	assert.Equal(t, tc.CustomDomain, got.CustomDomain)
	assert.Equal(t, tc.Hostname, got.Hostname)
	assert.True(t, tc.ResolvedAt.Equal(got.ResolvedAt))
}

func TestRead_Errors(t *testing.T) {
	p := newPropagator(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := p.Read(r)
	assert.ErrorIs(t, err, ErrNoContext)

	// Signed with another key.
	other, err := NewPropagator(PropagatorOptions{Secret: []byte(strings.Repeat("x", 32))})
	require.NoError(t, err)
	forged, err := other.Encode(sampleContext())
	require.NoError(t, err)
	_, err = p.Decode(forged)
	assert.ErrorIs(t, err, ErrContextInvalid)

	_, err = p.Decode("garbage")
	assert.ErrorIs(t, err, ErrContextInvalid)

	// Genuine but expired.
	tc := sampleContext()
	tc.ResolvedAt = time.Now().Add(-25 * time.Hour)
	stale, err := p.Encode(tc)
	require.NoError(t, err)
	got, err := p.Decode(stale)
	assert.ErrorIs(t, err, ErrContextExpired)
	assert.Equal(t, tc.SiteID, got.SiteID)
}

func TestClear(t *testing.T) {
	p := newPropagator(t)
	w := httptest.NewRecorder()
	require.NoError(t, p.Attach(w, nil, sampleContext()))
	p.Clear(w)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}

func TestStripHeaders(t *testing.T) {
	h := http.Header{}
	for _, name := range Headers {
		h.Set(name, "spoofed")
	}
	h.Set("Accept", "text/html")
	StripHeaders(h)
	assert.Len(t, h, 1)
}
