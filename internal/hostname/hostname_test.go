package hostname

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yanizio/blooms/internal/site"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Acme.Blooms.CC":     "acme.blooms.cc",
		"acme.blooms.cc:443": "acme.blooms.cc",
		"localhost:3000":     "localhost",
		"  blooms.cc.  ":     "blooms.cc",
		"[::1]:8080":         "::1",
		"badhost!!":          "badhost!!",
		"":                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestClassify(t *testing.T) {
	c := NewClassifier("blooms.cc", []string{"vercel.app"}, false)

	cases := []struct {
		host string
		want Class
	}{
		{"localhost:3000", Development},
		{"acme.localhost", Development},
		{"127.0.0.1:8080", Development},
		{"printer.local", Development},
		{"blooms.cc", MainApplication},
		{"BLOOMS.CC:443", MainApplication},
		{"blooms-git-main.vercel.app", MainApplication},
		{"acme.blooms.cc", SiteDomain},
		{"shop.acme.com", SiteDomain},
		{"badhost!!", SiteDomain},
		{"", SiteDomain},
		{"\x00\xff:::", SiteDomain},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Classify(tc.host), tc.host)
	}
}

func TestClassify_DevelopmentEnvironment(t *testing.T) {
	c := NewClassifier("blooms.cc", nil, true)
	assert.Equal(t, Development, c.Classify("acme.blooms.cc"))
	assert.Equal(t, Development, c.Classify("blooms.cc"))
}

func TestClassify_AppDomainAnyCaseAnyPort(t *testing.T) {
	c := NewClassifier("blooms.cc", nil, false)
	for _, h := range []string{"blooms.cc", "Blooms.Cc", "blooms.cc:80", "BLOOMS.CC:8443"} {
		assert.Equal(t, MainApplication, c.Classify(h), h)
	}
}

func TestResolve_SubdomainLabels(t *testing.T) {
	c := NewClassifier("blooms.cc", nil, false)
	r := NewResolver("blooms.cc", "blooms.cc")

	for _, label := range []string{"acme", "a", "a1-b2", "0day", strings.Repeat("x", 63)} {
		host := label + ".blooms.cc"
		assert.Equal(t, SiteDomain, c.Classify(host), host)

		res := r.Resolve(host)
		assert.True(t, res.Valid, host)
		assert.Equal(t, site.LookupKey{Kind: site.KindSubdomain, Value: label}, res.Key, host)
	}
}

func TestResolve_CaseAndPort(t *testing.T) {
	r := NewResolver("blooms.cc", "blooms.cc")
	res := r.Resolve("ACME.Blooms.cc:3000")
	assert.True(t, res.Valid)
	assert.Equal(t, site.LookupKey{Kind: site.KindSubdomain, Value: "acme"}, res.Key)
}

func TestResolve_CustomDomain(t *testing.T) {
	r := NewResolver("blooms.cc", "blooms.cc")
	res := r.Resolve("Shop.Acme.com")
	assert.True(t, res.Valid)
	assert.Equal(t, site.LookupKey{Kind: site.KindCustomDomain, Value: "shop.acme.com"}, res.Key)
}

func TestResolve_Invalid(t *testing.T) {
	r := NewResolver("blooms.cc", "blooms.cc")
	for _, h := range []string{
		"badhost!!",
		"",
		"blooms.cc",
		"-acme.blooms.cc",
		"acme-.blooms.cc",
		"a.b.blooms.cc",
		"under_score.blooms.cc",
		strings.Repeat("x", 64) + ".blooms.cc",
		"nodots",
		"acme.123",
		strings.Repeat("a.", 130) + "com",
	} {
		assert.False(t, r.Resolve(h).Valid, h)
	}
}

func TestResolve_SeparateSuffix(t *testing.T) {
	r := NewResolver("blooms.cc", "sites.blooms.cc")
	res := r.Resolve("acme.sites.blooms.cc")
	assert.True(t, res.Valid)
	assert.Equal(t, site.KindSubdomain, res.Key.Kind)

	// A sibling of the suffix is a custom domain candidate.
	res = r.Resolve("acme.blooms.cc")
	assert.True(t, res.Valid)
	assert.Equal(t, site.KindCustomDomain, res.Key.Kind)
}
