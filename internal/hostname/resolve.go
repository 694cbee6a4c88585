package hostname

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yanizio/blooms/internal/site"
)

const maxDomainLen = 253

var v = validator.New()

// Resolution is the Resolver's verdict for a site-domain host.
type Resolution struct {
	Valid bool
	Host  string // normalized host
	Key   site.LookupKey
}

// Resolver extracts a site.LookupKey from a tenant host.
type Resolver struct {
	appDomain string
	suffix    string // ".blooms.cc"
}

// NewResolver builds a Resolver for hosts of the form <label>.<suffix>.
func NewResolver(appDomain, subdomainSuffix string) *Resolver {
	return &Resolver{
		appDomain: Normalize(appDomain),
		suffix:    "." + strings.TrimPrefix(Normalize(subdomainSuffix), "."),
	}
}

// Resolve classifies host as a subdomain label, a custom domain, or
// invalid.  Any host under the platform suffix must be exactly one valid
// DNS label deep; "a.b.blooms.cc" is invalid rather than a custom domain.
func (r *Resolver) Resolve(host string) Resolution {
	h := Normalize(host)
	res := Resolution{Host: h}

	if strings.HasSuffix(h, r.suffix) {
		label := strings.TrimSuffix(h, r.suffix)
		if site.ValidLabel(label) {
			res.Valid = true
			res.Key = site.LookupKey{Kind: site.KindSubdomain, Value: label}
		}
		return res
	}

	if h != r.appDomain && ValidFQDN(h) {
		res.Valid = true
		res.Key = site.LookupKey{Kind: site.KindCustomDomain, Value: h}
	}
	return res
}

// ValidFQDN reports whether h is a fully-qualified domain name in the
// RFC 1035 sense: at least two labels, each a valid DNS label, a TLD that
// starts with a letter, and at most 253 characters overall.
func ValidFQDN(h string) bool {
	if h == "" || len(h) > maxDomainLen {
		return false
	}
	if err := v.Var(h, "fqdn"); err != nil {
		return false
	}
	for _, label := range strings.Split(h, ".") {
		if !site.ValidLabel(label) {
			return false
		}
	}
	return true
}
