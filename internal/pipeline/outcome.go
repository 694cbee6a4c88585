package pipeline

import (
	"net/http"
	"net/url"
	"strings"
)

// Outcome is the terminal state of one pass through the pipeline.
type Outcome int

const (
	Bypass Outcome = iota
	Admin
	Development
	MainAppPassthrough
	RedirectLogin
	RedirectDashboard
	InvalidHostname
	SiteNotFoundSubdomainAvailable
	SiteNotFoundCustomDomain
	SiteNotFoundGeneric
	SiteUnpublishedNoAccess
	DatastoreError
	SecurityViolation
	Success
	Recovered
)

var outcomeNames = [...]string{
	Bypass:                         "bypass",
	Admin:                          "admin",
	Development:                    "development",
	MainAppPassthrough:             "main_app_passthrough",
	RedirectLogin:                  "redirect_login",
	RedirectDashboard:              "redirect_dashboard",
	InvalidHostname:                "invalid_hostname",
	SiteNotFoundSubdomainAvailable: "site_not_found_subdomain_available",
	SiteNotFoundCustomDomain:       "site_not_found_custom_domain",
	SiteNotFoundGeneric:            "site_not_found_generic",
	SiteUnpublishedNoAccess:        "site_unpublished_no_access",
	DatastoreError:                 "datastore_error",
	SecurityViolation:              "security_violation",
	Success:                        "success",
	Recovered:                      "recovered",
}

func (o Outcome) String() string {
	if int(o) >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Passthrough reports whether the outcome forwards to the next handler.
func (o Outcome) Passthrough() bool {
	switch o {
	case Bypass, Admin, Development, MainAppPassthrough, Success, Recovered:
		return true
	}
	return false
}

// Same-host paths used by the main-app auth check.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// Detail carries the diagnostic values a redirect target may need.
type Detail struct {
	Hostname  string // normalized request host
	Subdomain string // resolved label
	SiteName  string
	Path      string // original request URI, for login round-trips
}

// OutcomeRouter turns a redirecting Outcome into a Location.  Targets for
// tenant failures are always built on the application base URL, never the
// tenant host.
type OutcomeRouter struct {
	base string // "https://blooms.cc"
}

// NewOutcomeRouter builds a router for appBaseURL.
func NewOutcomeRouter(appBaseURL string) *OutcomeRouter {
	return &OutcomeRouter{base: strings.TrimRight(appBaseURL, "/")}
}

// Target returns the redirect location for o, or "" for passthrough
// outcomes and SecurityViolation, whose response is built by the filter.
func (rt *OutcomeRouter) Target(o Outcome, d Detail) string {
	switch o {
	case InvalidHostname:
		return rt.app("/domain-error", "error", "invalid_domain", "hostname", d.Hostname)
	case SiteNotFoundSubdomainAvailable:
		return rt.app("/create-site", "subdomain", d.Subdomain)
	case SiteNotFoundCustomDomain:
		return rt.app("/domain-setup", "domain", d.Hostname)
	case SiteNotFoundGeneric:
		return rt.app("/site-not-found", "hostname", d.Hostname)
	case SiteUnpublishedNoAccess:
		return rt.app("/site-maintenance", "site", d.SiteName)
	case DatastoreError:
		return rt.app("/system-error", "error", "datastore_error", "hostname", d.Hostname)
	case RedirectLogin:
		path := d.Path
		if path == "" {
			path = "/"
		}
		return LoginPath + "?" + encode("redirectTo", path)
	case RedirectDashboard:
		return DashboardPath
	}
	return ""
}

// SecurityErrorURL builds the security-error target.
func (rt *OutcomeRouter) SecurityErrorURL(reason, host string) string {
	return rt.app("/security-error", "error", reason, "hostname", host)
}

// Redirect writes a 307 to the target for o and reports whether it did.
func (rt *OutcomeRouter) Redirect(w http.ResponseWriter, r *http.Request, o Outcome, d Detail) bool {
	target := rt.Target(o, d)
	if target == "" {
		return false
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
	return true
}

func (rt *OutcomeRouter) app(path string, kv ...string) string {
	return rt.base + path + "?" + encode(kv...)
}

// encode renders key/value pairs in the order given.  url.Values would sort
// them.
func encode(kv ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv[i]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[i+1]))
	}
	return b.String()
}
