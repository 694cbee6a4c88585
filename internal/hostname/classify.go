// Package hostname classifies inbound Host headers and extracts the site
// lookup key from tenant hosts.  Everything here is pure: no I/O, no
// logging, and no input can make it panic.
package hostname

import (
	"net"
	"strings"
)

// Class tags a request host.
type Class int

const (
	SiteDomain Class = iota
	Development
	MainApplication
)

func (c Class) String() string {
	switch c {
	case Development:
		return "development"
	case MainApplication:
		return "main_application"
	default:
		return "site_domain"
	}
}

// Classifier maps hosts to a Class using deployment settings.
type Classifier struct {
	appDomain       string
	previewSuffixes []string
	development     bool
}

// NewClassifier builds a Classifier.  development forces every host into
// the Development class, matching a local `env: development` deployment.
func NewClassifier(appDomain string, previewSuffixes []string, development bool) *Classifier {
	suffixes := make([]string, 0, len(previewSuffixes))
	for _, s := range previewSuffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if !strings.HasPrefix(s, ".") {
			s = "." + s
		}
		suffixes = append(suffixes, s)
	}
	return &Classifier{
		appDomain:       Normalize(appDomain),
		previewSuffixes: suffixes,
		development:     development,
	}
}

// Classify returns the Class for a raw Host header value.  Malformed input
// falls through to SiteDomain so the Resolver can reject it explicitly.
func (c *Classifier) Classify(host string) Class {
	h := Normalize(host)
	if c.development || isDevHost(h) {
		return Development
	}
	if h != "" && h == c.appDomain {
		return MainApplication
	}
	for _, s := range c.previewSuffixes {
		if strings.HasSuffix(h, s) {
			return MainApplication
		}
	}
	return SiteDomain
}

func isDevHost(h string) bool {
	return strings.Contains(h, "localhost") ||
		strings.Contains(h, "127.0.0.1") ||
		strings.HasSuffix(h, ".local")
}

// Normalize trims, lower-cases, strips any :port suffix, and drops a
// trailing root dot.  Bracketed IPv6 literals lose their brackets.
func Normalize(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return ""
	}
	if strings.HasPrefix(h, "[") {
		if end := strings.IndexByte(h, ']'); end != -1 {
			return h[1:end]
		}
		return h
	}
	if hp, _, err := net.SplitHostPort(h); err == nil {
		h = hp
	} else if strings.Count(h, ":") == 1 {
		h = h[:strings.IndexByte(h, ':')]
	}
	return strings.TrimSuffix(h, ".")
}
