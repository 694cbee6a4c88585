// Package middleware holds small, composable HTTP wrappers.
package middleware

import (
	"net/http"
	"strings"

	"github.com/yanizio/blooms/internal/hostname"
)

// ForceHTTPS wraps h.  If the request arrived over plain HTTP (neither TLS
// nor X-Forwarded-Proto: https) and the host is not a development host,
// the wrapper issues a 308 Permanent Redirect to the HTTPS version of the
// same URL.  Otherwise it calls the next handler unchanged.
func ForceHTTPS(c *hostname.Classifier, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS != nil || isForwardedHTTPS(r) || c.Classify(r.Host) == hostname.Development {
			h.ServeHTTP(w, r)
			return
		}
		target := "https://" + r.Host + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusPermanentRedirect)
	})
}

func isForwardedHTTPS(r *http.Request) bool {
	proto := r.Header.Get("X-Forwarded-Proto")
	if i := strings.IndexByte(proto, ','); i != -1 {
		proto = proto[:i]
	}
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}
