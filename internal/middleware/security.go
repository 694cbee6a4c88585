// internal/middleware/security.go
//
// Security-header middleware.
//
// Injects industry-standard headers on every response:
//
//   • Strict-Transport-Security  –  forces HTTPS (2 years + preload)
//   • X-Frame-Options           –  click-jacking defence
//   • X-Content-Type-Options    –  MIME-sniffing defence
//   • Referrer-Policy           –  drops path/query from Referer
//   • Permissions-Policy        –  disables powerful features by default
//
// Notes
// -----
// • Headers are filled in when the response header is first written, so a
//   handler (or the proxied renderer) that sets its own value wins.
// • No Content-Security-Policy here; tenant pages are produced by the
//   renderer, which owns that header.
// • Oxford commas, two spaces after periods.

package middleware

import "net/http"

var securityDefaults = [...][2]string{
	{"Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=()"},
}

// Security sets security headers for every response.
func Security(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&headerWriter{ResponseWriter: w}, r)
	})
}

// headerWriter fills missing security headers just before the status line
// goes out.
type headerWriter struct {
	http.ResponseWriter
	wrote bool
}

func (hw *headerWriter) fill() {
	if hw.wrote {
		return
	}
	hw.wrote = true
	h := hw.Header()
	for _, kv := range securityDefaults {
		if h.Get(kv[0]) == "" {
			h.Set(kv[0], kv[1])
		}
	}
}

func (hw *headerWriter) WriteHeader(code int) {
	hw.fill()
	hw.ResponseWriter.WriteHeader(code)
}

func (hw *headerWriter) Write(b []byte) (int, error) {
	hw.fill()
	return hw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (hw *headerWriter) Unwrap() http.ResponseWriter { return hw.ResponseWriter }

// Flush keeps streaming responses working through the wrapper.
func (hw *headerWriter) Flush() {
	hw.fill()
	if f, ok := hw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
