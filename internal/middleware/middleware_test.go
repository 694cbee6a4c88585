package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yanizio/blooms/internal/hostname"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestForceHTTPS(t *testing.T) {
	h := ForceHTTPS(hostname.NewClassifier("blooms.cc", nil, false), ok)

	cases := []struct {
		name     string
		target   string
		proto    string
		wantCode int
		wantLoc  string
	}{
		{"plain http redirects", "http://acme.blooms.cc/about?x=1", "", http.StatusPermanentRedirect, "https://acme.blooms.cc/about?x=1"},
		{"forwarded https passes", "http://acme.blooms.cc/", "https", http.StatusNoContent, ""},
		{"forwarded list passes", "http://acme.blooms.cc/", "https, http", http.StatusNoContent, ""},
		{"localhost passes", "http://localhost:3000/", "", http.StatusNoContent, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.proto != "" {
				r.Header.Set("X-Forwarded-Proto", tc.proto)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantCode)
			}
			if loc := w.Header().Get("Location"); loc != tc.wantLoc {
				t.Errorf("Location = %q, want %q", loc, tc.wantLoc)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	Security(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Error("Strict-Transport-Security missing")
	}
}

func TestSecurityHeaders_HandlerValueWins(t *testing.T) {
	h := Security(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		_, _ = w.Write([]byte("hi"))
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := w.Header().Values("X-Frame-Options"); len(got) != 1 || got[0] != "DENY" {
		t.Errorf("X-Frame-Options = %v, want [DENY]", got)
	}
	if w.Body.String() != "hi" {
		t.Errorf("body = %q", w.Body.String())
	}
}
