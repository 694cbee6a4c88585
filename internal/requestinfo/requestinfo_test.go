package requestinfo

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name   string
		xff    string
		xrip   string
		remote string
		want   string
	}{
		{"xff left-most", "203.0.113.7, 10.0.0.1", "", "10.0.0.2:1234", "203.0.113.7"},
		{"xff skips junk", "unknown, 198.51.100.4", "", "10.0.0.2:1234", "198.51.100.4"},
		{"x-real-ip", "", "198.51.100.9", "10.0.0.2:1234", "198.51.100.9"},
		{"remote addr", "", "", "192.0.2.1:5555", "192.0.2.1"},
		{"remote addr ipv6", "", "", "[2001:db8::1]:443", "2001:db8::1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xrip != "" {
				r.Header.Set("X-Real-Ip", tc.xrip)
			}
			ip := ClientIP(r)
			if ip == nil {
				t.Fatal("ClientIP returned nil")
			}
			if ip.String() != tc.want {
				t.Errorf("ClientIP = %s, want %s", ip, tc.want)
			}
		})
	}
}

func TestParseUA(t *testing.T) {
	chrome := "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	ua := parseUA(chrome, "en-US,en;q=0.9")
	want := UA{Browser: "Chrome", Version: "124", OS: "macOS", Device: "Desktop", PrimaryLang: "en-us"}
	if ua.Browser != want.Browser || ua.Version != want.Version || ua.OS != want.OS ||
		ua.Device != want.Device || ua.PrimaryLang != want.PrimaryLang || ua.IsBot {
		t.Errorf("parseUA(chrome) = %+v", ua)
	}

	bot := parseUA("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "")
	if !bot.IsBot || bot.PrimaryLang != "" {
		t.Errorf("parseUA(googlebot) = %+v", bot)
	}
}

func TestEnrichAndDescribe(t *testing.T) {
	var seen, described *RequestInfo
	h := Enrich(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		described = Describe(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/pricing", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	h.ServeHTTP(httptest.NewRecorder(), r)

	if seen == nil {
		t.Fatal("Enrich did not store RequestInfo")
	}
	if described != seen {
		t.Error("Describe did not reuse the stored RequestInfo")
	}
	if seen.Path != "/pricing" || seen.Geo.IP.String() != "192.0.2.1" {
		t.Errorf("RequestInfo = %+v", seen)
	}
	if seen.Geo.CountryISO != "" {
		t.Errorf("CountryISO = %q with no GeoLite2 DB loaded", seen.Geo.CountryISO)
	}

	// Without the middleware Describe still answers.
	bare := Describe(httptest.NewRequest(http.MethodGet, "/", nil))
	if bare == nil || len(bare.Fields()) == 0 {
		t.Fatalf("bare Describe = %+v", bare)
	}
}

func TestInitGeo_MissingFile(t *testing.T) {
	if err := InitGeo("/nonexistent/GeoLite2-City.mmdb"); err == nil {
		t.Fatal("expected error for missing database")
	}
}
