// cmd/web/render.go
//
// Terminal handlers behind the pipeline.
//
// Context
// -------
//   - newRenderHandler forwards resolved requests to the page renderer.  The
//     original Host header is preserved so the renderer sees the tenant
//     hostname, and the X-Site-* headers written by the propagator travel
//     with the request.
//   - With no upstream configured (local dev) a plain-text stub echoes the
//     resolved tenant instead.
//   - healthHandler runs every dependency check and answers 503 when any of
//     them fails.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yanizio/blooms/internal/database"
	"github.com/yanizio/blooms/internal/tenant"
)

const healthTimeout = 2 * time.Second

func newRenderHandler(upstream string, log *zap.Logger) (http.Handler, error) {
	if upstream == "" {
		log.Warn("no render upstream configured; serving tenant stub")
		return http.HandlerFunc(stubRender), nil
	}

	target, err := url.Parse(upstream)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid render upstream %q", upstream)
	}

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = pr.In.Host
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn("render upstream failed",
				zap.String("host", r.Host),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	return rp, nil
}

func stubRender(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		fmt.Fprintf(w, "blooms: %s %s\n", r.Host, r.URL.Path)
		return
	}
	fmt.Fprintf(w, "blooms: site %s (%s) %s\n", tc.SiteID, tc.Hostname, r.URL.Path)
}

// redisCheck is a no-op when the cache runs without redis.
func redisCheck(rdb *redis.Client) func(context.Context) error {
	if rdb == nil {
		return nil
	}
	return database.RedisHealthcheck(rdb)
}

func healthHandler(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				report[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	}
}
