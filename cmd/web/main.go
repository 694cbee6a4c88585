// cmd/web/main.go
//
// Blooms gateway – HTTP entry point.
//
// Request life-cycle
// ------------------
//
//  1. Load env vars (jail-wide file → .env fallback), then conf/global.yaml.
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Resolve `vault:` references in the config tree when any are present.
//
//  4. Open global control-plane DB and log active-site count.
//
//  5. Build the site cache (memory, redis, or tiered) and the coalescing
//     lookup service in front of the site store.
//
//  6. Expose Prometheus /metrics and /healthz outside the tenant pipeline.
//
//  7. Everything else runs through:
//
//     • Recoverer + security headers
//     • ForceHTTPS                – 308 for non-local plain-HTTP hosts
//     • requestinfo.Enrich        – UA, geo, path for log lines
//     • pipeline.Middleware       – classify → resolve → lookup → access →
//     security → propagate, or redirect
//     • render proxy              – forwards to the page renderer
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yanizio/blooms/internal/acl"
	"github.com/yanizio/blooms/internal/auth"
	"github.com/yanizio/blooms/internal/config"
	"github.com/yanizio/blooms/internal/database"
	"github.com/yanizio/blooms/internal/hostname"
	"github.com/yanizio/blooms/internal/logger"
	"github.com/yanizio/blooms/internal/middleware"
	"github.com/yanizio/blooms/internal/pipeline"
	"github.com/yanizio/blooms/internal/requestinfo"
	"github.com/yanizio/blooms/internal/server"
	"github.com/yanizio/blooms/internal/session"
	"github.com/yanizio/blooms/internal/site"
	"github.com/yanizio/blooms/internal/tenant"
	"github.com/yanizio/blooms/internal/vault"
)

const serverEnvPath = "/usr/local/etc/blooms/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "blooms: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Options{
		Dir:   cfg.Log.Dir,
		Level: cfg.Log.Level,
		Tee:   runningInTTY(),
	})
	if err != nil {
		return fmt.Errorf("start logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	//
	// ── 1.  Secrets ─────────────────────────────────────────────────────
	//
	if config.NeedsSecrets(cfg) {
		vc, err := vault.New(ctx, log)
		if err != nil {
			return fmt.Errorf("vault: %w", err)
		}
		if err := config.ResolveSecrets(ctx, cfg, vc); err != nil {
			return fmt.Errorf("resolve secrets: %w", err)
		}
		log.Info("config secrets resolved from vault")
	}

	if cfg.GeoIP.Path != "" {
		if err := requestinfo.InitGeo(cfg.GeoIP.Path); err != nil {
			log.Warn("geoip disabled", zap.String("path", cfg.GeoIP.Path), zap.Error(err))
		} else {
			defer func() { _ = requestinfo.CloseGeo() }()
		}
	}

	//
	// ── 2.  Global DB connect ───────────────────────────────────────────
	//
	log.Info("connecting to global DB")
	dbOpts := database.DefaultOptions()
	dbOpts.MaxOpenConns = cfg.Database.MaxOpenConns
	dbOpts.MaxIdleConns = cfg.Database.MaxIdleConns
	globalDB, err := database.OpenWithOptions(ctx,
		database.BuildDSN(cfg.Database.GlobalDSN, cfg.Database.GlobalPassword), dbOpts)
	if err != nil {
		return fmt.Errorf("connect global DB: %w", err)
	}
	defer globalDB.Close()
	log.Info("global DB online")

	sites := site.NewStore(globalDB)

	// Log active-site count as an early sanity check.
	if active, skipped, err := sites.AllActive(ctx); err != nil {
		log.Warn("active-site count failed", zap.Error(err))
	} else {
		log.Info("active sites found", zap.Int("count", len(active)), zap.Int("malformed", skipped))
	}

	//
	// ── 3.  Site cache + lookup service ─────────────────────────────────
	//
	siteCache, rdb, closeCache, err := buildCache(ctx, cfg.Cache, log)
	if err != nil {
		return err
	}
	defer closeCache()

	lookup := tenant.NewLookup(sites, siteCache, tenant.LookupOptions{
		TTL:     cfg.Cache.TTL,
		Timeout: cfg.Lookup.Timeout,
		Logger:  log,
	})

	//
	// ── 4.  Identity, access, propagation ───────────────────────────────
	//
	sessions, err := session.NewManager(session.Options{
		CookieName: cfg.Auth.SessionCookie,
		Secret:     []byte(cfg.Auth.JWTSecret),
		Secure:     cfg.SecureCookies(),
		Domain:     cfg.Auth.CookieDomain,
	})
	if err != nil {
		return err
	}
	prop, err := tenant.NewPropagator(tenant.PropagatorOptions{
		CookieName: cfg.Cookie.Name,
		Secret:     []byte(cfg.Cookie.Secret),
		TTL:        cfg.Cookie.TTL,
		Secure:     cfg.SecureCookies(),
	})
	if err != nil {
		return err
	}

	classifier := hostname.NewClassifier(cfg.Domains.AppDomain, cfg.Domains.PreviewSuffixes, cfg.IsDevelopment())
	pipe, err := pipeline.New(pipeline.Options{
		Classifier:         classifier,
		Resolver:           hostname.NewResolver(cfg.Domains.AppDomain, cfg.Domains.SubdomainSuffix),
		Lookup:             lookup,
		Access:             acl.NewEvaluator(acl.NewStore(globalDB), acl.EvaluatorOptions{Timeout: cfg.Lookup.Timeout, Logger: log}),
		Auth:               auth.NewSessionProvider(sessions),
		Propagator:         prop,
		Routes:             pipeline.NewRouteTable(pipeline.RoutesFromConfig(cfg.Routes)...),
		AppBaseURL:         cfg.AppBaseURL(),
		ReservedSubdomains: cfg.Domains.ReservedSubdomains,
		Logger:             log,
	})
	if err != nil {
		return err
	}

	render, err := newRenderHandler(cfg.HTTP.RenderUpstream, log)
	if err != nil {
		return err
	}

	//
	// ── 5.  Router ──────────────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.Security)

	// Health checks and scrapes skip the tenant pipeline entirely.
	r.Get("/healthz", healthHandler(map[string]func(context.Context) error{
		"mysql": database.Healthcheck(globalDB),
		"redis": redisCheck(rdb),
	}))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(g chi.Router) {
		if cfg.HTTP.ForceHTTPS {
			g.Use(func(next http.Handler) http.Handler { return middleware.ForceHTTPS(classifier, next) })
		}
		g.Use(requestinfo.Enrich)
		g.Use(pipe.Middleware)
		g.Handle("/*", render)
	})

	//
	// ── 6.  Serve until SIGINT/SIGTERM ──────────────────────────────────
	//
	srv := server.New(cfg.HTTP, r)
	return server.Run(ctx, srv, log)
}

// buildCache returns the configured site cache, the redis client backing it
// (nil for the memory backend), and a close func that releases both.
func buildCache(ctx context.Context, c config.Cache, log *zap.Logger) (tenant.Cache, *redis.Client, func(), error) {
	mem := func() *tenant.MemoryCache {
		return tenant.NewMemoryCache(tenant.MemoryOptions{
			MaxEntries:    c.MaxEntries,
			SweepInterval: c.SweepInterval,
			Logger:        log,
		})
	}
	openRedis := func() (*redis.Client, error) {
		rdb, err := database.OpenRedis(ctx, database.RedisOptions{
			URL:            c.RedisURL,
			Retries:        c.RedisRetries,
			RetryInterval:  time.Second,
			ConnectTimeout: 10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return rdb, nil
	}

	switch c.Backend {
	case config.CacheRedis:
		rdb, err := openRedis()
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("site cache backend", zap.String("backend", c.Backend))
		return tenant.NewRedisCache(rdb, tenant.DefaultRedisPrefix, log), rdb,
			func() { _ = rdb.Close() }, nil

	case config.CacheTiered:
		rdb, err := openRedis()
		if err != nil {
			return nil, nil, nil, err
		}
		local := mem()
		log.Info("site cache backend", zap.String("backend", c.Backend), zap.Duration("local_ttl", c.LocalTTL))
		return tenant.NewTieredCache(local, tenant.NewRedisCache(rdb, tenant.DefaultRedisPrefix, log), c.LocalTTL), rdb,
			func() { _ = local.Close(); _ = rdb.Close() }, nil

	default:
		local := mem()
		log.Info("site cache backend", zap.String("backend", config.CacheMemory))
		return local, nil, func() { _ = local.Close() }, nil
	}
}
