// internal/config/loader.go
//
// Configuration loader and hot-reloader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `BLOOMS_`, where `__` maps to “.”
     (e.g., `BLOOMS_HTTP__LISTEN_ADDR → http.listen_addr`).

After merging, the tree is unmarshalled into strongly-typed structs,
filled with defaults, validated, enriched with the runtime root path, and
cached in an `atomic.Pointer` for lock-free reads.  `Reload()` simply
calls `Load()` again and swaps the pointer.

Instrumentation
---------------
  • DEBUG spans – root discovery, YAML read, env overlay.
  • ERROR spans – YAML parse, env overlay, unmarshal, validation failures.
  • INFO  span  – final “config loaded” with key highlights.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed.
*/
package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

const envPrefix = "BLOOMS_"

var current atomic.Pointer[Config]

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves BLOOMS_ROOT or climbs directories until conf/global.yaml
// is found.  Falls back to executable heuristic for production layout.
func rootDir() string {
	if r := os.Getenv("BLOOMS_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, validates, and caches Config.
func Load() (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: BLOOMS_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	applyDefaults(&cfg)
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"env", cfg.Env,
		"listen_addr", cfg.HTTP.ListenAddr,
		"app_domain", cfg.Domains.AppDomain,
		"cache_backend", cfg.Cache.Backend,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// envKey maps BLOOMS_CACHE__REDIS_URL to cache.redis_url.
func envKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

/*──────────────────────────── defaults ────────────────────────────────────*/

// applyDefaults fills zero values.  Slices are only defaulted when the YAML
// omitted them entirely, so an explicit empty list stays empty.
func applyDefaults(c *Config) {
	if c.Env == "" {
		c.Env = EnvProduction
	}
	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}

	c.Domains.AppDomain = strings.ToLower(c.Domains.AppDomain)
	if c.Domains.AppScheme == "" {
		c.Domains.AppScheme = "https"
	}
	if c.Domains.SubdomainSuffix == "" {
		c.Domains.SubdomainSuffix = c.Domains.AppDomain
	}
	c.Domains.SubdomainSuffix = strings.ToLower(strings.TrimPrefix(c.Domains.SubdomainSuffix, "."))
	if c.Domains.ReservedSubdomains == nil {
		c.Domains.ReservedSubdomains = []string{"www", "app", "api", "admin", "mail"}
	}

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 15
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheMemory
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Cache.LocalTTL == 0 {
		c.Cache.LocalTTL = 30 * time.Second
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 10000
	}
	if c.Cache.RedisRetries == 0 {
		c.Cache.RedisRetries = 3
	}

	if c.Lookup.Timeout == 0 {
		c.Lookup.Timeout = 300 * time.Millisecond
	}

	if c.Cookie.Name == "" {
		c.Cookie.Name = "blooms_site"
	}
	if c.Cookie.TTL == 0 {
		c.Cookie.TTL = 24 * time.Hour
	}
	if c.Auth.SessionCookie == "" {
		c.Auth.SessionCookie = "blooms_session"
	}
	if c.Auth.CookieDomain == "" && sharesSuffix(c.Domains.AppDomain, c.Domains.SubdomainSuffix) {
		c.Auth.CookieDomain = c.Domains.SubdomainSuffix
	}

	if c.Routes.Bypass == nil {
		c.Routes.Bypass = []string{
			"/_next/", "/static/", "/favicon.ico", "/robots.txt",
			"/sitemap.xml", "/.well-known/", "/healthz", "/metrics",
		}
	}
	if c.Routes.AdminPrefix == "" {
		c.Routes.AdminPrefix = "/admin"
	}
	if c.Routes.Auth == nil {
		c.Routes.Auth = []string{"/login", "/signup", "/forgot-password"}
	}
	if c.Routes.Protected == nil {
		c.Routes.Protected = []string{"/dashboard", "/sites", "/settings", "/account", "/onboarding"}
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Dir == "" {
		c.Log.Dir = filepath.Join(c.Paths.Root, "logs")
	}
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// sharesSuffix reports whether app is suffix itself or one of its subdomains.
func sharesSuffix(app, suffix string) bool {
	return suffix != "" && (app == suffix || strings.HasSuffix(app, "."+suffix))
}

func Get() *Config  { return current.Load() }
func Reload() error { _, err := Load(); return err }
