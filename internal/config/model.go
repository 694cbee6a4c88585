// internal/config/model.go
//
// Typed configuration model for the Blooms gateway.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                          – dotenv values,
//   • `conf/global.yaml`                       – primary static file,
//   • `BLOOMS_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client by `ResolveSecrets` before the gateway opens
// connections, so the rest of the code only ever sees plain strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Durations are written as Go duration strings ("300ms", "24h").

package config

import "time"

// Runtime environments.  Anything other than EnvDevelopment is treated as
// production for cookie and redirect purposes.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr     string        `koanf:"listen_addr"     validate:"required,hostname_port"`
	ForceHTTPS     bool          `koanf:"force_https"`
	RenderUpstream string        `koanf:"render_upstream" validate:"omitempty,url"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	IdleTimeout    time.Duration `koanf:"idle_timeout"`
}

//
// Domains section
//

// Domains describes the shared application domain and how tenant hosts
// hang off it.
type Domains struct {
	AppDomain          string   `koanf:"app_domain"          validate:"required,hostname_rfc1123"`
	AppScheme          string   `koanf:"app_scheme"          validate:"omitempty,oneof=http https"`
	SubdomainSuffix    string   `koanf:"subdomain_suffix"    validate:"required,hostname_rfc1123"`
	PreviewSuffixes    []string `koanf:"preview_suffixes"`
	ReservedSubdomains []string `koanf:"reserved_subdomains"`
}

//
// Database section
//

// Database holds the control-plane DSN template and its secret.
//
// The *template* (`GlobalDSN`) may contain one `%s` verb that receives
// `GlobalPassword`, so operators can keep host and flags in YAML and the
// credential in Vault.
type Database struct {
	GlobalDSN      string `koanf:"global_dsn"      validate:"required"`
	GlobalPassword string `koanf:"global_password"`
	MaxOpenConns   int    `koanf:"max_open_conns"  validate:"gte=0"`
	MaxIdleConns   int    `koanf:"max_idle_conns"  validate:"gte=0"`
}

//
// Cache section
//

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheTiered = "tiered"
)

// Cache configures the site cache that fronts the `site` table.
type Cache struct {
	Backend       string        `koanf:"backend"        validate:"omitempty,oneof=memory redis tiered"`
	TTL           time.Duration `koanf:"ttl"            validate:"gte=0"`
	LocalTTL      time.Duration `koanf:"local_ttl"      validate:"gte=0"`
	MaxEntries    int           `koanf:"max_entries"    validate:"gte=0"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gte=0"`
	RedisURL      string        `koanf:"redis_url"      validate:"required_unless=Backend memory"`
	RedisRetries  int           `koanf:"redis_retries"  validate:"gte=0"`
}

//
// Lookup section
//

// Lookup bounds the datastore query issued on a cache miss.
type Lookup struct {
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
}

//
// Cookie section
//

// Cookie configures the signed site-context cookie.
type Cookie struct {
	Name   string        `koanf:"name"`
	Secret string        `koanf:"secret" validate:"required,min=32"`
	TTL    time.Duration `koanf:"ttl"    validate:"gte=0,lte=24h"`
}

//
// Auth section
//

// Auth configures the session cookie issued by the main application.
// CookieDomain scopes it across tenant subdomains; it defaults to the
// subdomain suffix when the app domain lives under that suffix.
type Auth struct {
	SessionCookie string `koanf:"session_cookie"`
	CookieDomain  string `koanf:"cookie_domain"`
	JWTSecret     string `koanf:"jwt_secret" validate:"required,min=32"`
}

//
// Routes section
//

// Routes lists path prefixes by category.  See pipeline.RouteTable.
type Routes struct {
	Bypass      []string `koanf:"bypass"`
	AdminPrefix string   `koanf:"admin_prefix"`
	Auth        []string `koanf:"auth"`
	Protected   []string `koanf:"protected"`
}

//
// Log and GeoIP sections
//

// Log configures the zap logger.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `koanf:"dir"`
}

// GeoIP points at an optional MaxMind GeoLite2-City database.
type GeoIP struct {
	Path string `koanf:"path"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime; never set in YAML or env.
type Paths struct {
	Root string // BLOOMS_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	Env      string   `koanf:"env" validate:"omitempty,oneof=development production staging"`
	HTTP     HTTP     `koanf:"http"`
	Domains  Domains  `koanf:"domains"`
	Database Database `koanf:"database"`
	Cache    Cache    `koanf:"cache"`
	Lookup   Lookup   `koanf:"lookup"`
	Cookie   Cookie   `koanf:"cookie"`
	Auth     Auth     `koanf:"auth"`
	Routes   Routes   `koanf:"routes"`
	Log      Log      `koanf:"log"`
	GeoIP    GeoIP    `koanf:"geoip"`
	Paths    Paths    `koanf:"-"`
}

// IsDevelopment reports whether the runtime environment is development.
func (c *Config) IsDevelopment() bool { return c.Env == EnvDevelopment }

// SecureCookies reports whether cookies should carry the Secure flag.  A
// plain-http app_scheme outside development (a local staging stack) would
// otherwise have every cookie dropped by the browser.
func (c *Config) SecureCookies() bool {
	return !c.IsDevelopment() && c.Domains.AppScheme != "http"
}

// AppBaseURL returns scheme://app_domain with no trailing slash.
func (c *Config) AppBaseURL() string {
	return c.Domains.AppScheme + "://" + c.Domains.AppDomain
}
