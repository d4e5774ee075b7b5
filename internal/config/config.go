package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	SessionStoreMemory   = "memory"
	SessionStorePostgres = "postgres"

	minSessionSecret = 32
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	LoginAPIURL      string `mapstructure:"LOGIN_API_URL"`
	ManagementAPIURL string `mapstructure:"MANAGEMENT_API_URL"`
	SchedulingAPIURL string `mapstructure:"SCHEDULING_API_URL"`
	ReportsAPIURL    string `mapstructure:"REPORTS_API_URL"`

	SessionSecret string        `mapstructure:"SESSION_SECRET"`
	SessionStore  string        `mapstructure:"SESSION_STORE"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`
	CookieName    string        `mapstructure:"COOKIE_NAME"`
	CookieSecure  bool          `mapstructure:"COOKIE_SECURE"`
	CookieDomain  string        `mapstructure:"COOKIE_DOMAIN"`
	AuthSecretKey string        `mapstructure:"AUTH_SECRET_KEY"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	DefaultTimezone  string        `mapstructure:"DEFAULT_TIMEZONE"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	UpstreamTimeout  time.Duration `mapstructure:"UPSTREAM_TIMEOUT"`
	CalendarViewIdle time.Duration `mapstructure:"CALENDAR_VIEW_IDLE"`

	CORSOrigins        []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int      `mapstructure:"RATE_LIMIT_BURST"`
	LoginRatePerMinute int      `mapstructure:"LOGIN_RATE_PER_MINUTE"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`
}

var defaults = map[string]any{
	"PORT":                  "8080",
	"ENV":                   "development",
	"LOG_LEVEL":             "info",
	"LOGIN_API_URL":         "http://localhost:8000",
	"MANAGEMENT_API_URL":    "http://localhost:8001",
	"SCHEDULING_API_URL":    "http://localhost:8002",
	"REPORTS_API_URL":       "http://localhost:8003",
	"SESSION_STORE":         SessionStoreMemory,
	"SESSION_TTL":           "12h",
	"COOKIE_NAME":           "hospital_console_session",
	"COOKIE_SECURE":         false,
	"DB_MAX_CONNS":          10,
	"DB_MIN_CONNS":          2,
	"DEFAULT_TIMEZONE":      "UTC",
	"REQUEST_TIMEOUT":       "30s",
	"UPSTREAM_TIMEOUT":      "15s",
	"CALENDAR_VIEW_IDLE":    "30m",
	"CORS_ORIGINS":          "http://localhost:5173",
	"RATE_LIMIT_RPS":        50,
	"RATE_LIMIT_BURST":      100,
	"LOGIN_RATE_PER_MINUTE": 10,
}

// keys lists every variable read from the environment.
var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"LOGIN_API_URL", "MANAGEMENT_API_URL", "SCHEDULING_API_URL", "REPORTS_API_URL",
	"SESSION_SECRET", "SESSION_STORE", "SESSION_TTL",
	"COOKIE_NAME", "COOKIE_SECURE", "COOKIE_DOMAIN", "AUTH_SECRET_KEY",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"DEFAULT_TIMEZONE", "REQUEST_TIMEOUT", "UPSTREAM_TIMEOUT", "CALENDAR_VIEW_IDLE",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOGIN_RATE_PER_MINUTE",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location loads DEFAULT_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err)
	}
	return loc, nil
}

// Upstreams maps each backing service name to its base URL.
func (c *Config) Upstreams() map[string]string {
	return map[string]string{
		"login":      c.LoginAPIURL,
		"management": c.ManagementAPIURL,
		"scheduling": c.SchedulingAPIURL,
		"reports":    c.ReportsAPIURL,
	}
}

func validURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL")
	}
	return nil
}

// Validate checks that the configuration is safe to run. Production requires
// a strong SESSION_SECRET and secure cookies.
func (c *Config) Validate() error {
	for _, name := range []string{"login", "management", "scheduling", "reports"} {
		raw := c.Upstreams()[name]
		if err := validURL(raw); err != nil {
			return fmt.Errorf("%s_API_URL %q: %w", strings.ToUpper(name), raw, err)
		}
	}

	if c.IsProduction() {
		if len(c.SessionSecret) < minSessionSecret {
			return fmt.Errorf("SESSION_SECRET must be at least %d bytes in production", minSessionSecret)
		}
		if !c.CookieSecure {
			return fmt.Errorf("COOKIE_SECURE must be true in production")
		}
	}

	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when SESSION_STORE is %q", SessionStorePostgres)
		}
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreMemory, SessionStorePostgres, c.SessionStore)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
