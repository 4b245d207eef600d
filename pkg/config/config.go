package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// storage backends accepted by storage.primary
const (
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server" jsonschema:"description=Server configuration"`
	Database DatabaseConfig `yaml:"database" json:"database" jsonschema:"description=Database configuration"`
	Storage  StorageConfig  `yaml:"storage" json:"storage" jsonschema:"description=Consent storage configuration"`
	Cookie   CookieConfig   `yaml:"cookie" json:"cookie" jsonschema:"description=Cookie attributes"`
	Consent  ConsentConfig  `yaml:"consent" json:"consent" jsonschema:"description=Consent widget behavior"`
	Redis    RedisConfig    `yaml:"redis" json:"redis" jsonschema:"description=Redis storage and event fan-out"`
	Purge    PurgeConfig    `yaml:"purge" json:"purge" jsonschema:"description=Expired record purging"`
}

// ServerConfig holds http server settings
type ServerConfig struct {
	Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
}

// DatabaseConfig holds sqlite connection settings
type DatabaseConfig struct {
	DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:consentd.db?cache=shared&mode=rwc,description=Database connection string"`
	MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
}

// StorageConfig selects the primary consent channel
type StorageConfig struct {
	Primary        string `yaml:"primary" json:"primary" jsonschema:"default=sqlite,enum=sqlite,enum=redis,enum=memory,description=Primary storage backend"`
	Key            string `yaml:"key" json:"key" jsonschema:"default=echai-cookie-consent,description=Storage key of the consent record"`
	MirrorFallback bool   `yaml:"mirror_fallback" json:"mirror_fallback" jsonschema:"default=false,description=Write the fallback cookie on every save"`
	MigrateLegacy  bool   `yaml:"migrate_legacy" json:"migrate_legacy" jsonschema:"default=true,description=Import legacy analytics/marketing cookies"`
}

// CookieConfig holds attributes of the fallback and profile cookies
type CookieConfig struct {
	Path          string `yaml:"path" json:"path" jsonschema:"default=/,description=Cookie path"`
	Secure        bool   `yaml:"secure" json:"secure" jsonschema:"default=true,description=Set Secure attribute"`
	SameSite      string `yaml:"same_site" json:"same_site" jsonschema:"default=lax,enum=lax,enum=strict,enum=none,description=SameSite attribute"`
	ProfileCookie string `yaml:"profile_cookie" json:"profile_cookie" jsonschema:"default=echai-profile,description=Name of the visitor profile cookie"`
}

// ConsentConfig holds widget timings and texts
type ConsentConfig struct {
	Retention         time.Duration `yaml:"retention" json:"retention" jsonschema:"default=8760h,description=How long a decision stays valid"`
	BannerDelay       time.Duration `yaml:"banner_delay" json:"banner_delay" jsonschema:"default=100ms,description=Delay before the banner is revealed"`
	FloatingLinkDelay time.Duration `yaml:"floating_link_delay" json:"floating_link_delay" jsonschema:"default=500ms,description=Delay before the floating settings link appears"`
	NoticeTTL         time.Duration `yaml:"notice_ttl" json:"notice_ttl" jsonschema:"default=3s,description=How long the saved notice is shown"`
	PrivacyURL        string        `yaml:"privacy_url" json:"privacy_url" jsonschema:"default=/privacy,description=Privacy policy link"`
	BannerText        string        `yaml:"banner_text" json:"banner_text" jsonschema:"description=Banner text, limited HTML allowed"`
}

// RedisConfig holds redis connection and channel settings
type RedisConfig struct {
	Addrs         []string `yaml:"addrs" json:"addrs" jsonschema:"description=Redis addresses"`
	Password      string   `yaml:"password" json:"password" jsonschema:"description=Redis password (can use environment variable)"`
	DB            int      `yaml:"db" json:"db" jsonschema:"default=0,description=Redis database index"`
	Prefix        string   `yaml:"prefix" json:"prefix" jsonschema:"default=consent,description=Key prefix"`
	Channel       string   `yaml:"channel" json:"channel" jsonschema:"default=consent-changed,description=Pub/sub channel for change events"`
	PublishEvents bool     `yaml:"publish_events" json:"publish_events" jsonschema:"default=false,description=Publish change events to redis"`
}

// PurgeConfig controls the expired record purger
type PurgeConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled" jsonschema:"default=true,description=Enable periodic purge of expired records"`
	Interval time.Duration `yaml:"interval" json:"interval" jsonschema:"default=6h,description=Purge interval"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Config{
		Storage: StorageConfig{MigrateLegacy: true},
		Cookie:  CookieConfig{Secure: true},
		Purge:   PurgeConfig{Enabled: true},
	}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// schema check is supplementary, warn only
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:consentd.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	if cfg.Storage.Primary == "" {
		cfg.Storage.Primary = StorageSQLite
	}
	cfg.Storage.Primary = strings.ToLower(cfg.Storage.Primary)
	if cfg.Storage.Key == "" {
		cfg.Storage.Key = "echai-cookie-consent"
	}

	if cfg.Cookie.Path == "" {
		cfg.Cookie.Path = "/"
	}
	if cfg.Cookie.SameSite == "" {
		cfg.Cookie.SameSite = "lax"
	}
	cfg.Cookie.SameSite = strings.ToLower(cfg.Cookie.SameSite)
	if cfg.Cookie.ProfileCookie == "" {
		cfg.Cookie.ProfileCookie = "echai-profile"
	}

	if cfg.Consent.Retention == 0 {
		cfg.Consent.Retention = 365 * 24 * time.Hour
	}
	if cfg.Consent.BannerDelay == 0 {
		cfg.Consent.BannerDelay = 100 * time.Millisecond
	}
	if cfg.Consent.FloatingLinkDelay == 0 {
		cfg.Consent.FloatingLinkDelay = 500 * time.Millisecond
	}
	if cfg.Consent.NoticeTTL == 0 {
		cfg.Consent.NoticeTTL = 3 * time.Second
	}
	if cfg.Consent.PrivacyURL == "" {
		cfg.Consent.PrivacyURL = "/privacy"
	}
	if cfg.Consent.BannerText == "" {
		cfg.Consent.BannerText = "We use cookies to improve your experience and analyze site usage."
	}

	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "consent"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "consent-changed"
	}

	if cfg.Purge.Interval == 0 {
		cfg.Purge.Interval = 6 * time.Hour
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	switch cfg.Storage.Primary {
	case StorageSQLite, StorageMemory:
	case StorageRedis:
		if len(cfg.Redis.Addrs) == 0 {
			return fmt.Errorf("redis.addrs is required for redis storage")
		}
	default:
		return fmt.Errorf("storage.primary must be one of sqlite, redis, memory, got %q", cfg.Storage.Primary)
	}

	if cfg.Redis.PublishEvents && len(cfg.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required when redis.publish_events is enabled")
	}

	switch cfg.Cookie.SameSite {
	case "lax", "strict", "none":
	default:
		return fmt.Errorf("cookie.same_site must be one of lax, strict, none, got %q", cfg.Cookie.SameSite)
	}
	if cfg.Cookie.SameSite == "none" && !cfg.Cookie.Secure {
		return fmt.Errorf("cookie.same_site none requires cookie.secure")
	}

	if cfg.Consent.Retention < time.Hour {
		return fmt.Errorf("consent.retention must be at least 1 hour")
	}
	if cfg.Consent.BannerDelay < 0 || cfg.Consent.FloatingLinkDelay < 0 || cfg.Consent.NoticeTTL < 0 {
		return fmt.Errorf("consent delays must be non-negative")
	}

	if cfg.Purge.Enabled && cfg.Purge.Interval < time.Minute {
		return fmt.Errorf("purge.interval must be at least 1 minute")
	}

	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetCookieConfig returns cookie attributes
func (c *Config) GetCookieConfig() CookieConfig {
	return c.Cookie
}

// GetConsentConfig returns widget settings
func (c *Config) GetConsentConfig() ConsentConfig {
	return c.Consent
}

// GetStorageConfig returns consent storage settings
func (c *Config) GetStorageConfig() StorageConfig {
	return c.Storage
}

// GetFullConfig returns the full configuration
func (c *Config) GetFullConfig() *Config {
	return c
}
