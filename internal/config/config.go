package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Session SessionConfig `mapstructure:"session"`
	OIDC    OIDCConfig    `mapstructure:"oidc"`
	Log     LogConfig     `mapstructure:"log"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Media   MediaConfig   `mapstructure:"media"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Site    SiteConfig    `mapstructure:"site"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Port    string    `mapstructure:"port"`
	BaseURL string    `mapstructure:"base_url"`
	TLS     TLSConfig `mapstructure:"tls"`
}

// TLSConfig holds TLS-specific configuration.
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
}

// DBConfig holds database-specific configuration.
type DBConfig struct {
	Driver     string `mapstructure:"driver"` // "mysql" or "sqlite3"
	DSN        string `mapstructure:"dsn"`
	Migrations string `mapstructure:"migrations"`
}

// SessionConfig holds session cookie configuration.
type SessionConfig struct {
	Lifetime   int    `mapstructure:"lifetime"` // hours
	CookieName string `mapstructure:"cookie_name"`
}

// OIDCConfig holds OIDC client configuration. OIDC login is disabled
// when IssuerURL is empty.
type OIDCConfig struct {
	IssuerURL    string `mapstructure:"issuer_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	DefaultRole  string `mapstructure:"default_role"`
}

// Enabled reports whether OIDC login is configured.
func (c OIDCConfig) Enabled() bool {
	return c.IssuerURL != ""
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // e.g., "debug", "info", "warn", "error"
	Format string `mapstructure:"format"` // e.g., "json", "console"
}

// CacheConfig holds configuration for the published page cache.
type CacheConfig struct {
	FilePath      string        `mapstructure:"file_path"`
	TTL           time.Duration `mapstructure:"ttl"`
	PurgeSchedule string        `mapstructure:"purge_schedule"` // cron schedule
}

// MediaConfig holds image upload configuration.
type MediaConfig struct {
	CloudinaryURL string `mapstructure:"cloudinary_url"`
	Folder        string `mapstructure:"folder"`
	MaxUploadMB   int64  `mapstructure:"max_upload_mb"`
}

// AuthConfig holds login throttling configuration.
type AuthConfig struct {
	LoginPerMinute int `mapstructure:"login_per_minute"`
	LoginBurst     int `mapstructure:"login_burst"`
}

// SiteConfig holds storefront settings.
type SiteConfig struct {
	Name     string `mapstructure:"name"`
	HomeSlug string `mapstructure:"home_slug"`
}

// LoadConfig reads configuration from a .env file, a config file and
// environment variables, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.migrations", "migrations")
	v.SetDefault("session.lifetime", 24)
	v.SetDefault("session.cookie_name", "storefront_session")
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("oidc.issuer_url", "")
	v.SetDefault("oidc.client_id", "")
	v.SetDefault("oidc.client_secret", "")
	v.SetDefault("oidc.redirect_url", "")
	v.SetDefault("oidc.default_role", "STAFF")
	v.SetDefault("media.cloudinary_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("cache.file_path", "cache.db")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.purge_schedule", "@every 10m")
	v.SetDefault("media.folder", "storefront")
	v.SetDefault("media.max_upload_mb", 10)
	v.SetDefault("auth.login_per_minute", 10)
	v.SetDefault("auth.login_burst", 5)
	v.SetDefault("site.name", "Storefront")
	v.SetDefault("site.home_slug", "home")

	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/go-storefront/")
	v.AddConfigPath("$HOME/.go-storefront")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	v.SetEnvPrefix("STORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "mysql", "sqlite3":
	default:
		return fmt.Errorf("unsupported db.driver %q (want mysql or sqlite3)", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return errors.New("db.dsn is required (STORE_DB_DSN)")
	}
	if c.Site.HomeSlug == "" {
		return errors.New("site.home_slug must not be empty")
	}
	return nil
}
