// Package config handles loading application configuration. Values come from
// built-in defaults, an optional YAML file, and environment variables, in
// that order. All config is centralized here so no other package reads env
// vars directly.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Supported SQL drivers for the bookmark store.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config holds all application configuration. Passed to other packages via
// dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string `yaml:"env"`

	// Port is the HTTP listen port (default: 8080).
	Port int `yaml:"port"`

	// BaseURL is the public-facing URL used for CORS and links.
	BaseURL string `yaml:"base_url"`

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`

	// CORSOrigins lists extra origins allowed to call the API with
	// credentials (the web frontend usually runs on its own origin).
	CORSOrigins []string `yaml:"cors_origins"`

	// TrustedProxies lists CIDRs whose X-Forwarded-For / X-Real-IP headers
	// are honoured when resolving the client IP.
	TrustedProxies []string `yaml:"trusted_proxies"`

	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
}

// DatabaseConfig holds SQL connection parameters. Individual fields are read
// from separate env vars so container orchestrators can manage each
// independently. If URL is set it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Driver selects the SQL backend: "mysql" (MariaDB) or "postgres".
	Driver string `yaml:"driver"`

	// Host is the server address in host:port format. If no port is
	// specified the driver's default port is appended.
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`

	// URL is a complete DSN (DATABASE_URL). MariaDB DSNs must enable
	// multiStatements and parseTime for migrations and scanning to work.
	URL string `yaml:"url"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// MigrateOnStart applies pending schema migrations when the server boots.
	MigrateOnStart bool `yaml:"migrate_on_start"`
}

// DSN returns the connection string for the configured driver. If URL was
// set, it is returned as-is.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Driver == DriverPostgres {
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     ensurePort(d.Host, "5432"),
			Path:     "/" + d.Name,
			RawQuery: "sslmode=disable",
		}
		return u.String()
	}

	// FormatDSN safely handles special characters in passwords.
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.MultiStatements = true
	// Report matched rather than changed rows so an UPDATE that rewrites
	// identical values is not mistaken for a missing row.
	cfg.ClientFoundRows = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string `yaml:"url"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// SecretKey signs access tokens (HS256). Must be 32+ chars in production.
	SecretKey string `yaml:"secret_key"`

	// AccessTokenTTL is the lifetime of the JWT carried in the token cookie.
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`

	// SessionTTL is how long a server-side session (and its refresh token)
	// lives in Redis.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// Defaults returns the built-in configuration used for local development.
func Defaults() Config {
	return Config{
		Env:      "development",
		Port:     8080,
		BaseURL:  "http://localhost:8080",
		LogLevel: "debug",
		CORSOrigins: []string{
			"http://localhost:3000",
		},
		TrustedProxies: []string{
			"127.0.0.0/8",
			"10.0.0.0/8",
			"172.16.0.0/12",
			"192.168.0.0/16",
			"fd00::/8",
		},
		Database: DatabaseConfig{
			Driver:          DriverMySQL,
			Host:            "localhost",
			User:            "findfirst",
			Password:        "findfirst",
			Name:            "findfirst",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			MigrateOnStart:  true,
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379",
		},
		Auth: AuthConfig{
			AccessTokenTTL: time.Hour,
			SessionTTL:     720 * time.Hour,
		},
	}
}

// Validate checks the loaded configuration. Production deployments must
// provide a strong signing key.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverMySQL, DriverPostgres, c.Database.Driver)
	}

	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	if c.Auth.SessionTTL < c.Auth.AccessTokenTTL {
		return fmt.Errorf("SESSION_TTL must not be shorter than ACCESS_TOKEN_TTL")
	}

	// Case-insensitive check catches common variants like "Production", "prod".
	envLower := strings.ToLower(c.Env)
	if envLower == "production" || envLower == "prod" {
		if c.Auth.SecretKey == "" {
			return fmt.Errorf("SECRET_KEY is required in production")
		}
		if len(c.Auth.SecretKey) < 32 {
			return fmt.Errorf("SECRET_KEY must be at least 32 characters in production")
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// AllowedOrigins returns the origins permitted by the CORS middleware.
func (c *Config) AllowedOrigins() []string {
	origins := []string{c.BaseURL}
	for _, o := range c.CORSOrigins {
		if o != "" && o != c.BaseURL {
			origins = append(origins, o)
		}
	}
	return origins
}
