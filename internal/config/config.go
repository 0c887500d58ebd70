// Package config holds the service configuration. Values come from built-in
// defaults, an optional TOML file, a .env file and finally environment
// variables, in that order.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration.
type Config struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Auth     AuthConfig     `toml:"auth"`
	Engine   EngineConfig   `toml:"engine"`
	Alerts   AlertsConfig   `toml:"alerts"`
}

type ServerConfig struct {
	Port            int      `toml:"port"`
	RateLimit       float64  `toml:"rate_limit"`
	IdempotencyTTL  duration `toml:"idempotency_ttl"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN             string   `toml:"dsn"`
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	Name            string   `toml:"name"`
	User            string   `toml:"user"`
	Password        string   `toml:"password"`
	SSLMode         string   `toml:"sslmode"`
	MaxConns        int      `toml:"max_conns"`
	MinConns        int      `toml:"min_conns"`
	MaxConnLifetime duration `toml:"max_conn_lifetime"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	PoolSize int    `toml:"pool_size"`
}

type AuthConfig struct {
	JWTSecret       string   `toml:"jwt_secret"`
	TokenTTL        duration `toml:"token_ttl"`
	BootstrapSecret string   `toml:"bootstrap_secret"`
}

type EngineConfig struct {
	AllowHoursOverride bool `toml:"allow_hours_override"`
}

type AlertsConfig struct {
	Enabled     bool `toml:"enabled"`
	Concurrency int  `toml:"concurrency"`
	MaxRetry    int  `toml:"max_retry"`
}

// duration lets TOML carry strings such as "72h" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Defaults returns a configuration that runs against a local Postgres and
// Redis.
func Defaults() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Port:            8080,
			RateLimit:       20,
			IdempotencyTTL:  duration{24 * time.Hour},
			ShutdownTimeout: duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "timebank",
			User:            "postgres",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: duration{30 * time.Minute},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 20,
		},
		Auth: AuthConfig{
			TokenTTL: duration{72 * time.Hour},
		},
		Engine: EngineConfig{
			AllowHoursOverride: true,
		},
		Alerts: AlertsConfig{
			Enabled:     true,
			Concurrency: 5,
			MaxRetry:    5,
		},
	}
}

// ConnString builds the Postgres connection string unless one is set explicitly.
func (d DatabaseConfig) ConnString() string {
	if strings.TrimSpace(d.DSN) != "" {
		return d.DSN
	}
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslMode)
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("unknown log_format %q (valid: text, json)", c.LogFormat))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, "server: port must be between 1 and 65535")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must not be negative")
	}

	if c.Database.DSN == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host or dsn must be set")
		}
		if c.Database.Name == "" {
			errs = append(errs, "database: name must be set")
		}
	}
	if c.Database.MinConns > c.Database.MaxConns && c.Database.MaxConns > 0 {
		errs = append(errs, "database: min_conns must not exceed max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, "auth: jwt_secret must be at least 16 characters (set JWT_SECRET)")
	}
	if c.Auth.TokenTTL.Duration <= 0 {
		errs = append(errs, "auth: token_ttl must be positive")
	}

	if c.Alerts.Enabled && c.Alerts.Concurrency <= 0 {
		errs = append(errs, "alerts: concurrency must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
