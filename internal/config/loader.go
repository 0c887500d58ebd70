package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (skipped when path is empty) over the
// defaults, loads .env if present and applies environment overrides. The
// result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides keeps the plain variable names the service has always
// read (PORT, DB_*, JWT_SECRET) and adds TIMEBANK_* for everything else.
func applyEnvOverrides(cfg *Config) {
	setInt(&cfg.Server.Port, "PORT")
	setFloat64(&cfg.Server.RateLimit, "TIMEBANK_RATE_LIMIT")
	setDuration(&cfg.Server.IdempotencyTTL, "TIMEBANK_IDEMPOTENCY_TTL")

	setStr(&cfg.Database.DSN, "DATABASE_URL")
	setStr(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setStr(&cfg.Database.Name, "DB_NAME")
	setStr(&cfg.Database.User, "DB_USER")
	setStr(&cfg.Database.Password, "DB_PASSWORD")
	setStr(&cfg.Database.SSLMode, "DB_SSLMODE")
	setInt(&cfg.Database.MaxConns, "TIMEBANK_DB_MAX_CONNS")

	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	setStr(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setDuration(&cfg.Auth.TokenTTL, "TIMEBANK_TOKEN_TTL")
	setStr(&cfg.Auth.BootstrapSecret, "ADMIN_BOOTSTRAP_SECRET")

	setBool(&cfg.Engine.AllowHoursOverride, "TIMEBANK_ALLOW_HOURS_OVERRIDE")

	setBool(&cfg.Alerts.Enabled, "TIMEBANK_ALERTS_ENABLED")
	setInt(&cfg.Alerts.Concurrency, "TIMEBANK_ALERTS_CONCURRENCY")

	setStr(&cfg.LogLevel, "TIMEBANK_LOG_LEVEL")
	setStr(&cfg.LogFormat, "TIMEBANK_LOG_FORMAT")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
