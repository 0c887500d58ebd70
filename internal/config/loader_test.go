package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timebank.toml")
	body := `
log_level = "debug"

[server]
port = 9000
idempotency_ttl = "1h"

[engine]
allow_hours_override = false
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("PORT", "9100")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("env PORT should win over file, got %d", cfg.Server.Port)
	}
	if cfg.Server.IdempotencyTTL.Duration != time.Hour {
		t.Errorf("idempotency_ttl = %s", cfg.Server.IdempotencyTTL.Duration)
	}
	if cfg.Engine.AllowHoursOverride {
		t.Error("allow_hours_override should come from the file")
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("database host = %q", cfg.Database.Host)
	}
	if cfg.Database.Name != "timebank" {
		t.Errorf("default database name lost: %q", cfg.Database.Name)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Server.Port = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"log_level", "server: port", "redis: addr", "jwt_secret"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestConnString(t *testing.T) {
	d := Defaults().Database
	d.Password = "pw"
	if got, want := d.ConnString(), "postgres://postgres:pw@localhost:5432/timebank?sslmode=disable"; got != want {
		t.Errorf("ConnString() = %q, want %q", got, want)
	}
	d.DSN = "postgres://x"
	if d.ConnString() != "postgres://x" {
		t.Error("explicit DSN should be used as is")
	}
}
