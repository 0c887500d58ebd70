package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/sudo-init-do/timebank/internal/config"
	"github.com/sudo-init-do/timebank/internal/db"
)

// promote_admin sets a user's role to 'admin' by email.
// Usage:
//
//	go run ./cmd/adminutil/promote_admin --email user@example.com
func main() {
	email := pflag.String("email", "", "email of the user to promote to admin")
	configPath := pflag.StringP("config", "c", "", "path to a TOML config file")
	pflag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "usage: promote_admin --email user@example.com")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()
	if err := db.Init(ctx, cfg.Database, logger); err != nil {
		logger.Error("database init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	ct, err := db.Conn.Exec(ctx, `UPDATE users SET role = 'admin' WHERE email = $1`, strings.ToLower(strings.TrimSpace(*email)))
	if err != nil {
		logger.Error("failed to promote user to admin", slog.Any("error", err))
		os.Exit(1)
	}
	if ct.RowsAffected() == 0 {
		logger.Error("no user found", slog.String("email", *email))
		os.Exit(1)
	}
	fmt.Printf("User %s promoted to admin.\n", *email)
}
