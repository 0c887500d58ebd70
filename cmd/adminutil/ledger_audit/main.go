package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/sudo-init-do/timebank/internal/audit"
	"github.com/sudo-init-do/timebank/internal/config"
	"github.com/sudo-init-do/timebank/internal/db"
)

// ledger_audit checks listing capacity counters, settlement entries and the
// zero-sum balance against the database. It exits 1 when anything is off.
func main() {
	configPath := pflag.StringP("config", "c", "", "path to a TOML config file")
	pflag.Parse()

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

	snap, err := audit.Load(ctx, db.Conn)
	if err != nil {
		logger.Error("load snapshot failed", slog.Any("error", err))
		os.Exit(1)
	}
	findings := audit.Run(snap)
	for _, f := range findings {
		fmt.Println(f)
	}
	if len(findings) > 0 {
		os.Exit(1)
	}
	fmt.Printf("ledger ok: %d listings, %d settled handshakes\n", len(snap.Listings), len(snap.Settlements))
}
