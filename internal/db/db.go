package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/timebank/internal/config"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

var Conn *pgxpool.Pool

// hoursColumn matches the precision timebank.ValidateHours enforces.
var hoursColumn = fmt.Sprintf("NUMERIC(%d,%d)", timebank.HoursPrecision, timebank.HoursScale)

// Init connects to Postgres and makes sure the schema the service relies on
// exists.
func Init(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) error {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return fmt.Errorf("db: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime.Duration > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime.Duration
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("db: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("db: ping: %w", err)
	}
	Conn = pool
	logger.Info("connected to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Name))

	return ensureSchema(ctx, logger)
}

// Close releases the pool.
func Close() {
	if Conn != nil {
		Conn.Close()
	}
}

func ensureSchema(ctx context.Context, logger *slog.Logger) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"users", ensureUsersTable},
		{"ledger_accounts", ensureLedgerAccountsTable},
		{"listings", ensureListingsTable},
		{"handshakes", ensureHandshakesTable},
		{"ledger_entries", ensureLedgerEntriesTable},
		{"ratings", ensureRatingsTable},
		{"notifications", ensureNotificationsTable},
		{"messages", ensureMessagesTable},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("db: ensure %s: %w", s.name, err)
		}
		logger.Debug("schema ensured", slog.String("table", s.name))
	}
	return nil
}

func ensureUsersTable(ctx context.Context) error {
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('member', 'admin')),
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`)
	return err
}

// ensureLedgerAccountsTable holds one balance row per user. Balances start at
// zero and may go negative.
func ensureLedgerAccountsTable(ctx context.Context) error {
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS ledger_accounts (
            user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
            balance ` + hoursColumn + ` NOT NULL DEFAULT 0,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`)
	return err
}

func ensureListingsTable(ctx context.Context) error {
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS listings (
            id UUID PRIMARY KEY,
            creator_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            type TEXT NOT NULL CHECK (type IN ('offer', 'need')),
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            capacity INTEGER NOT NULL CHECK (capacity > 0),
            accepted_count INTEGER NOT NULL DEFAULT 0,
            hours ` + hoursColumn + ` NOT NULL CHECK (hours > 0),
            status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'full', 'closed')),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CONSTRAINT listings_capacity_check CHECK (accepted_count >= 0 AND accepted_count <= capacity)
        );
        CREATE INDEX IF NOT EXISTS idx_listings_status_created ON listings(status, created_at DESC);
        CREATE INDEX IF NOT EXISTS idx_listings_creator ON listings(creator_id);
    `)
	return err
}

// ensureHandshakesTable also creates the partial unique index that allows at
// most one pending or accepted handshake per (listing, applicant).
func ensureHandshakesTable(ctx context.Context) error {
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS handshakes (
            id UUID PRIMARY KEY,
            listing_id UUID NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
            listing_type TEXT NOT NULL,
            applicant_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            status TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'declined', 'completed')),
            message TEXT NOT NULL DEFAULT '',
            selected_slot JSONB NULL,
            hours ` + hoursColumn + ` NOT NULL,
            provider_id UUID NULL REFERENCES users(id),
            requester_id UUID NULL REFERENCES users(id),
            provider_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
            requester_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
            declined_by UUID NULL REFERENCES users(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            decided_at TIMESTAMPTZ NULL,
            completed_at TIMESTAMPTZ NULL
        );
        CREATE UNIQUE INDEX IF NOT EXISTS uq_handshakes_live
            ON handshakes(listing_id, applicant_id) WHERE status IN ('pending', 'accepted');
        CREATE INDEX IF NOT EXISTS idx_handshakes_listing_status ON handshakes(listing_id, status);
        CREATE INDEX IF NOT EXISTS idx_handshakes_applicant_status ON handshakes(applicant_id, status);
    `)
	return err
}

func ensureLedgerEntriesTable(ctx context.Context) error {
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS ledger_entries (
            id UUID PRIMARY KEY,
            from_user_id UUID NOT NULL REFERENCES users(id),
            to_user_id UUID NOT NULL REFERENCES users(id),
            hours ` + hoursColumn + ` NOT NULL CHECK (hours > 0),
            handshake_id UUID NOT NULL UNIQUE REFERENCES handshakes(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_ledger_entries_from ON ledger_entries(from_user_id, created_at DESC);
        CREATE INDEX IF NOT EXISTS idx_ledger_entries_to ON ledger_entries(to_user_id, created_at DESC);
    `)
	return err
}

func ensureRatingsTable(ctx context.Context) error {
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS ratings (
            id UUID PRIMARY KEY,
            handshake_id UUID NOT NULL REFERENCES handshakes(id) ON DELETE CASCADE,
            rater_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            ratee_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            scores JSONB NOT NULL,
            comment TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (handshake_id, rater_id)
        );
        CREATE INDEX IF NOT EXISTS idx_ratings_ratee ON ratings(ratee_id);
    `)
	return err
}

// ensureNotificationsTable backs the in-app inbox written by the alerts worker.
func ensureNotificationsTable(ctx context.Context) error {
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS notifications (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            body TEXT,
            reference UUID NULL,
            metadata JSONB NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            read_at TIMESTAMP WITH TIME ZONE NULL
        );
        CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications(user_id) WHERE read_at IS NULL;
    `)
	return err
}

// ensureMessagesTable backs the per-handshake thread between the two parties.
func ensureMessagesTable(ctx context.Context) error {
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY,
            handshake_id UUID NOT NULL REFERENCES handshakes(id) ON DELETE CASCADE,
            sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            recipient_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            content TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            read_at TIMESTAMPTZ NULL
        );
        CREATE INDEX IF NOT EXISTS idx_messages_handshake_created ON messages(handshake_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_messages_recipient_unread ON messages(handshake_id, recipient_id) WHERE read_at IS NULL;
    `)
	return err
}
