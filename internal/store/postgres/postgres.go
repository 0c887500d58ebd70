// Package postgres implements store.Store on PostgreSQL via pgx. Lock methods
// use SELECT ... FOR UPDATE, and unique indexes back up the duplicate checks
// for live handshakes, ledger entries and ratings.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/store"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

const (
	uniqueViolation = "23505"
	invalidTextRepr = "22P02"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres-backed store.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (s *Store) GetListing(ctx context.Context, id string) (*timebank.Listing, error) {
	return getListing(ctx, s.pool, id, false)
}

func (s *Store) ListListings(ctx context.Context, f store.ListingFilter) ([]timebank.Listing, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
        SELECT `+listingColumns+`
        FROM listings
        WHERE ($1 = '' OR creator_id = NULLIF($1, '')::uuid)
          AND ($2 = '' OR type = $2)
          AND ($3 = '' OR status = $3)
        ORDER BY created_at DESC
        LIMIT $4 OFFSET $5`,
		f.CreatorID, string(f.Type), string(f.Status), limit, f.Offset)
	if isMissing(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: list listings: %w", err)
	}
	defer rows.Close()

	var out []timebank.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil && !isMissing(err) {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetHandshake(ctx context.Context, id string) (*timebank.Handshake, error) {
	return getHandshake(ctx, s.pool, id, false)
}

func (s *Store) ListHandshakesByListing(ctx context.Context, listingID string, statuses []timebank.HandshakeStatus) ([]timebank.Handshake, error) {
	return s.listHandshakes(ctx, "listing_id", listingID, statuses)
}

func (s *Store) ListHandshakesByApplicant(ctx context.Context, applicantID string, statuses []timebank.HandshakeStatus) ([]timebank.Handshake, error) {
	return s.listHandshakes(ctx, "applicant_id", applicantID, statuses)
}

// listHandshakes filters on one indexed column. column is never user input.
func (s *Store) listHandshakes(ctx context.Context, column, value string, statuses []timebank.HandshakeStatus) ([]timebank.Handshake, error) {
	filter := make([]string, len(statuses))
	for i, st := range statuses {
		filter[i] = string(st)
	}
	rows, err := s.pool.Query(ctx, `
        SELECT `+handshakeColumns+`
        FROM handshakes
        WHERE `+column+` = $1
          AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
        ORDER BY created_at DESC`,
		value, filter)
	if isMissing(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: list handshakes: %w", err)
	}
	defer rows.Close()

	var out []timebank.Handshake
	for rows.Next() {
		h, err := scanHandshake(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan handshake: %w", err)
		}
		out = append(out, *h)
	}
	if err := rows.Err(); err != nil && !isMissing(err) {
		return nil, fmt.Errorf("postgres: list handshakes: %w", err)
	}
	return out, nil
}

func (s *Store) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT balance::text FROM ledger_accounts WHERE user_id = $1`, userID).Scan(&raw)
	if isMissing(err) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: balance %s: %w", userID, err)
	}
	return decimal.NewFromString(raw)
}

func (s *Store) LedgerEntries(ctx context.Context, userID string) ([]timebank.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+entryColumns+`
        FROM ledger_entries
        WHERE from_user_id = $1 OR to_user_id = $1
        ORDER BY created_at DESC`, userID)
	if isMissing(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ledger entries: %w", err)
	}
	defer rows.Close()

	var out []timebank.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan entry: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil && !isMissing(err) {
		return nil, err
	}
	return out, nil
}

func (s *Store) LedgerEntryForHandshake(ctx context.Context, handshakeID string) (*timebank.LedgerEntry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE handshake_id = $1`, handshakeID))
	if isMissing(err) {
		return nil, fmt.Errorf("postgres: ledger entry for %s: %w", handshakeID, timebank.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ledger entry for %s: %w", handshakeID, err)
	}
	return e, nil
}

func (s *Store) GetRating(ctx context.Context, handshakeID, raterID string) (*timebank.Rating, error) {
	var r timebank.Rating
	err := s.pool.QueryRow(ctx, `
        SELECT id, handshake_id, rater_id, ratee_id, scores, comment, created_at
        FROM ratings WHERE handshake_id = $1 AND rater_id = $2`,
		handshakeID, raterID).
		Scan(&r.ID, &r.HandshakeID, &r.RaterID, &r.RateeID, &r.Scores, &r.Comment, &r.CreatedAt)
	if isMissing(err) {
		return nil, fmt.Errorf("postgres: rating: %w", timebank.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: rating: %w", err)
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// isMissing treats a malformed uuid the same as an absent row.
func isMissing(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepr
}

var _ store.Store = (*Store)(nil)
