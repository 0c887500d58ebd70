package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/timebank"
)

type pgTx struct {
	q querier
}

func (t *pgTx) InsertListing(ctx context.Context, l *timebank.Listing) error {
	_, err := t.q.Exec(ctx, `
        INSERT INTO listings (id, creator_id, type, title, description, capacity, accepted_count,
                              hours, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11)`,
		l.ID, l.CreatorID, string(l.Type), l.Title, l.Description, int64(l.Capacity), int64(l.AcceptedCount),
		l.Hours.String(), string(l.Status), l.CreatedAt, l.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("postgres: listing %s: %w", l.ID, timebank.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("postgres: insert listing: %w", err)
	}
	return nil
}

func (t *pgTx) LockListing(ctx context.Context, id string) (*timebank.Listing, error) {
	return getListing(ctx, t.q, id, true)
}

func (t *pgTx) UpdateListing(ctx context.Context, l *timebank.Listing) error {
	tag, err := t.q.Exec(ctx, `
        UPDATE listings
        SET title = $2, description = $3, accepted_count = $4, status = $5, updated_at = $6
        WHERE id = $1`,
		l.ID, l.Title, l.Description, int64(l.AcceptedCount), string(l.Status), l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: update listing %s: %w", l.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: listing %s: %w", l.ID, timebank.ErrNotFound)
	}
	return nil
}

func (t *pgTx) LockHandshake(ctx context.Context, id string) (*timebank.Handshake, error) {
	return getHandshake(ctx, t.q, id, true)
}

func (t *pgTx) FindLiveHandshake(ctx context.Context, listingID, applicantID string) (*timebank.Handshake, error) {
	h, err := scanHandshake(t.q.QueryRow(ctx, `
        SELECT `+handshakeColumns+`
        FROM handshakes
        WHERE listing_id = $1 AND applicant_id = $2 AND status IN ('pending', 'accepted')`,
		listingID, applicantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: live handshake: %w", timebank.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: live handshake: %w", err)
	}
	return h, nil
}

func (t *pgTx) InsertHandshake(ctx context.Context, h *timebank.Handshake) error {
	_, err := t.q.Exec(ctx, `
        INSERT INTO handshakes (id, listing_id, listing_type, applicant_id, owner_id, status, message,
                                selected_slot, hours, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10)`,
		h.ID, h.ListingID, string(h.ListingType), h.ApplicantID, h.OwnerID, string(h.Status), h.Message,
		h.SelectedSlot, h.Hours.String(), h.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("postgres: insert handshake: %w", timebank.ErrDuplicateProposal)
	}
	if err != nil {
		return fmt.Errorf("postgres: insert handshake: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateHandshake(ctx context.Context, h *timebank.Handshake) error {
	tag, err := t.q.Exec(ctx, `
        UPDATE handshakes
        SET status = $2, hours = $3::numeric, provider_id = $4, requester_id = $5,
            provider_confirmed = $6, requester_confirmed = $7, declined_by = $8,
            decided_at = $9, completed_at = $10
        WHERE id = $1`,
		h.ID, string(h.Status), h.Hours.String(), nullable(h.ProviderID), nullable(h.RequesterID),
		h.ProviderConfirmed, h.RequesterConfirmed, nullable(h.DeclinedBy), h.DecidedAt, h.CompletedAt)
	if err != nil {
		return fmt.Errorf("postgres: update handshake %s: %w", h.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: handshake %s: %w", h.ID, timebank.ErrHandshakeNotFound)
	}
	return nil
}

func (t *pgTx) InsertLedgerEntry(ctx context.Context, e *timebank.LedgerEntry) error {
	_, err := t.q.Exec(ctx, `
        INSERT INTO ledger_entries (id, from_user_id, to_user_id, hours, handshake_id, created_at)
        VALUES ($1, $2, $3, $4::numeric, $5, $6)`,
		e.ID, e.FromUserID, e.ToUserID, e.Hours.String(), e.HandshakeID, e.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("postgres: ledger entry for %s: %w", e.HandshakeID, timebank.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("postgres: insert ledger entry: %w", err)
	}
	return nil
}

func (t *pgTx) AdjustBalance(ctx context.Context, userID string, delta decimal.Decimal) error {
	_, err := t.q.Exec(ctx, `
        INSERT INTO ledger_accounts (user_id, balance, updated_at)
        VALUES ($1, $2::numeric, NOW())
        ON CONFLICT (user_id) DO UPDATE
        SET balance = ledger_accounts.balance + EXCLUDED.balance, updated_at = NOW()`,
		userID, delta.String())
	if err != nil {
		return fmt.Errorf("postgres: adjust balance %s: %w", userID, err)
	}
	return nil
}

func (t *pgTx) InsertRating(ctx context.Context, r *timebank.Rating) error {
	_, err := t.q.Exec(ctx, `
        INSERT INTO ratings (id, handshake_id, rater_id, ratee_id, scores, comment, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.HandshakeID, r.RaterID, r.RateeID, r.Scores, r.Comment, r.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("postgres: rating: %w", timebank.ErrAlreadyRated)
	}
	if err != nil {
		return fmt.Errorf("postgres: insert rating: %w", err)
	}
	return nil
}
