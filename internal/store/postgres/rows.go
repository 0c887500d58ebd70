package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/timebank"
)

// Decimal columns travel as text so no precision is lost on the way through
// pgx.
const listingColumns = `id, creator_id, type, title, description, capacity, accepted_count,
        hours::text, status, created_at, updated_at`

const handshakeColumns = `id, listing_id, listing_type, applicant_id, owner_id, status, message,
        selected_slot, hours::text, provider_id, requester_id, provider_confirmed,
        requester_confirmed, declined_by, created_at, decided_at, completed_at`

const entryColumns = `id, from_user_id, to_user_id, hours::text, handshake_id, created_at`

func scanListing(row pgx.Row) (*timebank.Listing, error) {
	var (
		l        timebank.Listing
		hours    string
		capacity int64
		accepted int64
	)
	err := row.Scan(&l.ID, &l.CreatorID, &l.Type, &l.Title, &l.Description, &capacity, &accepted,
		&hours, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Capacity, l.AcceptedCount = uint(capacity), uint(accepted)
	if l.Hours, err = decimal.NewFromString(hours); err != nil {
		return nil, err
	}
	return &l, nil
}

func scanHandshake(row pgx.Row) (*timebank.Handshake, error) {
	var (
		h                                   timebank.Handshake
		hours                               string
		providerID, requesterID, declinedBy *string
	)
	err := row.Scan(&h.ID, &h.ListingID, &h.ListingType, &h.ApplicantID, &h.OwnerID, &h.Status, &h.Message,
		&h.SelectedSlot, &hours, &providerID, &requesterID, &h.ProviderConfirmed,
		&h.RequesterConfirmed, &declinedBy, &h.CreatedAt, &h.DecidedAt, &h.CompletedAt)
	if err != nil {
		return nil, err
	}
	if h.Hours, err = decimal.NewFromString(hours); err != nil {
		return nil, err
	}
	h.ProviderID = deref(providerID)
	h.RequesterID = deref(requesterID)
	h.DeclinedBy = deref(declinedBy)
	return &h, nil
}

func scanEntry(row pgx.Row) (*timebank.LedgerEntry, error) {
	var (
		e     timebank.LedgerEntry
		hours string
	)
	if err := row.Scan(&e.ID, &e.FromUserID, &e.ToUserID, &hours, &e.HandshakeID, &e.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if e.Hours, err = decimal.NewFromString(hours); err != nil {
		return nil, err
	}
	return &e, nil
}

func getListing(ctx context.Context, q querier, id string, forUpdate bool) (*timebank.Listing, error) {
	sql := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	l, err := scanListing(q.QueryRow(ctx, sql, id))
	if isMissing(err) {
		return nil, fmt.Errorf("postgres: listing %s: %w", id, timebank.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: listing %s: %w", id, err)
	}
	return l, nil
}

func getHandshake(ctx context.Context, q querier, id string, forUpdate bool) (*timebank.Handshake, error) {
	sql := `SELECT ` + handshakeColumns + ` FROM handshakes WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	h, err := scanHandshake(q.QueryRow(ctx, sql, id))
	if isMissing(err) {
		return nil, fmt.Errorf("postgres: handshake %s: %w", id, timebank.ErrHandshakeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: handshake %s: %w", id, err)
	}
	return h, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
