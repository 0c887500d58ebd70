package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/timebank"
)

// GetHandshake returns one handshake.
func (e *Engine) GetHandshake(ctx context.Context, id string) (*timebank.Handshake, error) {
	return e.store.GetHandshake(ctx, id)
}

// ListHandshakesForListing is the owner-facing view of a listing's proposals.
func (e *Engine) ListHandshakesForListing(ctx context.Context, listingID string, statuses ...timebank.HandshakeStatus) ([]timebank.Handshake, error) {
	return e.store.ListHandshakesByListing(ctx, listingID, statuses)
}

// ListHandshakesForUser is the applicant-facing "my proposals" view.
func (e *Engine) ListHandshakesForUser(ctx context.Context, userID string, statuses ...timebank.HandshakeStatus) ([]timebank.Handshake, error) {
	return e.store.ListHandshakesByApplicant(ctx, userID, statuses)
}

// GetLedgerBalance returns the user's time-credit balance. Users without an
// account have a zero balance.
func (e *Engine) GetLedgerBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return e.store.Balance(ctx, userID)
}

// LedgerEntries returns the settled transfers a user took part in.
func (e *Engine) LedgerEntries(ctx context.Context, userID string) ([]timebank.LedgerEntry, error) {
	return e.store.LedgerEntries(ctx, userID)
}
