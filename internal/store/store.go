// Package store defines the persistence contract for listings, handshakes,
// the time-credit ledger and ratings. Every mutation happens inside a Tx so
// that slot reservation, status changes and ledger writes commit together.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/timebank"
)

// ListingFilter narrows ListListings. Zero values match everything.
type ListingFilter struct {
	CreatorID string
	Type      timebank.ListingType
	Status    timebank.ListingStatus
	Limit     int
	Offset    int
}

// Reader holds the read-only queries. They never take row locks.
type Reader interface {
	GetListing(ctx context.Context, id string) (*timebank.Listing, error)
	ListListings(ctx context.Context, f ListingFilter) ([]timebank.Listing, error)
	GetHandshake(ctx context.Context, id string) (*timebank.Handshake, error)
	// ListHandshakesByListing returns handshakes of one listing, newest first.
	// An empty statuses slice means every status.
	ListHandshakesByListing(ctx context.Context, listingID string, statuses []timebank.HandshakeStatus) ([]timebank.Handshake, error)
	// ListHandshakesByApplicant backs the applicant-facing "my proposals" view.
	ListHandshakesByApplicant(ctx context.Context, applicantID string, statuses []timebank.HandshakeStatus) ([]timebank.Handshake, error)
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	LedgerEntries(ctx context.Context, userID string) ([]timebank.LedgerEntry, error)
	LedgerEntryForHandshake(ctx context.Context, handshakeID string) (*timebank.LedgerEntry, error)
	GetRating(ctx context.Context, handshakeID, raterID string) (*timebank.Rating, error)
}

// Tx is a unit of work. Lock* methods return the row and hold it until the
// transaction ends. Lock order is always handshake before listing.
type Tx interface {
	InsertListing(ctx context.Context, l *timebank.Listing) error
	LockListing(ctx context.Context, id string) (*timebank.Listing, error)
	UpdateListing(ctx context.Context, l *timebank.Listing) error

	LockHandshake(ctx context.Context, id string) (*timebank.Handshake, error)
	// FindLiveHandshake returns timebank.ErrNotFound when no pending or
	// accepted handshake exists for the pair.
	FindLiveHandshake(ctx context.Context, listingID, applicantID string) (*timebank.Handshake, error)
	// InsertHandshake returns timebank.ErrDuplicateProposal when a live
	// handshake for the same pair already exists.
	InsertHandshake(ctx context.Context, h *timebank.Handshake) error
	UpdateHandshake(ctx context.Context, h *timebank.Handshake) error

	// InsertLedgerEntry returns timebank.ErrConflict when the handshake
	// already has an entry.
	InsertLedgerEntry(ctx context.Context, e *timebank.LedgerEntry) error
	// AdjustBalance adds delta to the user's balance, opening the account
	// when needed.
	AdjustBalance(ctx context.Context, userID string, delta decimal.Decimal) error

	// InsertRating returns timebank.ErrAlreadyRated on a repeat rating.
	InsertRating(ctx context.Context, r *timebank.Rating) error
}

// Store is the full persistence contract.
type Store interface {
	Reader
	// WithTx runs fn in a transaction. A non-nil error from fn rolls back
	// every write made through tx.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// MatchStatus reports whether s passes a status filter.
func MatchStatus(s timebank.HandshakeStatus, statuses []timebank.HandshakeStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}
