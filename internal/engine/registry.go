package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/store"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

// Registry is the listing registry. Slot methods run inside the caller's
// transaction so that reservation commits with the handshake transition.
type Registry struct {
	now func() time.Time
}

// TryReserveSlot locks the listing and takes one slot.
func (r Registry) TryReserveSlot(ctx context.Context, tx store.Tx, listingID string) (*timebank.Listing, error) {
	l, err := lockListing(ctx, tx, listingID)
	if err != nil {
		return nil, err
	}
	if err := l.TryReserveSlot(r.now()); err != nil {
		return nil, err
	}
	if err := tx.UpdateListing(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// ReleaseSlot locks the listing and gives back a slot held by an accepted
// handshake. Pending handshakes never hold one.
func (r Registry) ReleaseSlot(ctx context.Context, tx store.Tx, listingID string) (*timebank.Listing, error) {
	l, err := lockListing(ctx, tx, listingID)
	if err != nil {
		return nil, err
	}
	if err := l.ReleaseSlot(r.now()); err != nil {
		return nil, err
	}
	if err := tx.UpdateListing(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func lockListing(ctx context.Context, tx store.Tx, id string) (*timebank.Listing, error) {
	l, err := tx.LockListing(ctx, id)
	if errors.Is(err, timebank.ErrNotFound) {
		return nil, fmt.Errorf("listing %s: %w", id, timebank.ErrListingUnavailable)
	}
	return l, err
}

// IsAcceptingProposals reports whether the listing has a free slot and is active.
func (e *Engine) IsAcceptingProposals(ctx context.Context, listingID string) (bool, error) {
	l, err := e.store.GetListing(ctx, listingID)
	if errors.Is(err, timebank.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return l.IsAcceptingProposals(), nil
}

// ListingInput carries the fields of a new listing.
type ListingInput struct {
	CreatorID   string
	Type        timebank.ListingType
	Title       string
	Description string
	Capacity    uint
	Hours       decimal.Decimal
}

// CreateListing posts a new active Offer or Need.
func (e *Engine) CreateListing(ctx context.Context, in ListingInput) (*timebank.Listing, error) {
	l, err := timebank.NewListing(e.newID(), in.CreatorID, in.Type, strings.TrimSpace(in.Title), in.Description, in.Capacity, in.Hours, e.now())
	if err != nil {
		return nil, err
	}
	if err := e.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertListing(ctx, l)
	}); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	e.logger.InfoContext(ctx, "listing created",
		slog.String("listing_id", l.ID),
		slog.String("creator_id", l.CreatorID),
		slog.Uint64("capacity", uint64(l.Capacity)),
	)
	return l, nil
}

// GetListing returns one listing.
func (e *Engine) GetListing(ctx context.Context, id string) (*timebank.Listing, error) {
	return e.store.GetListing(ctx, id)
}

// ListListings returns listings matching f.
func (e *Engine) ListListings(ctx context.Context, f store.ListingFilter) ([]timebank.Listing, error) {
	return e.store.ListListings(ctx, f)
}

// CloseListing stops a listing from taking proposals. Only the creator may
// close it unless asAdmin is set. Closing twice is a no-op.
func (e *Engine) CloseListing(ctx context.Context, listingID, actorID string, asAdmin bool) (*timebank.Listing, error) {
	var out *timebank.Listing
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		l, err := lockListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if !asAdmin && l.CreatorID != actorID {
			return fmt.Errorf("close listing %s: %w", listingID, timebank.ErrUnauthorized)
		}
		out = l
		if l.Status == timebank.ListingClosed {
			return nil
		}
		l.Close(e.now())
		return tx.UpdateListing(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "listing closed", slog.String("listing_id", listingID), slog.String("actor_id", actorID))
	return out, nil
}
