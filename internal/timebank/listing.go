// Package timebank holds the domain model of the time-credit exchange: listings,
// handshakes, ledger entries and ratings, together with the pure state
// transitions that the engine applies inside a store transaction.
package timebank

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ListingType string

const (
	ListingOffer ListingType = "offer"
	ListingNeed  ListingType = "need"
)

// Valid reports whether t is a known listing type.
func (t ListingType) Valid() bool {
	return t == ListingOffer || t == ListingNeed
}

type ListingStatus string

const (
	ListingActive ListingStatus = "active"
	ListingFilled ListingStatus = "full"
	ListingClosed ListingStatus = "closed"
)

// Listing is an Offer or Need posting with a fixed number of participant slots.
type Listing struct {
	ID            string          `json:"id"`
	CreatorID     string          `json:"creator_id"`
	Type          ListingType     `json:"type"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Capacity      uint            `json:"capacity"`
	AcceptedCount uint            `json:"accepted_count"`
	Hours         decimal.Decimal `json:"hours"`
	Status        ListingStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsAcceptingProposals is false once every slot is taken or the listing is
// no longer active.
func (l *Listing) IsAcceptingProposals() bool {
	return l.Status == ListingActive && l.AcceptedCount < l.Capacity
}

// Open reports whether the listing still exists for negotiation purposes. A
// full listing is open but saturated.
func (l *Listing) Open() bool {
	return l.Status == ListingActive || l.Status == ListingFilled
}

// TryReserveSlot takes one participant slot. It must only be called while the
// listing row is locked by the surrounding transaction.
func (l *Listing) TryReserveSlot(now time.Time) error {
	if l.Status == ListingClosed {
		return ErrListingUnavailable
	}
	if !l.IsAcceptingProposals() {
		return ErrListingFull
	}
	l.AcceptedCount++
	if l.AcceptedCount == l.Capacity {
		l.Status = ListingFilled
	}
	l.UpdatedAt = now
	return nil
}

// ReleaseSlot gives a previously reserved slot back. Pending handshakes never
// hold a slot, so callers must only release for an accepted handshake.
func (l *Listing) ReleaseSlot(now time.Time) error {
	if l.AcceptedCount == 0 {
		return fmt.Errorf("release slot on listing %s: %w", l.ID, ErrConflict)
	}
	l.AcceptedCount--
	if l.Status == ListingFilled {
		l.Status = ListingActive
	}
	l.UpdatedAt = now
	return nil
}

// Close stops the listing from taking new proposals. Existing handshakes are
// left untouched.
func (l *Listing) Close(now time.Time) {
	l.Status = ListingClosed
	l.UpdatedAt = now
}

// NewListing validates input and builds an active listing.
func NewListing(id, creatorID string, typ ListingType, title, description string, capacity uint, hours decimal.Decimal, now time.Time) (*Listing, error) {
	switch {
	case creatorID == "":
		return nil, fmt.Errorf("creator is required: %w", ErrInvalidInput)
	case !typ.Valid():
		return nil, fmt.Errorf("listing type %q: %w", typ, ErrInvalidInput)
	case title == "":
		return nil, fmt.Errorf("title is required: %w", ErrInvalidInput)
	case capacity == 0:
		return nil, fmt.Errorf("capacity must be at least 1: %w", ErrInvalidInput)
	}
	if err := ValidateHours(hours); err != nil {
		return nil, err
	}
	return &Listing{
		ID:          id,
		CreatorID:   creatorID,
		Type:        typ,
		Title:       title,
		Description: description,
		Capacity:    capacity,
		Hours:       hours,
		Status:      ListingActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
