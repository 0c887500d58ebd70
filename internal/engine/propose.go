package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sudo-init-do/timebank/internal/store"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

// ProposeInput is an applicant's request to join a listing.
type ProposeInput struct {
	// ListingType is optional; when set it must match the listing.
	ListingType timebank.ListingType
	ListingID   string
	ApplicantID string
	Message     string
	Slot        *timebank.TimeSlot
}

// ProposeHandshake creates a pending handshake. Preconditions are checked in
// a fixed order and each fails with its own error: listing unavailable, self
// proposal, listing full, duplicate proposal.
func (e *Engine) ProposeHandshake(ctx context.Context, in ProposeInput) (*timebank.Handshake, error) {
	if in.ApplicantID == "" {
		return nil, fmt.Errorf("propose: applicant is required: %w", timebank.ErrInvalidInput)
	}
	if len(in.Message) > timebank.MaxMessageLength {
		return nil, fmt.Errorf("propose: message too long: %w", timebank.ErrInvalidInput)
	}
	if err := in.Slot.Validate(); err != nil {
		return nil, fmt.Errorf("propose: %w", err)
	}

	var h *timebank.Handshake
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		l, err := lockListing(ctx, tx, in.ListingID)
		if err != nil {
			return err
		}
		if !l.Open() || (in.ListingType != "" && in.ListingType != l.Type) {
			return fmt.Errorf("listing %s: %w", l.ID, timebank.ErrListingUnavailable)
		}
		if in.ApplicantID == l.CreatorID {
			return timebank.ErrSelfProposal
		}
		if !l.IsAcceptingProposals() {
			return fmt.Errorf("listing %s: %w", l.ID, timebank.ErrListingFull)
		}
		if _, err := tx.FindLiveHandshake(ctx, l.ID, in.ApplicantID); err == nil {
			return timebank.ErrDuplicateProposal
		} else if !errors.Is(err, timebank.ErrNotFound) {
			return err
		}

		h, err = timebank.NewHandshake(e.newID(), l, in.ApplicantID, in.Message, in.Slot, e.now())
		if err != nil {
			return err
		}
		return tx.InsertHandshake(ctx, h)
	})
	if err != nil {
		return nil, fmt.Errorf("propose: %w", err)
	}

	e.logTransition(ctx, "handshake proposed", h, in.ApplicantID)
	e.emit(ctx, timebank.Event{Type: timebank.EventProposed, ActorID: in.ApplicantID, Handshake: *h})
	return h, nil
}
