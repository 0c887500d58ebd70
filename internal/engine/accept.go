package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/store"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

// AcceptHandshake lets the listing owner accept a pending proposal. hours is
// optional; nil keeps the nominal hours copied from the listing. Slot
// reservation and the status flip commit together: if the listing is full the
// handshake stays pending.
//
// Accepting an already accepted handshake with the same (or no) hours
// returns it unchanged, so retries never reserve a second slot.
func (e *Engine) AcceptHandshake(ctx context.Context, handshakeID, ownerID string, hours *decimal.Decimal) (*timebank.Handshake, error) {
	var (
		h      *timebank.Handshake
		replay bool
	)
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		h, err = tx.LockHandshake(ctx, handshakeID)
		if err != nil {
			return err
		}
		if h.OwnerID != ownerID {
			return timebank.ErrUnauthorized
		}
		if h.Status == timebank.StatusAccepted {
			if hours != nil && !hours.Equal(h.Hours) {
				return timebank.ErrHoursImmutable
			}
			replay = true
			return nil
		}
		if h.Status.Terminal() {
			return fmt.Errorf("handshake is %s: %w", h.Status, timebank.ErrAlreadyTerminal)
		}

		final := h.Hours
		if hours != nil {
			if !e.allowHoursOverride && !hours.Equal(h.Hours) {
				return timebank.ErrHoursOverrideDisabled
			}
			final = *hours
		}

		if _, err := e.registry.TryReserveSlot(ctx, tx, h.ListingID); err != nil {
			return err
		}
		if err := h.Accept(final, e.now()); err != nil {
			return err
		}
		return tx.UpdateHandshake(ctx, h)
	})
	if err != nil {
		return nil, fmt.Errorf("accept %s: %w", handshakeID, err)
	}
	if replay {
		return h, nil
	}

	e.logTransition(ctx, "handshake accepted", h, ownerID)
	e.emit(ctx, timebank.Event{Type: timebank.EventAccepted, ActorID: ownerID, Handshake: *h})
	return h, nil
}
