package engine

import (
	"context"
	"fmt"

	"github.com/sudo-init-do/timebank/internal/store"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

// DeclineOrWithdraw closes a pending handshake. The owner declining and the
// applicant withdrawing are the same transition. No slot is released because
// pending handshakes never hold one. Accepted handshakes cannot be cancelled.
//
// Repeating the call as the actor who already declined is a no-op.
func (e *Engine) DeclineOrWithdraw(ctx context.Context, handshakeID, actorID string) (*timebank.Handshake, error) {
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
		if !h.IsParty(actorID) {
			return timebank.ErrUnauthorized
		}
		if h.Status == timebank.StatusDeclined && h.DeclinedBy == actorID {
			replay = true
			return nil
		}
		if err := h.Decline(actorID, e.now()); err != nil {
			return err
		}
		return tx.UpdateHandshake(ctx, h)
	})
	if err != nil {
		return nil, fmt.Errorf("decline %s: %w", handshakeID, err)
	}
	if replay {
		return h, nil
	}

	evType := timebank.EventDeclined
	msg := "handshake declined"
	if actorID == h.ApplicantID {
		evType = timebank.EventWithdrawn
		msg = "handshake withdrawn"
	}
	e.logTransition(ctx, msg, h, actorID)
	e.emit(ctx, timebank.Event{Type: evType, ActorID: actorID, Handshake: *h})
	return h, nil
}
