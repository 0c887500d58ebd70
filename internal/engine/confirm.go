package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sudo-init-do/timebank/internal/store"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

// Outcome is the result of a completion confirmation.
type Outcome string

const (
	PartiallyConfirmed Outcome = "partially_confirmed"
	FullyCompleted     Outcome = "fully_completed"
)

// Confirmation is returned by ConfirmCompletion. Entry is set only when the
// handshake is completed.
type Confirmation struct {
	Outcome   Outcome               `json:"outcome"`
	Handshake timebank.Handshake    `json:"handshake"`
	Entry     *timebank.LedgerEntry `json:"entry,omitempty"`
}

// ConfirmCompletion records that actorID considers the exchange done. The
// flag write, the "both confirmed" check, the ledger entry, both balance
// changes and the status flip all happen under the handshake row lock in one
// transaction, so concurrent confirmations settle exactly once.
//
// Confirming again as the same party is a no-op that reports the current
// state, including after completion.
func (e *Engine) ConfirmCompletion(ctx context.Context, handshakeID, actorID string) (*Confirmation, error) {
	var (
		res     Confirmation
		changed bool
	)
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		h, err := tx.LockHandshake(ctx, handshakeID)
		if err != nil {
			return err
		}

		switch h.Status {
		case timebank.StatusPending:
			if !h.IsParty(actorID) {
				return timebank.ErrUnauthorized
			}
			return timebank.ErrNotAccepted
		case timebank.StatusDeclined:
			if !h.IsParty(actorID) {
				return timebank.ErrUnauthorized
			}
			return fmt.Errorf("handshake is declined: %w", timebank.ErrAlreadyTerminal)
		case timebank.StatusCompleted:
			if h.RoleOf(actorID) == timebank.RoleNone {
				return timebank.ErrUnauthorized
			}
			res = Confirmation{Outcome: FullyCompleted, Handshake: *h}
			return nil
		}

		role := h.RoleOf(actorID)
		if role == timebank.RoleNone {
			return timebank.ErrUnauthorized
		}
		changed, err = h.Confirm(role)
		if err != nil {
			return err
		}
		if !changed || !h.BothConfirmed() {
			res = Confirmation{Outcome: PartiallyConfirmed, Handshake: *h}
			if !changed {
				return nil
			}
			return tx.UpdateHandshake(ctx, h)
		}

		entry, err := e.settle(ctx, tx, h)
		if err != nil {
			return err
		}
		res = Confirmation{Outcome: FullyCompleted, Handshake: *h, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("confirm %s: %w", handshakeID, err)
	}

	if !changed {
		if res.Outcome == FullyCompleted {
			entry, err := e.store.LedgerEntryForHandshake(ctx, handshakeID)
			if err != nil {
				return nil, fmt.Errorf("confirm %s: load entry: %w", handshakeID, err)
			}
			res.Entry = entry
		}
		return &res, nil
	}

	if res.Outcome == FullyCompleted {
		e.logger.InfoContext(ctx, "handshake completed",
			slog.String("handshake_id", res.Handshake.ID),
			slog.String("actor_id", actorID),
			slog.String("from_user_id", res.Entry.FromUserID),
			slog.String("to_user_id", res.Entry.ToUserID),
			slog.String("hours", res.Entry.Hours.String()),
		)
		e.emit(ctx, timebank.Event{Type: timebank.EventCompleted, ActorID: actorID, Handshake: res.Handshake, Entry: res.Entry})
	} else {
		e.logTransition(ctx, "handshake confirmed", &res.Handshake, actorID)
		e.emit(ctx, timebank.Event{Type: timebank.EventConfirmed, ActorID: actorID, Handshake: res.Handshake})
	}
	return &res, nil
}

// settle writes the single ledger entry for h, moves the hours from
// requester to provider and completes the handshake. The unique constraint on
// the entry's handshake id backs up the row lock.
func (e *Engine) settle(ctx context.Context, tx store.Tx, h *timebank.Handshake) (*timebank.LedgerEntry, error) {
	now := e.now()
	entry, err := timebank.SettlementEntry(e.newID(), h, now)
	if err != nil {
		return nil, err
	}
	if err := tx.InsertLedgerEntry(ctx, entry); err != nil {
		return nil, err
	}
	if err := tx.AdjustBalance(ctx, entry.FromUserID, entry.Hours.Neg()); err != nil {
		return nil, err
	}
	if err := tx.AdjustBalance(ctx, entry.ToUserID, entry.Hours); err != nil {
		return nil, err
	}
	if err := h.Complete(now); err != nil {
		return nil, err
	}
	if err := tx.UpdateHandshake(ctx, h); err != nil {
		return nil, err
	}
	return entry, nil
}
