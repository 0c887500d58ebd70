package memory

import (
	"context"
	"fmt"
	"maps"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/timebank"
)

// memTx stages writes on top of the committed maps. The store mutex is held
// for the whole transaction.
type memTx struct {
	s          *Store
	listings   map[string]timebank.Listing
	handshakes map[string]timebank.Handshake
	entries    map[string]timebank.LedgerEntry
	deltas     map[string]decimal.Decimal
	ratings    map[ratingKey]timebank.Rating
}

func (tx *memTx) listing(id string) (timebank.Listing, bool) {
	if l, ok := tx.listings[id]; ok {
		return l, true
	}
	l, ok := tx.s.listings[id]
	return l, ok
}

func (tx *memTx) handshake(id string) (timebank.Handshake, bool) {
	if h, ok := tx.handshakes[id]; ok {
		return h, true
	}
	h, ok := tx.s.handshakes[id]
	return h, ok
}

func (tx *memTx) InsertListing(_ context.Context, l *timebank.Listing) error {
	if _, ok := tx.listing(l.ID); ok {
		return fmt.Errorf("memory: listing %s: %w", l.ID, timebank.ErrConflict)
	}
	tx.listings[l.ID] = *l
	return nil
}

func (tx *memTx) LockListing(_ context.Context, id string) (*timebank.Listing, error) {
	l, ok := tx.listing(id)
	if !ok {
		return nil, fmt.Errorf("memory: listing %s: %w", id, timebank.ErrNotFound)
	}
	return &l, nil
}

func (tx *memTx) UpdateListing(_ context.Context, l *timebank.Listing) error {
	if _, ok := tx.listing(l.ID); !ok {
		return fmt.Errorf("memory: listing %s: %w", l.ID, timebank.ErrNotFound)
	}
	tx.listings[l.ID] = *l
	return nil
}

func (tx *memTx) LockHandshake(_ context.Context, id string) (*timebank.Handshake, error) {
	h, ok := tx.handshake(id)
	if !ok {
		return nil, fmt.Errorf("memory: handshake %s: %w", id, timebank.ErrHandshakeNotFound)
	}
	return &h, nil
}

func (tx *memTx) FindLiveHandshake(_ context.Context, listingID, applicantID string) (*timebank.Handshake, error) {
	match := func(h timebank.Handshake) bool {
		return h.ListingID == listingID && h.ApplicantID == applicantID && h.Status.Live()
	}
	for _, h := range tx.handshakes {
		if match(h) {
			return &h, nil
		}
	}
	for id, h := range tx.s.handshakes {
		if _, staged := tx.handshakes[id]; staged {
			continue
		}
		if match(h) {
			return &h, nil
		}
	}
	return nil, fmt.Errorf("memory: live handshake: %w", timebank.ErrNotFound)
}

func (tx *memTx) InsertHandshake(ctx context.Context, h *timebank.Handshake) error {
	if _, ok := tx.handshake(h.ID); ok {
		return fmt.Errorf("memory: handshake %s: %w", h.ID, timebank.ErrConflict)
	}
	if _, err := tx.FindLiveHandshake(ctx, h.ListingID, h.ApplicantID); err == nil {
		return fmt.Errorf("memory: insert handshake: %w", timebank.ErrDuplicateProposal)
	}
	tx.handshakes[h.ID] = *h
	return nil
}

func (tx *memTx) UpdateHandshake(_ context.Context, h *timebank.Handshake) error {
	if _, ok := tx.handshake(h.ID); !ok {
		return fmt.Errorf("memory: handshake %s: %w", h.ID, timebank.ErrHandshakeNotFound)
	}
	tx.handshakes[h.ID] = *h
	return nil
}

func (tx *memTx) InsertLedgerEntry(_ context.Context, e *timebank.LedgerEntry) error {
	_, staged := tx.entries[e.HandshakeID]
	_, committed := tx.s.entries[e.HandshakeID]
	if staged || committed {
		return fmt.Errorf("memory: ledger entry for %s: %w", e.HandshakeID, timebank.ErrConflict)
	}
	tx.entries[e.HandshakeID] = *e
	return nil
}

func (tx *memTx) AdjustBalance(_ context.Context, userID string, delta decimal.Decimal) error {
	tx.deltas[userID] = tx.deltas[userID].Add(delta)
	return nil
}

func (tx *memTx) InsertRating(_ context.Context, r *timebank.Rating) error {
	k := ratingKey{r.HandshakeID, r.RaterID}
	_, staged := tx.ratings[k]
	_, committed := tx.s.ratings[k]
	if staged || committed {
		return fmt.Errorf("memory: rating: %w", timebank.ErrAlreadyRated)
	}
	cp := *r
	cp.Scores = maps.Clone(r.Scores)
	tx.ratings[k] = cp
	return nil
}

func (tx *memTx) commit() {
	for id, l := range tx.listings {
		tx.s.listings[id] = l
	}
	for id, h := range tx.handshakes {
		tx.s.handshakes[id] = h
	}
	for id, e := range tx.entries {
		tx.s.entries[id] = e
	}
	for user, d := range tx.deltas {
		tx.s.balances[user] = tx.s.balances[user].Add(d)
	}
	for k, r := range tx.ratings {
		tx.s.ratings[k] = r
	}
}
