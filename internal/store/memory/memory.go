// Package memory is an in-process implementation of store.Store. Transactions
// are serialized by a single mutex and staged writes are applied only on
// success, which gives the same all-or-nothing behaviour as the Postgres store.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/store"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

type ratingKey struct{ handshakeID, raterID string }

// Store keeps everything in maps guarded by mu. Reader methods must not be
// called from inside a WithTx callback.
type Store struct {
	mu         sync.RWMutex
	listings   map[string]timebank.Listing
	handshakes map[string]timebank.Handshake
	entries    map[string]timebank.LedgerEntry // keyed by handshake id
	balances   map[string]decimal.Decimal
	ratings    map[ratingKey]timebank.Rating
}

// New returns an empty store.
func New() *Store {
	return &Store{
		listings:   make(map[string]timebank.Listing),
		handshakes: make(map[string]timebank.Handshake),
		entries:    make(map[string]timebank.LedgerEntry),
		balances:   make(map[string]decimal.Decimal),
		ratings:    make(map[ratingKey]timebank.Rating),
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		s:          s,
		listings:   make(map[string]timebank.Listing),
		handshakes: make(map[string]timebank.Handshake),
		entries:    make(map[string]timebank.LedgerEntry),
		deltas:     make(map[string]decimal.Decimal),
		ratings:    make(map[ratingKey]timebank.Rating),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Store) GetListing(_ context.Context, id string) (*timebank.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, fmt.Errorf("memory: listing %s: %w", id, timebank.ErrNotFound)
	}
	return &l, nil
}

func (s *Store) ListListings(_ context.Context, f store.ListingFilter) ([]timebank.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []timebank.Listing
	for _, l := range s.listings {
		if f.CreatorID != "" && l.CreatorID != f.CreatorID {
			continue
		}
		if f.Type != "" && l.Type != f.Type {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Offset, f.Limit), nil
}

func (s *Store) GetHandshake(_ context.Context, id string) (*timebank.Handshake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handshakes[id]
	if !ok {
		return nil, fmt.Errorf("memory: handshake %s: %w", id, timebank.ErrHandshakeNotFound)
	}
	return &h, nil
}

func (s *Store) ListHandshakesByListing(_ context.Context, listingID string, statuses []timebank.HandshakeStatus) ([]timebank.Handshake, error) {
	return s.filterHandshakes(func(h timebank.Handshake) bool {
		return h.ListingID == listingID && store.MatchStatus(h.Status, statuses)
	}), nil
}

func (s *Store) ListHandshakesByApplicant(_ context.Context, applicantID string, statuses []timebank.HandshakeStatus) ([]timebank.Handshake, error) {
	return s.filterHandshakes(func(h timebank.Handshake) bool {
		return h.ApplicantID == applicantID && store.MatchStatus(h.Status, statuses)
	}), nil
}

func (s *Store) filterHandshakes(keep func(timebank.Handshake) bool) []timebank.Handshake {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []timebank.Handshake
	for _, h := range s.handshakes {
		if keep(h) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) Balance(_ context.Context, userID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[userID], nil
}

func (s *Store) LedgerEntries(_ context.Context, userID string) ([]timebank.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []timebank.LedgerEntry
	for _, e := range s.entries {
		if e.FromUserID == userID || e.ToUserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) LedgerEntryForHandshake(_ context.Context, handshakeID string) (*timebank.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[handshakeID]
	if !ok {
		return nil, fmt.Errorf("memory: ledger entry for %s: %w", handshakeID, timebank.ErrNotFound)
	}
	return &e, nil
}

func (s *Store) GetRating(_ context.Context, handshakeID, raterID string) (*timebank.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ratings[ratingKey{handshakeID, raterID}]
	if !ok {
		return nil, fmt.Errorf("memory: rating: %w", timebank.ErrNotFound)
	}
	r.Scores = maps.Clone(r.Scores)
	return &r, nil
}

// TotalBalance sums every account. It is zero whenever the ledger is
// consistent, since accounts open at zero and transfers are balanced.
func (s *Store) TotalBalance() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := decimal.Zero
	for _, b := range s.balances {
		sum = sum.Add(b)
	}
	return sum
}

// EntryCount returns the number of ledger entries.
func (s *Store) EntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ store.Store = (*Store)(nil)
