// Package audit cross-checks the stored listings, handshakes and ledger.
package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ListingCounts compares a listing's counter with the handshakes that hold
// its slots.
type ListingCounts struct {
	ListingID string
	Capacity  int
	Accepted  int // listings.accepted_count
	Holding   int // accepted + completed handshakes
}

// Settlement pairs a completed handshake with its ledger entries.
type Settlement struct {
	HandshakeID string
	Hours       decimal.Decimal
	Entries     int
	EntryHours  decimal.Decimal
}

type Snapshot struct {
	Listings     []ListingCounts
	Settlements  []Settlement
	Orphans      int // entries whose handshake is not completed
	BalanceTotal decimal.Decimal
	Drifted      []string // accounts whose balance differs from their entries
}

// Finding is one broken invariant.
type Finding struct {
	Kind   string
	Ref    string
	Detail string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s %s: %s", f.Kind, f.Ref, f.Detail)
}

// Run checks every invariant in s.
func Run(s Snapshot) []Finding {
	var out []Finding
	for _, l := range s.Listings {
		if l.Accepted > l.Capacity {
			out = append(out, Finding{"capacity", l.ListingID, fmt.Sprintf("accepted_count %d exceeds capacity %d", l.Accepted, l.Capacity)})
		}
		if l.Accepted != l.Holding {
			out = append(out, Finding{"counter", l.ListingID, fmt.Sprintf("accepted_count %d but %d handshakes hold a slot", l.Accepted, l.Holding)})
		}
	}
	for _, st := range s.Settlements {
		switch {
		case st.Entries != 1:
			out = append(out, Finding{"settlement", st.HandshakeID, fmt.Sprintf("%d ledger entries", st.Entries)})
		case !st.EntryHours.Equal(st.Hours):
			out = append(out, Finding{"settlement", st.HandshakeID, fmt.Sprintf("entry hours %s, agreed %s", st.EntryHours, st.Hours)})
		}
	}
	if s.Orphans > 0 {
		out = append(out, Finding{"settlement", "-", fmt.Sprintf("%d entries reference handshakes that are not completed", s.Orphans)})
	}
	if !s.BalanceTotal.IsZero() {
		out = append(out, Finding{"conservation", "-", fmt.Sprintf("balances sum to %s", s.BalanceTotal)})
	}
	for _, id := range s.Drifted {
		out = append(out, Finding{"balance", id, "balance does not match ledger entries"})
	}
	return out
}

// Load reads a snapshot from Postgres in one repeatable-read transaction.
func Load(ctx context.Context, pool *pgxpool.Pool) (Snapshot, error) {
	var s Snapshot
	tx, err := pool.Begin(ctx)
	if err != nil {
		return s, err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `SET TRANSACTION ISOLATION LEVEL REPEATABLE READ READ ONLY`); err != nil {
		return s, err
	}

	rows, err := tx.Query(ctx, `
		SELECT l.id::text, l.capacity, l.accepted_count,
		       COUNT(h.id) FILTER (WHERE h.status IN ('accepted', 'completed'))
		FROM listings l
		LEFT JOIN handshakes h ON h.listing_id = l.id
		GROUP BY l.id`)
	if err != nil {
		return s, fmt.Errorf("audit listings: %w", err)
	}
	for rows.Next() {
		var l ListingCounts
		if err := rows.Scan(&l.ListingID, &l.Capacity, &l.Accepted, &l.Holding); err != nil {
			rows.Close()
			return s, err
		}
		s.Listings = append(s.Listings, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return s, err
	}

	rows, err = tx.Query(ctx, `
		SELECT h.id::text, h.hours::text, COUNT(e.id), COALESCE(SUM(e.hours), 0)::text
		FROM handshakes h
		LEFT JOIN ledger_entries e ON e.handshake_id = h.id
		WHERE h.status = 'completed'
		GROUP BY h.id`)
	if err != nil {
		return s, fmt.Errorf("audit settlements: %w", err)
	}
	for rows.Next() {
		var st Settlement
		var hours, entryHours string
		if err := rows.Scan(&st.HandshakeID, &hours, &st.Entries, &entryHours); err != nil {
			rows.Close()
			return s, err
		}
		st.Hours, _ = decimal.NewFromString(hours)
		st.EntryHours, _ = decimal.NewFromString(entryHours)
		s.Settlements = append(s.Settlements, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return s, err
	}

	var total string
	err = tx.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM ledger_entries e JOIN handshakes h ON h.id = e.handshake_id WHERE h.status <> 'completed'),
		       (SELECT COALESCE(SUM(balance), 0)::text FROM ledger_accounts)`,
	).Scan(&s.Orphans, &total)
	if err != nil {
		return s, fmt.Errorf("audit totals: %w", err)
	}
	s.BalanceTotal, _ = decimal.NewFromString(total)

	rows, err = tx.Query(ctx, `
		SELECT a.user_id::text
		FROM ledger_accounts a
		WHERE a.balance <> COALESCE((SELECT SUM(hours) FROM ledger_entries WHERE to_user_id = a.user_id), 0)
		                 - COALESCE((SELECT SUM(hours) FROM ledger_entries WHERE from_user_id = a.user_id), 0)`)
	if err != nil {
		return s, fmt.Errorf("audit balances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return s, err
		}
		s.Drifted = append(s.Drifted, id)
	}
	return s, rows.Err()
}
