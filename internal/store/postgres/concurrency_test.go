package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/timebank/internal/engine"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

// The races below go through SELECT ... FOR UPDATE, uq_handshakes_live and
// the unique handshake_id on ledger_entries rather than an in-process lock.

func newTestEngine(t *testing.T) (*engine.Engine, *Store) {
	t.Helper()
	s := openTestStore(t)
	return engine.New(s, engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))), s
}

func createListing(t *testing.T, eng *engine.Engine, owner string, capacity uint, hours string) *timebank.Listing {
	t.Helper()
	l, err := eng.CreateListing(context.Background(), engine.ListingInput{
		CreatorID: owner,
		Type:      timebank.ListingOffer,
		Title:     "Tutoring",
		Capacity:  capacity,
		Hours:     decimal.RequireFromString(hours),
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return l
}

func TestPostgresConcurrentAcceptsNeverExceedCapacity(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := context.Background()
	const capacity, applicants = 3, 12
	owner := createUser(t, "owner")
	l := createListing(t, eng, owner, capacity, "1")

	ids := make([]string, applicants)
	for i := range ids {
		h, err := eng.ProposeHandshake(ctx, engine.ProposeInput{ListingID: l.ID, ApplicantID: createUser(t, fmt.Sprintf("applicant-%d", i))})
		if err != nil {
			t.Fatalf("propose: %v", err)
		}
		ids[i] = h.ID
	}

	var accepted, full atomic.Int32
	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := eng.AcceptHandshake(ctx, id, owner, nil)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, timebank.ErrListingFull):
				full.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if accepted.Load() != capacity || full.Load() != applicants-capacity {
		t.Fatalf("accepted=%d full=%d", accepted.Load(), full.Load())
	}

	got, err := s.GetListing(ctx, l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AcceptedCount != capacity || got.Status != timebank.ListingFilled {
		t.Fatalf("listing %+v", got)
	}
	live, err := s.ListHandshakesByListing(ctx, l.ID, []timebank.HandshakeStatus{timebank.StatusAccepted})
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != capacity {
		t.Fatalf("%d accepted handshakes stored, want %d", len(live), capacity)
	}
}

func TestPostgresConcurrentConfirmsSettleOnce(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := context.Background()
	owner, applicant := createUser(t, "owner"), createUser(t, "applicant")
	l := createListing(t, eng, owner, 1, "2.25")

	h, err := eng.ProposeHandshake(ctx, engine.ProposeInput{ListingID: l.ID, ApplicantID: applicant})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AcceptHandshake(ctx, h.ID, owner, nil); err != nil {
		t.Fatal(err)
	}

	var completed atomic.Int32
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		actor := applicant
		if i%2 == 1 {
			actor = owner
		}
		g.Go(func() error {
			res, err := eng.ConfirmCompletion(ctx, h.ID, actor)
			if err != nil {
				return err
			}
			if res.Outcome == engine.FullyCompleted {
				completed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if completed.Load() == 0 {
		t.Fatal("handshake never completed")
	}

	var entries int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE handshake_id = $1`, h.ID).Scan(&entries); err != nil {
		t.Fatal(err)
	}
	if entries != 1 {
		t.Fatalf("expected one ledger entry, got %d", entries)
	}

	want := decimal.RequireFromString("2.25")
	if b, _ := s.Balance(ctx, owner); !b.Equal(want) {
		t.Fatalf("owner balance = %s, want %s", b, want)
	}
	if b, _ := s.Balance(ctx, applicant); !b.Equal(want.Neg()) {
		t.Fatalf("applicant balance = %s, want %s", b, want.Neg())
	}
}

func TestPostgresConcurrentDuplicateProposals(t *testing.T) {
	eng, s := newTestEngine(t)
	ctx := context.Background()
	owner, applicant := createUser(t, "owner"), createUser(t, "applicant")
	l := createListing(t, eng, owner, 1, "1")

	var created, dup atomic.Int32
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := eng.ProposeHandshake(ctx, engine.ProposeInput{ListingID: l.ID, ApplicantID: applicant})
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, timebank.ErrDuplicateProposal):
				dup.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if created.Load() != 1 || dup.Load() != 9 {
		t.Fatalf("created=%d duplicate=%d", created.Load(), dup.Load())
	}

	list, err := s.ListHandshakesByApplicant(ctx, applicant, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("%d handshakes stored for the pair, want 1", len(list))
	}
}
