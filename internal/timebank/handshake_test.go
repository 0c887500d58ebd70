package timebank

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func pendingHandshake(t *testing.T, typ ListingType) *Handshake {
	t.Helper()
	l, err := NewListing("l1", "owner", typ, "Gardening", "", 1, decimal.NewFromInt(2), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	h, err := NewHandshake("h1", l, "applicant", "hello", nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestNewHandshakeCopiesListing(t *testing.T) {
	h := pendingHandshake(t, ListingNeed)
	if h.Status != StatusPending || h.OwnerID != "owner" || h.ListingType != ListingNeed {
		t.Fatalf("unexpected handshake: %+v", h)
	}
	if !h.Hours.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("hours should default to nominal, got %s", h.Hours)
	}
	if h.ProviderID != "" || h.RequesterID != "" {
		t.Fatal("roles must not be resolved before accept")
	}
}

func TestNewHandshakeRejectsBadSlot(t *testing.T) {
	l, _ := NewListing("l1", "owner", ListingOffer, "t", "", 1, decimal.NewFromInt(1), time.Now())
	start := time.Now()
	_, err := NewHandshake("h", l, "a", "", &TimeSlot{Start: start, End: start.Add(-time.Hour)}, start)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestResolveRoles(t *testing.T) {
	p, r := ResolveRoles(ListingOffer, "owner", "applicant")
	if p != "owner" || r != "applicant" {
		t.Fatalf("offer: got provider=%s requester=%s", p, r)
	}
	p, r = ResolveRoles(ListingNeed, "owner", "applicant")
	if p != "applicant" || r != "owner" {
		t.Fatalf("need: got provider=%s requester=%s", p, r)
	}
}

func TestAcceptBindsHoursAndRoles(t *testing.T) {
	h := pendingHandshake(t, ListingNeed)
	if err := h.Accept(decimal.RequireFromString("2.5"), time.Now()); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if h.Status != StatusAccepted || h.DecidedAt == nil {
		t.Fatalf("unexpected state: %+v", h)
	}
	if h.RoleOf("applicant") != RoleProvider || h.RoleOf("owner") != RoleRequester {
		t.Fatal("need listing should make the applicant the provider")
	}
	if err := h.Accept(decimal.NewFromInt(9), time.Now()); !errors.Is(err, ErrAlreadyAccepted) {
		t.Fatalf("second accept: expected ErrAlreadyAccepted, got %v", err)
	}
	if !h.Hours.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("hours changed after accept: %s", h.Hours)
	}
}

func TestAcceptRejectsNonPositiveHours(t *testing.T) {
	h := pendingHandshake(t, ListingOffer)
	if err := h.Accept(decimal.Zero, time.Now()); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if h.Status != StatusPending {
		t.Fatal("failed accept must leave handshake pending")
	}
}

func TestAcceptRejectsHoursBeyondLedgerScale(t *testing.T) {
	for _, raw := range []string{"0.004", "2.555", "10000000000"} {
		t.Run(raw, func(t *testing.T) {
			h := pendingHandshake(t, ListingOffer)
			err := h.Accept(decimal.RequireFromString(raw), time.Now())
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if h.Status != StatusPending || !h.Hours.Equal(decimal.NewFromInt(2)) {
				t.Fatalf("failed accept changed handshake: %s %s", h.Status, h.Hours)
			}
		})
	}

	h := pendingHandshake(t, ListingOffer)
	if err := h.Accept(decimal.RequireFromString("2.50"), time.Now()); err != nil {
		t.Fatalf("two decimal places must be accepted: %v", err)
	}
}

func TestDeclineTransitions(t *testing.T) {
	h := pendingHandshake(t, ListingOffer)
	if err := h.Decline("applicant", time.Now()); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if h.Status != StatusDeclined || h.DeclinedBy != "applicant" {
		t.Fatalf("unexpected state: %+v", h)
	}
	if err := h.Decline("owner", time.Now()); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}

	accepted := pendingHandshake(t, ListingOffer)
	_ = accepted.Accept(decimal.NewFromInt(1), time.Now())
	if err := accepted.Decline("owner", time.Now()); !errors.Is(err, ErrAlreadyAccepted) {
		t.Fatalf("expected ErrAlreadyAccepted, got %v", err)
	}
}

func TestConfirmAndComplete(t *testing.T) {
	h := pendingHandshake(t, ListingOffer)
	if _, err := h.Confirm(RoleProvider); !errors.Is(err, ErrNotAccepted) {
		t.Fatalf("confirm before accept: expected ErrNotAccepted, got %v", err)
	}
	_ = h.Accept(decimal.NewFromInt(3), time.Now())

	changed, err := h.Confirm(RoleProvider)
	if err != nil || !changed {
		t.Fatalf("first confirm: changed=%v err=%v", changed, err)
	}
	changed, err = h.Confirm(RoleProvider)
	if err != nil || changed {
		t.Fatalf("repeat confirm should be a no-op: changed=%v err=%v", changed, err)
	}
	if err := h.Complete(time.Now()); !errors.Is(err, ErrConflict) {
		t.Fatalf("complete with one flag: expected ErrConflict, got %v", err)
	}
	if _, err := h.Confirm(RoleNone); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	_, _ = h.Confirm(RoleRequester)
	entry, err := SettlementEntry("e1", h, time.Now())
	if err != nil {
		t.Fatalf("settlement entry: %v", err)
	}
	if entry.FromUserID != "applicant" || entry.ToUserID != "owner" || !entry.Hours.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if err := h.Complete(time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if h.Status != StatusCompleted || h.CompletedAt == nil {
		t.Fatalf("unexpected state: %+v", h)
	}
}

func TestValidateScores(t *testing.T) {
	if err := ValidateScores(map[string]int{"quality": 5, "reliability": 1}); err != nil {
		t.Fatalf("valid scores rejected: %v", err)
	}
	for _, bad := range []map[string]int{
		nil,
		{"quality": 0},
		{"quality": 6},
		{"vibes": 3},
	} {
		if err := ValidateScores(bad); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("scores %v: expected ErrInvalidInput, got %v", bad, err)
		}
	}
}
