package timebank

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestListing(t *testing.T, capacity uint) *Listing {
	t.Helper()
	l, err := NewListing("l1", "owner", ListingOffer, "Bike repair", "", capacity, decimal.RequireFromString("1.5"), time.Now())
	if err != nil {
		t.Fatalf("NewListing: %v", err)
	}
	return l
}

func TestNewListingValidation(t *testing.T) {
	now := time.Now()
	one := decimal.NewFromInt(1)
	cases := []struct {
		name     string
		creator  string
		typ      ListingType
		title    string
		capacity uint
		hours    decimal.Decimal
	}{
		{"missing creator", "", ListingOffer, "t", 1, one},
		{"bad type", "u", "swap", "t", 1, one},
		{"missing title", "u", ListingNeed, "", 1, one},
		{"zero capacity", "u", ListingNeed, "t", 0, one},
		{"zero hours", "u", ListingNeed, "t", 1, decimal.Zero},
		{"negative hours", "u", ListingNeed, "t", 1, decimal.NewFromInt(-2)},
		{"sub-cent hours", "u", ListingNeed, "t", 1, decimal.RequireFromString("0.004")},
		{"three decimal places", "u", ListingOffer, "t", 1, decimal.RequireFromString("2.555")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewListing("id", tc.creator, tc.typ, tc.title, "", tc.capacity, tc.hours, now)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestTryReserveSlotFillsListing(t *testing.T) {
	l := newTestListing(t, 2)
	now := time.Now()

	if err := l.TryReserveSlot(now); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if l.Status != ListingActive || !l.IsAcceptingProposals() {
		t.Fatalf("listing should still accept proposals, status=%s", l.Status)
	}
	if err := l.TryReserveSlot(now); err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if l.Status != ListingFilled || l.AcceptedCount != 2 {
		t.Fatalf("expected full with 2 accepted, got %s/%d", l.Status, l.AcceptedCount)
	}
	if err := l.TryReserveSlot(now); !errors.Is(err, ErrListingFull) {
		t.Fatalf("expected ErrListingFull, got %v", err)
	}
	if l.AcceptedCount != 2 {
		t.Fatalf("failed reserve must not change count, got %d", l.AcceptedCount)
	}
}

func TestReleaseSlotReopensListing(t *testing.T) {
	l := newTestListing(t, 1)
	now := time.Now()
	if err := l.TryReserveSlot(now); err != nil {
		t.Fatal(err)
	}
	if err := l.ReleaseSlot(now); err != nil {
		t.Fatalf("release: %v", err)
	}
	if l.Status != ListingActive || l.AcceptedCount != 0 {
		t.Fatalf("expected active with 0 accepted, got %s/%d", l.Status, l.AcceptedCount)
	}
	if err := l.ReleaseSlot(now); !errors.Is(err, ErrConflict) {
		t.Fatalf("releasing an empty listing should conflict, got %v", err)
	}
}

func TestClosedListingRejectsReservation(t *testing.T) {
	l := newTestListing(t, 3)
	l.Close(time.Now())
	if l.IsAcceptingProposals() || l.Open() {
		t.Fatal("closed listing must not accept proposals")
	}
	if err := l.TryReserveSlot(time.Now()); !errors.Is(err, ErrListingUnavailable) {
		t.Fatalf("expected ErrListingUnavailable, got %v", err)
	}
}
