package timebank

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Hours and balances are stored as NUMERIC(HoursPrecision, HoursScale).
const (
	HoursPrecision = 12
	HoursScale     = 2
)

var maxHours = decimal.New(1, HoursPrecision-HoursScale)

// ValidateHours accepts positive amounts the ledger columns hold exactly.
func ValidateHours(hours decimal.Decimal) error {
	switch {
	case !hours.IsPositive():
		return fmt.Errorf("hours must be positive: %w", ErrInvalidInput)
	case !hours.Equal(hours.Round(HoursScale)):
		return fmt.Errorf("hours %s has more than %d decimal places: %w", hours, HoursScale, ErrInvalidInput)
	case hours.GreaterThanOrEqual(maxHours):
		return fmt.Errorf("hours %s exceeds %s: %w", hours, maxHours, ErrInvalidInput)
	}
	return nil
}

// LedgerAccount holds a user's time-credit balance. Balances start at zero and
// may go negative.
type LedgerAccount struct {
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LedgerEntry records one settled handshake. There is at most one entry per
// handshake.
type LedgerEntry struct {
	ID          string          `json:"id"`
	FromUserID  string          `json:"from_user_id"`
	ToUserID    string          `json:"to_user_id"`
	Hours       decimal.Decimal `json:"hours"`
	HandshakeID string          `json:"handshake_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SettlementEntry builds the transfer from requester to provider for a fully
// confirmed handshake.
func SettlementEntry(id string, h *Handshake, now time.Time) (*LedgerEntry, error) {
	if !h.BothConfirmed() {
		return nil, fmt.Errorf("settle handshake %s before both confirmations: %w", h.ID, ErrConflict)
	}
	if h.ProviderID == "" || h.RequesterID == "" || h.ProviderID == h.RequesterID {
		return nil, fmt.Errorf("settle handshake %s: roles not resolved: %w", h.ID, ErrConflict)
	}
	return &LedgerEntry{
		ID:          id,
		FromUserID:  h.RequesterID,
		ToUserID:    h.ProviderID,
		Hours:       h.Hours,
		HandshakeID: h.ID,
		CreatedAt:   now,
	}, nil
}
