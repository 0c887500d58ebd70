package timebank

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type HandshakeStatus string

const (
	StatusPending   HandshakeStatus = "pending"
	StatusAccepted  HandshakeStatus = "accepted"
	StatusDeclined  HandshakeStatus = "declined"
	StatusCompleted HandshakeStatus = "completed"
)

// Valid reports whether s is a known handshake status.
func (s HandshakeStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusCompleted:
		return true
	}
	return false
}

// Live statuses occupy the (listing, applicant) uniqueness slot.
func (s HandshakeStatus) Live() bool {
	return s == StatusPending || s == StatusAccepted
}

// Terminal statuses have no outgoing transitions.
func (s HandshakeStatus) Terminal() bool {
	return s == StatusDeclined || s == StatusCompleted
}

// TimeSlot references a proposed time window for the exchange.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label,omitempty"`
}

// Validate rejects windows that end before they start.
func (s *TimeSlot) Validate() error {
	if s == nil {
		return nil
	}
	if s.Start.IsZero() || s.End.IsZero() || !s.End.After(s.Start) {
		return fmt.Errorf("slot must end after it starts: %w", ErrInvalidInput)
	}
	return nil
}

// Role is the part a user plays in a settled exchange.
type Role string

const (
	RoleNone      Role = ""
	RoleProvider  Role = "provider"
	RoleRequester Role = "requester"
)

// Handshake is one applicant's negotiation against one listing.
type Handshake struct {
	ID                 string          `json:"id"`
	ListingID          string          `json:"listing_id"`
	ListingType        ListingType     `json:"listing_type"`
	ApplicantID        string          `json:"applicant_id"`
	OwnerID            string          `json:"owner_id"`
	Status             HandshakeStatus `json:"status"`
	Message            string          `json:"message"`
	SelectedSlot       *TimeSlot       `json:"selected_slot,omitempty"`
	Hours              decimal.Decimal `json:"hours"`
	ProviderID         string          `json:"provider_id,omitempty"`
	RequesterID        string          `json:"requester_id,omitempty"`
	ProviderConfirmed  bool            `json:"provider_confirmed"`
	RequesterConfirmed bool            `json:"requester_confirmed"`
	DeclinedBy         string          `json:"declined_by,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	DecidedAt          *time.Time      `json:"decided_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
}

// MaxMessageLength bounds the proposal message.
const MaxMessageLength = 2000

// NewHandshake builds a pending proposal against l. Hours default to the
// listing's nominal price.
func NewHandshake(id string, l *Listing, applicantID, message string, slot *TimeSlot, now time.Time) (*Handshake, error) {
	if applicantID == "" {
		return nil, fmt.Errorf("applicant is required: %w", ErrInvalidInput)
	}
	if len(message) > MaxMessageLength {
		return nil, fmt.Errorf("message longer than %d characters: %w", MaxMessageLength, ErrInvalidInput)
	}
	if err := slot.Validate(); err != nil {
		return nil, err
	}
	return &Handshake{
		ID:           id,
		ListingID:    l.ID,
		ListingType:  l.Type,
		ApplicantID:  applicantID,
		OwnerID:      l.CreatorID,
		Status:       StatusPending,
		Message:      message,
		SelectedSlot: slot,
		Hours:        l.Hours,
		CreatedAt:    now,
	}, nil
}

// ResolveRoles maps owner and applicant to provider and requester. For an
// offer the owner provides; for a need the applicant does.
func ResolveRoles(typ ListingType, ownerID, applicantID string) (providerID, requesterID string) {
	if typ == ListingNeed {
		return applicantID, ownerID
	}
	return ownerID, applicantID
}

// IsParty reports whether userID is the owner or the applicant.
func (h *Handshake) IsParty(userID string) bool {
	return userID != "" && (userID == h.OwnerID || userID == h.ApplicantID)
}

// RoleOf returns the stored settlement role of userID. It is RoleNone until
// the handshake has been accepted.
func (h *Handshake) RoleOf(userID string) Role {
	switch {
	case userID == "":
		return RoleNone
	case userID == h.ProviderID:
		return RoleProvider
	case userID == h.RequesterID:
		return RoleRequester
	}
	return RoleNone
}

// Confirmed reports whether the given role has confirmed completion.
func (h *Handshake) Confirmed(r Role) bool {
	switch r {
	case RoleProvider:
		return h.ProviderConfirmed
	case RoleRequester:
		return h.RequesterConfirmed
	}
	return false
}

// Accept moves a pending handshake to accepted, binding final hours and the
// provider/requester roles. The caller reserves the listing slot in the same
// transaction.
func (h *Handshake) Accept(hours decimal.Decimal, now time.Time) error {
	if h.Status != StatusPending {
		return h.transitionError(StatusAccepted)
	}
	if err := ValidateHours(hours); err != nil {
		return err
	}
	h.Hours = hours
	h.ProviderID, h.RequesterID = ResolveRoles(h.ListingType, h.OwnerID, h.ApplicantID)
	h.Status = StatusAccepted
	h.DecidedAt = &now
	return nil
}

// Decline closes a pending handshake. Owner decline and applicant withdrawal
// are the same transition.
func (h *Handshake) Decline(actorID string, now time.Time) error {
	if h.Status != StatusPending {
		return h.transitionError(StatusDeclined)
	}
	h.Status = StatusDeclined
	h.DeclinedBy = actorID
	h.DecidedAt = &now
	return nil
}

// Confirm sets the flag for role and reports whether it changed anything.
func (h *Handshake) Confirm(r Role) (bool, error) {
	if h.Status != StatusAccepted {
		return false, h.transitionError(StatusCompleted)
	}
	switch r {
	case RoleProvider:
		if h.ProviderConfirmed {
			return false, nil
		}
		h.ProviderConfirmed = true
	case RoleRequester:
		if h.RequesterConfirmed {
			return false, nil
		}
		h.RequesterConfirmed = true
	default:
		return false, ErrUnauthorized
	}
	return true, nil
}

// BothConfirmed is the settlement condition.
func (h *Handshake) BothConfirmed() bool {
	return h.ProviderConfirmed && h.RequesterConfirmed
}

// Complete marks an accepted, fully confirmed handshake completed.
func (h *Handshake) Complete(now time.Time) error {
	if h.Status != StatusAccepted {
		return h.transitionError(StatusCompleted)
	}
	if !h.BothConfirmed() {
		return fmt.Errorf("complete handshake %s: %w", h.ID, ErrConflict)
	}
	h.Status = StatusCompleted
	h.CompletedAt = &now
	return nil
}

func (h *Handshake) transitionError(to HandshakeStatus) error {
	switch h.Status {
	case StatusDeclined, StatusCompleted:
		return fmt.Errorf("handshake %s is %s: %w", h.ID, h.Status, ErrAlreadyTerminal)
	case StatusAccepted:
		return fmt.Errorf("handshake %s cannot move to %s: %w", h.ID, to, ErrAlreadyAccepted)
	case StatusPending:
		return fmt.Errorf("handshake %s cannot move to %s: %w", h.ID, to, ErrNotAccepted)
	}
	return fmt.Errorf("handshake %s has unknown status %q: %w", h.ID, h.Status, ErrConflict)
}
