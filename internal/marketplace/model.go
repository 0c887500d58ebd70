package marketplace

import (
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/engine"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

// Handler serves the listing, handshake and rating endpoints.
type Handler struct {
	eng *engine.Engine
}

func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{eng: eng}
}

type CreateListingRequest struct {
	Type        timebank.ListingType `json:"type"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Capacity    uint                 `json:"capacity"`
	Hours       decimal.Decimal      `json:"hours"`
}

type ProposeRequest struct {
	// ListingType is optional and must match the listing when sent.
	ListingType timebank.ListingType `json:"listing_type"`
	Message     string               `json:"message"`
	Slot        *timebank.TimeSlot   `json:"selected_slot"`
}

type AcceptRequest struct {
	Hours *decimal.Decimal `json:"hours"`
}

type RatingRequest struct {
	Scores  map[string]int `json:"scores"`
	Comment string         `json:"comment"`
}
