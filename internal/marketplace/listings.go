package marketplace

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/timebank/internal/engine"
	"github.com/sudo-init-do/timebank/internal/store"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

// CreateListing posts a new Offer or Need for the current user.
func (h *Handler) CreateListing(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req CreateListingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	l, err := h.eng.CreateListing(c.Request().Context(), engine.ListingInput{
		CreatorID:   uid,
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Capacity:    req.Capacity,
		Hours:       req.Hours,
	})
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(http.StatusCreated, l)
}

// ListListings supports ?type=, ?status=, ?creator_id=, ?limit= and ?offset=.
func (h *Handler) ListListings(c echo.Context) error {
	f := store.ListingFilter{
		CreatorID: c.QueryParam("creator_id"),
		Type:      timebank.ListingType(c.QueryParam("type")),
		Status:    timebank.ListingStatus(c.QueryParam("status")),
		Limit:     20,
	}
	if f.Status == "" {
		f.Status = timebank.ListingActive
	}
	if l := c.QueryParam("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			f.Limit = v
		}
	}
	if o := c.QueryParam("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			f.Offset = v
		}
	}

	listings, err := h.eng.ListListings(c.Request().Context(), f)
	if err != nil {
		return RespondError(c, err)
	}
	if listings == nil {
		listings = []timebank.Listing{}
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": listings, "limit": f.Limit, "offset": f.Offset})
}

func (h *Handler) GetListing(c echo.Context) error {
	l, err := h.eng.GetListing(c.Request().Context(), c.Param("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

// CloseListing stops new proposals. Existing accepted handshakes can still
// complete.
func (h *Handler) CloseListing(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	l, err := h.eng.CloseListing(c.Request().Context(), c.Param("id"), uid, false)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(http.StatusOK, l)
}
