package marketplace

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/timebank/internal/engine"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

// ProposeHandshake applies to the listing in the path.
func (h *Handler) ProposeHandshake(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req ProposeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	hs, err := h.eng.ProposeHandshake(c.Request().Context(), engine.ProposeInput{
		ListingType: req.ListingType,
		ListingID:   c.Param("id"),
		ApplicantID: uid,
		Message:     req.Message,
		Slot:        req.Slot,
	})
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(http.StatusCreated, hs)
}

// AcceptHandshake is called by the listing owner. The body is optional.
func (h *Handler) AcceptHandshake(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req AcceptRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	hs, err := h.eng.AcceptHandshake(c.Request().Context(), c.Param("id"), uid, req.Hours)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(http.StatusOK, hs)
}

// DeclineHandshake covers both owner decline and applicant withdrawal.
func (h *Handler) DeclineHandshake(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	hs, err := h.eng.DeclineOrWithdraw(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(http.StatusOK, hs)
}

func (h *Handler) ConfirmCompletion(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	res, err := h.eng.ConfirmCompletion(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GetHandshake is visible to both parties only.
func (h *Handler) GetHandshake(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	hs, err := h.eng.GetHandshake(c.Request().Context(), c.Param("id"))
	if err != nil {
		return RespondError(c, err)
	}
	if !hs.IsParty(uid) {
		return RespondError(c, timebank.ErrUnauthorized)
	}
	return c.JSON(http.StatusOK, hs)
}

// ListListingHandshakes is the owner's view of proposals on one listing.
func (h *Handler) ListListingHandshakes(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	statuses, err := parseStatuses(c.QueryParam("status"))
	if err != nil {
		return RespondError(c, err)
	}

	ctx := c.Request().Context()
	l, err := h.eng.GetListing(ctx, c.Param("id"))
	if err != nil {
		return RespondError(c, err)
	}
	if l.CreatorID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the listing owner can view its handshakes"})
	}

	list, err := h.eng.ListHandshakesForListing(ctx, l.ID, statuses...)
	if err != nil {
		return RespondError(c, err)
	}
	if list == nil {
		list = []timebank.Handshake{}
	}
	return c.JSON(http.StatusOK, echo.Map{"handshakes": list})
}

// ListMyHandshakes returns the caller's proposals as applicant.
func (h *Handler) ListMyHandshakes(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	statuses, err := parseStatuses(c.QueryParam("status"))
	if err != nil {
		return RespondError(c, err)
	}
	list, err := h.eng.ListHandshakesForUser(c.Request().Context(), uid, statuses...)
	if err != nil {
		return RespondError(c, err)
	}
	if list == nil {
		list = []timebank.Handshake{}
	}
	return c.JSON(http.StatusOK, echo.Map{"handshakes": list})
}

// parseStatuses reads a comma separated status filter.
func parseStatuses(raw string) ([]timebank.HandshakeStatus, error) {
	if raw == "" {
		return nil, nil
	}
	var out []timebank.HandshakeStatus
	for _, part := range strings.Split(raw, ",") {
		s := timebank.HandshakeStatus(strings.TrimSpace(part))
		if !s.Valid() {
			return nil, timebank.ErrInvalidInput
		}
		out = append(out, s)
	}
	return out, nil
}
