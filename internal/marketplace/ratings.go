package marketplace

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/timebank/internal/engine"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

// GetRating reports whether the caller may rate and returns their rating if
// one exists.
func (h *Handler) GetRating(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	id := c.Param("id")

	canRate, err := h.eng.CanRate(ctx, id, uid)
	if err != nil {
		return RespondError(c, err)
	}
	resp := echo.Map{"can_rate": canRate, "categories": timebank.RatingCategories, "rating": nil}
	r, err := h.eng.GetRating(ctx, id, uid)
	switch {
	case err == nil:
		resp["rating"] = r
	case !errors.Is(err, timebank.ErrNotFound):
		return RespondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// SubmitRating stores the caller's feedback on the other party.
func (h *Handler) SubmitRating(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req RatingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	r, err := h.eng.SubmitRating(c.Request().Context(), engine.RatingInput{
		HandshakeID: c.Param("id"),
		RaterID:     uid,
		Scores:      req.Scores,
		Comment:     req.Comment,
	})
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}
