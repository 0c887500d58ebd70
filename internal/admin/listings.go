package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/timebank/internal/engine"
	"github.com/sudo-init-do/timebank/internal/marketplace"
)

// Handler serves admin actions that go through the engine.
type Handler struct {
	eng *engine.Engine
}

func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{eng: eng}
}

// POST /admin/listings/:id/close
func (h *Handler) CloseListing(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)
	l, err := h.eng.CloseListing(c.Request().Context(), c.Param("id"), adminID, true)
	if err != nil {
		return marketplace.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "listing closed", "listing": l})
}
