package marketplace

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/timebank/internal/timebank"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{timebank.ErrHandshakeNotFound, http.StatusNotFound},
	{timebank.ErrListingUnavailable, http.StatusNotFound},
	{timebank.ErrNotFound, http.StatusNotFound},
	{timebank.ErrUnauthorized, http.StatusForbidden},
	{timebank.ErrListingFull, http.StatusConflict},
	{timebank.ErrDuplicateProposal, http.StatusConflict},
	{timebank.ErrAlreadyTerminal, http.StatusConflict},
	{timebank.ErrAlreadyAccepted, http.StatusConflict},
	{timebank.ErrAlreadyRated, http.StatusConflict},
	{timebank.ErrHoursImmutable, http.StatusConflict},
	{timebank.ErrConflict, http.StatusConflict},
	{timebank.ErrSelfProposal, http.StatusUnprocessableEntity},
	{timebank.ErrNotAccepted, http.StatusUnprocessableEntity},
	{timebank.ErrHoursOverrideDisabled, http.StatusUnprocessableEntity},
	{timebank.ErrCannotRate, http.StatusUnprocessableEntity},
	{timebank.ErrInvalidInput, http.StatusBadRequest},
}

// ErrorStatus maps an engine error to its HTTP status.
func ErrorStatus(err error) int {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// RespondError writes err as {"error": ...}. Internal errors are not echoed
// back to the client.
func RespondError(c echo.Context, err error) error {
	status := ErrorStatus(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request failed",
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": publicMessage(err)})
}

// publicMessage returns the sentinel's text rather than the wrapped chain,
// which may carry store details.
func publicMessage(err error) string {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return m.err.Error()
		}
	}
	return err.Error()
}
