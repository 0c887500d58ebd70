package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/timebank/internal/db"
)

type BootstrapAdminRequest struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
}

// BootstrapAdmin promotes an existing account to admin when the caller knows
// the configured bootstrap secret. An empty secret disables the endpoint.
func BootstrapAdmin(secret string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if secret == "" {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "bootstrap disabled"})
		}
		req := new(BootstrapAdminRequest)
		if err := c.Bind(req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
		}
		if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(secret)) != 1 {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid secret"})
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))
		if email == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
		}

		ct, err := db.Conn.Exec(c.Request().Context(), `UPDATE users SET role = 'admin' WHERE email = $1`, email)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to promote user"})
		}
		if ct.RowsAffected() == 0 {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "user promoted to admin", "email": email})
	}
}
