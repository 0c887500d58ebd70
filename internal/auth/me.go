package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/timebank/internal/db"
)

// Me returns the currently authenticated user's account.
func Me(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var (
		id, name, email, role string
		createdAt             time.Time
	)
	err := db.Conn.QueryRow(c.Request().Context(),
		`SELECT id::text, name, email, role, created_at FROM users WHERE id = $1`, userID).
		Scan(&id, &name, &email, &role, &createdAt)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":         id,
		"name":       name,
		"email":      email,
		"role":       role,
		"created_at": createdAt,
	})
}

// IsActive reports whether the account may still act. Suspended members keep
// their valid tokens, so every authenticated request checks this.
func IsActive(c echo.Context, userID string) (bool, error) {
	var active bool
	err := db.Conn.QueryRow(c.Request().Context(),
		`SELECT is_active FROM users WHERE id = $1`, userID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return active, err
}
