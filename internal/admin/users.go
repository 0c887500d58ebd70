package admin

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/timebank/internal/db"
)

type AdminUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// GET /admin/users
func ListUsers(c echo.Context) error {
	rows, err := db.Conn.Query(c.Request().Context(),
		`SELECT id::text, name, email, role, is_active, created_at FROM users ORDER BY created_at DESC`)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch users"})
	}
	defer rows.Close()

	users := []AdminUser{}
	for rows.Next() {
		var u AdminUser
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.IsActive, &u.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read user record"})
		}
		users = append(users, u)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

func setUser(c echo.Context, query, done string) error {
	userID := c.Param("id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id required"})
	}
	ct, err := db.Conn.Exec(c.Request().Context(), query, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update user"})
	}
	if ct.RowsAffected() == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": done, "user_id": userID})
}

// POST /admin/users/:id/suspend
func SuspendUser(c echo.Context) error {
	if c.Param("id") == c.Get("user_id") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot suspend yourself"})
	}
	return setUser(c, `UPDATE users SET is_active = FALSE WHERE id = $1`, "user suspended")
}

// POST /admin/users/:id/activate
func ActivateUser(c echo.Context) error {
	return setUser(c, `UPDATE users SET is_active = TRUE WHERE id = $1`, "user activated")
}

// POST /admin/users/:id/promote
func PromoteAdmin(c echo.Context) error {
	return setUser(c, `UPDATE users SET role = 'admin' WHERE id = $1`, "user promoted to admin")
}

// POST /admin/users/:id/demote
func DemoteAdmin(c echo.Context) error {
	if c.Param("id") == c.Get("user_id") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot demote yourself"})
	}
	return setUser(c, `UPDATE users SET role = 'member' WHERE id = $1`, "user demoted to member")
}
