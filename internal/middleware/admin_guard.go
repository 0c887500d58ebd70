package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Roles carried in the JWT role claim.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// AdminGuard gates the operator routes: listing close, ledger inspection and
// user management. It must run after JWTMiddleware.
func AdminGuard(next echo.HandlerFunc) echo.HandlerFunc {
	adminOnly := RequireRoles(RoleAdmin)(next)
	return func(c echo.Context) error {
		if userID, _ := c.Get("user_id").(string); userID == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return adminOnly(c)
	}
}
