package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRoles rejects callers whose role claim is not one of roles.
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if role == "" {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "role missing"})
			}
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
		}
	}
}

// ActiveOnly rejects suspended accounts. isActive is looked up per request
// so suspensions apply to tokens that are already issued.
func ActiveOnly(isActive func(c echo.Context, userID string) (bool, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, _ := c.Get("user_id").(string)
			ok, err := isActive(c, userID)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check account"})
			}
			if !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "account suspended"})
			}
			return next(c)
		}
	}
}
