package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/timebank/internal/utils"
)

// JWTMiddleware validates the bearer token and stores user_id and role on
// the context for handlers.
func JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenStr, ok := bearerToken(c.Request())
		if !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing or malformed Authorization header"})
		}
		claims, err := utils.ParseToken(tokenStr)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		return next(c)
	}
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter for websocket upgrades.
func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if h == "" {
		if q := r.URL.Query().Get("access_token"); q != "" && r.Header.Get("Upgrade") != "" {
			return q, true
		}
		return "", false
	}
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return h[len(prefix):], true
}
