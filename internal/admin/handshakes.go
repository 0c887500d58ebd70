package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/db"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

type AdminHandshake struct {
	ID          string          `json:"id"`
	ListingID   string          `json:"listing_id"`
	ApplicantID string          `json:"applicant_id"`
	OwnerID     string          `json:"owner_id"`
	Status      string          `json:"status"`
	Hours       decimal.Decimal `json:"hours"`
	CreatedAt   time.Time       `json:"created_at"`
	DecidedAt   *time.Time      `json:"decided_at,omitempty"`
}

// GET /admin/handshakes?status=
func ListHandshakes(c echo.Context) error {
	status := c.QueryParam("status")
	if status != "" && !timebank.HandshakeStatus(status).Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	limit := 100
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}

	rows, err := db.Conn.Query(c.Request().Context(), `
		SELECT id::text, listing_id::text, applicant_id::text, owner_id::text,
		       status, hours::text, created_at, decided_at
		FROM handshakes
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY created_at DESC
		LIMIT $2`, status, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch handshakes"})
	}
	defer rows.Close()

	items := []AdminHandshake{}
	for rows.Next() {
		var h AdminHandshake
		var hours string
		if err := rows.Scan(&h.ID, &h.ListingID, &h.ApplicantID, &h.OwnerID, &h.Status, &hours, &h.CreatedAt, &h.DecidedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read handshake record"})
		}
		h.Hours, _ = decimal.NewFromString(hours)
		items = append(items, h)
	}
	return c.JSON(http.StatusOK, echo.Map{"handshakes": items})
}
