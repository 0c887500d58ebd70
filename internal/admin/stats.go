// Package admin holds the operator views over users, listings, handshakes
// and the ledger.
package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/db"
)

// GET /admin/stats
func Stats(c echo.Context) error {
	ctx := c.Request().Context()

	var users, listings, entries int
	var settled string
	if err := db.Conn.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM users),
		       (SELECT COUNT(*) FROM listings),
		       (SELECT COUNT(*) FROM ledger_entries),
		       (SELECT COALESCE(SUM(hours), 0)::text FROM ledger_entries)
	`).Scan(&users, &listings, &entries, &settled); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not compute stats"})
	}

	byStatus, err := countBy(c, `SELECT status, COUNT(*) FROM handshakes GROUP BY status`)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not count handshakes"})
	}
	listingsByStatus, err := countBy(c, `SELECT status, COUNT(*) FROM listings GROUP BY status`)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not count listings"})
	}
	hours, _ := decimal.NewFromString(settled)

	return c.JSON(http.StatusOK, echo.Map{
		"users":              users,
		"listings":           listings,
		"listings_by_status": listingsByStatus,
		"handshakes":         byStatus,
		"ledger_entries":     entries,
		"hours_settled":      hours,
	})
}

func countBy(c echo.Context, query string) (map[string]int, error) {
	rows, err := db.Conn.Query(c.Request().Context(), query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}
