package wallet

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/db"
	"github.com/sudo-init-do/timebank/internal/marketplace"
)

// AdminAccount is a ledger account row with the owner's name.
type AdminAccount struct {
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AdminListAccounts returns every ledger account, largest balances first.
func AdminListAccounts(c echo.Context) error {
	rows, err := db.Conn.Query(c.Request().Context(),
		`SELECT a.user_id::text, u.name, u.email, a.balance::text, a.updated_at
		 FROM ledger_accounts a
		 JOIN users u ON u.id = a.user_id
		 ORDER BY a.balance DESC`,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch accounts"})
	}
	defer rows.Close()

	accounts := []AdminAccount{}
	total := decimal.Zero
	for rows.Next() {
		var a AdminAccount
		var raw string
		if err := rows.Scan(&a.UserID, &a.Name, &a.Email, &raw, &a.UpdatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read account"})
		}
		a.Balance, _ = decimal.NewFromString(raw)
		total = total.Add(a.Balance)
		accounts = append(accounts, a)
	}
	// total is zero on a consistent ledger.
	return c.JSON(http.StatusOK, echo.Map{"accounts": accounts, "total": total})
}

// AdminEntry is a ledger entry row for the admin feed.
type AdminEntry struct {
	ID          string          `json:"id"`
	FromUserID  string          `json:"from_user_id"`
	ToUserID    string          `json:"to_user_id"`
	Hours       decimal.Decimal `json:"hours"`
	HandshakeID string          `json:"handshake_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AdminListEntries returns the newest ledger entries (?limit=, ?offset=).
func AdminListEntries(c echo.Context) error {
	limit, offset := 50, 0
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}

	rows, err := db.Conn.Query(c.Request().Context(),
		`SELECT id::text, from_user_id::text, to_user_id::text, hours::text, handshake_id::text, created_at
		 FROM ledger_entries
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch entries"})
	}
	defer rows.Close()

	entries := []AdminEntry{}
	for rows.Next() {
		var e AdminEntry
		var raw string
		if err := rows.Scan(&e.ID, &e.FromUserID, &e.ToUserID, &raw, &e.HandshakeID, &e.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read entry"})
		}
		e.Hours, _ = decimal.NewFromString(raw)
		entries = append(entries, e)
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries, "limit": limit, "offset": offset})
}

// AdminUserTransactions returns one user's ledger history (admin view).
func (h *Handler) AdminUserTransactions(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user ID is required"})
	}
	entries, err := h.eng.LedgerEntries(c.Request().Context(), userID)
	if err != nil {
		return marketplace.RespondError(c, err)
	}
	balance, err := h.eng.GetLedgerBalance(c.Request().Context(), userID)
	if err != nil {
		return marketplace.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":      userID,
		"balance":      balance,
		"transactions": asTransactions(userID, entries),
	})
}
