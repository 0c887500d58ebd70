package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/marketplace"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

// Transaction is one ledger entry seen from a single user's side.
type Transaction struct {
	timebank.LedgerEntry
	Direction string          `json:"direction"` // credit|debit
	Delta     decimal.Decimal `json:"delta"`
}

func asTransactions(userID string, entries []timebank.LedgerEntry) []Transaction {
	txs := make([]Transaction, 0, len(entries))
	for _, e := range entries {
		t := Transaction{LedgerEntry: e, Direction: "credit", Delta: e.Hours}
		if e.FromUserID == userID {
			t.Direction = "debit"
			t.Delta = e.Hours.Neg()
		}
		txs = append(txs, t)
	}
	return txs
}

// Transactions returns the settled exchanges the user took part in.
func (h *Handler) Transactions(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized or invalid user"})
	}
	entries, err := h.eng.LedgerEntries(c.Request().Context(), uid)
	if err != nil {
		return marketplace.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": asTransactions(uid, entries)})
}
