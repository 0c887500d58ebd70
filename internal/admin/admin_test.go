package admin

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/engine"
	"github.com/sudo-init-do/timebank/internal/store/memory"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

func TestAdminClosesAnyListing(t *testing.T) {
	eng := engine.New(memory.New(), engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	l, err := eng.CreateListing(context.Background(), engine.ListingInput{
		CreatorID: "owen", Type: timebank.ListingNeed, Title: "Garden help", Capacity: 2, Hours: decimal.NewFromInt(3),
	})
	if err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(l.ID)
	c.Set("user_id", "root")
	if err := NewHandler(eng).CloseListing(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	got, err := eng.GetListing(context.Background(), l.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != timebank.ListingClosed {
		t.Fatalf("status = %s", got.Status)
	}
	if ok, _ := eng.IsAcceptingProposals(context.Background(), l.ID); ok {
		t.Fatal("closed listing still accepts proposals")
	}
}

func TestAdminCloseUnknownListing(t *testing.T) {
	eng := engine.New(memory.New(), engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")
	if err := NewHandler(eng).CloseListing(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
