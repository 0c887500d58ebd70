package marketplace

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/timebank/internal/engine"
	"github.com/sudo-init-do/timebank/internal/store/memory"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

type api struct {
	t *testing.T
	e *echo.Echo
}

func newAPI(t *testing.T) *api {
	t.Helper()
	eng := engine.New(memory.New(), engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	e := echo.New()
	g := e.Group("", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if u := c.Request().Header.Get("X-Test-User"); u != "" {
				c.Set("user_id", u)
			}
			return next(c)
		}
	})
	NewHandler(eng).Register(g)
	return &api{t: t, e: e}
}

func (a *api) do(method, path, user, body string) (int, map[string]any) {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			a.t.Fatalf("%s %s: bad json %q", method, path, rec.Body.String())
		}
	}
	return rec.Code, out
}

func (a *api) mustDo(method, path, user, body string, want int) map[string]any {
	a.t.Helper()
	code, out := a.do(method, path, user, body)
	if code != want {
		a.t.Fatalf("%s %s as %s: status %d, want %d (%v)", method, path, user, code, want, out)
	}
	return out
}

func TestHandshakeLifecycleOverHTTP(t *testing.T) {
	a := newAPI(t)

	listing := a.mustDo(http.MethodPost, "/listings", "owen",
		`{"type":"offer","title":"Piano lessons","capacity":1,"hours":"1.5"}`, http.StatusCreated)
	lid := listing["id"].(string)

	hs := a.mustDo(http.MethodPost, "/listings/"+lid+"/handshakes", "alice", `{"message":"keen to learn"}`, http.StatusCreated)
	hid := hs["id"].(string)
	if hs["status"] != string(timebank.StatusPending) {
		t.Fatalf("status = %v", hs["status"])
	}

	a.mustDo(http.MethodPost, "/listings/"+lid+"/handshakes", "alice", `{}`, http.StatusConflict)
	a.mustDo(http.MethodPost, "/listings/"+lid+"/handshakes", "owen", `{}`, http.StatusUnprocessableEntity)
	a.mustDo(http.MethodPost, "/handshakes/"+hid+"/accept", "alice", "", http.StatusForbidden)
	a.mustDo(http.MethodPost, "/handshakes/"+hid+"/confirm", "alice", "", http.StatusUnprocessableEntity)

	acc := a.mustDo(http.MethodPost, "/handshakes/"+hid+"/accept", "owen", "", http.StatusOK)
	if acc["provider_id"] != "owen" || acc["requester_id"] != "alice" {
		t.Fatalf("roles not resolved: %v", acc)
	}
	a.mustDo(http.MethodPost, "/handshakes/"+hid+"/accept", "owen", `{"hours":"3"}`, http.StatusConflict)
	a.mustDo(http.MethodPost, "/handshakes/"+hid+"/decline", "alice", "", http.StatusConflict)

	part := a.mustDo(http.MethodPost, "/handshakes/"+hid+"/confirm", "alice", "", http.StatusOK)
	if part["outcome"] != "partially_confirmed" {
		t.Fatalf("outcome = %v", part["outcome"])
	}
	done := a.mustDo(http.MethodPost, "/handshakes/"+hid+"/confirm", "owen", "", http.StatusOK)
	if done["outcome"] != "fully_completed" || done["entry"] == nil {
		t.Fatalf("expected completion, got %v", done)
	}

	rating := a.mustDo(http.MethodGet, "/handshakes/"+hid+"/rating", "alice", "", http.StatusOK)
	if rating["can_rate"] != true {
		t.Fatalf("alice should be able to rate: %v", rating)
	}
	a.mustDo(http.MethodPost, "/handshakes/"+hid+"/rating", "alice",
		`{"scores":{"quality":5,"punctuality":4},"comment":"lovely"}`, http.StatusCreated)
	a.mustDo(http.MethodPost, "/handshakes/"+hid+"/rating", "alice", `{"scores":{"quality":5}}`, http.StatusConflict)
	a.mustDo(http.MethodPost, "/handshakes/"+hid+"/rating", "owen", `{"scores":{"speed":5}}`, http.StatusBadRequest)

	got := a.mustDo(http.MethodGet, "/listings/"+lid, "", "", http.StatusOK)
	if got["status"] != string(timebank.ListingFilled) {
		t.Fatalf("listing status = %v", got["status"])
	}
}

func TestHandshakeViews(t *testing.T) {
	a := newAPI(t)
	listing := a.mustDo(http.MethodPost, "/listings", "nora",
		`{"type":"need","title":"Move a sofa","capacity":2,"hours":2}`, http.StatusCreated)
	lid := listing["id"].(string)
	a.mustDo(http.MethodPost, "/listings/"+lid+"/handshakes", "bob", `{"listing_type":"need"}`, http.StatusCreated)
	a.mustDo(http.MethodPost, "/listings/"+lid+"/handshakes", "carl", `{"listing_type":"offer"}`, http.StatusNotFound)

	owner := a.mustDo(http.MethodGet, "/listings/"+lid+"/handshakes?status=pending", "nora", "", http.StatusOK)
	if n := len(owner["handshakes"].([]any)); n != 1 {
		t.Fatalf("owner sees %d handshakes", n)
	}
	a.mustDo(http.MethodGet, "/listings/"+lid+"/handshakes", "bob", "", http.StatusForbidden)
	a.mustDo(http.MethodGet, "/listings/"+lid+"/handshakes?status=bogus", "nora", "", http.StatusBadRequest)

	mine := a.mustDo(http.MethodGet, "/handshakes/me?status=pending,accepted", "bob", "", http.StatusOK)
	if n := len(mine["handshakes"].([]any)); n != 1 {
		t.Fatalf("bob sees %d handshakes", n)
	}
	empty := a.mustDo(http.MethodGet, "/handshakes/me", "zed", "", http.StatusOK)
	if n := len(empty["handshakes"].([]any)); n != 0 {
		t.Fatalf("zed sees %d handshakes", n)
	}

	a.mustDo(http.MethodGet, "/handshakes/missing", "bob", "", http.StatusNotFound)
	a.mustDo(http.MethodPost, "/listings/missing/handshakes", "bob", `{}`, http.StatusNotFound)
	a.mustDo(http.MethodGet, "/handshakes/me", "", "", http.StatusUnauthorized)
}

func TestListingValidationAndClose(t *testing.T) {
	a := newAPI(t)
	a.mustDo(http.MethodPost, "/listings", "owen", `{"type":"offer","title":"x","capacity":0,"hours":1}`, http.StatusBadRequest)
	a.mustDo(http.MethodPost, "/listings", "owen", `{"type":"gift","title":"x","capacity":1,"hours":1}`, http.StatusBadRequest)
	a.mustDo(http.MethodPost, "/listings", "owen", `{"type":"offer","title":"x","capacity":1,"hours":0}`, http.StatusBadRequest)

	l := a.mustDo(http.MethodPost, "/listings", "owen", `{"type":"offer","title":"Yoga","capacity":3,"hours":1}`, http.StatusCreated)
	lid := l["id"].(string)
	a.mustDo(http.MethodPost, "/listings/"+lid+"/close", "alice", "", http.StatusForbidden)
	a.mustDo(http.MethodPost, "/listings/"+lid+"/close", "owen", "", http.StatusOK)
	a.mustDo(http.MethodPost, "/listings/"+lid+"/handshakes", "alice", `{}`, http.StatusNotFound)

	list := a.mustDo(http.MethodGet, "/listings", "", "", http.StatusOK)
	if n := len(list["listings"].([]any)); n != 0 {
		t.Fatalf("closed listing should not be listed as active, got %d", n)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := map[error]int{
		timebank.ErrListingFull:       http.StatusConflict,
		timebank.ErrHandshakeNotFound: http.StatusNotFound,
		timebank.ErrSelfProposal:      http.StatusUnprocessableEntity,
		timebank.ErrUnauthorized:      http.StatusForbidden,
		timebank.ErrInvalidInput:      http.StatusBadRequest,
		io.ErrUnexpectedEOF:           http.StatusInternalServerError,
	}
	for err, want := range tests {
		if got := ErrorStatus(err); got != want {
			t.Errorf("%v: got %d, want %d", err, got, want)
		}
	}
}
