package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/ports"
	"budget/internal/storage"
	"budget/internal/storage/memory"
)

type itemJSON struct {
	ID        int64     `json:"id"`
	Category  string    `json:"category"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type validationJSON struct {
	Detail []struct {
		Type string   `json:"type"`
		Loc  []string `json:"loc"`
		Msg  string   `json:"msg"`
	} `json:"detail"`
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func newTestServer(t *testing.T, store ports.SessionOpener, opts Options) *Server {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	srv := NewServer(":0", store, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func detailOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[struct {
		Detail string `json:"detail"`
	}](t, rr).Detail
}

func TestRentScenario(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})

	start := time.Now()
	rr := do(t, srv, http.MethodPost, "/items/", `{"category":"rent","amount":1200.0,"type":"expense"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	created := decode[itemJSON](t, rr)
	if created.ID != 1 || created.Currency != "USD" || created.Category != "rent" || created.Amount != 1200 || created.Type != "expense" {
		t.Fatalf("unexpected item: %+v", created)
	}
	if created.CreatedAt.Before(start) {
		t.Fatalf("created_at %v precedes request start %v", created.CreatedAt, start)
	}

	rr = do(t, srv, http.MethodGet, "/items/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}
	if got := decode[itemJSON](t, rr); got != created {
		t.Fatalf("get = %+v, want %+v", got, created)
	}

	rr = do(t, srv, http.MethodDelete, "/items/1", "")
	if rr.Code != http.StatusOK || detailOf(t, rr) != "Item deleted" {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/items/1", "")
	if rr.Code != http.StatusNotFound || detailOf(t, rr) != "Item not found" {
		t.Fatalf("get after delete status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodDelete, "/items/1", "")
	if rr.Code != http.StatusNotFound || detailOf(t, rr) != "Item not found" {
		t.Fatalf("second delete status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateKeepsClientFields(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})

	rr := do(t, srv, http.MethodPost, "/items", `{"category":"salary","amount":"3000.5","currency":"EUR","type":"income","created_at":"2024-03-01T10:00:00+02:00"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[itemJSON](t, rr)
	want := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	if got.Currency != "EUR" || got.Amount != 3000.5 || !got.CreatedAt.Equal(want) {
		t.Fatalf("unexpected item: %+v", got)
	}
	if !strings.Contains(rr.Body.String(), `"created_at":"2024-03-01T08:00:00Z"`) {
		t.Errorf("created_at not rendered in UTC: %s", rr.Body.String())
	}
}

func TestCreateValidation(t *testing.T) {
	store := memory.New()
	srv := newTestServer(t, store, Options{})

	tests := []struct {
		name     string
		body     string
		wantLoc  string
		wantType string
	}{
		{"enum violation", `{"category":"rent","amount":5,"type":"transfer"}`, "body.type", "string_pattern_mismatch"},
		{"missing category", `{"amount":5,"type":"income"}`, "body.category", "missing"},
		{"missing amount", `{"category":"x","type":"income"}`, "body.amount", "missing"},
		{"amount not a number", `{"category":"x","amount":"lots","type":"income"}`, "body.amount", "float_parsing"},
		{"amount wrong type", `{"category":"x","amount":{"value":1},"type":"income"}`, "body.amount", "float_type"},
		{"created_at out of range", `{"category":"x","amount":1,"type":"income","created_at":1e300}`, "body.created_at", "datetime_parsing"},
		{"category not a string", `{"category":7,"amount":1,"type":"income"}`, "body.category", "string_type"},
		{"currency null", `{"category":"x","amount":1,"currency":null,"type":"income"}`, "body.currency", "string_type"},
		{"bad created_at", `{"category":"x","amount":1,"type":"income","created_at":"yesterday"}`, "body.created_at", "datetime_from_date_parsing"},
		{"malformed json", `{"category":`, "body", "json_invalid"},
		{"array body", `[1,2]`, "body", "model_attributes_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/items/", tt.body)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			v := decode[validationJSON](t, rr)
			found := false
			for _, d := range v.Detail {
				if strings.Join(d.Loc, ".") == tt.wantLoc && d.Type == tt.wantType {
					found = true
				}
			}
			if !found {
				t.Errorf("want %s at %s, got %s", tt.wantType, tt.wantLoc, rr.Body.String())
			}
		})
	}

	if store.Len() != 0 {
		t.Fatalf("rejected items were stored: %d", store.Len())
	}
	rr := do(t, srv, http.MethodGet, "/items/", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("list after rejected creates = %s", rr.Body.String())
	}
}

func TestCreateReportsEveryField(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})
	rr := do(t, srv, http.MethodPost, "/items/", `{"type":"gift"}`)
	v := decode[validationJSON](t, rr)
	if len(v.Detail) != 3 {
		t.Fatalf("expected 3 errors, got %s", rr.Body.String())
	}
}

func TestListPaging(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{ListDefaultLimit: 3})
	for i := 0; i < 5; i++ {
		if rr := do(t, srv, http.MethodPost, "/items/", `{"category":"c","amount":1,"type":"expense"}`); rr.Code != http.StatusOK {
			t.Fatalf("seed status=%d", rr.Code)
		}
	}

	ids := func(rr *httptest.ResponseRecorder) []int64 {
		var out []int64
		for _, it := range decode[[]itemJSON](t, rr) {
			out = append(out, it.ID)
		}
		return out
	}

	tests := []struct {
		target string
		want   []int64
	}{
		{"/items/", []int64{1, 2, 3}},
		{"/items/?skip=1&limit=2", []int64{2, 3}},
		{"/items/?skip=3", []int64{4, 5}},
		{"/items/?limit=0", nil},
		{"/items/?skip=10", nil},
		{"/items/?limit=100", []int64{1, 2, 3, 4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.target, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d", rr.Code)
			}
			got := ids(rr)
			if len(got) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("ids = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestMalformedParams(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})

	tests := []struct {
		method, target string
		wantLoc        string
		wantType       string
	}{
		{http.MethodGet, "/items/?skip=abc", "query.skip", "int_parsing"},
		{http.MethodGet, "/items/?limit=-1", "query.limit", "greater_than_equal"},
		{http.MethodGet, "/items/?skip=-5", "query.skip", "greater_than_equal"},
		{http.MethodGet, "/items/abc", "path.item_id", "int_parsing"},
		{http.MethodDelete, "/items/1.5", "path.item_id", "int_parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.target, "")
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status=%d", rr.Code)
			}
			v := decode[validationJSON](t, rr)
			if len(v.Detail) != 1 || strings.Join(v.Detail[0].Loc, ".") != tt.wantLoc || v.Detail[0].Type != tt.wantType {
				t.Fatalf("unexpected detail: %s", rr.Body.String())
			}
		})
	}
}

func TestRoutingErrors(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})

	rr := do(t, srv, http.MethodGet, "/nope", "")
	if rr.Code != http.StatusNotFound || detailOf(t, rr) != "Not Found" {
		t.Fatalf("unknown path status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPut, "/items/1", `{}`)
	if rr.Code != http.StatusMethodNotAllowed || detailOf(t, rr) != "Method Not Allowed" {
		t.Fatalf("wrong method status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	down := newTestServer(t, memory.New(), Options{Pinger: failingPinger{}})
	if rr := do(t, down, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store status=%d", rr.Code)
	}
}

func TestResponseHeaders(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})
	rr := do(t, srv, http.MethodGet, "/items/", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/items/", `{"category":"c","amount":1,"type":"income"}`); rr.Code != http.StatusOK {
			t.Fatalf("write %d status=%d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodDelete, "/items/1", "")
	if rr.Code != http.StatusTooManyRequests || detailOf(t, rr) != "Rate limit exceeded" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rr := do(t, srv, http.MethodGet, "/items/1", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, status=%d", rr.Code)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

type failingOpener struct{}

func (failingOpener) OpenSession(context.Context) (ports.ItemSession, error) {
	return nil, errors.New("pool exhausted")
}

type brokenSession struct{ closed *bool }

func (brokenSession) Insert(context.Context, core.ItemInput) (core.BudgetItem, error) {
	return core.BudgetItem{}, errors.New("disk full")
}
func (brokenSession) List(context.Context, int, int) ([]core.BudgetItem, error) {
	return nil, errors.New("disk full")
}
func (brokenSession) Get(context.Context, int64) (core.BudgetItem, error) {
	return core.BudgetItem{}, errors.New("disk full")
}
func (brokenSession) Delete(context.Context, int64) error { return errors.New("disk full") }
func (s brokenSession) Close() error {
	*s.closed = true
	return nil
}

type brokenOpener struct{ closed *bool }

func (o brokenOpener) OpenSession(context.Context) (ports.ItemSession, error) {
	return brokenSession{closed: o.closed}, nil
}

func TestWritesUnlimitedByDefault(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})
	for i := 0; i < 150; i++ {
		if rr := do(t, srv, http.MethodPost, "/items/", `{"category":"c","amount":1,"type":"income"}`); rr.Code != http.StatusOK {
			t.Fatalf("write %d status=%d", i, rr.Code)
		}
	}
}

func TestTrustedProxyForwardedClients(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{
		RateLimitPerMinute: 1,
		TrustedProxies:     []string{"203.0.113.0/24", "bogus"},
	})

	post := func(forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/items/", strings.NewReader(`{"category":"c","amount":1,"type":"income"}`))
		req.RemoteAddr = "203.0.113.9:4000"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := post("198.51.100.1"); code != http.StatusOK {
		t.Fatalf("first client status=%d", code)
	}
	if code := post("198.51.100.2"); code != http.StatusOK {
		t.Fatalf("second client behind the proxy was limited, status=%d", code)
	}
	if code := post("198.51.100.1"); code != http.StatusTooManyRequests {
		t.Fatalf("repeat client status=%d, want 429", code)
	}
}

func TestStorageFaults(t *testing.T) {
	srv := newTestServer(t, failingOpener{}, Options{})
	rr := do(t, srv, http.MethodGet, "/items/", "")
	if rr.Code != http.StatusInternalServerError || detailOf(t, rr) != "Internal Server Error" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	closed := false
	srv = newTestServer(t, brokenOpener{closed: &closed}, Options{})
	for _, tc := range []struct{ method, target, body string }{
		{http.MethodPost, "/items/", `{"category":"c","amount":1,"type":"income"}`},
		{http.MethodGet, "/items/", ""},
		{http.MethodGet, "/items/1", ""},
		{http.MethodDelete, "/items/1", ""},
	} {
		closed = false
		rr := do(t, srv, tc.method, tc.target, tc.body)
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("%s %s status=%d", tc.method, tc.target, rr.Code)
		}
		if !closed {
			t.Errorf("%s %s did not release its session", tc.method, tc.target)
		}
	}
}

func TestValidationNeverOpensSession(t *testing.T) {
	srv := newTestServer(t, failingOpener{}, Options{})
	rr := do(t, srv, http.MethodPost, "/items/", `{"category":"c","amount":1,"type":"nope"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, validation must run before storage", rr.Code)
	}
}

func TestBodyTooLarge(t *testing.T) {
	srv := newTestServer(t, memory.New(), Options{})
	big := `{"category":"` + strings.Repeat("a", maxBodyBytes) + `","amount":1,"type":"income"}`
	if rr := do(t, srv, http.MethodPost, "/items/", big); rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d", rr.Code)
	}
}

func openSQLite(t *testing.T) *storage.Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "budget.db")
	repo, err := storage.Open(context.Background(), storage.Options{Dialect: storage.SQLite, DSN: path})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestNumericCreatedAt(t *testing.T) {
	stores := map[string]func(t *testing.T) ports.SessionOpener{
		"memory": func(*testing.T) ports.SessionOpener { return memory.New() },
		"sqlite": func(t *testing.T) ports.SessionOpener { return openSQLite(t) },
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, open(t), Options{})

			rr := do(t, srv, http.MethodPost, "/items/", `{"category":"x","amount":1,"type":"income","created_at":1e12}`)
			if rr.Code != http.StatusOK {
				t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
			}
			want := time.Date(2001, 9, 9, 1, 46, 40, 0, time.UTC)
			if got := decode[itemJSON](t, rr); !got.CreatedAt.Equal(want) {
				t.Fatalf("created_at = %v, want %v", got.CreatedAt, want)
			}

			rr = do(t, srv, http.MethodPost, "/items/", `{"category":"x","amount":1,"type":"income","created_at":1e300}`)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("out of range status=%d body=%s", rr.Code, rr.Body.String())
			}

			rr = do(t, srv, http.MethodGet, "/items/", "")
			if rr.Code != http.StatusOK {
				t.Fatalf("list status=%d body=%s", rr.Code, rr.Body.String())
			}
			if items := decode[[]itemJSON](t, rr); len(items) != 1 {
				t.Fatalf("expected 1 item, got %s", rr.Body.String())
			}
		})
	}
}

func TestEndToEndSQLite(t *testing.T) {
	srv := newTestServer(t, openSQLite(t), Options{})

	rr := do(t, srv, http.MethodPost, "/items/", `{"category":"rent","amount":1200.0,"type":"expense"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[itemJSON](t, rr)
	if created.ID != 1 || created.Currency != "USD" {
		t.Fatalf("unexpected item: %+v", created)
	}

	rr = do(t, srv, http.MethodGet, "/items/1", "")
	if got := decode[itemJSON](t, rr); got != created {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", got, created)
	}

	if rr := do(t, srv, http.MethodGet, "/readyz", ""); rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", rr.Code)
	}

	if rr := do(t, srv, http.MethodDelete, "/items/1", ""); rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/items/1", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
}
