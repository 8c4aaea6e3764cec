package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"saldo/internal/core"
	"saldo/internal/format"
	"saldo/internal/kv/memory"
	"saldo/internal/ledger"
	"saldo/internal/middleware/trace"
	"saldo/internal/services"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := ledger.New(memory.New(),
		ledger.WithIDGenerator(ledger.NewSequenceIDs(1)),
		ledger.WithTaxonomy(core.DefaultTaxonomy()),
		ledger.WithLogger(quiet))
	svc := services.NewLedgerService(store, format.Must(format.DefaultConfig()), services.WithLogger(quiet))
	svc.Open(context.Background())

	srv := NewServer(":0", svc, nil, opts...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = "203.0.113.10:4000"
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

const (
	paycheck = `{"text":"Paycheck","amount":1500.00,"category":"Salary","date":"2024-01-05"}`
	rent     = `{"text":"Rent","amount":"-1,200.00","category":"Housing","date":"2024-01-01"}`
)

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", rr.Body.String())
	}
	if rr.Header().Get(trace.HeaderRequestID) == "" {
		t.Fatal("missing request id header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}
}

func TestEmptyLedger(t *testing.T) {
	srv := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/api/ledger", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	res := decode[services.Result](t, rr)
	if res.Balance != "$0.00" || res.EmptyMessage != services.EmptyMessage {
		t.Fatalf("unexpected empty view: %+v", res)
	}
	if !strings.Contains(rr.Body.String(), `"distribution":[]`) {
		t.Fatalf("distribution should encode as an empty list: %s", rr.Body.String())
	}
}

func TestCreateAndList(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []string{paycheck, rent} {
		rr := do(t, srv, http.MethodPost, "/api/transactions", body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("create status = %d body = %s", rr.Code, rr.Body.String())
		}
	}

	res := decode[services.Result](t, do(t, srv, http.MethodGet, "/api/ledger", ""))
	if res.Balance != "$300.00" || res.Income != "$1,500.00" || res.Expense != "$1,200.00" {
		t.Fatalf("totals = %s %s %s", res.Balance, res.Income, res.Expense)
	}
	if len(res.Transactions) != 2 || res.Transactions[0].Text != "Paycheck" {
		t.Fatalf("listing = %+v", res.Transactions)
	}
	if len(res.Distribution) != 1 || res.Distribution[0].Name != "Housing" {
		t.Fatalf("distribution = %+v", res.Distribution)
	}

	res = decode[services.Result](t, do(t, srv, http.MethodGet, "/api/ledger?q=rent", ""))
	if len(res.Transactions) != 1 || res.Transactions[0].Text != "Rent" || res.SearchTerm != "rent" {
		t.Fatalf("search = %+v", res)
	}
	// totals always cover the whole ledger
	if res.Balance != "$300.00" {
		t.Fatalf("search balance = %s", res.Balance)
	}
}

func TestTransactionRequestAmount(t *testing.T) {
	tests := []struct {
		notation core.Notation
		raw      string
		want     string
	}{
		{core.DotDecimal, `1500.25`, "1500.25"},
		{core.DotDecimal, `"1,500.25"`, "1,500.25"},
		{core.CommaDecimal, `-1200.5`, "-1200,5"},
		{core.CommaDecimal, `"-1.200,50"`, "-1.200,50"},
		{core.CommaDecimal, `null`, ""},
		{core.DotDecimal, `true`, "true"},
	}
	for _, tt := range tests {
		req := transactionRequest{Amount: json.RawMessage(tt.raw)}
		in := req.input(tt.notation)
		if in.Amount != tt.want {
			t.Errorf("%s in %+v: Amount = %q, want %q", tt.raw, tt.notation, in.Amount, tt.want)
		}
		if tt.want == "" || tt.want == "true" {
			continue
		}
		if _, err := tt.notation.ParseAmount(in.Amount); err != nil {
			t.Errorf("%s in %+v: %q does not parse: %v", tt.raw, tt.notation, in.Amount, err)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/transactions",
		`{"text":"","amount":"abc","category":"Nope","date":"2024-13-01"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decode[errorResponse](t, rr)
	for _, field := range []string{"text", "amount", "category", "date"} {
		if body.Fields[field] == "" {
			t.Errorf("missing field error for %s: %+v", field, body.Fields)
		}
	}

	res := decode[services.Result](t, do(t, srv, http.MethodGet, "/api/ledger", ""))
	if len(res.Transactions) != 0 {
		t.Fatalf("invalid input changed the ledger: %+v", res.Transactions)
	}
}

func TestCreateRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name string
		body string
		code int
	}{
		{"not json", `{`, http.StatusBadRequest},
		{"unknown field", `{"text":"x","amount":1,"category":"Food","date":"2024-01-01","extra":1}`, http.StatusBadRequest},
		{"too large", `{"text":"` + strings.Repeat("a", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, srv, http.MethodPost, "/api/transactions", tt.body); rr.Code != tt.code {
				t.Fatalf("status = %d, want %d", rr.Code, tt.code)
			}
		})
	}
}

func TestGetUpdateDelete(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/transactions", paycheck)

	rr := do(t, srv, http.MethodGet, "/api/transactions/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	got := decode[transactionResponse](t, rr)
	if got.Transaction.Text != "Paycheck" || got.Row.Amount != "$1,500.00" || got.Row.Date != "1/5/2024" {
		t.Fatalf("get = %+v", got)
	}

	rr = do(t, srv, http.MethodPut, "/api/transactions/1",
		`{"text":"Bonus","amount":"200","category":"Salary","date":"2024-02-01"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d body = %s", rr.Code, rr.Body.String())
	}
	res := decode[services.Result](t, rr)
	if res.Affected == nil || res.Affected.ID != 1 || res.Affected.Text != "Bonus" {
		t.Fatalf("affected = %+v", res.Affected)
	}

	if rr := do(t, srv, http.MethodPut, "/api/transactions/99", rent); rr.Code != http.StatusNotFound {
		t.Fatalf("update missing status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/transactions/99", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("get missing status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/transactions/abc", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rr.Code)
	}

	rr = do(t, srv, http.MethodDelete, "/api/transactions/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if res := decode[services.Result](t, rr); !res.Removed || len(res.Transactions) != 0 {
		t.Fatalf("delete result = %+v", res)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/transactions/1", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rr.Code)
	}
}

func TestCategories(t *testing.T) {
	srv := newTestServer(t)
	got := decode[categoriesResponse](t, do(t, srv, http.MethodGet, "/api/categories", ""))
	if len(got.Income) != 5 || len(got.Expense) != 8 || len(got.All) != 12 {
		t.Fatalf("categories = %+v", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)
	if rr := do(t, srv, http.MethodPatch, "/api/ledger", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRateLimitOnlyCountsMutations(t *testing.T) {
	srv := newTestServer(t, WithRateLimit(2))

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/api/transactions", paycheck); rr.Code != http.StatusCreated {
			t.Fatalf("create %d status = %d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/api/transactions", paycheck)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if rr := do(t, srv, http.MethodGet, "/api/ledger", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads should not be limited, got %d", rr.Code)
	}
	if m := srv.Metrics(); m.TotalRequests != 4 {
		t.Fatalf("metrics = %+v", m)
	}
}
