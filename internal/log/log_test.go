package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"saldo/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestWithTransactionFields(t *testing.T) {
	tx := core.Transaction{
		ID:       3,
		Text:     "Rent",
		Amount:   core.MustMoney("-1200.00"),
		Category: "Housing",
		Date:     core.MustDate("2024-01-01"),
	}
	f := NewFields().WithTransaction(tx).WithError(nil)
	if f[FieldAmount] != "-1200" || f[FieldDate] != "2024-01-01" || f[FieldTransactionID] != int64(3) {
		t.Fatalf("unexpected fields %v", f)
	}
	if _, ok := f[FieldError]; ok {
		t.Fatal("nil error must not add a field")
	}
}

func TestMiddlewareCarriesLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Output: &buf, Component: ComponentHTTP})

	var got *Logger
	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
			got.Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got == nil || got.Component() != ComponentHTTP {
		t.Fatalf("logger not propagated: %+v", got)
	}
	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Fatalf("request id missing from %q", buf.String())
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger %+v", l)
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, Output: &buf}))
	r := httptest.NewRequest(http.MethodPost, "/api/transactions", nil)

	sl.LogHTTPEnd(context.Background(), r, 400, 3, "127.0.0.1")
	sl.LogHTTPEnd(context.Background(), r, 500, 3, "127.0.0.1")
	sl.LogError(context.Background(), "Write failed", errors.New("disk full"), ComponentStorage, OpPersist, nil)

	out := buf.String()
	for _, want := range []string{"level=WARN", "level=ERROR", "status_code=500", "error=\"disk full\"", "operation=persist"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}
