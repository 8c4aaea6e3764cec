package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(requests int) (*Limiter, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{Requests: requests, Window: time.Minute})
	rl.now = c.now
	return rl, c
}

func TestAllowWithinWindow(t *testing.T) {
	rl, c := newTestLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("fourth request should be rejected")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatal("other clients have their own budget")
	}
	if got := rl.Hits(); got != 1 {
		t.Fatalf("Hits() = %d, want 1", got)
	}

	c.advance(30 * time.Second)
	if got := rl.RetryAfter("1.2.3.4"); got != 30 {
		t.Fatalf("RetryAfter() = %d, want 30", got)
	}

	c.advance(30 * time.Second)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("a new window should reset the budget")
	}
}

func TestSweepForgetsIdleClients(t *testing.T) {
	rl, c := newTestLimiter(5)
	defer rl.Stop()

	rl.Allow("a")
	c.advance(5 * time.Minute)
	rl.Allow("b")
	c.advance(6 * time.Minute)

	if removed := rl.Sweep(); removed != 1 {
		t.Fatalf("Sweep() = %d, want 1", removed)
	}
	if got := rl.ActiveClients(); got != 1 {
		t.Fatalf("ActiveClients() = %d, want 1", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(Config{Requests: 1, Window: time.Minute, CleanupInterval: time.Millisecond})
	rl.Stop()
	rl.Stop()
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(1)
	defer rl.Stop()

	onlyPost := func(r *http.Request) bool { return r.Method == http.MethodPost }
	ip := func(*http.Request) string { return "10.0.0.1" }
	h := rl.Middleware(ip, onlyPost, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(method string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/", nil))
		return rr
	}

	if rr := do(http.MethodPost); rr.Code != http.StatusNoContent {
		t.Fatalf("first POST status = %d", rr.Code)
	}
	rr := do(http.MethodPost)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
	for i := 0; i < 5; i++ {
		if rr := do(http.MethodGet); rr.Code != http.StatusNoContent {
			t.Fatalf("GET should bypass the limiter, got %d", rr.Code)
		}
	}
}
