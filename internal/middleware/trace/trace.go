// Package trace tags every request with an id and records its outcome.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"
)

// ContextKey type for context keys
type ContextKey string

// RequestIDKey is the context key for request ID
const RequestIDKey ContextKey = "request_id"

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// Metrics is a snapshot of the request counters.
type Metrics struct {
	TotalRequests int64 `json:"total_requests"`
	ServerErrors  int64 `json:"server_errors"`
	// LastDurationMicros is the duration of the most recent request.
	LastDurationMicros int64 `json:"last_duration_us"`
}

// Tracer assigns request ids and counts completed requests.
type Tracer struct {
	total    atomic.Int64
	errors   atomic.Int64
	duration atomic.Int64
	onEnd    func(r *http.Request, status int, d time.Duration)
}

// New returns a Tracer. onEnd, when set, is called after each request with
// the request as seen by the handler.
func New(onEnd func(r *http.Request, status int, d time.Duration)) *Tracer {
	return &Tracer{onEnd: onEnd}
}

// Middleware returns HTTP middleware for request tracing
func (t *Tracer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(requestID) {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)
		r = r.WithContext(WithRequestID(r.Context(), requestID))

		rw := NewStatusRecorder(w)
		next.ServeHTTP(rw, r)

		d := time.Since(start)
		t.total.Add(1)
		t.duration.Store(d.Microseconds())
		if rw.Status() >= 500 {
			t.errors.Add(1)
		}
		if t.onEnd != nil {
			t.onEnd(r, rw.Status(), d)
		}
	})
}

// Metrics returns the current counters.
func (t *Tracer) Metrics() Metrics {
	return Metrics{
		TotalRequests:      t.total.Load(),
		ServerErrors:       t.errors.Load(),
		LastDurationMicros: t.duration.Load(),
	}
}

// StatusRecorder wraps http.ResponseWriter to capture the status code
type StatusRecorder struct {
	http.ResponseWriter
	status int
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *StatusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Status is the code written so far, 200 if none was written explicitly.
func (rw *StatusRecorder) Status() int { return rw.status }

func (rw *StatusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestID reads the id the tracer assigned to r.
func RequestID(r *http.Request) string {
	return GetRequestID(r.Context())
}
