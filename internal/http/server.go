// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/middleware/trace"
	"saldo/internal/services"
)

// maxBodyBytes bounds request bodies. A transaction is a few hundred bytes.
const maxBodyBytes = 64 << 10

// Server serves the ledger API over a single LedgerService.
type Server struct {
	http.Server

	svc      *services.LedgerService
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Tracer
	headers  security.HeadersConfig

	shutdownOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit caps mutating requests per client IP and minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{
			Requests:        perMinute,
			Window:          time.Minute,
			CleanupInterval: 5 * time.Minute,
		})
	}
}

// WithHeaders replaces the default security headers.
func WithHeaders(cfg security.HeadersConfig) Option {
	return func(s *Server) { s.headers = cfg }
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc *services.LedgerService, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		svc:      svc,
		logger:   logger.WithComponent(log.ComponentHTTP),
		detector: security.NewDetector(),
		headers:  security.DefaultHeadersConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	s.tracer = trace.New(s.logEnd)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/ledger", s.handleLedger)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("POST /api/transactions", s.handleCreate)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGet)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDelete)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.chain(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// chain wraps h so that tracing runs first and rate limiting last.
func (s *Server) chain(h http.Handler) http.Handler {
	h = s.limiter.Middleware(s.detector.ClientIP, isMutation, s.rateLimited)(h)
	h = s.detector.Middleware(s.logSuspicious)(h)
	h = security.Headers(s.headers)(h)
	h = s.logStart(h)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = log.Middleware(s.logger)(h)
	return s.tracer.Middleware(h)
}

func isMutation(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

func (s *Server) logStart(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log.NewStructuredLogger(log.FromContext(ctx)).LogHTTPStart(ctx, r, s.detector.ClientIP(r))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logEnd(r *http.Request, status int, d time.Duration) {
	logger := s.logger.With(log.FieldRequestID, trace.RequestID(r))
	log.NewStructuredLogger(logger).LogHTTPEnd(r.Context(), r, status, d.Milliseconds(), s.detector.ClientIP(r))
}

func (s *Server) logSuspicious(r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldUserAgent, r.Header.Get("User-Agent"))
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later", nil)
}

// Metrics returns the request counters.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.Metrics()
}

// Shutdown stops the limiter sweep and gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
