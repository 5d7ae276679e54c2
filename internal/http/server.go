package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/ports"
)

const defaultListLimit = 100

// Options tunes a Server. Zero values pick the documented defaults.
type Options struct {
	// RateLimitPerMinute caps POST and DELETE per client; zero disables it.
	RateLimitPerMinute int
	ListDefaultLimit   int
	// TrustedProxies are CIDRs whose forwarding headers name the client.
	TrustedProxies []string
	Logger         *log.Logger
	// Pinger backs /readyz; when nil the store is used if it can ping.
	Pinger       ports.Pinger
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type Server struct {
	http.Server
	store            ports.SessionOpener
	pinger           ports.Pinger
	logger           *log.Logger
	items            *log.StructuredLogger
	rateLimiter      *ratelimit.Limiter
	listDefaultLimit int

	shutdownOnce sync.Once
}

// NewServer wires the item routes behind the middleware chain.
func NewServer(addr string, store ports.SessionOpener, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	pinger := opts.Pinger
	if pinger == nil {
		pinger, _ = store.(ports.Pinger)
	}
	limit := opts.ListDefaultLimit
	if limit <= 0 {
		limit = defaultListLimit
	}

	s := &Server{
		store:            store,
		pinger:           pinger,
		logger:           logger.WithComponent(log.ComponentHTTP),
		items:            log.NewStructuredLogger(logger.WithComponent(log.ComponentItems)),
		listDefaultLimit: limit,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			Methods:           []string{http.MethodPost, http.MethodDelete},
		}),
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, r, NotFoundError("Not Found"))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, r, MethodNotAllowedError())
	})

	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet, http.MethodHead)

	for _, path := range []string{"/items/", "/items"} {
		router.HandleFunc(path, s.handleCreateItem).Methods(http.MethodPost)
		router.HandleFunc(path, s.handleListItems).Methods(http.MethodGet)
	}
	router.HandleFunc("/items/{item_id}", s.handleGetItem).Methods(http.MethodGet)
	router.HandleFunc("/items/{item_id}", s.handleDeleteItem).Methods(http.MethodDelete)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(strings.TrimSpace(cidr)); err != nil {
			logger.WithComponent(log.ComponentSecurity).Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	tracer := trace.NewMiddleware(logger, detector.ExtractClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		m := s.rateLimiter.GetMetrics()
		logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			"total_hits", m.TotalHits,
			"clients", m.ClientCount)
		s.respond(w, r, TooManyRequestsError())
	})

	// outermost first
	var handler http.Handler = router
	handler = limited(handler)
	handler = headers.Middleware(handler)
	handler = detector.Middleware(logger)(handler)
	handler = log.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = log.Middleware(logger)(handler)
	handler = tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       orDefault(opts.ReadTimeout, 15*time.Second),
		WriteTimeout:      orDefault(opts.WriteTimeout, 15*time.Second),
		IdleTimeout:       orDefault(opts.IdleTimeout, 60*time.Second),
	}

	return s
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			s.respond(w, r, DetailResponse(http.StatusServiceUnavailable, "Service Unavailable"))
			return
		}
	}
	s.respond(w, r, NewJSONResponse().Body(map[string]string{"status": "ready"}))
}

// respond writes b. A body that cannot be encoded becomes a 500; connection
// failures are only logged.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, b *JSONResponseBuilder) {
	ctx := r.Context()
	err := b.Write(w)
	if errors.Is(err, errEncodeResponse) {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to encode response", log.FieldError, err)
		err = InternalServerError().Write(w)
	}
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Failed to write response", log.FieldError, err)
	}
}
