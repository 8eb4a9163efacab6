package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cashbook/internal/aggregate"
	"cashbook/internal/format"
	"cashbook/internal/log"
	"cashbook/internal/middleware/ratelimit"
	"cashbook/internal/middleware/security"
	"cashbook/internal/middleware/trace"
	"cashbook/internal/prefs"
	"cashbook/internal/reconcile"
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Controller  *reconcile.Controller
	Preferences *prefs.Service
	// Ready probes the store; nil means always ready.
	Ready     func(context.Context) error
	Formatter *format.Formatter
	Monthly   aggregate.Mode
	RateLimit ratelimit.Config
	Logger    *log.Logger
}

type Server struct {
	http.Server
	ctrl     *reconcile.Controller
	prefs    *prefs.Service
	ready    func(context.Context) error
	fmt      *format.Formatter
	monthly  aggregate.Mode
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Formatter == nil {
		deps.Formatter = format.New(format.DefaultLanguage)
	}
	if deps.Preferences == nil {
		deps.Preferences = prefs.NewService(prefs.NewMemory(), prefs.DefaultCurrency)
	}

	s := &Server{
		ctrl:     deps.Controller,
		prefs:    deps.Preferences,
		ready:    deps.Ready,
		fmt:      deps.Formatter,
		monthly:  deps.Monthly,
		logger:   deps.Logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		detector: security.NewDetector(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/transactions", s.handleList)
	mux.HandleFunc("POST /api/transactions", s.handleCreate)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/reset", s.handleReset)

	mux.HandleFunc("POST /api/editor", s.handleBeginAdd)
	mux.HandleFunc("POST /api/editor/{id}", s.handleBeginEdit)
	mux.HandleFunc("DELETE /api/editor", s.handleCloseEditor)

	mux.HandleFunc("GET /api/export.xlsx", s.handleExport)

	mux.HandleFunc("GET /api/preferences", s.handleGetPreferences)
	mux.HandleFunc("PUT /api/preferences", s.handlePutPreferences)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// middleware wraps h, outermost first: tracing, component logger, security
// headers, probe detection, then the limiter on mutations.
func (s *Server) middleware(h http.Handler) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w, r)
	}
	h = s.limiter.Middleware(s.detector.ExtractClientIP, func(r *http.Request) bool { return isMutation(r.Method) }, onLimit)(h)
	h = s.detector.Middleware(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = log.ComponentMiddleware(log.ComponentHTTP)(h)
	return trace.NewMiddleware(s.logger, s.detector.ExtractClientIP).Middleware(h)
}

// Shutdown stops the limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness probe failed", log.FieldError, err.Error())
			ServiceUnavailableError("store unavailable").Write(w, r)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
