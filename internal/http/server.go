package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/compress"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/ports"
	"fintrack/internal/services"
)

// Options configures the API server.
type Options struct {
	Addr        string
	AuthHeader  string
	Development bool
	RateLimit   ratelimit.Config
	Logger      *applog.Logger
	// Authenticator overrides the header authenticator when set.
	Authenticator Authenticator
}

type Server struct {
	http.Server
	ledger       *services.LedgerService
	transactions *services.TransactionService
	categories   *services.CategoryService
	store        ports.Store

	auth        Authenticator
	limiter     *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	mutations   *applog.StructuredLogger
	development bool
	loc         *time.Location
	now         func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(b *backend.Backend, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	auth := opts.Authenticator
	if auth == nil {
		header := opts.AuthHeader
		if header == "" {
			header = "X-User-ID"
		}
		auth = HeaderAuthenticator{Header: header}
	}

	s := &Server{
		ledger:       b.Ledger,
		transactions: b.Transactions,
		categories:   b.Categories,
		store:        b.Store,
		auth:         auth,
		limiter:      ratelimit.NewLimiter(opts.RateLimit),
		detector:     security.NewDetector(),
		mutations:    applog.NewStructuredLogger(logger.WithComponent(applog.ComponentLedger)),
		development:  opts.Development,
		loc:          time.UTC,
		now:          time.Now,
	}
	s.tracer = trace.NewMiddleware(logger.WithComponent(applog.ComponentHTTP), s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	s.registerAccountRoutes(mux, "/api/goals", "saved-amount", core.KindGoal)
	s.registerAccountRoutes(mux, "/api/debts", "paid", core.KindDebt)

	mux.Handle("GET /api/cat", s.requireOwner(s.handleListCategories))
	mux.Handle("POST /api/cat", s.requireOwner(s.handleCreateCategory))
	mux.Handle("PUT /api/cat/{id}", s.requireOwner(s.handleUpdateCategory))
	mux.Handle("DELETE /api/cat/{id}", s.requireOwner(s.handleDeleteCategory))

	mux.Handle("GET /api/transaction", s.requireOwner(s.handleListTransactions))
	mux.Handle("POST /api/transaction", s.requireOwner(s.handleCreateTransaction))
	mux.Handle("PUT /api/transaction/{id}", s.requireOwner(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transaction/{id}", s.requireOwner(s.handleDeleteTransaction))
	mux.Handle("GET /api/transaction/monthlystats", s.requireOwner(s.handleMonthlyStats))
	mux.Handle("GET /api/transaction/bycategory", s.requireOwner(s.handleCategoryStats))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Route not found").Write(w)
	})

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).
			WarnContext(r.Context(), "Rate limit exceeded", applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	})(handler)
	handler = s.detector.Middleware(handler)
	handler = compress.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// fail logs server-side failures and renders err in the envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, res resource, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(), "Request failed", err,
			applog.ComponentHTTP, r.Method+" "+r.URL.Path, applog.LogFields{applog.FieldStatusCode: status})
	}
	res.errorResponse(err, s.development).Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(map[string]string{"state": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
		ErrorResponse(http.StatusServiceUnavailable, "Store unavailable").Write(w)
		return
	}
	OK(map[string]string{"state": "ready"}).Write(w)
}
