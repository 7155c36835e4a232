package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"spendwise/internal/auth"
	"spendwise/internal/backend"
	"spendwise/internal/cache"
	"spendwise/internal/ledger"
	"spendwise/internal/log"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/middleware/security"
	"spendwise/internal/middleware/trace"
)

const (
	defaultCacheTTL  = 5 * time.Minute
	defaultCacheSize = 200
	readyTimeout     = 3 * time.Second
	cacheSweepEvery  = 10 * time.Minute
)

// Options configures NewServer. Ledger is required.
type Options struct {
	Ledger    *ledger.Service
	Ready     backend.Pinger // optional; readiness always passes without it
	Location  *time.Location
	JWTSecret string

	CacheTTL           time.Duration
	CacheSize          int
	RateLimitPerMinute int

	Logger *log.Logger
}

type Server struct {
	http.Server

	ledger *ledger.Service
	ready  backend.Pinger
	loc    *time.Location
	logger *log.Logger

	views   *cache.Views[any]
	caches  *cache.Manager
	limiter *ratelimit.Limiter
	detect  *security.Detector
	tracer  *trace.Middleware

	genMu sync.Mutex
	gens  map[string]uint64

	unsubscribe  func()
	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}

	lru := cache.NewLRUCache[any](size, ttl)
	caches := cache.NewManager(logger)
	caches.Register(lru)

	detect := security.NewDetector(logger)
	s := &Server{
		ledger:    opts.Ledger,
		ready:     opts.Ready,
		loc:       loc,
		logger:    logger.WithComponent(log.ComponentHTTP),
		views:     cache.NewViews[any](lru),
		caches:    caches,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detect:    detect,
		tracer:    trace.NewMiddleware(detect.ExtractClientIP, logger),
		gens:      make(map[string]uint64),
		startedAt: time.Now(),
	}

	// Cached views are per user; any committed mutation makes them stale.
	s.unsubscribe = opts.Ledger.Bus().Subscribe(func(e ledger.Event) { s.invalidate(e.UserID) })
	caches.StartCleanup(cacheSweepEvery)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.JWTSecret),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// routes builds the router and wraps it in the middleware chain. The chain
// sits outside the router so unmatched paths are traced and screened too.
func (s *Server) routes(secret string) http.Handler {
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	r := mux.NewRouter()
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notAllowed

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	// The subrouter has no fallback handlers of its own so a method mismatch
	// under /api reaches the root router as 405 rather than 404.
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/catalog", s.handleCatalog).Methods(http.MethodGet)
	api.HandleFunc("/ledger", s.handleLedger).Methods(http.MethodGet)
	api.HandleFunc("/ledger/reload", s.handleReload).Methods(http.MethodPost)
	api.HandleFunc("/balance", s.handleSetBalance).Methods(http.MethodPut)
	api.HandleFunc("/income", s.handleAddIncome).Methods(http.MethodPost)
	api.HandleFunc("/expenses", s.handleAddExpense).Methods(http.MethodPost)
	api.HandleFunc("/transactions/by-month", s.handleByMonth).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/charts/trend", s.handleTrend).Methods(http.MethodGet)
	api.HandleFunc("/charts/income-sources", s.handleIncomeSources).Methods(http.MethodGet)
	api.HandleFunc("/charts/categories", s.handleCategories).Methods(http.MethodGet)
	api.HandleFunc("/export.xlsx", s.handleExport).Methods(http.MethodGet)

	chain := []func(http.Handler) http.Handler{
		s.tracer.Middleware,
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		s.detect.Middleware,
		s.limiter.Middleware(s.detect.ExtractClientIP, ratelimit.MutatingOnly, s.rateLimited),
		auth.Middleware(secret),
	}
	var h http.Handler = r
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "60")
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later"})
}

// Shutdown stops background sweeps and then the HTTP server. It is safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.unsubscribe()
		s.limiter.Stop()
		s.caches.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
