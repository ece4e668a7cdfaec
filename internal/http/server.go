package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/services"
	appweb "bilancio/web"
)

const (
	viewCacheSize = 100
	viewCacheTTL  = 5 * time.Minute
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Server serves the ledger UI, its htmx partials and a small JSON API.
type Server struct {
	http.Server
	service   *services.TransactionService
	templates *template.Template
	logger    *applog.Logger

	currency        string
	requireCategory bool
	templatesFS     fs.FS
	staticFS        fs.FS
	readiness       map[string]ReadinessCheck

	rateLimiter     *ratelimit.Limiter
	traceMiddleware *trace.Middleware

	// Views are keyed by ledger revision, so a commit never serves stale data.
	listCache    *cache.LRUCache[[]core.Transaction]
	statsCache   *cache.LRUCache[[]core.CategoryTotals]
	cacheManager *cache.Manager

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime              time.Time
	transactionsCreated int64
	transactionsDeleted int64
	persistenceFailures int64
}

// Option configures a Server.
type Option func(*Server)

// WithCurrency sets the symbol appended to formatted amounts.
func WithCurrency(symbol string) Option {
	return func(s *Server) { s.currency = symbol }
}

// WithRequireCategory marks the category field as required in the form.
func WithRequireCategory(required bool) Option {
	return func(s *Server) { s.requireCategory = required }
}

func WithLogger(logger *applog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.WithComponent(applog.ComponentHTTP)
		}
	}
}

// WithTemplatesFS replaces the embedded templates. The FS must hold templates/*.html.
func WithTemplatesFS(fsys fs.FS) Option {
	return func(s *Server) { s.templatesFS = fsys }
}

// WithReadinessCheck adds a named check to /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(s *Server) { s.readiness[name] = check }
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.TransactionService, opts ...Option) *Server {
	s := &Server{
		service:     svc,
		logger:      applog.Default(applog.ComponentHTTP),
		currency:    "₽",
		templatesFS: appweb.TemplatesFS,
		staticFS:    appweb.StaticFS,
		readiness:   make(map[string]ReadinessCheck),
		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		listCache:   cache.NewLRUCache[[]core.Transaction](viewCacheSize, viewCacheTTL),
		statsCache:  cache.NewLRUCache[[]core.CategoryTotals](viewCacheSize, viewCacheTTL),
		appMetrics:  appMetrics{uptime: time.Now()},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.traceMiddleware = trace.NewMiddleware(security.ClientIP, s.logger.WithComponent(applog.ComponentTrace))

	s.cacheManager = cache.NewManager()
	s.cacheManager.Register(s.listCache, s.statsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	t, err := template.New("").ParseFS(s.templatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	if sub, err := fs.Sub(s.staticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/transactions", s.handleCreateTransaction)
	mux.HandleFunc("/transactions/delete", s.handleDeleteTransaction)

	// UI partials
	mux.HandleFunc("/ui/balance", s.handleBalancePartial)
	mux.HandleFunc("/ui/transactions", s.handleTransactionsPartial)
	mux.HandleFunc("/ui/stats", s.handleStatsPartial)

	// JSON API
	mux.HandleFunc("/api/transactions", s.handleAPITransactions)
	mux.HandleFunc("/api/totals", s.handleAPITotals)
	mux.HandleFunc("/api/stats", s.handleAPIStats)
	mux.HandleFunc("/api/categories", s.handleAPICategories)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = chain(mux,
		s.traceMiddleware.Middleware,
		headers.Middleware,
		applog.Middleware(s.logger),
		applog.RequestIDMiddleware(trace.RequestIDFromRequest),
		s.rateLimiter.Middleware(security.ClientIP, s.handleRateLimited, http.MethodPost, http.MethodDelete),
	)

	return s
}

// chain wraps h so that the first middleware is the outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, security.ClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", ratelimit.RetryAfterSeconds(retryAfter))
	s.writeError(w, r, http.StatusTooManyRequests, "", "Rate limit exceeded. Please try again later.")
}

// transactions returns the filtered list for the current revision.
func (s *Server) transactions(ctx context.Context, f core.TypeFilter) []core.Transaction {
	key := fmt.Sprintf("%d:%s", s.service.Revision(), f)
	items, cached := s.listCache.GetOrLoad(key, func() []core.Transaction { return s.service.List(f) })
	if cached {
		applog.FromContext(ctx).DebugContext(ctx, "Transactions cache hit", "key", key, applog.FieldCount, len(items))
	}
	return items
}

// stats returns per-category totals with activity for the current revision.
func (s *Server) stats(ctx context.Context) []core.CategoryTotals {
	key := strconv.FormatUint(s.service.Revision(), 10)
	rows, cached := s.statsCache.GetOrLoad(key, s.service.Stats)
	if cached {
		applog.FromContext(ctx).DebugContext(ctx, "Stats cache hit", "key", key)
	}
	return rows
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) recordCreated()            { atomic.AddInt64(&s.appMetrics.transactionsCreated, 1) }
func (s *Server) recordDeleted()            { atomic.AddInt64(&s.appMetrics.transactionsDeleted, 1) }
func (s *Server) recordPersistenceFailure() { atomic.AddInt64(&s.appMetrics.persistenceFailures, 1) }
