package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cassa/internal/auth"
	"cassa/internal/ledger"
	"cassa/internal/log"
	"cassa/internal/middleware/ratelimit"
	"cassa/internal/middleware/security"
	"cassa/internal/middleware/trace"
	"cassa/internal/report"
)

const (
	defaultStoreTimeout = 5 * time.Second
	feedCleanupInterval = 10 * time.Minute

	// HeaderReportSession groups report requests of one client view; a newer
	// request of the same session makes older in-flight ones stale.
	HeaderReportSession = "X-Report-Session"
)

// Deps are the collaborators of the API server. Ledger and Auth are required.
type Deps struct {
	Ledger   *ledger.Service
	Memo     *report.Memo
	Feed     *report.Feed
	Auth     *auth.Authenticator
	Limiter  *ratelimit.Limiter
	Detector *security.Detector
	Logger   *log.Logger

	// Location decides what "today" is; nil means UTC.
	Location     *time.Location
	Now          func() time.Time
	StoreTimeout time.Duration
}

// Server is the ledger JSON API.
type Server struct {
	http.Server

	ledger   *ledger.Service
	memo     *report.Memo
	feed     *report.Feed
	auth     *auth.Authenticator
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *log.Logger

	location     *time.Location
	now          func() time.Time
	storeTimeout time.Duration
	startedAt    time.Time

	stopFeedCleanup chan struct{}
	shutdownOnce    sync.Once
}

// NewServer wires routes and middleware. Background cleanup runs until Shutdown.
func NewServer(addr string, d Deps) *Server {
	s := &Server{
		ledger:          d.Ledger,
		memo:            d.Memo,
		feed:            d.Feed,
		auth:            d.Auth,
		limiter:         d.Limiter,
		detector:        d.Detector,
		logger:          d.Logger,
		location:        d.Location,
		now:             d.Now,
		storeTimeout:    d.StoreTimeout,
		stopFeedCleanup: make(chan struct{}),
	}
	if s.logger == nil {
		s.logger = log.Discard(log.ComponentHTTP)
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = defaultStoreTimeout
	}
	if s.auth == nil {
		s.auth = auth.New(auth.Config{}, s.logger)
	}
	if s.detector == nil {
		s.detector = security.NewDetector()
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	s.startedAt = s.now()
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if s.feed != nil {
		go s.cleanupFeed()
	}
	return s
}

func (s *Server) routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/onboarding", s.handleOnboard)
	api.HandleFunc("GET /api/business", s.handleGetBusiness)
	api.HandleFunc("PATCH /api/business", s.handleUpdateBusiness)
	api.HandleFunc("GET /api/balances", s.handleBalances)
	api.HandleFunc("POST /api/balances/reconcile", s.handleReconcile)
	api.HandleFunc("GET /api/sales", s.handleListSales)
	api.HandleFunc("POST /api/sales", s.handleCreateSale)
	api.HandleFunc("PATCH /api/sales/{id}", s.handleUpdateSale)
	api.HandleFunc("DELETE /api/sales/{id}", s.handleDeleteSale)
	api.HandleFunc("GET /api/expenses", s.handleListExpenses)
	api.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	api.HandleFunc("PATCH /api/expenses/{id}", s.handleUpdateExpense)
	api.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	api.HandleFunc("GET /api/reports/pnl", s.handlePnL)
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("/api/", limited(s.auth.Middleware(api)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	return s.tracer.Middleware(headers.Middleware(s.detector.Middleware(mux)))
}

func (s *Server) cleanupFeed() {
	ticker := time.NewTicker(feedCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.feed.CleanExpired(); n > 0 {
				s.logger.Debug("Report sessions expired", "sessions_removed", n)
			}
		case <-s.stopFeedCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		close(s.stopFeedCleanup)
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
