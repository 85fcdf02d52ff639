// Package http exposes the dashboard, reports and record writes as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"bizdash/internal/log"
	"bizdash/internal/middleware/ratelimit"
	"bizdash/internal/middleware/security"
	"bizdash/internal/middleware/trace"
	"bizdash/internal/services"
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Records   *services.RecordService
	Dashboard *services.DashboardService
	Reports   *services.ReportService
	Logger    *log.Logger

	// Location is the calendar request bodies are parsed in.
	Location *time.Location

	// RequestsPerMinute limits writes per client IP. Zero uses the limiter default.
	RequestsPerMinute int

	// Ready reports whether the backends can serve traffic. Nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	records   *services.RecordService
	dashboard *services.DashboardService
	reports   *services.ReportService
	logger    *log.Logger
	location  *time.Location
	ready     func(ctx context.Context) error

	validate     *validator.Validate
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	detector := security.NewDetector()
	s := &Server{
		records:   deps.Records,
		dashboard: deps.Dashboard,
		reports:   deps.Reports,
		logger:    logger.WithComponent(log.ComponentHTTP),
		location:  loc,
		ready:     deps.Ready,
		validate:  newValidator(),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RequestsPerMinute}),
		detector:  detector,
		tracer:    trace.NewMiddleware(logger, detector.ExtractClientIP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/reports/daily", s.handleDailyReport)
	mux.HandleFunc("GET /api/reports/businesses", s.handleBusinessReport)
	mux.HandleFunc("GET /api/admin/mrr", s.handleMRR)
	mux.HandleFunc("PUT /api/admin/tenants/{id}", s.handleSaveTenant)

	mux.HandleFunc("GET /api/sales", s.handleListSales)
	mux.HandleFunc("POST /api/sales", s.handleCreateSale)
	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/businesses", s.handleListBusinesses)
	mux.HandleFunc("POST /api/businesses", s.handleCreateBusiness)
	mux.HandleFunc("GET /api/cash-shifts", s.handleListCashShifts)
	mux.HandleFunc("POST /api/cash-shifts", s.handleCreateCashShift)
	mux.HandleFunc("GET /api/inventory/movements", s.handleListMovements)
	mux.HandleFunc("POST /api/inventory/movements", s.handleCreateMovement)
	mux.HandleFunc("GET /api/inventory/stock", s.handleStock)
	mux.HandleFunc("POST /api/recurring-expenses", s.handleCreateRecurring)

	// Outermost first: logger, trace, headers, detection, rate limit.
	var handler http.Handler = mux
	handler = s.limiter.Middleware(detector.ExtractClientIP, s.onRateLimited, http.MethodPost, http.MethodPut)(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// Shutdown gracefully shuts down the server and its background routines.
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
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
