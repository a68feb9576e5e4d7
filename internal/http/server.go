package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"housesplit/internal/log"
	"housesplit/internal/middleware/ratelimit"
	"housesplit/internal/middleware/security"
	"housesplit/internal/middleware/trace"
	"housesplit/internal/services"
)

// readyTimeout bounds the database ping behind /readyz.
const readyTimeout = 2 * time.Second

// Services are the operations the API exposes.
type Services struct {
	Expenses  *services.ExpenseService
	People    *services.PeopleService
	Shares    *services.ShareService
	Payments  *services.PaymentService
	Summaries *services.SummaryService
	Reports   *services.ReportService
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tune the middleware chain. Zero values fall back to defaults.
type Options struct {
	CORSAllowedOrigin  string
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	svc      Services
	db       Pinger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	logger   *log.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc Services, db Pinger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		svc:      svc,
		db:       db,
		detector: security.NewDetector(),
		logger:   logger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
	}

	mux := http.NewServeMux()
	s.route(mux, "GET /healthz", handleHealth)
	s.route(mux, "GET /readyz", s.handleReady)
	s.route(mux, "GET /metrics", promhttp.Handler().ServeHTTP)

	s.route(mux, "GET /expenses", s.handleListExpenses)
	s.route(mux, "POST /expenses", s.handleCreateExpense)
	s.route(mux, "PATCH /expenses/{id}", s.handleUpdateExpense)
	s.route(mux, "DELETE /expenses/{id}", s.handleDeleteExpense)
	s.route(mux, "POST /import-csv", s.handleImportCSV)

	s.route(mux, "GET /people", s.handleListPeople)
	s.route(mux, "POST /people", s.handleCreatePerson)

	s.route(mux, "GET /monthly-shares/{monthKey}", s.handleGetShares)
	s.route(mux, "POST /monthly-shares/{monthKey}", s.handleSaveShares)
	s.route(mux, "GET /latest-shares", s.handleLatestShares)

	s.route(mux, "GET /payments", s.handleListPayments)
	s.route(mux, "GET /payments/{monthKey}", s.handleListPayments)
	s.route(mux, "POST /payments", s.handleUpsertPayment)

	s.route(mux, "GET /summary/{monthKey}", s.handleSummary)
	s.route(mux, "GET /reports", s.handleReports)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux, opts.CORSAllowedOrigin),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// route registers h under pattern and labels the request with the pattern
// for metrics.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		trace.SetRoute(r.Context(), r.Pattern)
		h(w, r)
	})
}

// middleware wraps the mux, outermost first: CORS, security headers,
// suspicious-request logging, tracing, the request logger, rate limiting and
// the body size cap.
func (s *Server) middleware(mux http.Handler, corsOrigin string) http.Handler {
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, s.logger)
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
	}

	var h http.Handler = maxBody(mux)
	h = s.limiter.Middleware(s.detector.ExtractClientIP, onLimit)(h)
	h = log.Middleware(s.logger, trace.RequestIDFromRequest)(h)
	h = tracer.Middleware(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = security.CORS(security.DefaultCORSConfig(corsOrigin))(h)
	return h
}

func maxBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup.
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
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
