// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/gorilla/mux"

	"github.com/scor-analyzer/internal/logging"
	"github.com/scor-analyzer/internal/models"
	"github.com/scor-analyzer/internal/service"
	"github.com/scor-analyzer/internal/storage"
)

// Service interfaces for dependency injection and testing

// AnalysisServiceInterface defines the analysis operations used by the API
type AnalysisServiceInterface interface {
	Analyze(ctx context.Context, subject string) (*service.Analysis, error)
	CacheStats(ctx context.Context) (*storage.CacheStats, error)
	ClearCache(ctx context.Context) (int, error)
	Stats() *service.AnalysisStats
}

// SignupServiceInterface defines the signup operations used by the API
type SignupServiceInterface interface {
	Signup(ctx context.Context, input service.SignupInput) (*service.SignupResult, error)
	Stats(ctx context.Context) (*models.SignupStats, error)
}

// HealthChecker produces the health report
type HealthChecker interface {
	Check(ctx context.Context) *service.HealthReport
}

// Server represents the HTTP API server.
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	analysis    AnalysisServiceInterface
	signups     SignupServiceInterface
	health      HealthChecker
	rateLimiter *RateLimiter
	logger      *logging.Logger
	config      *ServerConfig
	now         func() time.Time
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
	TrustedProxies  []netip.Prefix
}

// NewServer creates a new API server instance. signups may be nil when
// Postgres is disabled.
func NewServer(
	config *ServerConfig,
	analysis AnalysisServiceInterface,
	signups SignupServiceInterface,
	health HealthChecker,
	logger *logging.Logger,
) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	s := &Server{
		router:   mux.NewRouter(),
		analysis: analysis,
		signups:  signups,
		health:   health,
		logger:   logger.WithComponent("api"),
		config:   config,
		now:      time.Now,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.rateLimiter = NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)
	s.rateLimiter.SetTrustedProxies(s.config.TrustedProxies)

	// order matters: recovery must see panics from everything below logging
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(s.rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()

	// Analysis endpoints
	api.HandleFunc("/analyze/{address}", s.handleAnalyze).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/reports/{address}", s.handleReport).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/stats", s.handleAnalysisStats).Methods(http.MethodGet)

	// Cache endpoints
	api.HandleFunc("/cache/stats", s.handleCacheStats).Methods(http.MethodGet)
	api.HandleFunc("/cache", s.handleClearCache).Methods(http.MethodDelete, http.MethodOptions)

	// Signup endpoints
	api.HandleFunc("/signups", s.handleSignup).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/signups/stats", s.handleSignupStats).Methods(http.MethodGet)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth reports provider and cache reachability. Degraded still answers 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status == service.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, report)
}

// Start starts the HTTP server and prunes idle rate-limit state until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	go s.pruneLimiters(ctx)

	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) pruneLimiters(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.rateLimiter.Prune(10 * time.Minute); n > 0 {
				s.logger.WithField("clients", n).Debug("Pruned idle rate limiters")
			}
		}
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
