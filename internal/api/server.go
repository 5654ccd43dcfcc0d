// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/reports-aggregator/internal/circuitbreaker"
	"github.com/reports-aggregator/internal/logging"
	"github.com/reports-aggregator/internal/metrics"
	"github.com/reports-aggregator/internal/models"
	"github.com/reports-aggregator/internal/types"
)

// ReportsServiceInterface defines the report operations served over HTTP
type ReportsServiceInterface interface {
	GetBalances(ctx context.Context, customerID string) ([]models.BalanceReport, error)
	GetTransactions(ctx context.Context, accountID string) ([]models.Transaction, error)
	GetCommissionsReport(ctx context.Context, start, end types.Date) ([]models.CommissionReportItem, error)
	GetDailyAverageBalance(ctx context.Context, customerID string, start, end types.Date) (*models.DailyAverageBalanceReport, error)
	GetConsolidatedSummary(ctx context.Context, customerID string) (*models.ConsolidatedSummary, error)
}

// BreakerStatsProvider exposes circuit breaker statistics
type BreakerStatsProvider interface {
	GetAllStats() map[string]*circuitbreaker.Stats
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	reports    ReportsServiceInterface
	breakers   BreakerStatsProvider
	metrics    *metrics.Metrics
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// Per-client rate limit
	RequestsPerSecond float64
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	reports ReportsServiceInterface,
	breakers BreakerStatsProvider,
	m *metrics.Metrics,
) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		reports:  reports,
		breakers: breakers,
		metrics:  m,
		config:   config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Order matters: the request logger must be in the context before anything logs
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	if s.metrics != nil {
		s.router.Use(MetricsMiddleware(s.metrics))
	}

	s.setupRoutes(RateLimitMiddleware(rateLimiter))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes. Only report endpoints are rate limited.
func (s *Server) setupRoutes(rateLimit mux.MiddlewareFunc) {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/breakers", s.handleBreakers).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	reports := s.router.PathPrefix("/reports").Subrouter()
	reports.Use(rateLimit)

	reports.HandleFunc("/balances", s.handleGetBalances).Methods("GET")
	reports.HandleFunc("/movements", s.handleGetMovements).Methods("GET")
	reports.HandleFunc("/commissions", s.handleGetCommissions).Methods("GET")
	reports.HandleFunc("/daily-average-balance", s.handleGetDailyAverageBalance).Methods("GET")
	reports.HandleFunc("/consolidated/{customerId}", s.handleGetConsolidatedSummary).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	breakers := map[string]circuitbreaker.State{}
	if s.breakers != nil {
		for name, stats := range s.breakers.GetAllStats() {
			breakers[name] = stats.State
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"service":  "reports-aggregator",
		"breakers": breakers,
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().Infof("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
