// Package main provides the API server entry point for the reports aggregator.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reports-aggregator/internal/adapter"
	"github.com/reports-aggregator/internal/api"
	"github.com/reports-aggregator/internal/circuitbreaker"
	"github.com/reports-aggregator/internal/config"
	"github.com/reports-aggregator/internal/logging"
	"github.com/reports-aggregator/internal/metrics"
	"github.com/reports-aggregator/internal/resilience"
	"github.com/reports-aggregator/internal/service"
	"github.com/shopspring/decimal"
)

func main() {
	fmt.Println("Reports Aggregator API Server")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Amounts are written as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	m := metrics.New()

	breakers, err := circuitbreaker.NewRegistry(cfg.Resilience.BreakerConfigs(), m.CircuitStateChanged)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create circuit breakers")
	}
	m.InitBreakers(breakers)

	policy, err := resilience.NewPolicy(breakers, cfg.Resilience.PolicySettings(), m)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create resilience policy")
	}
	for _, op := range resilience.Operations() {
		logger.WithFields(map[string]interface{}{
			"operation": string(op),
			"timeout":   policy.Timeout(op).String(),
		}).Info("Resilience policy configured")
	}

	// Backend clients share one transport; per-operation budgets are enforced by the policy
	httpClient := &http.Client{Timeout: cfg.Backends.HTTPTimeout}
	accounts := adapter.NewAccountsClient(cfg.Backends.AccountsURL, httpClient)
	customers := adapter.NewCustomersClient(cfg.Backends.CustomersURL, httpClient)
	transactions := adapter.NewTransactionsClient(cfg.Backends.TransactionsURL, httpClient)

	reports := service.NewReportsService(
		accounts,
		customers,
		transactions,
		policy,
		service.WithSummaryDeadline(cfg.Resilience.SummaryDeadline),
	)

	logger.WithFields(map[string]interface{}{
		"accounts":        cfg.Backends.AccountsURL,
		"customers":       cfg.Backends.CustomersURL,
		"transactions":    cfg.Backends.TransactionsURL,
		"summaryDeadline": reports.SummaryDeadline().String(),
	}).Info("Services initialized")

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, reports, breakers, m)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
