// Package config provides configuration management for the reports aggregator.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/reports-aggregator/internal/circuitbreaker"
	"github.com/reports-aggregator/internal/resilience"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Backends   BackendsConfig
	Resilience ResilienceConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// BackendsConfig holds the base URLs of the downstream services
type BackendsConfig struct {
	AccountsURL     string
	CustomersURL    string
	TransactionsURL string
	// HTTPTimeout is the transport-level ceiling; per-operation budgets are tighter
	HTTPTimeout time.Duration
}

// OperationPolicy holds the timeout and circuit breaker settings of one operation kind
type OperationPolicy struct {
	Timeout                time.Duration
	RequestVolumeThreshold int
	FailureRatio           float64
	Delay                  time.Duration
	SuccessThreshold       int
}

// ResilienceConfig holds per-operation policies
type ResilienceConfig struct {
	Operations map[resilience.Operation]OperationPolicy
	// SummaryDeadline bounds the consolidated summary join
	SummaryDeadline time.Duration
}

// RateLimitConfig holds per-client rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Default per-call timeouts
const (
	DefaultQuickQueryTimeout   = 1 * time.Second
	DefaultCommissionsTimeout  = 5 * time.Second
	DefaultDailyAverageTimeout = 3 * time.Second
	DefaultSummaryCallTimeout  = 2 * time.Second

	summaryDeadlineOverhead = 500 * time.Millisecond
)

var defaultTimeouts = map[resilience.Operation]time.Duration{
	resilience.OpBalances:            DefaultQuickQueryTimeout,
	resilience.OpTransactions:        DefaultQuickQueryTimeout,
	resilience.OpCommissions:         DefaultCommissionsTimeout,
	resilience.OpDailyAverageBalance: DefaultDailyAverageTimeout,
	resilience.OpSummaryCustomer:     DefaultSummaryCallTimeout,
	resilience.OpSummaryAccounts:     DefaultSummaryCallTimeout,
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Backends: BackendsConfig{
			AccountsURL:     getEnv("ACCOUNTS_SERVICE_URL", "http://localhost:8081"),
			CustomersURL:    getEnv("CUSTOMERS_SERVICE_URL", "http://localhost:8082"),
			TransactionsURL: getEnv("TRANSACTIONS_SERVICE_URL", "http://localhost:8083"),
			HTTPTimeout:     getEnvAsDuration("BACKEND_HTTP_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 50),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	config.Resilience = loadResilienceConfig()

	return config, nil
}

// loadResilienceConfig loads the policy of every operation kind from RESILIENCE_<KIND>_* variables
func loadResilienceConfig() ResilienceConfig {
	operations := make(map[resilience.Operation]OperationPolicy, len(defaultTimeouts))
	for _, op := range resilience.Operations() {
		prefix := EnvPrefix(op)
		operations[op] = OperationPolicy{
			Timeout:                getEnvAsDuration(prefix+"TIMEOUT", defaultTimeouts[op]),
			RequestVolumeThreshold: getEnvAsInt(prefix+"REQUEST_VOLUME", circuitbreaker.DefaultRequestVolumeThreshold),
			FailureRatio:           getEnvAsFloat(prefix+"FAILURE_RATIO", circuitbreaker.DefaultFailureRatio),
			Delay:                  getEnvAsDuration(prefix+"DELAY", circuitbreaker.DefaultDelay),
			SuccessThreshold:       getEnvAsInt(prefix+"SUCCESS_THRESHOLD", circuitbreaker.DefaultSuccessThreshold),
		}
	}

	slowest := operations[resilience.OpSummaryCustomer].Timeout
	if t := operations[resilience.OpSummaryAccounts].Timeout; t > slowest {
		slowest = t
	}

	return ResilienceConfig{
		Operations:      operations,
		SummaryDeadline: getEnvAsDuration("RESILIENCE_SUMMARY_DEADLINE", slowest+summaryDeadlineOverhead),
	}
}

// EnvPrefix returns the environment variable prefix of an operation, e.g.
// RESILIENCE_DAILY_AVERAGE_BALANCE_
func EnvPrefix(op resilience.Operation) string {
	return "RESILIENCE_" + strings.ToUpper(strings.ReplaceAll(string(op), "-", "_")) + "_"
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Backends.AccountsURL == "" || c.Backends.CustomersURL == "" || c.Backends.TransactionsURL == "" {
		return fmt.Errorf("accounts, customers and transactions service URLs are required")
	}
	if c.Backends.HTTPTimeout <= 0 {
		return fmt.Errorf("backend HTTP timeout must be positive")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit must allow at least one request")
	}

	for _, op := range c.Resilience.sortedOperations() {
		p := c.Resilience.Operations[op]
		if p.Timeout <= 0 {
			return fmt.Errorf("%sTIMEOUT must be positive", EnvPrefix(op))
		}
		if err := p.breakerConfig(op).Validate(); err != nil {
			return fmt.Errorf("operation '%s': %w", op, err)
		}
	}
	if c.Resilience.SummaryDeadline <= 0 {
		return fmt.Errorf("summary deadline must be positive")
	}
	return nil
}

func (c *ResilienceConfig) sortedOperations() []resilience.Operation {
	ops := make([]resilience.Operation, 0, len(c.Operations))
	for op := range c.Operations {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

func (p OperationPolicy) breakerConfig(op resilience.Operation) *circuitbreaker.Config {
	return &circuitbreaker.Config{
		Name:                   string(op),
		RequestVolumeThreshold: p.RequestVolumeThreshold,
		FailureRatio:           p.FailureRatio,
		Delay:                  p.Delay,
		SuccessThreshold:       p.SuccessThreshold,
	}
}

// BreakerConfigs returns one circuit breaker config per operation kind, sorted by name
func (c *ResilienceConfig) BreakerConfigs() []*circuitbreaker.Config {
	configs := make([]*circuitbreaker.Config, 0, len(c.Operations))
	for _, op := range c.sortedOperations() {
		configs = append(configs, c.Operations[op].breakerConfig(op))
	}
	return configs
}

// PolicySettings returns the resilience settings of every operation kind
func (c *ResilienceConfig) PolicySettings() map[resilience.Operation]resilience.Settings {
	settings := make(map[resilience.Operation]resilience.Settings, len(c.Operations))
	for op, p := range c.Operations {
		settings[op] = resilience.Settings{Timeout: p.Timeout}
	}
	return settings
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
