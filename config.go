// Package gamekit provides the database layer of the game service.
// It puts a validated connection pool and an instrumented query proxy under
// Bun ORM, with migrations, transactions, generic CRUD helpers, rich error
// handling, and configurable observability.
package gamekit

import (
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/fernandezvara/gamekit/endpoint"
	"github.com/fernandezvara/gamekit/pool"
	"github.com/fernandezvara/gamekit/proxy"
)

// Config holds database configuration
type Config struct {
	// Connection
	Endpoint endpoint.Endpoint // Database server and credentials (required)

	// Pool settings
	Pool pool.Policy // Pool sizing, expiry, and validation (default: pool.DefaultPolicy)

	// Observability (all optional)
	Logger          *slog.Logger          // Structured logger
	LogQueries      bool                  // Log all queries
	LogSlowQueries  time.Duration         // Log queries slower than this (0 = disabled)
	MaxLoggedRows   int                   // Rows rendered per logged result (0 = all captured)
	QueryConsole    io.Writer             // Receives the colored statement and result block
	MaxCapturedRows int                   // Rows captured per result (default: 100, <0 = none)
	MetricsRegistry prometheus.Registerer // Prometheus registry for metrics
	Tracer          trace.Tracer          // OpenTelemetry tracer
}

// DefaultConfig returns sensible defaults
func DefaultConfig(ep endpoint.Endpoint) Config {
	return Config{
		Endpoint:        ep,
		Pool:            pool.DefaultPolicy(),
		MaxCapturedRows: proxy.DefaultMaxCapturedRows,
	}
}

// applyDefaults fills in zero values with defaults
func (c *Config) applyDefaults() {
	if c.Pool == (pool.Policy{}) {
		c.Pool = pool.DefaultPolicy()
	}
	if c.MaxCapturedRows == 0 {
		c.MaxCapturedRows = proxy.DefaultMaxCapturedRows
	}
	if c.Endpoint.DialTimeout == 0 {
		c.Endpoint.DialTimeout = 5 * time.Second
	}
}

// WithLogger enables query logging
func (c Config) WithLogger(logger *slog.Logger) Config {
	c.Logger = logger
	c.LogQueries = true
	return c
}

// WithSlowQueryLog logs queries slower than the threshold
func (c Config) WithSlowQueryLog(threshold time.Duration) Config {
	c.LogSlowQueries = threshold
	return c
}

// WithQueryConsole renders logged statements and their results to w
func (c Config) WithQueryConsole(w io.Writer) Config {
	c.QueryConsole = w
	return c
}

// WithPool replaces the pool policy
func (c Config) WithPool(policy pool.Policy) Config {
	c.Pool = policy
	return c
}

// WithMetrics enables Prometheus metrics
func (c Config) WithMetrics(registry prometheus.Registerer) Config {
	c.MetricsRegistry = registry
	return c
}

// WithTracing enables OpenTelemetry tracing
func (c Config) WithTracing(tracer trace.Tracer) Config {
	c.Tracer = tracer
	return c
}
