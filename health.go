package gamekit

import (
	"context"
	"time"

	"github.com/fernandezvara/gamekit/pool"
)

// HealthStatus represents the database health status
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	Endpoint  string        `json:"endpoint"`
	PoolStats PoolStats     `json:"pool_stats"`
}

// PoolStats contains connection pool statistics
type PoolStats struct {
	Name               string        `json:"name"`
	MaxConnections     int           `json:"max_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	AcquireCount       int64         `json:"acquire_count"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
	ValidationFailures int64         `json:"validation_failures"`
	IdleClosed         int64         `json:"idle_closed"`
	LifetimeClosed     int64         `json:"lifetime_closed"`
	Exhausted          int64         `json:"exhausted"`
}

// Health performs a health check with detailed status
func (db *DB) Health(ctx context.Context) HealthStatus {
	start := time.Now()

	err := db.Ping(ctx)
	latency := time.Since(start)

	status := HealthStatus{
		Healthy:   err == nil,
		Latency:   latency,
		Endpoint:  db.config.Endpoint.String(),
		PoolStats: PoolStatsFrom(db.Stats()),
	}

	if err != nil {
		status.Error = err.Error()
	}

	return status
}

// IsHealthy returns true if the database is reachable
func (db *DB) IsHealthy(ctx context.Context) bool {
	return db.Ping(ctx) == nil
}

// PoolStatsFrom converts a pool snapshot to PoolStats
func PoolStatsFrom(stats pool.Stats) PoolStats {
	return PoolStats{
		Name:               stats.Name,
		MaxConnections:     int(stats.MaxSize),
		OpenConnections:    int(stats.Total),
		InUse:              int(stats.InUse),
		Idle:               int(stats.Idle),
		AcquireCount:       stats.AcquireCount,
		WaitCount:          stats.EmptyAcquireCount,
		WaitDuration:       stats.AcquireDuration,
		ValidationFailures: stats.ValidationFailures,
		IdleClosed:         stats.IdleEvictions,
		LifetimeClosed:     stats.LifetimeEvictions,
		Exhausted:          stats.Exhausted,
	}
}
