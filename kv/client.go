// Package kv is the Redis side of the game service: a client factory for
// standalone, sentinel and cluster deployments, a get/set service, and its
// HTTP routes.
package kv

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Mode selects the Redis topology.
type Mode string

const (
	Standalone Mode = "standalone"
	Sentinel   Mode = "sentinel"
	Cluster    Mode = "cluster"
)

// ErrUnsupportedMode is returned for a mode other than the ones above.
var ErrUnsupportedMode = errors.New("kv: unsupported redis mode")

// ErrInvalidConfig is returned when a mode is missing its addresses.
var ErrInvalidConfig = errors.New("kv: invalid config")

// Config describes how to reach Redis.
type Config struct {
	Mode     Mode
	Addr     string // standalone host:port
	Password string
	DB       int // standalone and sentinel only

	SentinelMaster string
	SentinelNodes  []string
	ClusterNodes   []string

	// Pool
	PoolSize     int // Max connections per node (default: 8)
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a standalone config for a local server.
func DefaultConfig() Config {
	return Config{
		Mode:         Standalone,
		Addr:         "localhost:6379",
		PoolSize:     8,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// ParseNodes splits a comma separated address list, dropping blanks.
func ParseNodes(s string) []string {
	var nodes []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Validate checks that the mode has the addresses it needs.
func (c Config) Validate() error {
	switch Mode(strings.ToLower(string(c.Mode))) {
	case Standalone:
		if c.Addr == "" {
			return fmt.Errorf("%w: standalone mode needs an address", ErrInvalidConfig)
		}
	case Sentinel:
		if c.SentinelMaster == "" || len(c.SentinelNodes) == 0 {
			return fmt.Errorf("%w: sentinel mode needs a master name and sentinel nodes", ErrInvalidConfig)
		}
	case Cluster:
		if len(c.ClusterNodes) == 0 {
			return fmt.Errorf("%w: cluster mode needs nodes", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedMode, c.Mode)
	}
	if c.PoolSize < 0 || c.MinIdleConns < 0 {
		return fmt.Errorf("%w: pool sizes must not be negative", ErrInvalidConfig)
	}
	return nil
}

// NewClient builds the client for the configured mode. No connection is
// made until the first command.
func NewClient(cfg Config) (redis.UniversalClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch Mode(strings.ToLower(string(cfg.Mode))) {
	case Sentinel:
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       cfg.SentinelMaster,
			SentinelAddrs:    cfg.SentinelNodes,
			Password:         cfg.Password,
			SentinelPassword: cfg.Password,
			DB:               cfg.DB,
			PoolSize:         cfg.PoolSize,
			MinIdleConns:     cfg.MinIdleConns,
			DialTimeout:      cfg.DialTimeout,
			ReadTimeout:      cfg.ReadTimeout,
			WriteTimeout:     cfg.WriteTimeout,
		}), nil
	case Cluster:
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.ClusterNodes,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}), nil
	default:
		return redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}), nil
	}
}
