// Package config loads the process configuration of the gamekit service.
package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/fernandezvara/gamekit"
	"github.com/fernandezvara/gamekit/endpoint"
	"github.com/fernandezvara/gamekit/kv"
	"github.com/fernandezvara/gamekit/pool"
)

// Config represents the service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Query    QueryConfig    `mapstructure:"query" yaml:"query"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     string        `mapstructure:"cors_origins" yaml:"cors_origins"` // comma separated
}

// DatabaseConfig describes the relational database and its pool.
type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver" yaml:"driver"`
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	Username     string        `mapstructure:"username" yaml:"username"`
	Password     string        `mapstructure:"password" yaml:"password,omitempty"`
	Name         string        `mapstructure:"name" yaml:"name"`
	Timezone     string        `mapstructure:"timezone" yaml:"timezone"`
	KeepAlive    bool          `mapstructure:"keep_alive" yaml:"keep_alive"`
	TLS          bool          `mapstructure:"tls" yaml:"tls"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	Pool         PoolConfig    `mapstructure:"pool" yaml:"pool"`
}

// PoolConfig mirrors pool.Policy.
type PoolConfig struct {
	Name            string        `mapstructure:"name" yaml:"name"`
	InitialSize     int           `mapstructure:"initial_size" yaml:"initial_size"`
	MaxSize         int           `mapstructure:"max_size" yaml:"max_size"`
	MaxIdleTime     time.Duration `mapstructure:"max_idle_time" yaml:"max_idle_time"`
	MaxLifeTime     time.Duration `mapstructure:"max_life_time" yaml:"max_life_time"`
	ValidationDepth string        `mapstructure:"validation_depth" yaml:"validation_depth"`
	ValidationQuery string        `mapstructure:"validation_query" yaml:"validation_query"`
	AcquireTimeout  time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
}

// QueryConfig controls statement logging.
type QueryConfig struct {
	Log             bool          `mapstructure:"log" yaml:"log"`
	Console         bool          `mapstructure:"console" yaml:"console"` // colored block on stdout
	SlowThreshold   time.Duration `mapstructure:"slow_threshold" yaml:"slow_threshold"`
	MaxLoggedRows   int           `mapstructure:"max_logged_rows" yaml:"max_logged_rows"`
	MaxCapturedRows int           `mapstructure:"max_captured_rows" yaml:"max_captured_rows"`
}

// RedisConfig describes the Redis deployment.
type RedisConfig struct {
	Mode           string `mapstructure:"mode" yaml:"mode"`
	Addr           string `mapstructure:"addr" yaml:"addr"`
	Password       string `mapstructure:"password" yaml:"password,omitempty"`
	DB             int    `mapstructure:"db" yaml:"db"`
	SentinelMaster string `mapstructure:"sentinel_master" yaml:"sentinel_master"`
	SentinelNodes  string `mapstructure:"sentinel_nodes" yaml:"sentinel_nodes"` // comma separated
	ClusterNodes   string `mapstructure:"cluster_nodes" yaml:"cluster_nodes"`   // comma separated
	PoolSize       int    `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns   int    `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
}

// LogConfig selects the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text or json
}

// Gamekit builds the database layer config. Query logs go to logger.
func (c *Config) Gamekit(logger *slog.Logger) gamekit.Config {
	cfg := gamekit.DefaultConfig(c.Database.Endpoint())
	cfg.Pool = c.Database.Pool.Policy()
	cfg.Logger = logger
	cfg.LogQueries = c.Query.Log
	cfg.LogSlowQueries = c.Query.SlowThreshold
	cfg.MaxLoggedRows = c.Query.MaxLoggedRows
	if c.Query.Console {
		cfg.QueryConsole = os.Stdout
	}
	if c.Query.MaxCapturedRows != 0 {
		cfg.MaxCapturedRows = c.Query.MaxCapturedRows
	}
	return cfg
}

// Endpoint converts the database section.
func (c DatabaseConfig) Endpoint() endpoint.Endpoint {
	return endpoint.Endpoint{
		Driver:       endpoint.Driver(c.Driver),
		Host:         c.Host,
		Port:         c.Port,
		Username:     c.Username,
		Password:     c.Password,
		Database:     c.Name,
		Timezone:     c.Timezone,
		KeepAlive:    c.KeepAlive,
		TLS:          c.TLS,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// Policy converts the pool section.
func (c PoolConfig) Policy() pool.Policy {
	return pool.Policy{
		Name:            c.Name,
		InitialSize:     c.InitialSize,
		MaxSize:         c.MaxSize,
		MaxIdleTime:     c.MaxIdleTime,
		MaxLifeTime:     c.MaxLifeTime,
		ValidationDepth: pool.ValidationDepth(c.ValidationDepth),
		ValidationQuery: c.ValidationQuery,
		AcquireTimeout:  c.AcquireTimeout,
	}
}

// KV converts the redis section.
func (c RedisConfig) KV() kv.Config {
	cfg := kv.DefaultConfig()
	cfg.Mode = kv.Mode(c.Mode)
	cfg.Addr = c.Addr
	cfg.Password = c.Password
	cfg.DB = c.DB
	cfg.SentinelMaster = c.SentinelMaster
	cfg.SentinelNodes = kv.ParseNodes(c.SentinelNodes)
	cfg.ClusterNodes = kv.ParseNodes(c.ClusterNodes)
	cfg.PoolSize = c.PoolSize
	cfg.MinIdleConns = c.MinIdleConns
	return cfg
}
