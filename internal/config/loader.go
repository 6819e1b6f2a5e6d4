package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix  = "GAMEKIT"
	configName = "gamekit"
	configType = "yaml"
)

// Load reads the configuration. When path is empty it looks for
// gamekit.yaml in the working directory and /etc/gamekit, and a missing
// file leaves the defaults in place. GAMEKIT_* variables override both,
// e.g. GAMEKIT_DATABASE_POOL_MAX_SIZE.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/gamekit")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// setDefaults mirrors the constants of the game service deployment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origins", "*")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 62222)
	v.SetDefault("database.username", "pp")
	v.SetDefault("database.password", "ppw")
	v.SetDefault("database.name", "ngp_web")
	v.SetDefault("database.timezone", "Local")
	v.SetDefault("database.keep_alive", true)
	v.SetDefault("database.tls", false)
	v.SetDefault("database.dial_timeout", "5s")
	v.SetDefault("database.read_timeout", "30s")
	v.SetDefault("database.write_timeout", "30s")

	v.SetDefault("database.pool.name", "gamekit")
	v.SetDefault("database.pool.initial_size", 2)
	v.SetDefault("database.pool.max_size", 10)
	v.SetDefault("database.pool.max_idle_time", "10s")
	v.SetDefault("database.pool.max_life_time", "60s")
	v.SetDefault("database.pool.validation_depth", "remote")
	v.SetDefault("database.pool.validation_query", "SELECT 1")
	v.SetDefault("database.pool.acquire_timeout", "30s")

	v.SetDefault("query.log", true)
	v.SetDefault("query.console", true)
	v.SetDefault("query.slow_threshold", "0s")
	v.SetDefault("query.max_logged_rows", 0)
	v.SetDefault("query.max_captured_rows", 100)

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.sentinel_master", "")
	v.SetDefault("redis.sentinel_nodes", "")
	v.SetDefault("redis.cluster_nodes", "")
	v.SetDefault("redis.pool_size", 8)
	v.SetDefault("redis.min_idle_conns", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// NewLogger builds the process logger writing to w.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	if c.Level != "" {
		if err := level.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", c.Level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log format %q: want text or json", c.Format)
	}
}
