// Package main implements the gamekit service and its admin commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/fernandezvara/gamekit"
	"github.com/fernandezvara/gamekit/internal/config"
)

var version = "0.1.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "gamekit",
		Short:         "Game catalogue service",
		Long:          `gamekit serves the game catalogue and key-value API over a validated, logged connection pool.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./gamekit.yaml or /etc/gamekit/gamekit.yaml)")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(queryCmd(&configPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// app is what every subcommand starts from.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func loadApp(path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Log.NewLogger(os.Stdout)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return &app{cfg: cfg, logger: logger}, nil
}

// openDB connects the database layer. Statement logging follows the query
// section of the config.
func (rt *app) openDB(ctx context.Context, opts ...func(gamekit.Config) gamekit.Config) (*gamekit.DB, error) {
	cfg := rt.cfg.Gamekit(rt.logger).WithTracing(otel.Tracer("gamekit"))
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return gamekit.New(ctx, cfg)
}
