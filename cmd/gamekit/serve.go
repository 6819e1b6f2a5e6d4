package main

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/fernandezvara/gamekit"
	"github.com/fernandezvara/gamekit/game"
	"github.com/fernandezvara/gamekit/internal/server"
	"github.com/fernandezvara/gamekit/kv"
)

func serveCmd(configPath *string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := loadApp(*configPath)
			if err != nil {
				return err
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			db, err := rt.openDB(ctx, func(c gamekit.Config) gamekit.Config {
				return c.WithMetrics(registry)
			})
			if err != nil {
				return err
			}
			defer db.Close()

			if migrate {
				res, err := db.Migrate(ctx, game.Migrations(db.Dialect().Name()))
				if err != nil {
					return err
				}
				rt.logger.Info("migrations done",
					slog.Int("applied", len(res.Applied)),
					slog.Int("skipped", len(res.Skipped)),
				)
			}

			redisCfg := rt.cfg.Redis.KV()
			client, err := kv.NewClient(redisCfg)
			if err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			kvService := kv.NewService(client, rt.logger)
			defer kvService.Close()

			srv := server.New(rt.cfg.Server, server.Deps{
				Games:    game.NewService(db, rt.logger),
				KV:       kvService,
				Database: db,
				Redis:    kvService,
				Gatherer: registry,
			}, rt.logger)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")

	return cmd
}
