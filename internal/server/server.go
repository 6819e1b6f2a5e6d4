// Package server assembles the HTTP surface of the gamekit service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/fernandezvara/gamekit"
	"github.com/fernandezvara/gamekit/game"
	"github.com/fernandezvara/gamekit/internal/config"
	"github.com/fernandezvara/gamekit/kv"
)

// DatabaseHealth reports the health of the relational database.
type DatabaseHealth interface {
	Health(ctx context.Context) gamekit.HealthStatus
}

// Pinger reports whether a dependency answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the routes are built on. Nil members leave their
// routes out.
type Deps struct {
	Games    game.Catalog
	KV       *kv.Service
	Database DatabaseHealth
	Redis    Pinger
	Gatherer prometheus.Gatherer
}

// Server is the HTTP server of the service.
type Server struct {
	cfg     config.ServerConfig
	logger  *slog.Logger
	handler http.Handler
	http    *http.Server
}

// New builds the router, middleware and listener settings.
func New(cfg config.ServerConfig, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	r.Use(RequestID(), AccessLog(logger))

	if deps.Games != nil {
		game.NewHandler(deps.Games, logger).RegisterRoutes(r)
	}
	if deps.KV != nil {
		kv.NewHandler(deps.KV, logger).RegisterRoutes(r)
	}

	r.Handle("/health", healthHandler(deps, logger)).Methods(http.MethodGet)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: originList(cfg.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})
	handler := c.Handler(r)

	return &Server{
		cfg:     cfg,
		logger:  logger,
		handler: handler,
		http: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", ln.Addr().String()))
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("http server shutting down", slog.Duration("timeout", timeout))
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string                `json:"status"`
	Database *gamekit.HealthStatus `json:"database,omitempty"`
	Redis    *RedisHealth          `json:"redis,omitempty"`
}

// RedisHealth is the Redis part of HealthResponse.
type RedisHealth struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

func healthHandler(deps Deps, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := HealthResponse{Status: "ok"}
		if deps.Database != nil {
			status := deps.Database.Health(ctx)
			resp.Database = &status
			if !status.Healthy {
				resp.Status = "degraded"
			}
		}
		if deps.Redis != nil {
			rh := &RedisHealth{Healthy: true}
			if err := deps.Redis.Ping(ctx); err != nil {
				rh.Healthy = false
				rh.Error = err.Error()
				resp.Status = "degraded"
			}
			resp.Redis = rh
		}

		code := http.StatusOK
		if resp.Status != "ok" {
			code = http.StatusServiceUnavailable
			logger.WarnContext(r.Context(), "health check degraded")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func originList(origins string) []string {
	list := kv.ParseNodes(origins)
	if len(list) == 0 {
		return []string{"*"}
	}
	return list
}
