package gamekit

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/schema"

	"github.com/fernandezvara/gamekit/hooks"
	"github.com/fernandezvara/gamekit/pool"
	"github.com/fernandezvara/gamekit/proxy"
)

// DB wraps bun.DB with the pool and proxy it runs on
type DB struct {
	*bun.DB
	config    Config
	pool      *pool.Pool
	connector *proxy.Connector
	logger    *slog.Logger
}

// New connects to cfg.Endpoint and returns a ready database.
func New(ctx context.Context, cfg Config) (*DB, error) {
	cfg.applyDefaults()

	if err := cfg.Endpoint.Validate(); err != nil {
		return nil, &Error{
			Code:    CodeConnectionFailed,
			Message: "invalid database endpoint",
			Op:      "New",
			Cause:   err,
		}
	}

	connector, err := cfg.Endpoint.Connector()
	if err != nil {
		return nil, &Error{
			Code:    CodeConnectionFailed,
			Message: "failed to build database connector",
			Op:      "New",
			Cause:   err,
		}
	}

	return NewWithConnector(ctx, cfg, connector, cfg.Endpoint.Dialect())
}

// NewWithConnector builds the pool, proxy and bun layers over an existing
// driver connector. New uses it with the endpoint's driver; tests use it
// with fakes.
func NewWithConnector(ctx context.Context, cfg Config, connector driver.Connector, dia schema.Dialect) (*DB, error) {
	cfg.applyDefaults()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p, err := pool.New(ctx, connector, cfg.Pool, pool.WithLogger(logger))
	if err != nil {
		return nil, &Error{
			Code:    CodeConnectionFailed,
			Message: "failed to open connection pool",
			Op:      "New",
			Cause:   err,
		}
	}

	// Add observability hooks
	var hs []proxy.Hook
	if cfg.Logger != nil && (cfg.LogQueries || cfg.LogSlowQueries > 0) {
		lh := hooks.NewLoggerHook(cfg.Logger, cfg.LogQueries, cfg.LogSlowQueries).WithMaxRows(cfg.MaxLoggedRows)
		if cfg.QueryConsole != nil {
			lh = lh.WithConsole(cfg.QueryConsole)
		}
		hs = append(hs, lh)
	}
	if cfg.MetricsRegistry != nil {
		hook, err := hooks.NewMetricsHook(cfg.MetricsRegistry)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("gamekit: failed to create metrics hook: %w", err)
		}
		if err := hooks.RegisterPoolCollector(cfg.MetricsRegistry, p); err != nil {
			p.Close()
			return nil, fmt.Errorf("gamekit: failed to register pool collector: %w", err)
		}
		hs = append(hs, hook)
	}
	if cfg.Tracer != nil {
		hs = append(hs, hooks.NewTracingHook(cfg.Tracer, systemName(dia.Name())))
	}

	pc := proxy.NewConnector(p,
		proxy.WithHooks(hs...),
		proxy.WithLogger(logger),
		proxy.WithMaxCapturedRows(cfg.MaxCapturedRows),
	)

	// Idle reuse and the connection cap belong to our pool: database/sql
	// closes every conn it would otherwise keep, which releases the lease,
	// and opens without a limit so waiting happens in Acquire under
	// AcquireTimeout.
	sqlDB := sql.OpenDB(pc)
	sqlDB.SetMaxIdleConns(0)
	sqlDB.SetMaxOpenConns(0)

	bunDB := bun.NewDB(sqlDB, dia)

	db := &DB{
		DB:        bunDB,
		config:    cfg,
		pool:      p,
		connector: pc,
		logger:    logger,
	}

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Endpoint.DialTimeout)
	defer cancel()

	if err := bunDB.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, &Error{
			Code:    CodeConnectionFailed,
			Message: "failed to connect to database",
			Op:      "New",
			Cause:   err,
		}
	}

	logger.Info("gamekit: database ready",
		slog.String("endpoint", cfg.Endpoint.String()),
		slog.String("dialect", dia.Name().String()),
		slog.Int("pool_max", p.Policy().MaxSize),
	)

	return db, nil
}

func systemName(name dialect.Name) string {
	switch name {
	case dialect.PG:
		return "postgresql"
	case dialect.MySQL:
		return "mysql"
	default:
		return name.String()
	}
}

// Close closes the database and then the pool
func (db *DB) Close() error {
	err := db.DB.Close()
	db.pool.Close()
	return err
}

// Ping verifies the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return wrapError(err, "Ping")
	}
	return nil
}

// Stats returns connection pool statistics
func (db *DB) Stats() pool.Stats {
	return db.pool.Stats()
}

// Pool returns the connection pool
func (db *DB) Pool() *pool.Pool {
	return db.pool
}

// Connector returns the query proxy. Its Query and Exec run a statement on
// a leased connection without going through database/sql.
func (db *DB) Connector() *proxy.Connector {
	return db.connector
}

// Bun returns the underlying bun.DB for direct access
func (db *DB) Bun() *bun.DB {
	return db.DB
}

// Config returns the current configuration
func (db *DB) Config() Config {
	return db.config
}

// IDB is the interface for both DB and Tx to enable function reuse
type IDB interface {
	bun.IDB
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
	NewRaw(query string, args ...any) *bun.RawQuery
	NewCreateTable() *bun.CreateTableQuery
	NewDropTable() *bun.DropTableQuery
	NewCreateIndex() *bun.CreateIndexQuery
	NewDropIndex() *bun.DropIndexQuery
	NewTruncateTable() *bun.TruncateTableQuery
	NewAddColumn() *bun.AddColumnQuery
	NewDropColumn() *bun.DropColumnQuery
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ensure DB implements IDB
var _ IDB = (*DB)(nil)
