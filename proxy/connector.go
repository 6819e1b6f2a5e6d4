// Package proxy intercepts every statement sent to a pooled connection.
//
// Connector implements driver.Connector on top of a pool.Pool, so it can sit
// under database/sql (and bun) or be used directly through Query and Exec.
// Each statement produces a QueryEvent that registered hooks observe before
// and after it runs. The data path never depends on hook behaviour.
package proxy

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fernandezvara/gamekit/pool"
)

// DefaultMaxCapturedRows bounds the rows copied into a QueryEvent.
const DefaultMaxCapturedRows = 100

// Option configures a Connector.
type Option func(*Connector)

// WithHooks appends hooks. They run in the order given.
func WithHooks(hooks ...Hook) Option {
	return func(c *Connector) {
		c.hookList = append(c.hookList, hooks...)
	}
}

// WithLogger sets the logger used for hook failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxCapturedRows sets how many result rows each event keeps.
// Zero or less disables row capture.
func WithMaxCapturedRows(n int) Option {
	return func(c *Connector) {
		c.maxRows = n
	}
}

// Connector hands out proxied connections leased from a pool.
type Connector struct {
	pool     *pool.Pool
	hookList []Hook
	hooks    *hookRunner
	logger   *slog.Logger
	maxRows  int
}

var _ driver.Connector = (*Connector)(nil)

// NewConnector wraps p.
func NewConnector(p *pool.Pool, opts ...Option) *Connector {
	c := &Connector{
		pool:    p,
		logger:  slog.Default(),
		maxRows: DefaultMaxCapturedRows,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.hooks = newHookRunner(c.hookList, c.logger)
	return c
}

// Pool returns the underlying pool.
func (c *Connector) Pool() *pool.Pool {
	return c.pool
}

// Connect leases a pooled connection. Closing the returned conn releases it.
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	lease, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return c.newConn(lease), nil
}

// Driver returns a driver that refuses DSN based opens.
func (c *Connector) Driver() driver.Driver {
	return proxyDriver{}
}

func (c *Connector) newConn(lease *pool.Conn) *conn {
	return &conn{c: c, lease: lease, raw: lease.Raw()}
}

// Result is a fully read statement result.
type Result struct {
	Columns      []string
	Rows         []map[string]any
	RowsAffected int64
}

// Query runs a statement on a freshly leased connection and reads every row.
// The lease is released before Query returns.
func (c *Connector) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	lease, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	cn := c.newConn(lease)
	defer cn.Close()

	named, err := cn.namedValues(args)
	if err != nil {
		return nil, err
	}

	rows, closeStmt, err := cn.queryAny(ctx, query, named)
	if err != nil {
		return nil, err
	}
	defer closeStmt()

	return readAll(rows)
}

// Exec runs a statement on a freshly leased connection and returns the
// number of affected rows.
func (c *Connector) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	lease, err := c.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	cn := c.newConn(lease)
	defer cn.Close()

	named, err := cn.namedValues(args)
	if err != nil {
		return 0, err
	}

	res, err := cn.ExecContext(ctx, query, named)
	if errors.Is(err, driver.ErrSkip) {
		var st driver.Stmt
		if st, err = cn.PrepareContext(ctx, query); err != nil {
			return 0, err
		}
		defer st.Close()
		res, err = st.(*stmt).ExecContext(ctx, named)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// queryAny runs query through QueryContext, falling back to a prepared
// statement when the driver asks for it. The returned func closes that
// statement and must be called after rows are closed.
func (cn *conn) queryAny(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, func(), error) {
	rows, err := cn.QueryContext(ctx, query, args)
	if !errors.Is(err, driver.ErrSkip) {
		return rows, func() {}, err
	}

	st, err := cn.PrepareContext(ctx, query)
	if err != nil {
		return nil, func() {}, err
	}
	rows, err = st.(*stmt).QueryContext(ctx, args)
	if err != nil {
		st.Close()
		return nil, func() {}, err
	}
	return rows, func() { st.Close() }, nil
}

// namedValues converts Go values the way database/sql would.
func (cn *conn) namedValues(args []any) ([]driver.NamedValue, error) {
	named := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		nv := driver.NamedValue{Ordinal: i + 1, Value: arg}
		if na, ok := arg.(sql.NamedArg); ok {
			nv.Name = na.Name
			nv.Value = na.Value
		}

		err := cn.CheckNamedValue(&nv)
		if errors.Is(err, driver.ErrSkip) {
			nv.Value, err = driver.DefaultParameterConverter.ConvertValue(nv.Value)
		}
		if err != nil {
			return nil, fmt.Errorf("proxy: argument %d: %w", i+1, err)
		}
		named[i] = nv
	}
	return named, nil
}

func readAll(rows driver.Rows) (*Result, error) {
	res := &Result{Columns: rows.Columns()}
	dest := make([]driver.Value, len(res.Columns))
	for {
		err := rows.Next(dest)
		if err != nil {
			closeErr := rows.Close()
			if !isEOF(err) {
				return nil, err
			}
			if closeErr != nil {
				return nil, closeErr
			}
			break
		}
		res.Rows = append(res.Rows, rowMap(res.Columns, dest))
	}
	res.RowsAffected = int64(len(res.Rows))
	return res, nil
}

type proxyDriver struct{}

func (proxyDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("proxy: open by name is not supported, use the Connector")
}
