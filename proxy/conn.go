package proxy

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/fernandezvara/gamekit/pool"
)

// conn wraps a leased driver connection. database/sql serialises calls on a
// driver.Conn, so no locking is needed.
type conn struct {
	c     *Connector
	lease *pool.Conn
	raw   driver.Conn
	bad   bool
}

var (
	_ driver.Conn               = (*conn)(nil)
	_ driver.ConnPrepareContext = (*conn)(nil)
	_ driver.ConnBeginTx        = (*conn)(nil)
	_ driver.QueryerContext     = (*conn)(nil)
	_ driver.ExecerContext      = (*conn)(nil)
	_ driver.Pinger             = (*conn)(nil)
	_ driver.NamedValueChecker  = (*conn)(nil)
	_ driver.SessionResetter    = (*conn)(nil)
	_ driver.Validator          = (*conn)(nil)
)

func (cn *conn) newEvent(ctx context.Context, kind ExecutionKind, query string, args []driver.NamedValue) *QueryEvent {
	return &QueryEvent{
		Query:     query,
		Args:      args,
		Kind:      kind,
		ConnID:    cn.lease.ID(),
		Caller:    CallerFromContext(ctx),
		StartTime: time.Now(),
	}
}

// finish completes event and hands it to the after hooks.
func (cn *conn) finish(ctx context.Context, event *QueryEvent, err error) {
	event.Duration = time.Since(event.StartTime)
	if err != nil && event.Err == nil {
		event.Err = err
	}
	if errors.Is(err, driver.ErrBadConn) {
		cn.bad = true
	}
	cn.c.hooks.after(ctx, event)
}

func (cn *conn) Prepare(query string) (driver.Stmt, error) {
	return cn.PrepareContext(context.Background(), query)
}

func (cn *conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var (
		s   driver.Stmt
		err error
	)
	if pc, ok := cn.raw.(driver.ConnPrepareContext); ok {
		s, err = pc.PrepareContext(ctx, query)
	} else {
		s, err = cn.raw.Prepare(query)
	}
	if err != nil {
		if errors.Is(err, driver.ErrBadConn) {
			cn.bad = true
		}
		return nil, err
	}
	return &stmt{Stmt: s, cn: cn, query: query}, nil
}

// Close releases the lease. A connection that reported ErrBadConn is
// closed by the pool instead of reused.
func (cn *conn) Close() error {
	if cn.bad {
		cn.lease.MarkBad()
	}
	cn.lease.Release()
	return nil
}

func (cn *conn) Begin() (driver.Tx, error) {
	return cn.BeginTx(context.Background(), driver.TxOptions{})
}

func (cn *conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	var (
		tx  driver.Tx
		err error
	)
	if bt, ok := cn.raw.(driver.ConnBeginTx); ok {
		tx, err = bt.BeginTx(ctx, opts)
	} else {
		if opts.Isolation != driver.IsolationLevel(0) || opts.ReadOnly {
			return nil, errors.New("proxy: driver does not support transaction options")
		}
		tx, err = cn.raw.Begin() //nolint:staticcheck
	}
	if errors.Is(err, driver.ErrBadConn) {
		cn.bad = true
	}
	return tx, err
}

func (cn *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	q, ok := cn.raw.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}

	event := cn.newEvent(ctx, KindQuery, query, args)
	ctx = cn.c.hooks.before(ctx, event)

	rows, err := q.QueryContext(ctx, query, args)
	if err != nil {
		cn.finish(ctx, event, err)
		return nil, err
	}
	return cn.wrapRows(ctx, event, rows), nil
}

func (cn *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	e, ok := cn.raw.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}

	event := cn.newEvent(ctx, KindExec, query, args)
	ctx = cn.c.hooks.before(ctx, event)

	res, err := e.ExecContext(ctx, query, args)
	if err == nil {
		if n, aerr := res.RowsAffected(); aerr == nil {
			event.RowsAffected = n
		}
	}
	cn.finish(ctx, event, err)
	return res, err
}

func (cn *conn) Ping(ctx context.Context) error {
	p, ok := cn.raw.(driver.Pinger)
	if !ok {
		return nil
	}
	err := p.Ping(ctx)
	if errors.Is(err, driver.ErrBadConn) {
		cn.bad = true
	}
	return err
}

func (cn *conn) CheckNamedValue(nv *driver.NamedValue) error {
	if c, ok := cn.raw.(driver.NamedValueChecker); ok {
		return c.CheckNamedValue(nv)
	}
	return driver.ErrSkip
}

func (cn *conn) ResetSession(ctx context.Context) error {
	if cn.bad {
		return driver.ErrBadConn
	}
	if r, ok := cn.raw.(driver.SessionResetter); ok {
		return r.ResetSession(ctx)
	}
	return nil
}

func (cn *conn) IsValid() bool {
	if cn.bad || cn.lease.Released() {
		return false
	}
	if v, ok := cn.raw.(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

func (cn *conn) wrapRows(ctx context.Context, event *QueryEvent, r driver.Rows) *rows {
	cols := r.Columns()
	event.Columns = cols
	return &rows{
		Rows:    r,
		ctx:     ctx,
		event:   event,
		cn:      cn,
		columns: cols,
		max:     cn.c.maxRows,
	}
}

// stmt wraps a prepared statement so its executions are observed too.
type stmt struct {
	driver.Stmt
	cn    *conn
	query string
}

var (
	_ driver.StmtQueryContext = (*stmt)(nil)
	_ driver.StmtExecContext  = (*stmt)(nil)
)

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), toNamed(args))
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), toNamed(args))
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	event := s.cn.newEvent(ctx, KindStmtExec, s.query, args)
	ctx = s.cn.c.hooks.before(ctx, event)

	var (
		res driver.Result
		err error
	)
	if se, ok := s.Stmt.(driver.StmtExecContext); ok {
		res, err = se.ExecContext(ctx, args)
	} else {
		var values []driver.Value
		if values, err = toValues(args); err == nil {
			res, err = s.Stmt.Exec(values) //nolint:staticcheck
		}
	}
	if err == nil {
		if n, aerr := res.RowsAffected(); aerr == nil {
			event.RowsAffected = n
		}
	}
	s.cn.finish(ctx, event, err)
	return res, err
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	event := s.cn.newEvent(ctx, KindStmtQuery, s.query, args)
	ctx = s.cn.c.hooks.before(ctx, event)

	var (
		r   driver.Rows
		err error
	)
	if sq, ok := s.Stmt.(driver.StmtQueryContext); ok {
		r, err = sq.QueryContext(ctx, args)
	} else {
		var values []driver.Value
		if values, err = toValues(args); err == nil {
			r, err = s.Stmt.Query(values) //nolint:staticcheck
		}
	}
	if err != nil {
		s.cn.finish(ctx, event, err)
		return nil, err
	}
	return s.cn.wrapRows(ctx, event, r), nil
}

func (s *stmt) CheckNamedValue(nv *driver.NamedValue) error {
	if c, ok := s.Stmt.(driver.NamedValueChecker); ok {
		return c.CheckNamedValue(nv)
	}
	return s.cn.CheckNamedValue(nv)
}

func toNamed(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}

func toValues(args []driver.NamedValue) ([]driver.Value, error) {
	values := make([]driver.Value, len(args))
	for i, a := range args {
		if a.Name != "" {
			return nil, errors.New("proxy: driver does not support named parameters")
		}
		values[i] = a.Value
	}
	return values, nil
}
