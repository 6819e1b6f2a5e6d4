package pool

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var errFakeQuery = errors.New("fake: server gone")

type fakeConn struct {
	id       int
	closed   atomic.Bool
	invalid  atomic.Bool
	failPing atomic.Bool
	failQry  atomic.Bool
	queries  atomic.Int32
	pings    atomic.Int32
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("fake: prepare") }
func (c *fakeConn) Begin() (driver.Tx, error)           { return nil, errors.New("fake: begin") }

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *fakeConn) IsValid() bool { return !c.invalid.Load() }

func (c *fakeConn) Ping(context.Context) error {
	c.pings.Add(1)
	if c.failPing.Load() {
		return errFakeQuery
	}
	return nil
}

func (c *fakeConn) QueryContext(_ context.Context, _ string, _ []driver.NamedValue) (driver.Rows, error) {
	c.queries.Add(1)
	if c.failQry.Load() {
		return nil, errFakeQuery
	}
	return &fakeRows{}, nil
}

type fakeRows struct{ served bool }

func (r *fakeRows) Columns() []string { return []string{"?column?"} }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.served {
		return io.EOF
	}
	r.served = true
	dest[0] = int64(1)
	return nil
}

type fakeConnector struct {
	mu    sync.Mutex
	conns []*fakeConn
	fail  atomic.Bool
}

func (f *fakeConnector) Connect(context.Context) (driver.Conn, error) {
	if f.fail.Load() {
		return nil, errors.New("fake: connection refused")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeConn{id: len(f.conns) + 1}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeConnector) Driver() driver.Driver { return fakeDriver{f} }

func (f *fakeConnector) opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeConnector) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[i-1]
}

type fakeDriver struct{ c *fakeConnector }

func (d fakeDriver) Open(string) (driver.Conn, error) { return d.c.Connect(context.Background()) }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
