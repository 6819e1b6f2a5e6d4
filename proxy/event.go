package proxy

import (
	"context"
	"database/sql/driver"
	"errors"
	"sort"
	"time"
)

// ExecutionKind tells how a statement reached the driver.
type ExecutionKind string

const (
	KindQuery     ExecutionKind = "query"
	KindExec      ExecutionKind = "exec"
	KindStmtQuery ExecutionKind = "stmt-query"
	KindStmtExec  ExecutionKind = "stmt-exec"
)

// ReturnsRows reports whether the kind produces a result set.
func (k ExecutionKind) ReturnsRows() bool {
	return k == KindQuery || k == KindStmtQuery
}

// QueryEvent describes one statement execution. It is created when the
// statement starts, completed when its result is closed, and handed to every
// hook on the same goroutine.
type QueryEvent struct {
	Query  string
	Args   []driver.NamedValue
	Kind   ExecutionKind
	ConnID uint64
	Caller string

	StartTime time.Time
	Duration  time.Duration

	// Columns and Rows hold the captured result set, in column order.
	Columns       []string
	Rows          []map[string]any
	RowsTruncated bool
	// RowsAffected is the exec row count, or the number of rows read.
	RowsAffected int64

	Err error
}

// BoundValues returns positional arguments in ordinal order followed by
// named arguments in the order they were given.
func (e *QueryEvent) BoundValues() []any {
	positional := make([]driver.NamedValue, 0, len(e.Args))
	var named []driver.NamedValue
	for _, a := range e.Args {
		if a.Name == "" {
			positional = append(positional, a)
		} else {
			named = append(named, a)
		}
	}
	sort.SliceStable(positional, func(i, j int) bool {
		return positional[i].Ordinal < positional[j].Ordinal
	})

	values := make([]any, 0, len(e.Args))
	for _, a := range positional {
		values = append(values, a.Value)
	}
	for _, a := range named {
		values = append(values, a.Value)
	}
	return values
}

// Skipped reports whether the driver declined the fast path and
// database/sql retried the statement another way.
func (e *QueryEvent) Skipped() bool {
	return errors.Is(e.Err, driver.ErrSkip)
}

type callerKey struct{}

// WithCaller attributes statements run with ctx to id.
func WithCaller(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// CallerFromContext returns the id set by WithCaller, or "".
func CallerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(callerKey{}).(string)
	return id
}
