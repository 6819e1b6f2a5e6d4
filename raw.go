package gamekit

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Query builders render their arguments into the SQL text before it reaches
// database/sql, so the proxy sees no bound values for them. The functions in
// this file pass the statement and its arguments to the driver as they are,
// which keeps the bindings visible to hooks and lets the server bind them.
//
// Statements use ? placeholders on every dialect; on PostgreSQL they are
// renumbered to $1, $2, ... before they are sent.

// sqlRunner is the database/sql handle under a DB or a Tx.
type sqlRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// boundHandle returns the database/sql handle and the bun DB used for
// scanning. Other IDB implementations get their own methods, which format
// arguments client side.
func boundHandle(db IDB) (sqlRunner, *bun.DB) {
	switch v := db.(type) {
	case *DB:
		return v.DB.DB, v.DB
	case *Tx:
		return v.Tx.Tx, v.db.DB
	default:
		return nil, nil
	}
}

// Select runs query with args bound by the driver and scans every row into
// a T by column name. No rows is an empty slice.
//
//	games, err := gamekit.Select[game.Game](ctx, db, "SELECT * FROM game WHERE group_key = ?", key)
func Select[T any](ctx context.Context, db IDB, query string, args ...any) ([]T, error) {
	items := []T{}
	run, bunDB := boundHandle(db)
	if run == nil {
		if err := db.NewRaw(query, args...).Scan(ctx, &items); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, modelError[T](db, err, "Select")
		}
		return items, nil
	}

	rows, err := run.QueryContext(ctx, rebind(db.Dialect().Name(), query), args...)
	if err != nil {
		return nil, modelError[T](db, err, "Select")
	}
	if err := bunDB.ScanRows(ctx, rows, &items); err != nil {
		return nil, modelError[T](db, err, "Select")
	}
	return items, nil
}

// SelectOne is Select for a single row. No rows is CodeNotFound.
func SelectOne[T any](ctx context.Context, db IDB, query string, args ...any) (*T, error) {
	items, err := Select[T](ctx, db, query, args...)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, modelError[T](db, sql.ErrNoRows, "SelectOne")
	}
	return &items[0], nil
}

// SelectInt runs a query returning one integer, such as a count.
func SelectInt(ctx context.Context, db IDB, query string, args ...any) (int, error) {
	var n int
	run, _ := boundHandle(db)
	var row *sql.Row
	if run == nil {
		row = db.QueryRowContext(ctx, query, args...)
	} else {
		row = run.QueryRowContext(ctx, rebind(db.Dialect().Name(), query), args...)
	}
	if err := row.Scan(&n); err != nil {
		return 0, wrapError(err, "SelectInt")
	}
	return n, nil
}

// Exec runs a statement with args bound by the driver and returns the
// affected row count.
func Exec(ctx context.Context, db IDB, query string, args ...any) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if run, _ := boundHandle(db); run != nil {
		res, err = run.ExecContext(ctx, rebind(db.Dialect().Name(), query), args...)
	} else {
		res, err = db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return 0, wrapError(err, "Exec")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// PaginateSQL counts the rows query selects and loads one page of them,
// appending LIMIT and OFFSET as bound values. query must not carry its own
// LIMIT. A page past the end comes back empty without a second query.
func PaginateSQL[T any](ctx context.Context, db IDB, page, pageSize int, query string, args ...any) (*OffsetPage[T], error) {
	page, pageSize = normalizePage(page, pageSize)

	total, err := SelectInt(ctx, db, "SELECT count(*) FROM ("+query+") AS counted", args...)
	if err != nil {
		return nil, err
	}

	items := []T{}
	if (page-1)*pageSize < total {
		pageArgs := append(append([]any{}, args...), pageSize, (page-1)*pageSize)
		if items, err = Select[T](ctx, db, query+" LIMIT ? OFFSET ?", pageArgs...); err != nil {
			return nil, err
		}
	}
	return newOffsetPage(items, page, pageSize, total), nil
}

// rebind renumbers ? placeholders outside quoted text for PostgreSQL.
func rebind(name dialect.Name, query string) string {
	if name != dialect.PG || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			b.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)
		case c == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
