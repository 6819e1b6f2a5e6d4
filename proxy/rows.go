package proxy

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"reflect"
)

// rows records the result set while the caller iterates and completes the
// event once, on Close.
type rows struct {
	driver.Rows
	ctx     context.Context
	event   *QueryEvent
	cn      *conn
	columns []string
	max     int
	read    int64
	closed  bool
}

var (
	_ driver.RowsNextResultSet              = (*rows)(nil)
	_ driver.RowsColumnTypeDatabaseTypeName = (*rows)(nil)
	_ driver.RowsColumnTypeScanType         = (*rows)(nil)
)

func (r *rows) Next(dest []driver.Value) error {
	err := r.Rows.Next(dest)
	if err != nil {
		if !isEOF(err) && r.event.Err == nil {
			r.event.Err = err
		}
		return err
	}

	r.read++
	if r.max > 0 {
		if len(r.event.Rows) < r.max {
			r.event.Rows = append(r.event.Rows, rowMap(r.columns, dest))
		} else {
			r.event.RowsTruncated = true
		}
	}
	return nil
}

func (r *rows) Close() error {
	err := r.Rows.Close()
	if r.closed {
		return err
	}
	r.closed = true
	r.event.RowsAffected = r.read
	r.cn.finish(r.ctx, r.event, err)
	return err
}

func (r *rows) HasNextResultSet() bool {
	if n, ok := r.Rows.(driver.RowsNextResultSet); ok {
		return n.HasNextResultSet()
	}
	return false
}

func (r *rows) NextResultSet() error {
	n, ok := r.Rows.(driver.RowsNextResultSet)
	if !ok {
		return io.EOF
	}
	if err := n.NextResultSet(); err != nil {
		return err
	}
	r.columns = r.Rows.Columns()
	return nil
}

func (r *rows) ColumnTypeDatabaseTypeName(index int) string {
	if t, ok := r.Rows.(driver.RowsColumnTypeDatabaseTypeName); ok {
		return t.ColumnTypeDatabaseTypeName(index)
	}
	return ""
}

func (r *rows) ColumnTypeScanType(index int) reflect.Type {
	if t, ok := r.Rows.(driver.RowsColumnTypeScanType); ok {
		return t.ColumnTypeScanType(index)
	}
	return reflect.TypeOf(new(any)).Elem()
}

// rowMap copies one row keyed by column name. Byte slices are copied since
// drivers reuse their buffers between calls to Next.
func rowMap(columns []string, values []driver.Value) map[string]any {
	row := make(map[string]any, len(columns))
	for i, col := range columns {
		if i >= len(values) {
			break
		}
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = append([]byte(nil), b...)
		}
		row[col] = v
	}
	return row
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
