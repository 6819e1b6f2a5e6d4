package gamekit

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// The helpers below take any IDB, so they run the same on *DB and inside a
// *Tx. Failures come back as *Error carrying the operation and the model's
// table.

// FindByID loads the row whose id column equals id.
func FindByID[T any](ctx context.Context, db IDB, id any) (*T, error) {
	model := new(T)
	err := db.NewSelect().Model(model).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, modelError[T](db, err, "FindByID")
	}
	return model, nil
}

// FindOne loads the first row query selects.
func FindOne[T any](ctx context.Context, db IDB, query func(q *bun.SelectQuery) *bun.SelectQuery) (*T, error) {
	model := new(T)
	q := db.NewSelect().Model(model)
	if query != nil {
		q = query(q)
	}
	if err := q.Limit(1).Scan(ctx); err != nil {
		return nil, modelError[T](db, err, "FindOne")
	}
	return model, nil
}

// FindAll loads every row query selects. No match is an empty slice.
func FindAll[T any](ctx context.Context, db IDB, query func(q *bun.SelectQuery) *bun.SelectQuery) ([]T, error) {
	var models []T
	q := db.NewSelect().Model(&models)
	if query != nil {
		q = query(q)
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, modelError[T](db, err, "FindAll")
	}
	return models, nil
}

// Create inserts model. Generated keys are written back into it.
func Create[T any](ctx context.Context, db IDB, model *T) error {
	if _, err := db.NewInsert().Model(model).Exec(ctx); err != nil {
		return modelError[T](db, err, "Create")
	}
	return nil
}

// CreateMany inserts models in one statement.
func CreateMany[T any](ctx context.Context, db IDB, models []T) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.NewInsert().Model(&models).Exec(ctx); err != nil {
		return modelError[T](db, err, "CreateMany")
	}
	return nil
}

// Update writes every column of model by primary key.
func Update[T any](ctx context.Context, db IDB, model *T) error {
	res, err := db.NewUpdate().Model(model).WherePK().Exec(ctx)
	return affected[T](db, res, err, "Update")
}

// UpdateColumns writes only columns of model by primary key.
func UpdateColumns[T any](ctx context.Context, db IDB, model *T, columns ...string) error {
	res, err := db.NewUpdate().Model(model).Column(columns...).WherePK().Exec(ctx)
	return affected[T](db, res, err, "UpdateColumns")
}

// Delete removes model by primary key.
func Delete[T any](ctx context.Context, db IDB, model *T) error {
	res, err := db.NewDelete().Model(model).WherePK().Exec(ctx)
	return affected[T](db, res, err, "Delete")
}

// DeleteByID removes the row whose id column equals id.
func DeleteByID[T any](ctx context.Context, db IDB, id any) error {
	res, err := db.NewDelete().Model(new(T)).Where("id = ?", id).Exec(ctx)
	return affected[T](db, res, err, "DeleteByID")
}

// ExistsByID reports whether a row with this id exists.
func ExistsByID[T any](ctx context.Context, db IDB, id any) (bool, error) {
	ok, err := db.NewSelect().Model(new(T)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return false, modelError[T](db, err, "ExistsByID")
	}
	return ok, nil
}

// Count counts the rows query selects. A nil query counts the table.
func Count[T any](ctx context.Context, db IDB, query func(q *bun.SelectQuery) *bun.SelectQuery) (int, error) {
	q := db.NewSelect().Model(new(T))
	if query != nil {
		q = query(q)
	}
	n, err := q.Count(ctx)
	if err != nil {
		return 0, modelError[T](db, err, "Count")
	}
	return n, nil
}

// CountAll counts the table.
func CountAll[T any](ctx context.Context, db IDB) (int, error) {
	return Count[T](ctx, db, nil)
}

// Upsert inserts model or, on a unique key collision, overwrites
// updateColumns. MySQL picks the colliding key itself, so conflictColumns
// only matters on PostgreSQL.
func Upsert[T any](ctx context.Context, db IDB, model *T, conflictColumns []string, updateColumns []string) error {
	q := db.NewInsert().Model(model)
	if db.Dialect().Name() == dialect.MySQL {
		q = q.On("DUPLICATE KEY UPDATE")
		for _, col := range updateColumns {
			q = q.Set(col + " = VALUES(" + col + ")")
		}
	} else {
		q = q.On("CONFLICT (" + strings.Join(conflictColumns, ", ") + ") DO UPDATE")
		for _, col := range updateColumns {
			q = q.Set(col + " = EXCLUDED." + col)
		}
	}
	if _, err := q.Exec(ctx); err != nil {
		return modelError[T](db, err, "Upsert")
	}
	return nil
}

// Reload refreshes model from its row.
func Reload[T any](ctx context.Context, db IDB, model *T) error {
	if err := db.NewSelect().Model(model).WherePK().Scan(ctx); err != nil {
		return modelError[T](db, err, "Reload")
	}
	return nil
}

// affected turns a write that matched no row into CodeNotFound.
func affected[T any](db IDB, res sql.Result, err error, op string) error {
	if err != nil {
		return modelError[T](db, err, op)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &Error{
			Code:    CodeNotFound,
			Message: "no matching record",
			Op:      op,
			Table:   tableName[T](db),
		}
	}
	return nil
}

// modelError wraps err and fills in the table when the server did not.
func modelError[T any](db IDB, err error, op string) error {
	wrapped := wrapError(err, op)
	var dbErr *Error
	if errors.As(wrapped, &dbErr) && dbErr.Table == "" {
		dbErr.Table = tableName[T](db)
	}
	return wrapped
}

func tableName[T any](db IDB) string {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return ""
	}
	return db.Dialect().Tables().Get(typ).Name
}
