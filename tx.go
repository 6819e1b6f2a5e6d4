package gamekit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/gamekit/proxy"
)

// Tx is a transaction. It keeps one pool lease from Begin until Commit or
// Rollback, so long transactions count against Policy.MaxSize.
type Tx struct {
	bun.Tx
	db    *DB
	depth int           // 0 for the outer transaction, n inside n savepoints
	seq   *atomic.Int64 // savepoint names, shared by the nesting
}

var _ IDB = (*Tx)(nil)

// TxOptions selects isolation and access mode.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// DefaultTxOptions uses the server's default isolation, read-write.
func DefaultTxOptions() TxOptions { return TxOptions{} }

// ReadOnlyTxOptions is DefaultTxOptions, read-only.
func ReadOnlyTxOptions() TxOptions { return TxOptions{ReadOnly: true} }

// SerializableTxOptions is serializable isolation, read-write.
func SerializableTxOptions() TxOptions { return TxOptions{Isolation: sql.LevelSerializable} }

// TxFunc is the body of a transaction.
type TxFunc func(tx *Tx) error

// Transaction runs fn in a transaction. It commits when fn returns nil and
// rolls back when fn fails or panics; a panic is re-raised afterwards.
func (db *DB) Transaction(ctx context.Context, fn TxFunc) error {
	return db.TransactionWithOptions(ctx, DefaultTxOptions(), fn)
}

// ReadOnlyTransaction is Transaction with ReadOnlyTxOptions.
func (db *DB) ReadOnlyTransaction(ctx context.Context, fn TxFunc) error {
	return db.TransactionWithOptions(ctx, ReadOnlyTxOptions(), fn)
}

// TransactionWithOptions is Transaction with explicit options.
func (db *DB) TransactionWithOptions(ctx context.Context, opts TxOptions, fn TxFunc) error {
	tx, err := db.BeginWithOptions(ctx, opts)
	if err != nil {
		return err
	}
	return tx.settle(ctx, fn, tx.Commit, tx.Rollback)
}

// Begin starts a transaction the caller commits or rolls back.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	return db.BeginWithOptions(ctx, DefaultTxOptions())
}

// BeginWithOptions is Begin with explicit options.
func (db *DB) BeginWithOptions(ctx context.Context, opts TxOptions) (*Tx, error) {
	bunTx, err := db.DB.BeginTx(ctx, &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, wrapError(err, "Begin")
	}
	return &Tx{Tx: bunTx, db: db, seq: new(atomic.Int64)}, nil
}

// Commit commits the transaction and releases its lease.
func (tx *Tx) Commit() error {
	return wrapError(tx.Tx.Commit(), "Commit")
}

// Rollback aborts the transaction and releases its lease. Rolling back a
// finished transaction is a no-op.
func (tx *Tx) Rollback() error {
	err := tx.Tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return wrapError(err, "Rollback")
}

// Transaction runs fn inside a savepoint of tx. A failure undoes fn's work
// only; the outer transaction stays usable.
func (tx *Tx) Transaction(ctx context.Context, fn TxFunc) error {
	name := fmt.Sprintf("sp_%d", tx.seq.Add(1))
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return wrapError(err, "Transaction.Savepoint")
	}

	nested := &Tx{Tx: tx.Tx, db: tx.db, depth: tx.depth + 1, seq: tx.seq}
	release := func() error {
		_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
		return wrapError(err, "Transaction.ReleaseSavepoint")
	}
	undo := func() error {
		_, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
		return wrapError(err, "Transaction.RollbackToSavepoint")
	}
	return nested.settle(ctx, fn, release, undo)
}

// Parent returns the database the transaction was started on.
func (tx *Tx) Parent() *DB {
	return tx.db
}

// settle runs fn, then commit on success or undo on error or panic.
func (tx *Tx) settle(ctx context.Context, fn TxFunc, commit, undo func() error) error {
	defer func() {
		if p := recover(); p != nil {
			_ = undo()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if undoErr := undo(); undoErr != nil {
			return fmt.Errorf("gamekit: rollback failed: %v (cause: %w)", undoErr, err)
		}
		tx.db.logger.LogAttrs(ctx, slog.LevelDebug, "gamekit: transaction rolled back",
			slog.Int("depth", tx.depth),
			slog.String("caller", proxy.CallerFromContext(ctx)),
			slog.String("error", err.Error()),
		)
		return err
	}
	return commit()
}
