package gamekit

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/fernandezvara/gamekit/pool"
)

// ErrorCode represents a database error classification
type ErrorCode string

const (
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeDuplicate        ErrorCode = "DUPLICATE"
	CodeForeignKey       ErrorCode = "FOREIGN_KEY"
	CodeCheckViolation   ErrorCode = "CHECK_VIOLATION"
	CodeNotNullViolation ErrorCode = "NOT_NULL"
	CodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeSerialization    ErrorCode = "SERIALIZATION"
	CodeDeadlock         ErrorCode = "DEADLOCK"
	CodeUnknown          ErrorCode = "UNKNOWN"
)

// Sentinel errors for quick checks
var (
	ErrNotFound         = errors.New("gamekit: record not found")
	ErrDuplicate        = errors.New("gamekit: duplicate key violation")
	ErrForeignKey       = errors.New("gamekit: foreign key violation")
	ErrCheckViolation   = errors.New("gamekit: check constraint violation")
	ErrNotNullViolation = errors.New("gamekit: not null violation")
	ErrConnection       = errors.New("gamekit: connection failed")
	ErrTimeout          = errors.New("gamekit: operation timeout")
	ErrSerialization    = errors.New("gamekit: serialization failure")
	ErrDeadlock         = errors.New("gamekit: deadlock detected")
)

// Error is a rich database error with context
type Error struct {
	Code       ErrorCode // Error classification
	Message    string    // Human-readable message
	Op         string    // Operation that failed (e.g., "FindByID", "Create")
	Table      string    // Table name if known
	Column     string    // Column name if known
	Constraint string    // Constraint name if applicable
	Detail     string    // Additional detail from the server
	Hint       string    // Hint from PostgreSQL
	DBCode     string    // SQLSTATE or MySQL error number
	Query      string    // Query that failed (may be empty for security)
	Cause      error     // Underlying error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("gamekit: %s", e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("gamekit.%s: %s", e.Op, e.Message)
	}
	if e.Table != "" {
		msg += fmt.Sprintf(" (table: %s)", e.Table)
	}
	if e.Constraint != "" {
		msg += fmt.Sprintf(" (constraint: %s)", e.Constraint)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for sentinel error matching
func (e *Error) Is(target error) bool {
	switch e.Code {
	case CodeNotFound:
		return target == ErrNotFound
	case CodeDuplicate:
		return target == ErrDuplicate
	case CodeForeignKey:
		return target == ErrForeignKey
	case CodeCheckViolation:
		return target == ErrCheckViolation
	case CodeNotNullViolation:
		return target == ErrNotNullViolation
	case CodeConnectionFailed:
		return target == ErrConnection
	case CodeTimeout:
		return target == ErrTimeout
	case CodeSerialization:
		return target == ErrSerialization
	case CodeDeadlock:
		return target == ErrDeadlock
	}
	return false
}

// wrapError converts a raw error to a rich Error
func wrapError(err error, op string) error {
	if err == nil {
		return nil
	}

	// Already wrapped
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &Error{
			Code:    CodeNotFound,
			Message: "record not found",
			Op:      op,
			Cause:   err,
		}
	}

	// PostgreSQL specific errors
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return wrapPgError(pgFields{
			code:       pgErr.Code,
			message:    pgErr.Message,
			table:      pgErr.TableName,
			column:     pgErr.ColumnName,
			constraint: pgErr.ConstraintName,
			detail:     pgErr.Detail,
			hint:       pgErr.Hint,
		}, op, err)
	}

	var pgdErr pgdriver.Error
	if errors.As(err, &pgdErr) {
		return wrapPgError(pgFields{
			code:       pgdErr.Field('C'),
			message:    pgdErr.Field('M'),
			table:      pgdErr.Field('t'),
			column:     pgdErr.Field('c'),
			constraint: pgdErr.Field('n'),
			detail:     pgdErr.Field('D'),
			hint:       pgdErr.Field('H'),
		}, op, err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return wrapMySQLError(myErr, op, err)
	}

	switch {
	case errors.Is(err, pool.ErrPoolExhausted), errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: CodeTimeout, Message: err.Error(), Op: op, Cause: err}
	case errors.Is(err, pool.ErrClosed), errors.Is(err, driver.ErrBadConn), errors.Is(err, mysql.ErrInvalidConn):
		return &Error{Code: CodeConnectionFailed, Message: "database connection failed", Op: op, Cause: err}
	}

	// Generic wrapping
	return &Error{
		Code:    CodeUnknown,
		Message: err.Error(),
		Op:      op,
		Cause:   err,
	}
}

// pgFields carries the diagnostic fields shared by pgconn and pgdriver errors
type pgFields struct {
	code, message, table, column, constraint, detail, hint string
}

// wrapPgError converts PostgreSQL errors to rich errors
func wrapPgError(f pgFields, op string, cause error) *Error {
	e := &Error{
		Op:         op,
		Table:      f.table,
		Column:     f.column,
		Constraint: f.constraint,
		Detail:     f.detail,
		Hint:       f.hint,
		DBCode:     f.code,
		Cause:      cause,
	}

	// Map PostgreSQL error codes
	// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
	switch f.code {
	case "23505": // unique_violation
		e.Code = CodeDuplicate
		e.Message = "duplicate key value violates unique constraint"
	case "23503": // foreign_key_violation
		e.Code = CodeForeignKey
		e.Message = "foreign key constraint violation"
	case "23502": // not_null_violation
		e.Code = CodeNotNullViolation
		e.Message = "null value in column violates not-null constraint"
	case "23514": // check_violation
		e.Code = CodeCheckViolation
		e.Message = "check constraint violation"
	case "40001": // serialization_failure
		e.Code = CodeSerialization
		e.Message = "serialization failure, retry transaction"
	case "40P01": // deadlock_detected
		e.Code = CodeDeadlock
		e.Message = "deadlock detected"
	case "57014": // query_canceled (timeout)
		e.Code = CodeTimeout
		e.Message = "query was cancelled due to timeout"
	case "08000", "08003", "08006": // connection errors
		e.Code = CodeConnectionFailed
		e.Message = "database connection failed"
	default:
		e.Code = CodeUnknown
		e.Message = f.message
	}

	return e
}

// wrapMySQLError converts MySQL server errors to rich errors
// See: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
func wrapMySQLError(myErr *mysql.MySQLError, op string, cause error) *Error {
	e := &Error{
		Op:     op,
		Detail: myErr.Message,
		DBCode: fmt.Sprintf("%d", myErr.Number),
		Cause:  cause,
	}

	switch myErr.Number {
	case 1062, 1586: // ER_DUP_ENTRY, ER_DUP_ENTRY_WITH_KEY_NAME
		e.Code = CodeDuplicate
		e.Message = "duplicate key value violates unique constraint"
		e.Constraint = quotedAfter(myErr.Message, "for key ")
	case 1451, 1452: // ER_ROW_IS_REFERENCED_2, ER_NO_REFERENCED_ROW_2
		e.Code = CodeForeignKey
		e.Message = "foreign key constraint violation"
		e.Constraint = quotedAfter(myErr.Message, "CONSTRAINT ")
	case 1048, 1364: // ER_BAD_NULL_ERROR, ER_NO_DEFAULT_FOR_FIELD
		e.Code = CodeNotNullViolation
		e.Message = "null value in column violates not-null constraint"
		e.Column = quotedAfter(myErr.Message, "Column ")
		if e.Column == "" {
			e.Column = quotedAfter(myErr.Message, "Field ")
		}
	case 3819: // ER_CHECK_CONSTRAINT_VIOLATED
		e.Code = CodeCheckViolation
		e.Message = "check constraint violation"
		e.Constraint = quotedAfter(myErr.Message, "constraint ")
	case 1213: // ER_LOCK_DEADLOCK
		e.Code = CodeDeadlock
		e.Message = "deadlock detected"
	case 1205, 3024: // ER_LOCK_WAIT_TIMEOUT, ER_QUERY_TIMEOUT
		e.Code = CodeTimeout
		e.Message = "query was cancelled due to timeout"
	case 1040, 1053, 1152, 1158, 1159, 1160, 1161: // too many connections, shutdown, aborted or broken packets
		e.Code = CodeConnectionFailed
		e.Message = "database connection failed"
	default:
		e.Code = CodeUnknown
		e.Message = myErr.Message
	}

	return e
}

// quotedAfter returns the first quoted token following marker, without its
// schema prefix. MySQL quotes names with ' or `.
func quotedAfter(msg, marker string) string {
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if rest == "" || (rest[0] != '\'' && rest[0] != '`') {
		return ""
	}
	end := strings.IndexByte(rest[1:], rest[0])
	if end < 0 {
		return ""
	}
	name := rest[1 : end+1]
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		name = name[dot+1:]
	}
	return name
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate checks if error is a duplicate key error
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsForeignKey checks if error is a foreign key error
func IsForeignKey(err error) bool {
	return errors.Is(err, ErrForeignKey)
}

// IsCheckViolation checks if error is a check constraint error
func IsCheckViolation(err error) bool {
	return errors.Is(err, ErrCheckViolation)
}

// IsNotNullViolation checks if error is a not null violation error
func IsNotNullViolation(err error) bool {
	return errors.Is(err, ErrNotNullViolation)
}

// IsConnection checks if error is a connection error
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsTimeout checks if error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsRetryable checks if the error is retryable (serialization, deadlock)
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSerialization) || errors.Is(err, ErrDeadlock)
}

// GetErrorCode extracts the error code if it's a gamekit error
func GetErrorCode(err error) (ErrorCode, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Code, true
	}
	return "", false
}

// GetConstraint extracts the constraint name if available
func GetConstraint(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Constraint != "" {
		return dbErr.Constraint, true
	}
	return "", false
}

// GetTable extracts the table name if available
func GetTable(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Table != "" {
		return dbErr.Table, true
	}
	return "", false
}

// GetColumn extracts the column name if available
func GetColumn(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Column != "" {
		return dbErr.Column, true
	}
	return "", false
}

// GetDetail extracts the error detail if available
func GetDetail(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Detail != "" {
		return dbErr.Detail, true
	}
	return "", false
}

// GetHint extracts the error hint if available
func GetHint(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Hint != "" {
		return dbErr.Hint, true
	}
	return "", false
}

// QueryResult wraps a query result with error context for chainable error handling.
// It provides a way to add meaningful context to errors without depending on Bun internals.
type QueryResult[T any] struct {
	result T
	err    error
	op     string
}

// Err returns the wrapped error with enhanced context.
// If there was no error, it returns nil.
func (qr *QueryResult[T]) Err() error {
	return wrapError(qr.err, qr.op)
}

// Unwrap returns the result and the wrapped error.
// Use this when you need both the result and the error.
func (qr *QueryResult[T]) Unwrap() (T, error) {
	return qr.result, wrapError(qr.err, qr.op)
}

// Result returns only the result value.
// Use Err() to check for errors first.
func (qr *QueryResult[T]) Result() T {
	return qr.result
}

// HasError returns true if there was an error.
func (qr *QueryResult[T]) HasError() bool {
	return qr.err != nil
}

// WithErr wraps a result and error with operation context for enhanced error handling.
// This function allows chainable error handling with meaningful context.
//
// Usage:
//
//	// For operations that return (sql.Result, error)
//	result, err := gamekit.WithErr(db.NewInsert().Model(&user).Exec(ctx), "CreateUser").Unwrap()
//
//	// For operations that return only error (like Scan)
//	err := gamekit.WithErr1(db.NewSelect().Model(&user).Where("id = ?", id).Scan(ctx), "FindByID").Err()
//
//	// Check error directly
//	if gamekit.WithErr(db.NewInsert().Model(&user).Exec(ctx), "CreateUser").HasError() {
//	    // handle error
//	}
func WithErr[T any](result T, err error, op string) *QueryResult[T] {
	return &QueryResult[T]{
		result: result,
		err:    err,
		op:     op,
	}
}

// WithErr1 is a convenience function for operations that return only an error.
// This is useful for Scan() operations which don't return a result.
//
// Usage:
//
//	err := gamekit.WithErr1(db.NewSelect().Model(&user).Where("id = ?", id).Scan(ctx), "FindByID").Err()
func WithErr1(err error, op string) *QueryResult[struct{}] {
	return &QueryResult[struct{}]{
		result: struct{}{},
		err:    err,
		op:     op,
	}
}
