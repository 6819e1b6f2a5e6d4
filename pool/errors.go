package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolExhausted is returned when AcquireTimeout elapses while every
	// connection is leased.
	ErrPoolExhausted = errors.New("pool: exhausted")
	// ErrValidationFailed marks a reused connection that failed its check.
	ErrValidationFailed = errors.New("pool: connection validation failed")
	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("pool: closed")
)

// ValidationError describes a failed check on a reused connection.
type ValidationError struct {
	Pool   string
	ConnID uint64
	Depth  ValidationDepth
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pool %s: conn %d failed %s validation: %v", e.Pool, e.ConnID, e.Depth, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports ErrValidationFailed as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
