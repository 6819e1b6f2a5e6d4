package pool

import (
	"errors"
	"fmt"
	"time"
)

// ValidationDepth selects how a reused connection is checked before it is
// handed out.
type ValidationDepth string

const (
	// ValidateLocal trusts the driver's own view of the connection
	// (driver.Validator) and the pool's bad flag. No round trip.
	ValidateLocal ValidationDepth = "local"
	// ValidateRemote runs ValidationQuery, or Ping when it is empty.
	ValidateRemote ValidationDepth = "remote"
)

// ErrInvalidPolicy is returned by Policy.Validate and New.
var ErrInvalidPolicy = errors.New("pool: invalid policy")

// Policy holds pool sizing, expiry and validation settings
type Policy struct {
	Name string // Used in logs and metrics (default: "default")

	// Sizing
	InitialSize int // Connections opened eagerly by New (default: 2)
	MaxSize     int // Hard cap on physical connections (default: 10)

	// Expiry
	MaxIdleTime time.Duration // Idle connections older than this are closed (default: 10s)
	MaxLifeTime time.Duration // Connections older than this are closed (default: 60s)

	// Validation
	ValidationDepth   ValidationDepth // local or remote (default: remote)
	ValidationQuery   string          // Remote validation statement (default: "SELECT 1")
	ValidationTimeout time.Duration   // Budget for one remote validation (default: 5s)

	// Waiting
	AcquireTimeout time.Duration // Max wait for a connection (default: 30s)
	ReapInterval   time.Duration // Background expiry sweep period (default: MaxIdleTime/2)
}

// DefaultPolicy returns the defaults of the game service.
func DefaultPolicy() Policy {
	p := Policy{}
	p.applyDefaults()
	return p
}

// applyDefaults fills in zero values with defaults
func (p *Policy) applyDefaults() {
	if p.Name == "" {
		p.Name = "default"
	}
	// InitialSize 0 is a lazy pool; it is only defaulted with the cap.
	if p.MaxSize == 0 {
		p.MaxSize = 10
		if p.InitialSize == 0 {
			p.InitialSize = 2
		}
	}
	if p.MaxIdleTime == 0 {
		p.MaxIdleTime = 10 * time.Second
	}
	if p.MaxLifeTime == 0 {
		p.MaxLifeTime = 60 * time.Second
	}
	if p.ValidationDepth == "" {
		p.ValidationDepth = ValidateRemote
		if p.ValidationQuery == "" {
			p.ValidationQuery = "SELECT 1"
		}
	}
	if p.ValidationTimeout == 0 {
		p.ValidationTimeout = 5 * time.Second
	}
	if p.AcquireTimeout == 0 {
		p.AcquireTimeout = 30 * time.Second
	}
	if p.ReapInterval == 0 {
		p.ReapInterval = p.MaxIdleTime / 2
	}
}

// Validate checks the sizing and expiry invariants.
func (p Policy) Validate() error {
	switch {
	case p.MaxSize < 1:
		return fmt.Errorf("%w: max size %d must be at least 1", ErrInvalidPolicy, p.MaxSize)
	case p.InitialSize < 0 || p.InitialSize > p.MaxSize:
		return fmt.Errorf("%w: initial size %d must be within [0, %d]", ErrInvalidPolicy, p.InitialSize, p.MaxSize)
	case p.MaxIdleTime <= 0:
		return fmt.Errorf("%w: max idle time must be positive", ErrInvalidPolicy)
	case p.MaxLifeTime <= 0:
		return fmt.Errorf("%w: max life time must be positive", ErrInvalidPolicy)
	case p.ValidationDepth != ValidateLocal && p.ValidationDepth != ValidateRemote:
		return fmt.Errorf("%w: unknown validation depth %q", ErrInvalidPolicy, p.ValidationDepth)
	case p.ValidationTimeout < 0, p.AcquireTimeout < 0, p.ReapInterval < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidPolicy)
	}
	return nil
}

// WithSize sets the initial and maximum pool size
func (p Policy) WithSize(initial, maxSize int) Policy {
	p.InitialSize = initial
	p.MaxSize = maxSize
	return p
}

// WithExpiry sets the idle and lifetime limits
func (p Policy) WithExpiry(idle, life time.Duration) Policy {
	p.MaxIdleTime = idle
	p.MaxLifeTime = life
	return p
}

// WithValidation sets the validation depth and query
func (p Policy) WithValidation(depth ValidationDepth, query string) Policy {
	p.ValidationDepth = depth
	p.ValidationQuery = query
	return p
}
