// Package pool keeps a bounded set of physical database connections.
//
// Leasing, waiting and capacity are handled by puddle. On top of it the pool
// enforces idle and lifetime limits, validates connections coming back out of
// the idle set, and sweeps expired idle connections in the background.
package pool

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"
)

// physical is one driver connection owned by the pool.
// Fields other than id and createdAt are only touched by the current holder.
type physical struct {
	id        uint64
	raw       driver.Conn
	createdAt time.Time
	lastUsed  time.Time
	pooled    bool // has sat in the idle set at least once
	bad       bool
}

type warmKey struct{}

type evictReason int

const (
	keep evictReason = iota
	idleExpired
	lifeExpired
	markedBad
)

func (r evictReason) String() string {
	switch r {
	case idleExpired:
		return "idle"
	case lifeExpired:
		return "lifetime"
	case markedBad:
		return "bad"
	default:
		return "none"
	}
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock replaces time.Now for expiry bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// Pool leases connections produced by a driver.Connector.
type Pool struct {
	policy    Policy
	connector driver.Connector
	res       *puddle.Pool[*physical]
	logger    *slog.Logger
	now       func() time.Time

	nextID atomic.Uint64
	closed atomic.Bool

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	created            atomic.Int64
	destroyed          atomic.Int64
	validationFailures atomic.Int64
	idleEvictions      atomic.Int64
	lifetimeEvictions  atomic.Int64
	exhausted          atomic.Int64
}

// New creates a pool and opens policy.InitialSize connections before returning.
func New(ctx context.Context, connector driver.Connector, policy Policy, opts ...Option) (*Pool, error) {
	if connector == nil {
		return nil, errors.New("pool: connector is required")
	}
	policy.applyDefaults()
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		policy:    policy,
		connector: connector,
		logger:    slog.Default(),
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	res, err := puddle.NewPool(&puddle.Config[*physical]{
		Constructor: p.construct,
		Destructor:  p.destruct,
		MaxSize:     int32(policy.MaxSize),
	})
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", policy.Name, err)
	}
	p.res = res

	warm := context.WithValue(ctx, warmKey{}, true)
	for i := 0; i < policy.InitialSize; i++ {
		if err := res.CreateResource(warm); err != nil {
			res.Close()
			return nil, fmt.Errorf("pool %s: open initial connection %d/%d: %w",
				policy.Name, i+1, policy.InitialSize, err)
		}
	}

	if policy.ReapInterval > 0 {
		p.wg.Add(1)
		go p.reapLoop(policy.ReapInterval)
	}

	p.logger.Info("pool: started",
		slog.String("pool", policy.Name),
		slog.Int("initial", policy.InitialSize),
		slog.Int("max", policy.MaxSize),
		slog.String("validation", string(policy.ValidationDepth)),
	)
	return p, nil
}

// Policy returns the effective policy after defaults.
func (p *Pool) Policy() Policy {
	return p.policy
}

// Acquire leases a connection, waiting up to AcquireTimeout for one to
// become free. Expired idle connections are closed and invalid ones are
// replaced; neither is ever returned.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	waitCtx := ctx
	if p.policy.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.policy.AcquireTimeout)
		defer cancel()
	}

	for {
		res, err := p.res.Acquire(waitCtx)
		if err != nil {
			return nil, p.acquireError(ctx, err)
		}

		ph := res.Value()
		if reason := p.expiry(ph, p.now()); reason != keep {
			p.evict(res, reason)
			continue
		}

		if ph.pooled {
			if err := p.validate(waitCtx, ph); err != nil {
				p.validationFailures.Add(1)
				p.logger.Debug("pool: discarding connection",
					slog.String("pool", p.policy.Name),
					slog.Uint64("conn_id", ph.id),
					slog.Any("error", err),
				)
				res.Destroy()
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
		}

		return &Conn{pool: p, res: res, phys: ph}, nil
	}
}

// Close stops the reaper and closes every connection. It blocks until all
// leased connections have been released.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.stop)
		p.wg.Wait()
		p.res.Close()
		p.logger.Info("pool: closed", slog.String("pool", p.policy.Name))
	})
}

func (p *Pool) acquireError(caller context.Context, err error) error {
	switch {
	case errors.Is(err, puddle.ErrClosedPool):
		return ErrClosed
	case caller.Err() != nil:
		return caller.Err()
	case errors.Is(err, context.DeadlineExceeded) && p.res.Stat().TotalResources() >= int32(p.policy.MaxSize):
		p.exhausted.Add(1)
		return fmt.Errorf("%w: no connection within %s (max %d)", ErrPoolExhausted, p.policy.AcquireTimeout, p.policy.MaxSize)
	default:
		return fmt.Errorf("pool %s: connect: %w", p.policy.Name, err)
	}
}

func (p *Pool) construct(ctx context.Context) (*physical, error) {
	raw, err := p.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}

	now := p.now()
	ph := &physical{
		id:        p.nextID.Add(1),
		raw:       raw,
		createdAt: now,
		lastUsed:  now,
		pooled:    ctx.Value(warmKey{}) != nil,
	}
	p.created.Add(1)
	p.logger.Debug("pool: connection opened",
		slog.String("pool", p.policy.Name),
		slog.Uint64("conn_id", ph.id),
	)
	return ph, nil
}

func (p *Pool) destruct(ph *physical) {
	p.destroyed.Add(1)
	if err := ph.raw.Close(); err != nil {
		p.logger.Debug("pool: close connection",
			slog.String("pool", p.policy.Name),
			slog.Uint64("conn_id", ph.id),
			slog.Any("error", err),
		)
	}
}

func (p *Pool) expiry(ph *physical, now time.Time) evictReason {
	if now.Sub(ph.createdAt) >= p.policy.MaxLifeTime {
		return lifeExpired
	}
	if now.Sub(ph.lastUsed) >= p.policy.MaxIdleTime {
		return idleExpired
	}
	return keep
}

// evict destroys a held resource and counts why.
func (p *Pool) evict(res *puddle.Resource[*physical], reason evictReason) {
	switch reason {
	case idleExpired:
		p.idleEvictions.Add(1)
	case lifeExpired:
		p.lifetimeEvictions.Add(1)
	}
	p.logger.Debug("pool: evicting connection",
		slog.String("pool", p.policy.Name),
		slog.Uint64("conn_id", res.Value().id),
		slog.String("reason", reason.String()),
	)
	res.Destroy()
}

func (p *Pool) validate(ctx context.Context, ph *physical) error {
	var err error
	switch {
	case ph.bad:
		err = errors.New("marked bad")
	case p.policy.ValidationDepth == ValidateLocal:
		if v, ok := ph.raw.(driver.Validator); ok && !v.IsValid() {
			err = errors.New("driver reports connection invalid")
		}
	default:
		vctx, cancel := context.WithTimeout(ctx, p.policy.ValidationTimeout)
		err = remoteCheck(vctx, ph.raw, p.policy.ValidationQuery)
		cancel()
	}
	if err != nil {
		return &ValidationError{Pool: p.policy.Name, ConnID: ph.id, Depth: p.policy.ValidationDepth, Err: err}
	}
	return nil
}

// remoteCheck runs query on conn and drains the result, or pings when query
// is empty.
func remoteCheck(ctx context.Context, conn driver.Conn, query string) error {
	if query == "" {
		if pinger, ok := conn.(driver.Pinger); ok {
			return pinger.Ping(ctx)
		}
		return nil
	}

	if q, ok := conn.(driver.QueryerContext); ok {
		rows, err := q.QueryContext(ctx, query, nil)
		if !errors.Is(err, driver.ErrSkip) {
			if err != nil {
				return err
			}
			return drain(rows)
		}
	}

	var (
		stmt driver.Stmt
		err  error
	)
	if pc, ok := conn.(driver.ConnPrepareContext); ok {
		stmt, err = pc.PrepareContext(ctx, query)
	} else {
		stmt, err = conn.Prepare(query)
	}
	if err != nil {
		return err
	}
	defer stmt.Close()

	var rows driver.Rows
	if sq, ok := stmt.(driver.StmtQueryContext); ok {
		rows, err = sq.QueryContext(ctx, nil)
	} else {
		rows, err = stmt.Query(nil) //nolint:staticcheck
	}
	if err != nil {
		return err
	}
	return drain(rows)
}

func drain(rows driver.Rows) error {
	dest := make([]driver.Value, len(rows.Columns()))
	for {
		if err := rows.Next(dest); err != nil {
			if err == io.EOF {
				break
			}
			rows.Close()
			return err
		}
	}
	return rows.Close()
}

func (p *Pool) reapLoop(interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.reap()
		}
	}
}

// reap closes idle connections past their idle or lifetime limit.
func (p *Pool) reap() {
	now := p.now()
	for _, res := range p.res.AcquireAllIdle() {
		if reason := p.expiry(res.Value(), now); reason != keep {
			p.evict(res, reason)
			continue
		}
		res.ReleaseUnused()
	}
}
