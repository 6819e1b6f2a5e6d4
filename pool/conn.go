package pool

import (
	"database/sql/driver"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"
)

// Conn is a lease on one physical connection. It must be released exactly
// once; further calls to Release are no-ops.
type Conn struct {
	pool *Pool
	res  *puddle.Resource[*physical]
	phys *physical
	done atomic.Bool
}

// Raw returns the driver connection. It must not be used after Release.
func (c *Conn) Raw() driver.Conn {
	return c.phys.raw
}

// ID identifies the physical connection for logs.
func (c *Conn) ID() uint64 {
	return c.phys.id
}

// CreatedAt is when the physical connection was opened.
func (c *Conn) CreatedAt() time.Time {
	return c.phys.createdAt
}

// Pool returns the name of the owning pool.
func (c *Conn) Pool() string {
	return c.pool.policy.Name
}

// MarkBad makes Release close the connection instead of returning it.
func (c *Conn) MarkBad() {
	if !c.done.Load() {
		c.phys.bad = true
	}
}

// Released reports whether the lease has been given back.
func (c *Conn) Released() bool {
	return c.done.Load()
}

// Release gives the connection back to the pool. Connections marked bad or
// past MaxLifeTime are closed instead.
func (c *Conn) Release() {
	if !c.done.CompareAndSwap(false, true) {
		return
	}

	p := c.pool
	now := p.now()
	switch {
	case c.phys.bad:
		p.evict(c.res, markedBad)
	case now.Sub(c.phys.createdAt) >= p.policy.MaxLifeTime:
		p.evict(c.res, lifeExpired)
	default:
		c.phys.lastUsed = now
		c.phys.pooled = true
		c.res.Release()
	}
}
