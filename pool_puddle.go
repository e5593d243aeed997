package saori

import (
	"context"
	"sync/atomic"

	"github.com/jackc/puddle/v2"
)

// PoolStats contains statistics about a connection pool.
type PoolStats struct {
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that had to wait
	CreatedConns      uint64 // Total connections created
	DestroyedConns    uint64 // Total connections destroyed
	AcquireErrors     uint64 // Canceled acquire attempts
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	TotalConns  int32 // Total connections in pool (active + idle)
	IdleConns   int32 // Idle connections available
	ActiveConns int32 // Connections currently in use
}

// connPool is a puddle pool of connections to one served module.
type connPool struct {
	pool           *puddle.Pool[*Connection]
	createdConns   atomic.Int64
	destroyedConns atomic.Int64
}

func newConnPool(constructor func(ctx context.Context) (*Connection, error), maxSize int32) (*connPool, error) {
	p := &connPool{}

	poolConfig := &puddle.Config[*Connection]{
		Constructor: func(ctx context.Context) (*Connection, error) {
			conn, err := constructor(ctx)
			if err == nil {
				p.createdConns.Add(1)
			}
			return conn, err
		},
		Destructor: func(c *Connection) {
			p.destroyedConns.Add(1)
			_ = c.Close()
		},
		MaxSize: maxSize,
	}

	pool, err := puddle.NewPool(poolConfig)
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// with runs fn on a pooled connection. Connections left closed by fn are
// destroyed, healthy ones go back to the pool.
func (p *connPool) with(ctx context.Context, fn func(*Connection) error) error {
	res, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	err = fn(res.Value())
	if res.Value().IsClosed() {
		res.Destroy()
	} else {
		res.Release()
	}
	return err
}

func (p *connPool) close() {
	p.pool.Close()
}

// stats returns a snapshot of pool statistics by converting puddle's stats to our format.
func (p *connPool) stats() PoolStats {
	s := p.pool.Stat()

	return PoolStats{
		TotalConns:        s.TotalResources(),
		IdleConns:         s.IdleResources(),
		ActiveConns:       s.AcquiredResources(),
		AcquireCount:      uint64(s.AcquireCount()),
		AcquireWaitCount:  uint64(s.EmptyAcquireCount()), // Acquires that had to wait (pool was empty)
		CreatedConns:      uint64(p.createdConns.Load()),
		DestroyedConns:    uint64(p.destroyedConns.Load()),
		AcquireErrors:     uint64(s.CanceledAcquireCount()),
		AcquireWaitTimeNs: uint64(s.EmptyAcquireWaitTime().Nanoseconds()),
	}
}
