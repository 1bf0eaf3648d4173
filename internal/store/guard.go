package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mesh-intelligence/tagall/pkg/types"
)

// Conn is one live database handle paired with the engine that owns it.
type Conn struct {
	DB     *sql.DB
	Engine Engine
}

// Close closes the handle and then the engine.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}
	if c.Engine != nil {
		if err := c.Engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing engine: %w", err))
		}
	}
	return errors.Join(errs...)
}

var guardSeq atomic.Uint64

// Guard holds at most one live Conn behind a mutex. Every repository of a
// store shares the same Guard, so swapping the Conn swaps it for all of them.
//
// The mutex is not re-entrant. Code running inside Do must not call any
// method of the same Guard; repositories use the *Tx helpers for nested work.
type Guard struct {
	mu   sync.Mutex
	seq  uint64
	conn *Conn
}

// NewGuard returns a guard holding c, which may be nil.
func NewGuard(c *Conn) *Guard {
	return &Guard{seq: guardSeq.Add(1), conn: c}
}

// Acquire returns the current connection or ErrUninitialized.
func (g *Guard) Acquire() (*Conn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return nil, types.ErrUninitialized
	}
	return g.conn, nil
}

// Do runs fn with the current connection while holding the lock. It fails
// fast with ErrUninitialized when no connection is installed.
func (g *Guard) Do(ctx context.Context, fn func(*Conn) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return types.ErrUninitialized
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(g.conn)
}

// Install sets c as the current connection and returns the previous one,
// which the caller now owns.
func (g *Guard) Install(c *Conn) *Conn {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev := g.conn
	g.conn = c
	return prev
}

// Replace swaps the connections of g and other under both locks. Locks are
// taken in creation order so concurrent Replace calls cannot deadlock.
func (g *Guard) Replace(other *Guard) {
	if g == other {
		return
	}
	first, second := g, other
	if second.seq < first.seq {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	g.conn, other.conn = other.conn, g.conn
}

// Take removes the current connection without closing it.
func (g *Guard) Take() *Conn {
	return g.Install(nil)
}

// Close closes and clears the current connection. Closing an empty guard is
// a no-op.
func (g *Guard) Close() error {
	return g.Take().Close()
}

// Installed reports whether a connection is set.
func (g *Guard) Installed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn != nil
}
