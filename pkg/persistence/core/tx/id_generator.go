// Package tx manages the physical side of a transaction: acquiring a connection, emulating the
// transaction boundary with a named savepoint, and recycling the connection across transactions.
package tx

import (
	"sync/atomic"
)

// IDGenerator hands out transaction ids. Ids double as savepoint name suffixes, so an
// implementation must never repeat an id within the lifetime of the process.
type IDGenerator interface {
	// Next returns the next id. Successive calls return strictly increasing values.
	Next() int64
}

// AtomicIDGenerator is a thread-safe monotonic counter.
// Share one instance across every factory so savepoint names never collide.
type AtomicIDGenerator struct {
	counter atomic.Int64
}

// NewAtomicIDGenerator creates a generator whose first id is start+1.
func NewAtomicIDGenerator(start int64) *AtomicIDGenerator {
	g := &AtomicIDGenerator{}
	g.counter.Store(start)
	return g
}

// Next implements IDGenerator.
func (g *AtomicIDGenerator) Next() int64 {
	return g.counter.Add(1)
}

// Current returns the last id handed out.
func (g *AtomicIDGenerator) Current() int64 {
	return g.counter.Load()
}

var _ IDGenerator = (*AtomicIDGenerator)(nil)
