// Package pool provides typed object pooling for sqlpoller.
// It wraps sync.Pool with type safety, a reset hook and usage statistics.
//
// Example usage:
//
//	buf := pool.GetBuffer()
//	defer pool.PutBuffer(buf)
//
//	if err := encoder.Encode(buf, batch); err != nil {
//	    return err
//	}
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	keep  func(T) bool
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
		dropped   int64
	}
}

// New creates a typed pool. reset is called before an object goes back to
// the pool; it may be nil.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// WithKeep sets a predicate deciding whether a returned object is kept.
// Objects it rejects are left to the garbage collector.
func (p *Pool[T]) WithKeep(keep func(T) bool) *Pool[T] {
	p.keep = keep
	return p
}

// Get retrieves an object from the pool, allocating one when it is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool.
func (p *Pool[T]) Put(obj T) {
	atomic.AddInt64(&p.stats.inUse, -1)
	if p.keep != nil && !p.keep(obj) {
		atomic.AddInt64(&p.stats.dropped, 1)
		return
	}
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}

// Stats returns the number of objects allocated by the pool, currently
// checked out, requested in total and dropped on Put.
func (p *Pool[T]) Stats() (allocated, inUse, gets, dropped int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.gets),
		atomic.LoadInt64(&p.stats.dropped)
}

// MaxBufferSize is the largest buffer kept by the buffer pool
const MaxBufferSize = 8 << 20

// Buffers holds encode buffers shared by the sinks
var Buffers = New(
	func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 64<<10)) },
	func(b *bytes.Buffer) { b.Reset() },
).WithKeep(func(b *bytes.Buffer) bool { return b.Cap() <= MaxBufferSize })

// GetBuffer returns an empty buffer from the global pool
func GetBuffer() *bytes.Buffer {
	return Buffers.Get()
}

// PutBuffer returns a buffer to the global pool. Oversized buffers are dropped.
func PutBuffer(b *bytes.Buffer) {
	if b == nil {
		return
	}
	Buffers.Put(b)
}
