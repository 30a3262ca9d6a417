// pool provides typed free lists for the objects an execution allocates on
// every run: query contexts, result buffers and group buckets.
package pool

import "sync"

// Pool is a typed wrapper over sync.Pool. Values are reset before they are
// returned to the free list.
type Pool[T any] struct {
	p     sync.Pool
	reset func(*T)
}

// New creates a pool. newFn builds a value when the free list is empty and
// reset clears a value before it is reused. reset may be nil.
func New[T any](newFn func() *T, reset func(*T)) *Pool[T] {
	return &Pool[T]{
		p:     sync.Pool{New: func() any { return newFn() }},
		reset: reset,
	}
}

// Get takes a value from the free list.
func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

// Put resets v and returns it to the free list.
func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}

// With runs fn with a value from the pool and returns the value afterwards,
// whether fn fails or panics.
func (p *Pool[T]) With(fn func(*T) error) error {
	v := p.Get()
	defer p.Put(v)
	return fn(v)
}
