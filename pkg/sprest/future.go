package sprest

import (
	"context"
	"sync"
	"sync/atomic"
)

// Future is a completion signal that settles exactly once, either with nil
// or with the error that ended the operation.
type Future struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) settle(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the operation has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the settlement error, or nil while the operation is pending.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the operation settles or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result is the live handle returned by list operations. The handle exists
// before the server answers; its contents are filled in place and may only
// be read after Done is closed.
type Result struct {
	*Future

	resolved   atomic.Bool
	collection bool
	item       *Item
	items      []*Item
}

func newItemResult(item *Item) *Result {
	return &Result{Future: newFuture(), item: item}
}

func newCollectionResult() *Result {
	return &Result{Future: newFuture(), collection: true, items: []*Item{}}
}

// Resolved reports whether the server response has been merged in. It stays
// false when the operation failed.
func (r *Result) Resolved() bool {
	return r.resolved.Load()
}

// IsCollection reports whether the result holds many items.
func (r *Result) IsCollection() bool {
	return r.collection
}

// Item returns the single-item target. The pointer is the same before and
// after settlement. It is nil for collection results.
func (r *Result) Item() *Item {
	return r.item
}

// Items returns the collection target once settled, nil before that.
func (r *Result) Items() []*Item {
	select {
	case <-r.done:
		return r.items
	default:
		return nil
	}
}

// Pending is the handle returned by search and user profile requests.
type Pending[T any] struct {
	*Future

	resolved atomic.Bool
	value    T
	raw      any
}

func newPending[T any]() *Pending[T] {
	return &Pending[T]{Future: newFuture()}
}

func (p *Pending[T]) resolve(value T, raw any) {
	p.value = value
	p.raw = raw
	p.resolved.Store(true)
	p.settle(nil)
}

func (p *Pending[T]) reject(err error) {
	p.settle(err)
}

// Resolved reports whether a value was received.
func (p *Pending[T]) Resolved() bool {
	return p.resolved.Load()
}

// Value returns the converted value once settled, the zero value before.
func (p *Pending[T]) Value() T {
	var zero T

	select {
	case <-p.done:
		return p.value
	default:
		return zero
	}
}

// Raw returns the unwrapped server payload once settled.
func (p *Pending[T]) Raw() any {
	select {
	case <-p.done:
		return p.raw
	default:
		return nil
	}
}
