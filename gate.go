package syncplus

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate guards a value with a pool of permits. Up to Capacity callables run
// at once; the rest block until a permit frees, in arrival order.
//
// With a capacity above one, concurrent callables share the same cell
// pointer and must coordinate among themselves.
type Gate[T any] struct {
	*tracker

	sem      *semaphore.Weighted
	capacity int64
	access   Access
	cell     Cell[T]

	running atomic.Int64
	peak    atomic.Int64
}

// NewGate returns a Gate holding value with the given number of permits.
// It panics if permits < 1.
func NewGate[T any](value T, permits int64, opts ...Option) *Gate[T] {
	return newGate(NewCell(value), permits, opts)
}

// NewVoidGate returns a Gate with no payload.
func NewVoidGate(permits int64, opts ...Option) *Gate[Void] {
	return newGate(EmptyCell[Void](), permits, opts)
}

func newGate[T any](cell Cell[T], permits int64, opts []Option) *Gate[T] {
	if permits < 1 {
		panic(fmt.Sprintf("syncplus: gate needs at least one permit, got %d", permits))
	}
	access := Shared
	if permits == 1 {
		access = Exclusive
	}
	return &Gate[T]{
		tracker:  newTracker(KindGate, newConfig(KindGate, opts)),
		sem:      semaphore.NewWeighted(permits),
		capacity: permits,
		access:   access,
		cell:     cell,
	}
}

func (g *Gate[T]) acquire(op Operation) *ActiveLock {
	req := g.begin(op, g.access)
	contended := !g.sem.TryAcquire(1)
	if contended {
		// Background never expires, so Acquire only returns once a permit is ours.
		_ = g.sem.Acquire(context.Background(), 1)
	}
	al := g.acquired(req, contended)

	n := g.running.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return al
}

func (g *Gate[T]) release(al *ActiveLock) {
	g.running.Add(-1)
	g.sem.Release(1)
	g.released(al)
}

// Invoke runs fn holding one permit. fn receives the cell pointer, or nil
// for a Gate without payload.
func (g *Gate[T]) Invoke(fn func(v *T)) {
	al := g.acquire(OpInvoke)
	defer g.release(al)

	fn(g.cell.Ptr())
}

// Exec is Invoke for callables that do not need the value.
func (g *Gate[T]) Exec(fn func()) {
	g.Invoke(func(*T) { fn() })
}

// InvokeAny implements Context.
func (g *Gate[T]) InvokeAny(fn func(v any)) {
	al := g.acquire(OpInvoke)
	defer g.release(al)

	fn(g.cell.untyped())
}

// Capacity returns the number of permits.
func (g *Gate[T]) Capacity() int64 { return g.capacity }

// Running returns the number of callables currently holding a permit.
func (g *Gate[T]) Running() int64 { return g.running.Load() }

// Peak returns the highest Running value observed so far.
func (g *Gate[T]) Peak() int64 { return g.peak.Load() }

// store takes every permit so the write cannot overlap a running callable.
func (g *Gate[T]) store(v T) {
	req := g.begin(OpWrite, Exclusive)
	contended := !g.sem.TryAcquire(g.capacity)
	if contended {
		_ = g.sem.Acquire(context.Background(), g.capacity)
	}
	al := g.acquired(req, contended)
	defer func() {
		g.sem.Release(g.capacity)
		g.released(al)
	}()

	g.cell.Set(v)
}
