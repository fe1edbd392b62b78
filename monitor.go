package syncplus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/christophcemper/syncplus/internal/syncutil"
)

// HandshakeState is the Marco/Polo slot of a Monitor.
type HandshakeState int

const (
	Idle HandshakeState = iota
	AwaitingPolo
	PoloRunning
)

// stringer for HandshakeState
func (s HandshakeState) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingPolo:
		return "awaiting-polo"
	case PoloRunning:
		return "polo-running"
	default:
		return fmt.Sprintf("HandshakeState(%d)", int(s))
	}
}

// Monitor guards a value with a mutex. Every Invoke, Marco and Polo runs
// alone.
//
// Marco and Polo form a two-party rendezvous: Marco runs its callable with
// the lock held, and that callable may start a goroutine which calls Polo.
// Polo cannot begin until Marco has returned and released the lock.
//
// The mutex is not reentrant. Calling any method of m from inside a callable
// running on m blocks forever.
type Monitor[T any] struct {
	*tracker

	mu    syncutil.Mutex
	cond  *sync.Cond
	cell  Cell[T]
	state atomic.Int32 // HandshakeState, written with mu held

	// held is a hint for contention accounting only.
	held atomic.Bool
}

// NewMonitor returns a Monitor holding value.
func NewMonitor[T any](value T, opts ...Option) *Monitor[T] {
	return newMonitor(NewCell(value), opts)
}

// NewVoidMonitor returns a Monitor with no payload. Its callables receive a
// nil pointer.
func NewVoidMonitor(opts ...Option) *Monitor[Void] {
	return newMonitor(EmptyCell[Void](), opts)
}

func newMonitor[T any](cell Cell[T], opts []Option) *Monitor[T] {
	m := &Monitor[T]{
		tracker: newTracker(KindMonitor, newConfig(KindMonitor, opts)),
		cell:    cell,
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Monitor[T]) lock(op Operation) *ActiveLock {
	req := m.begin(op, Exclusive)
	contended := m.held.Load()
	m.mu.Lock()
	m.held.Store(true)
	return m.acquired(req, contended)
}

func (m *Monitor[T]) unlock(al *ActiveLock) {
	m.held.Store(false)
	m.mu.Unlock()
	m.released(al)
}

// Invoke runs fn with the lock held. fn receives the cell pointer, or nil
// for a Monitor without payload.
func (m *Monitor[T]) Invoke(fn func(v *T)) {
	al := m.lock(OpInvoke)
	defer m.unlock(al)

	fn(m.cell.Ptr())
}

// Exec is Invoke for callables that do not need the value.
func (m *Monitor[T]) Exec(fn func()) {
	m.Invoke(func(*T) { fn() })
}

// InvokeAny implements Context.
func (m *Monitor[T]) InvokeAny(fn func(v any)) {
	al := m.lock(OpInvoke)
	defer m.unlock(al)

	fn(m.cell.untyped())
}

// Marco starts a handshake: it takes the lock, moves the slot to
// AwaitingPolo and runs fn while still holding the lock. A goroutine started
// by fn that calls Polo blocks until Marco returns.
func (m *Monitor[T]) Marco(fn func(v *T)) {
	al := m.lock(OpMarco)
	defer m.unlock(al)

	m.state.Store(int32(AwaitingPolo))
	fn(m.cell.Ptr())
}

// Polo completes a handshake: it takes the lock once any Marco or Invoke
// has released it, runs fn without the value, resets the slot to Idle and
// wakes AwaitPolo callers.
func (m *Monitor[T]) Polo(fn func()) {
	al := m.lock(OpPolo)
	defer func() {
		m.state.Store(int32(Idle))
		m.cond.Broadcast()
		m.unlock(al)
	}()

	m.state.Store(int32(PoloRunning))
	fn()
}

// AwaitPolo blocks until the handshake slot is Idle. After a Marco whose
// callable started a Polo, it returns once that Polo has finished.
func (m *Monitor[T]) AwaitPolo() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for HandshakeState(m.state.Load()) != Idle {
		m.cond.Wait()
	}
}

// State returns the current handshake state without taking the lock, so it
// is safe to call from inside a Marco callable.
func (m *Monitor[T]) State() HandshakeState {
	return HandshakeState(m.state.Load())
}

func (m *Monitor[T]) store(v T) {
	al := m.lock(OpWrite)
	defer m.unlock(al)

	m.cell.Set(v)
}
