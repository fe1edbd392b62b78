package syncplus

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/christophcemper/syncplus/internal/syncutil"
)

// Mode is the preference policy of an RW.
type Mode int

const (
	// Fair serves requests in arrival order. Adjacent readers share.
	Fair Mode = iota
	// ReaderPreferred admits a reader whenever no writer holds the lock.
	// Writers can starve.
	ReaderPreferred
	// WriterPreferred admits no new reader while any writer waits or holds.
	// Readers can starve.
	WriterPreferred
)

// stringer for Mode
func (m Mode) String() string {
	switch m {
	case Fair:
		return "fair"
	case ReaderPreferred:
		return "reader-preferred"
	case WriterPreferred:
		return "writer-preferred"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the three policies.
func (m Mode) Valid() bool {
	return m >= Fair && m <= WriterPreferred
}

// ParseMode accepts the String forms and the short names fair, reader and writer.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fair", "f", "":
		return Fair, nil
	case "reader", "readers", "reader-preferred", "r":
		return ReaderPreferred, nil
	case "writer", "writers", "writer-preferred", "w":
		return WriterPreferred, nil
	default:
		return Fair, fmt.Errorf("%w %q", ErrInvalidMode, s)
	}
}

type rwRequest struct {
	write bool
}

// RW guards a value with a reader/writer scheduler whose preference policy
// can change at runtime. Any number of Read callables may run together; a
// Write or Invoke runs alone.
//
// The policy is consulted every time a waiting request is reconsidered, so
// SetMode also applies to requests already queued. Holders are unaffected.
// In every mode writers are served in arrival order among themselves.
//
// Like Monitor, RW is not reentrant: a Read from inside a Read may block
// forever once a writer queues in Fair or WriterPreferred mode.
type RW[T any] struct {
	*tracker

	mu   syncutil.Mutex
	cond *sync.Cond
	cell Cell[T]
	mode Mode

	readers int
	writing bool

	queue         []*rwRequest // waiting requests in arrival order
	queuedReaders int
	queuedWriters int
}

// NewRW returns an RW holding value.
func NewRW[T any](value T, opts ...Option) *RW[T] {
	return newRW(NewCell(value), opts)
}

// NewEmptyRW returns an RW whose cell stays empty until the first Write.
// Reads before that receive a nil pointer.
func NewEmptyRW[T any](opts ...Option) *RW[T] {
	return newRW(EmptyCell[T](), opts)
}

func newRW[T any](cell Cell[T], opts []Option) *RW[T] {
	cfg := newConfig(KindRW, opts)
	rw := &RW[T]{
		tracker: newTracker(KindRW, cfg),
		cell:    cell,
		mode:    cfg.mode,
	}
	if !rw.mode.Valid() {
		cfg.logger.Warn("invalid initial mode, using fair",
			slog.String("context", cfg.name), slog.Int("mode", int(cfg.mode)))
		rw.mode = Fair
	}
	rw.cond = sync.NewCond(&rw.mu)
	return rw
}

// SetMode switches the policy. An invalid mode is refused: the previous
// mode stays in effect and ErrInvalidMode is returned.
func (rw *RW[T]) SetMode(m Mode) error {
	if !m.Valid() {
		rw.cfg.logger.Warn("refusing invalid mode",
			slog.String("context", rw.name), slog.Int("mode", int(m)), slog.String("keeping", rw.Mode().String()))
		return fmt.Errorf("set mode of %s: %w %d", rw.name, ErrInvalidMode, int(m))
	}

	rw.mu.Lock()
	prev := rw.mode
	rw.mode = m
	rw.cond.Broadcast()
	rw.mu.Unlock()

	if prev != m {
		rw.cfg.logger.Debug("mode changed",
			slog.String("context", rw.name), slog.String("from", prev.String()), slog.String("to", m.String()))
	}
	return nil
}

// Mode returns the active policy.
func (rw *RW[T]) Mode() Mode {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.mode
}

// grantable reports whether r may proceed now. Called with mu held.
func (rw *RW[T]) grantable(r *rwRequest) bool {
	if rw.writing {
		return false
	}

	if !r.write {
		switch rw.mode {
		case ReaderPreferred:
			return true
		case WriterPreferred:
			return rw.queuedWriters == 0
		default:
			return !rw.writerAhead(r)
		}
	}

	if rw.readers > 0 || !rw.firstWriter(r) {
		return false
	}
	switch rw.mode {
	case ReaderPreferred:
		return rw.queuedReaders == 0
	case WriterPreferred:
		return true
	default:
		return rw.queue[0] == r
	}
}

func (rw *RW[T]) writerAhead(r *rwRequest) bool {
	for _, q := range rw.queue {
		if q == r {
			return false
		}
		if q.write {
			return true
		}
	}
	return false
}

func (rw *RW[T]) firstWriter(r *rwRequest) bool {
	for _, q := range rw.queue {
		if q.write {
			return q == r
		}
	}
	return false
}

func (rw *RW[T]) dequeue(r *rwRequest) {
	for i, q := range rw.queue {
		if q == r {
			rw.queue = append(rw.queue[:i], rw.queue[i+1:]...)
			break
		}
	}
	if r.write {
		rw.queuedWriters--
	} else {
		rw.queuedReaders--
	}
}

func (rw *RW[T]) acquire(op Operation, write bool) *ActiveLock {
	access := Shared
	if write {
		access = Exclusive
	}
	req := rw.begin(op, access)
	r := &rwRequest{write: write}

	rw.mu.Lock()
	rw.queue = append(rw.queue, r)
	if write {
		rw.queuedWriters++
	} else {
		rw.queuedReaders++
	}

	contended := false
	for !rw.grantable(r) {
		contended = true
		rw.cond.Wait()
	}
	rw.dequeue(r)
	if write {
		rw.writing = true
	} else {
		rw.readers++
	}
	// Leaving the queue can unblock the request behind this one.
	rw.cond.Broadcast()
	rw.mu.Unlock()

	return rw.acquired(req, contended)
}

func (rw *RW[T]) release(al *ActiveLock, write bool) {
	rw.mu.Lock()
	if write {
		rw.writing = false
	} else {
		rw.readers--
	}
	rw.cond.Broadcast()
	rw.mu.Unlock()

	rw.released(al)
}

// Read runs fn with shared access. fn receives the cell pointer, nil while
// an empty RW has not been written. fn must not modify the value.
func (rw *RW[T]) Read(fn func(v *T)) {
	al := rw.acquire(OpRead, false)
	defer rw.release(al, false)

	fn(rw.cell.Ptr())
}

// Write replaces the value with exclusive access.
func (rw *RW[T]) Write(v T) {
	al := rw.acquire(OpWrite, true)
	defer rw.release(al, true)

	rw.cell.Set(v)
}

// Invoke runs fn with exclusive access, like a Write that may read and
// modify the value in place. It is the protection a Tree broadcast takes.
func (rw *RW[T]) Invoke(fn func(v *T)) {
	al := rw.acquire(OpInvoke, true)
	defer rw.release(al, true)

	fn(rw.cell.Ptr())
}

// Exec is Invoke for callables that do not need the value.
func (rw *RW[T]) Exec(fn func()) {
	rw.Invoke(func(*T) { fn() })
}

// InvokeAny implements Context.
func (rw *RW[T]) InvokeAny(fn func(v any)) {
	al := rw.acquire(OpInvoke, true)
	defer rw.release(al, true)

	fn(rw.cell.untyped())
}

func (rw *RW[T]) store(v T) {
	rw.Write(v)
}

// waiting returns the queued reader and writer counts.
func (rw *RW[T]) waiting() (readers, writers int) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.queuedReaders, rw.queuedWriters
}
