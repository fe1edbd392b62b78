// Copyright (c) 2024 Christoph C. Cemper
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package syncplus

import (
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LockStats tracks statistics for one operation of a context
type LockStats struct {
	totalAcquired    atomic.Int64
	totalContentions atomic.Int64
	totalTimeHeld    atomic.Int64 // in nanoseconds
	maxTimeHeld      atomic.Int64 // in nanoseconds
	totalWaitTime    atomic.Int64 // in nanoseconds
	maxWaitTime      atomic.Int64 // in nanoseconds
}

// OpStats is a point-in-time copy of LockStats.
type OpStats struct {
	Acquired    int64
	Contentions int64
	TotalHeld   time.Duration
	MaxHeld     time.Duration
	TotalWait   time.Duration
	MaxWait     time.Duration
}

// AvgHeld is the mean hold time, zero before the first acquisition.
func (s OpStats) AvgHeld() time.Duration {
	if s.Acquired == 0 {
		return 0
	}
	return s.TotalHeld / time.Duration(s.Acquired)
}

func storeMax(v *atomic.Int64, d time.Duration) {
	for {
		current := v.Load()
		if int64(d) <= current {
			return
		}
		if v.CompareAndSwap(current, int64(d)) {
			return
		}
	}
}

// tracker is the bookkeeping shared by every context: who waits, who holds,
// and how long each took. It never blocks on the protected resource itself.
type tracker struct {
	name string
	kind Kind
	cfg  *config

	// Protected by internal mutex
	internal sync.Mutex
	seq      uint64
	pending  map[uint64]*LockRequest
	active   map[uint64]*ActiveLock
	opStats  map[Operation]*LockStats

	contentionCount atomic.Int64
}

func newTracker(kind Kind, cfg *config) *tracker {
	t := &tracker{
		name:    cfg.name,
		kind:    kind,
		cfg:     cfg,
		pending: make(map[uint64]*LockRequest),
		active:  make(map[uint64]*ActiveLock),
		opStats: make(map[Operation]*LockStats),
	}
	if !cfg.generated {
		globalRegistry.register(t)
	}
	return t
}

// Name returns the context name given with WithName, or a generated one.
func (t *tracker) Name() string { return t.name }

// Kind returns the context family.
func (t *tracker) Kind() Kind { return t.kind }

// Contentions counts grants that had to wait for another holder.
func (t *tracker) Contentions() int64 { return t.contentionCount.Load() }

// Close removes a named context from the global registry. It refuses while
// any request is still granted. The context stays usable after Close.
func (t *tracker) Close() error {
	t.internal.Lock()
	held := len(t.active)
	t.internal.Unlock()

	if held > 0 {
		t.cfg.logger.Warn("attempting to close context with active locks",
			slog.String("context", t.name), slog.Int("active", held))
		return fmt.Errorf("close %s: %w (%d)", t.name, ErrContextBusy, held)
	}

	globalRegistry.unregister(t)
	return nil
}

func (t *tracker) statsFor(op Operation) *LockStats {
	stats, exists := t.opStats[op]
	if !exists {
		stats = &LockStats{}
		t.opStats[op] = stats
	}
	return stats
}

// begin records a request before the caller starts waiting.
func (t *tracker) begin(op Operation, access Access) *LockRequest {
	req := &LockRequest{
		op:          op,
		access:      access,
		startTime:   time.Now(),
		goroutineID: GetGoroutineID(),
	}
	if t.cfg.callerInfo {
		req.callerInfo = getCallerInfo()
	}

	t.internal.Lock()
	t.seq++
	req.seq = t.seq
	t.pending[req.seq] = req
	t.internal.Unlock()

	t.logVerbose("lock requested", req)
	return req
}

// acquired moves req from pending to active. contended reports whether the
// caller found the context held and had to block.
func (t *tracker) acquired(req *LockRequest, contended bool) *ActiveLock {
	now := time.Now()
	al := &ActiveLock{
		seq:         req.seq,
		op:          req.op,
		access:      req.access,
		waited:      now.Sub(req.startTime),
		acquiredAt:  now,
		goroutineID: req.goroutineID,
		callerInfo:  req.callerInfo,
	}

	t.internal.Lock()
	delete(t.pending, req.seq)
	t.active[al.seq] = al
	stats := t.statsFor(req.op)
	t.internal.Unlock()

	stats.totalAcquired.Add(1)
	stats.totalWaitTime.Add(int64(al.waited))
	storeMax(&stats.maxWaitTime, al.waited)
	if contended {
		stats.totalContentions.Add(1)
		t.contentionCount.Add(1)
	}

	if !t.logTimeoutWarning(al.waited, "lock acquired too slow", al) {
		t.logVerbose("lock acquired", al)
	}
	return al
}

// released drops al from the active set and accounts its hold time.
func (t *tracker) released(al *ActiveLock) {
	held := time.Since(al.acquiredAt)

	t.internal.Lock()
	delete(t.active, al.seq)
	stats := t.statsFor(al.op)
	t.internal.Unlock()

	stats.totalTimeHeld.Add(int64(held))
	storeMax(&stats.maxTimeHeld, held)

	if !t.logTimeoutWarning(held, "lock held too long", al) {
		t.logVerbose("lock released", al)
	}
}

// logVerbose logs detailed lock action information if verbose is enabled
func (t *tracker) logVerbose(action string, li LockInfo) {
	if !t.cfg.verbose {
		return
	}
	t.cfg.logger.Debug(action, t.attrs(li)...)
}

// logTimeoutWarning logs a warning and returns true if d exceeds the warn
// threshold.
func (t *tracker) logTimeoutWarning(d time.Duration, action string, li LockInfo) bool {
	if t.cfg.warnAfter > 0 && d > t.cfg.warnAfter {
		attrs := append(t.attrs(li),
			slog.Duration("took", d),
			slog.Duration("threshold", t.cfg.warnAfter),
		)
		if t.cfg.callerInfo {
			attrs = append(attrs, slog.String("stack", filterStack(debug.Stack())))
		}
		t.cfg.logger.Warn(action, attrs...)
		return true
	}
	return false
}

func (t *tracker) attrs(li LockInfo) []any {
	attrs := []any{
		slog.String("context", t.name),
		slog.String("kind", t.kind.String()),
		slog.String("op", li.GetOperation().String()),
		slog.String("access", li.GetAccess().String()),
		slog.Uint64("goroutine", li.GetGoroutineID()),
	}
	if ci := li.GetCallerInfo(); ci != "" {
		attrs = append(attrs, slog.String("caller", ci))
	}
	return attrs
}

// Stats returns a snapshot of the statistics of every operation used so far.
func (t *tracker) Stats() map[Operation]OpStats {
	t.internal.Lock()
	defer t.internal.Unlock()

	stats := make(map[Operation]OpStats, len(t.opStats))
	for op, s := range t.opStats {
		stats[op] = OpStats{
			Acquired:    s.totalAcquired.Load(),
			Contentions: s.totalContentions.Load(),
			TotalHeld:   time.Duration(s.totalTimeHeld.Load()),
			MaxHeld:     time.Duration(s.maxTimeHeld.Load()),
			TotalWait:   time.Duration(s.totalWaitTime.Load()),
			MaxWait:     time.Duration(s.maxWaitTime.Load()),
		}
	}
	return stats
}

// Pending returns the requests still waiting, oldest first.
func (t *tracker) Pending() []LockInfo {
	t.internal.Lock()
	defer t.internal.Unlock()

	reqs := make([]*LockRequest, 0, len(t.pending))
	for _, r := range t.pending {
		reqs = append(reqs, r)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].seq < reqs[j].seq })

	out := make([]LockInfo, len(reqs))
	for i, r := range reqs {
		out[i] = r
	}
	return out
}

// Active returns the granted requests, oldest first.
func (t *tracker) Active() []LockInfo {
	t.internal.Lock()
	defer t.internal.Unlock()

	locks := make([]*ActiveLock, 0, len(t.active))
	for _, l := range t.active {
		locks = append(locks, l)
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].seq < locks[j].seq })

	out := make([]LockInfo, len(locks))
	for i, l := range locks {
		out[i] = l
	}
	return out
}

const modulePath = "github.com/christophcemper/syncplus"

// shouldIncludeLine returns true if the line should be included in stack traces
// and caller information, filtering out runtime, testing, and this package.
func shouldIncludeLine(line string) bool {
	// we want to see the test code and the demo in caller info
	if strings.Contains(line, "_test.go") ||
		strings.Contains(line, modulePath+"/cmd/") ||
		strings.Contains(line, modulePath+"/examples") {
		return true
	}
	return !strings.Contains(line, "runtime/") &&
		!strings.Contains(line, "runtime.") &&
		!strings.Contains(line, "testing/") &&
		!strings.Contains(line, "testing.") &&
		!strings.Contains(line, modulePath) &&
		!strings.Contains(line, "debug.Stack") &&
		!strings.Contains(line, "debug/stack")
}

// filterStack removes runtime, testing and package frames from a
// debug.Stack trace. A frame is its function line plus the tab-indented
// location line below it; both are kept or dropped together.
func filterStack(stack []byte) string {
	lines := strings.Split(string(stack), "\n")
	var filtered []string
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(line, "\t") || i+1 == len(lines) || !strings.HasPrefix(lines[i+1], "\t") {
			if shouldIncludeLine(line) {
				filtered = append(filtered, line)
			}
			continue
		}
		loc := lines[i+1]
		i++
		if strings.Contains(loc, "_test.go") || (shouldIncludeLine(line) && shouldIncludeLine(loc)) {
			filtered = append(filtered, line, loc)
		}
	}
	return strings.Join(filtered, "\n")
}

// includeFrame reports whether a frame belongs to the application rather
// than the runtime, the test harness or this package.
func includeFrame(f runtime.Frame) bool {
	if strings.HasSuffix(f.File, "_test.go") {
		return true
	}
	return shouldIncludeLine(f.Function) && shouldIncludeLine(f.File)
}

// getCallerInfo returns up to three application frames above the context call.
func getCallerInfo() string {
	var pcs [32]uintptr
	n := runtime.Callers(0, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var callers []string
	for len(callers) < 3 {
		frame, more := frames.Next()
		if includeFrame(frame) {
			parts := strings.Split(frame.Function, "/")
			callers = append(callers, fmt.Sprintf("%s\n\t%s:%d", parts[len(parts)-1], frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	if len(callers) == 0 {
		return "unknown"
	}
	return strings.Join(callers, "\n")
}
