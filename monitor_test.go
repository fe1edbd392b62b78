package syncplus

import (
	"bytes"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorInvokeAdd(t *testing.T) {
	t.Parallel()

	m := NewMonitor(5)
	got := CallWith(m, func(v *int, n int) int {
		*v += n
		return *v
	}, 3)
	assert.Equal(t, 8, got)
	assert.Equal(t, 8, Call(m, func(v *int) int { return *v }))
}

func TestMonitorNoOverlap(t *testing.T) {
	t.Parallel()

	type window struct{ start, end time.Time }

	var (
		m       = NewMonitor(0)
		inside  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup

		windowsMu sync.Mutex
		windows   []window
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Invoke(func(v *int) {
				start := time.Now()
				if inside.Add(1) != 1 {
					overlap.Store(true)
				}
				*v++
				time.Sleep(100 * time.Microsecond)
				inside.Add(-1)

				windowsMu.Lock()
				windows = append(windows, window{start, time.Now()})
				windowsMu.Unlock()
			})
		}()
	}
	wg.Wait()

	assert.False(t, overlap.Load())
	assert.Equal(t, 50, Call(m, func(v *int) int { return *v }))

	// windows were appended in execution order
	require.Len(t, windows, 50)
	for i := 1; i < len(windows); i++ {
		assert.False(t, windows[i].start.Before(windows[i-1].end), "window %d starts before %d ended", i, i-1)
	}
}

func TestMonitorMarcoPolo(t *testing.T) {
	t.Parallel()

	var (
		m           = NewMonitor("payload")
		events      []string
		poloStarted atomic.Bool
		poloState   HandshakeState
	)

	m.Marco(func(v *string) {
		assert.Equal(t, "payload", *v)
		assert.Equal(t, AwaitingPolo, m.State())

		go m.Polo(func() {
			poloStarted.Store(true)
			poloState = m.State()
			events = append(events, "polo")
		})

		time.Sleep(20 * time.Millisecond)
		assert.False(t, poloStarted.Load(), "polo ran while marco held the lock")
		events = append(events, "marco")
	})

	m.AwaitPolo()

	assert.Equal(t, []string{"marco", "polo"}, events)
	assert.Equal(t, PoloRunning, poloState)
	assert.Equal(t, Idle, m.State())
}

func TestMonitorMarcoPoloResults(t *testing.T) {
	t.Parallel()

	m := NewMonitor(2)
	done := make(chan int)

	doubled := MarcoCall(m, func(v *int) int {
		*v *= 2
		go func() {
			done <- PoloCall(m, func() int { return 7 })
		}()
		return *v
	})

	assert.Equal(t, 4, doubled)
	assert.Equal(t, 7, <-done)
}

func TestVoidMonitor(t *testing.T) {
	t.Parallel()

	m := NewVoidMonitor()
	calls := 0
	m.Invoke(func(v *Void) {
		assert.Nil(t, v)
		calls++
	})
	m.InvokeAny(func(v any) {
		assert.Nil(t, v)
		calls++
	})
	m.Exec(func() { calls++ })
	assert.Equal(t, 3, calls)
}

func TestMonitorContention(t *testing.T) {
	t.Parallel()

	m := NewMonitor(0, WithName(t.Name()))
	t.Cleanup(func() { _ = m.Close() })

	release := make(chan struct{})
	holding := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Exec(func() {
			close(holding)
			<-release
		})
	}()
	<-holding

	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Invoke(func(v *int) { *v = 1 })
	}()

	require.Eventually(t, func() bool { return len(m.Pending()) == 1 }, time.Second, time.Millisecond)
	assert.Len(t, m.Active(), 1)
	assert.Equal(t, Exclusive, m.Active()[0].GetAccess())

	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), m.Contentions())
	stats := m.Stats()[OpInvoke]
	assert.Equal(t, int64(2), stats.Acquired)
	assert.Equal(t, int64(1), stats.Contentions)
	assert.Empty(t, m.Pending())
	assert.Empty(t, m.Active())
}

func TestMonitorWarnAfter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := NewMonitor(0, WithLogger(logger), WithWarnAfter(5*time.Millisecond))

	m.Exec(func() { time.Sleep(20 * time.Millisecond) })

	out := buf.String()
	assert.Contains(t, out, "lock held too long")
	assert.Contains(t, out, "op=invoke")
	assert.Contains(t, out, "kind=monitor")
}

func TestMonitorCloseWhileHeld(t *testing.T) {
	t.Parallel()

	m := NewMonitor(0, WithName(t.Name()))

	m.Exec(func() {
		assert.ErrorIs(t, m.Close(), ErrContextBusy)
	})
	_, ok := Lookup(t.Name())
	assert.True(t, ok)

	require.NoError(t, m.Close())
	_, ok = Lookup(t.Name())
	assert.False(t, ok)
}

func TestMonitorGeneratedName(t *testing.T) {
	t.Parallel()

	m := NewMonitor(0)
	assert.Regexp(t, `^monitor-[0-9a-f]{8}$`, m.Name())
	assert.Equal(t, KindMonitor, m.Kind())
	_, ok := Lookup(m.Name())
	assert.False(t, ok)
}
