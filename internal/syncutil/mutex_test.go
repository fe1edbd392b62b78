package syncutil_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/christophcemper/syncplus/internal/syncutil"
)

func TestMutex(t *testing.T) {
	t.Parallel()

	var (
		mu      syncutil.Mutex
		counter int
		wg      sync.WaitGroup
	)

	const n = 100

	wg.Add(n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()

			mu.Lock()
			defer mu.Unlock()

			counter++
		}()
	}

	wg.Wait()

	assert.Equal(t, n, counter)
}

func TestMutex_IsLocker(t *testing.T) {
	t.Parallel()

	var _ sync.Locker = &syncutil.Mutex{}

	c := sync.NewCond(&syncutil.Mutex{})
	assert.NotNil(t, c)
}
