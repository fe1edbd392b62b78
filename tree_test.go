package syncplus

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(t *testing.T, node string) Option {
	return WithName(t.Name() + "/" + node)
}

func visitNames(t *testing.T, tree *Tree) []string {
	t.Helper()

	var names []string
	prefix := t.Name() + "/"
	tree.Invoke(func(v Visit) {
		names = append(names, strings.TrimPrefix(v.Name, prefix))
	})
	return names
}

func TestTreeBroadcastABC(t *testing.T) {
	t.Parallel()

	tree := NewTree(NewVoidMonitor(named(t, "A")),
		NewTree(NewVoidMonitor(named(t, "B"))),
		NewTree(NewVoidMonitor(named(t, "C"))),
	)
	t.Cleanup(func() { _ = tree.Close() })

	assert.Equal(t, []string{"A", "B", "C"}, visitNames(t, tree))
}

// mixedTree is
//
//	root (monitor int)
//	├── g (gate string)
//	│   └── g.rw (rw int)
//	└── w (rw string)
//	    ├── w.m1 (monitor int)
//	    └── w.m2 (gate int)
func mixedTree(t *testing.T) *Tree {
	t.Helper()

	tree := NewTree(NewMonitor(1, named(t, "root")),
		NewTree(NewGate("g", 1, named(t, "g")),
			NewTree(NewRW(2, named(t, "g.rw"))),
		),
		NewTree(NewRW("w", named(t, "w")),
			NewTree(NewMonitor(3, named(t, "w.m1"))),
			NewTree(NewGate(4, 1, named(t, "w.m2"))),
		),
	)
	t.Cleanup(func() { _ = tree.Close() })
	return tree
}

func TestTreeBroadcastPreOrder(t *testing.T) {
	t.Parallel()

	tree := mixedTree(t)
	want := []string{"root", "g", "g.rw", "w", "w.m1", "w.m2"}
	for i := 0; i < 20; i++ {
		require.Equal(t, want, visitNames(t, tree), "run %d", i)
	}
	assert.Equal(t, len(want), tree.Len())
}

func TestTreeVisitRecord(t *testing.T) {
	t.Parallel()

	tree := mixedTree(t)

	var visits []Visit
	tree.Invoke(func(v Visit) { visits = append(visits, v) })
	require.Len(t, visits, 6)

	assert.Equal(t, 0, visits[0].Depth)
	assert.Empty(t, visits[0].Path)
	assert.Equal(t, KindMonitor, visits[0].Kind)
	assert.Equal(t, 1, *visits[0].Value.(*int))

	assert.Equal(t, []int{0, 0}, visits[2].Path)
	assert.Equal(t, 2, visits[2].Depth)
	assert.Equal(t, KindRW, visits[2].Kind)

	assert.Equal(t, []int{1, 1}, visits[5].Path)
	assert.Equal(t, KindGate, visits[5].Kind)
	assert.Equal(t, 4, *visits[5].Value.(*int))

	var walked []Visit
	tree.Walk(func(v Visit) { walked = append(walked, v) })
	require.Len(t, walked, 6)
	for i := range walked {
		assert.Equal(t, visits[i].Name, walked[i].Name)
		assert.Equal(t, visits[i].Path, walked[i].Path)
		assert.Nil(t, walked[i].Value)
	}
}

func TestTreeHoldsParentDuringChildren(t *testing.T) {
	t.Parallel()

	root := NewVoidMonitor()
	child := NewRW(0)
	tree := NewTree(root, NewTree(child))

	tree.Invoke(func(v Visit) {
		if v.Depth == 1 {
			assert.Len(t, root.Active(), 1)
			assert.Len(t, child.Active(), 1)
			assert.Equal(t, Exclusive, child.Active()[0].GetAccess())
		}
	})
	assert.Empty(t, root.Active())
}

func TestTreeConcurrentBroadcasts(t *testing.T) {
	t.Parallel()

	const rounds = 20

	counters := []*Monitor[int]{NewMonitor(0), NewMonitor(0)}
	rw := NewRW(0)
	gate := NewGate(0, 1)
	tree := NewTree(counters[0],
		NewTree(rw, NewTree(counters[1])),
		NewTree(gate),
	)

	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree.Invoke(func(v Visit) { *v.Value.(*int)++ })
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent broadcasts did not finish")
	}

	for _, c := range []Invoker[int]{counters[0], counters[1], rw, gate} {
		assert.Equal(t, rounds, Call(c, func(v *int) int { return *v }))
	}
}

func TestTreeSend(t *testing.T) {
	t.Parallel()

	tree := mixedTree(t)

	// int nodes in pre-order: root, g.rw, w.m1, w.m2
	require.NoError(t, Send[int](tree, 1).To(func(v *int) { *v = 100 }))
	require.NoError(t, Send[string](tree, 1).To(func(v *string) { *v += "!" }))

	var got []any
	tree.Invoke(func(v Visit) {
		switch p := v.Value.(type) {
		case *int:
			got = append(got, *p)
		case *string:
			got = append(got, *p)
		}
	})
	assert.Equal(t, []any{1, "g", 100, "w!", 3, 4}, got)
}

func TestTreeSendMissing(t *testing.T) {
	t.Parallel()

	tree := mixedTree(t)

	for name, err := range map[string]error{
		"past the end":   Send[int](tree, 4).To(func(*int) {}),
		"negative index": Send[int](tree, -1).To(func(*int) {}),
		"no such type":   Send[float64](tree, 0).To(func(*float64) {}),
		"store":          Send[bool](tree, 0).Store(true),
	} {
		assert.ErrorIs(t, err, ErrNodeNotFound, name)
	}
	assert.ErrorContains(t, Send[float64](tree, 0).To(func(*float64) {}), "float64 node #0")
}

func TestTreeSendLocksOnlyTarget(t *testing.T) {
	t.Parallel()

	root := NewVoidMonitor()
	leaf := NewMonitor(0)
	tree := NewTree(root, NewTree(leaf))

	release := make(chan struct{})
	holding := make(chan struct{})
	go root.Exec(func() {
		close(holding)
		<-release
	})
	<-holding
	defer close(release)

	delivered := make(chan error, 1)
	go func() {
		delivered <- Send[int](tree, 0).To(func(v *int) { *v = 9 })
	}()

	select {
	case err := <-delivered:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("delivery waited on an ancestor")
	}
	assert.Equal(t, 9, Call(leaf, func(v *int) int { return *v }))
}

func TestTreeSendStore(t *testing.T) {
	t.Parallel()

	empty := NewEmptyRW[string]()
	tree := NewTree(NewVoidMonitor(), NewTree(empty))

	require.NoError(t, Send[string](tree, 0).Store("filled"))
	assert.Equal(t, "filled", ReadCall(empty, func(v *string) string { return *v }))
}

func TestTreeInvokeErr(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	tree := NewTree(NewVoidMonitor(named(t, "A")),
		NewTree(NewVoidMonitor(named(t, "B"))),
		NewTree(NewVoidMonitor(named(t, "C"))),
	)
	t.Cleanup(func() { _ = tree.Close() })

	visited := 0
	err := tree.InvokeErr(func(v Visit) error {
		visited++
		if v.Depth == 0 {
			return nil
		}
		return fmt.Errorf("visit %d: %w", visited, errBoom)
	})

	assert.Equal(t, 3, visited)
	require.ErrorIs(t, err, errBoom)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.Contains(t, merr.Errors[0].Error(), "/B: visit 2")

	assert.NoError(t, tree.InvokeErr(func(Visit) error { return nil }))
}

func TestTreeOwnership(t *testing.T) {
	t.Parallel()

	child := NewTree(NewVoidMonitor())
	parent := NewTree(NewVoidMonitor(), child)

	assert.Panics(t, func() { NewTree(NewVoidMonitor(), child) })
	assert.Panics(t, func() { NewTree(nil) })
	assert.Panics(t, func() { NewTree(NewVoidMonitor(), nil) })

	require.Len(t, parent.Children(), 1)
	assert.Same(t, child, parent.Children()[0])
}

func TestTreeClose(t *testing.T) {
	t.Parallel()

	leaf := NewMonitor(0, named(t, "leaf"))
	tree := NewTree(NewVoidGate(2, named(t, "root")), NewTree(leaf))

	leaf.Exec(func() {
		err := tree.Close()
		assert.ErrorIs(t, err, ErrContextBusy)
	})
	_, ok := Lookup(t.Name() + "/leaf")
	assert.True(t, ok)
	_, ok = Lookup(t.Name() + "/root")
	assert.False(t, ok)

	require.NoError(t, tree.Close())
	_, ok = Lookup(t.Name() + "/leaf")
	assert.False(t, ok)
}
