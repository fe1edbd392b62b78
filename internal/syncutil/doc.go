// Package syncutil provides the mutex used inside every syncplus context.
//
// Builds with -tags=deadlock swap in github.com/sasha-s/go-deadlock, which
// reports lock-order inversions and long waits. Useful while hunting a
// reentrant Marco or a tree walked out of order.
package syncutil
