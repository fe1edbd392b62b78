package syncplus

import (
	"fmt"
	"time"
)

// Kind is the family a context belongs to.
type Kind int

const (
	KindMonitor Kind = iota
	KindGate
	KindRW
)

// stringer for Kind
func (k Kind) String() string {
	switch k {
	case KindMonitor:
		return "monitor"
	case KindGate:
		return "gate"
	case KindRW:
		return "rw"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Operation is the entry point a lock request came through.
type Operation int

const (
	OpInvoke Operation = iota
	OpMarco
	OpPolo
	OpRead
	OpWrite
)

// stringer for Operation
func (op Operation) String() string {
	switch op {
	case OpInvoke:
		return "invoke"
	case OpMarco:
		return "marco"
	case OpPolo:
		return "polo"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return fmt.Sprintf("Operation(%d)", int(op))
	}
}

// Access is how a granted request holds its context.
type Access int

const (
	Exclusive Access = iota
	Shared
)

// stringer for Access
func (a Access) String() string {
	if a == Shared {
		return "shared"
	}
	return "exclusive"
}

// LockTX tells a pending request from a granted one.
type LockTX int

const (
	IsLockRequest LockTX = iota
	IsActiveLock
)

// stringer for LockTX
func (lo LockTX) String() string {
	return []string{"REQUEST", "ACTIVE"}[lo]
}

// LockInfo is an interface for both LockRequest and ActiveLock
type LockInfo interface {
	GetLockTX() LockTX
	GetOperation() Operation
	GetAccess() Access
	GetGoroutineID() uint64
	GetCallerInfo() string
	GetSinceTime() time.Duration
	GetPosition() string
	String() string
}

// LockRequest tracks a request that has not been granted yet.
type LockRequest struct {
	seq         uint64
	op          Operation
	access      Access
	startTime   time.Time
	goroutineID uint64
	callerInfo  string
}

// implements LockInfo
func (lr *LockRequest) GetLockTX() LockTX { return IsLockRequest }

// implements LockInfo
func (lr *LockRequest) GetOperation() Operation { return lr.op }

// implements LockInfo
func (lr *LockRequest) GetAccess() Access { return lr.access }

// implements LockInfo
func (lr *LockRequest) GetGoroutineID() uint64 { return lr.goroutineID }

// implements LockInfo
func (lr *LockRequest) GetCallerInfo() string { return lr.callerInfo }

// GetSinceTime reports how long the request has been waiting.
func (lr *LockRequest) GetSinceTime() time.Duration { return time.Since(lr.startTime) }

// implements LockInfo
func (lr *LockRequest) GetPosition() string {
	return fmt.Sprintf("for '%s' (goroutine %d)", lr.op, lr.goroutineID)
}

// implements LockInfo
func (lr *LockRequest) String() string {
	return formatLockInfo(lr)
}

// ActiveLock tracks a granted request until it is released.
type ActiveLock struct {
	seq         uint64
	op          Operation
	access      Access
	waited      time.Duration
	acquiredAt  time.Time
	goroutineID uint64
	callerInfo  string
}

// implements LockInfo
func (al *ActiveLock) GetLockTX() LockTX { return IsActiveLock }

// implements LockInfo
func (al *ActiveLock) GetOperation() Operation { return al.op }

// implements LockInfo
func (al *ActiveLock) GetAccess() Access { return al.access }

// implements LockInfo
func (al *ActiveLock) GetGoroutineID() uint64 { return al.goroutineID }

// implements LockInfo
func (al *ActiveLock) GetCallerInfo() string { return al.callerInfo }

// GetSinceTime reports how long the lock has been held.
func (al *ActiveLock) GetSinceTime() time.Duration { return time.Since(al.acquiredAt) }

// GetWaitTime reports how long the request waited before it was granted.
func (al *ActiveLock) GetWaitTime() time.Duration { return al.waited }

// implements LockInfo
func (al *ActiveLock) GetPosition() string {
	return fmt.Sprintf("for '%s' (goroutine %d)", al.op, al.goroutineID)
}

// implements LockInfo
func (al *ActiveLock) String() string {
	return formatLockInfo(al)
}

func formatLockInfo(li LockInfo) string {
	s := fmt.Sprintf("%s %s %s", li.GetLockTX(), li.GetAccess(), li.GetPosition())
	if ci := li.GetCallerInfo(); ci != "" {
		s += "\n" + ci
	}
	return s
}
