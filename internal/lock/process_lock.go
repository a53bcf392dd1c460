package lock

import (
	"context"
	"errors"
	"sync/atomic"
)

var ErrLockHeld = errors.New("run lock is already held")
var ErrLockNotHeld = errors.New("run lock is not held by this process")

// ProcessLock guards a run within a single process
type ProcessLock struct {
	held atomic.Bool
}

func NewProcessLock() *ProcessLock {
	return &ProcessLock{}
}

func (l *ProcessLock) LockStatus(ctx context.Context) (bool, error) {
	return l.held.Load(), nil
}

func (l *ProcessLock) Lock(ctx context.Context) error {
	if !l.held.CompareAndSwap(false, true) {
		return ErrLockHeld
	}
	return nil
}

func (l *ProcessLock) Unlock(ctx context.Context) error {
	if !l.held.CompareAndSwap(true, false) {
		return ErrLockNotHeld
	}
	return nil
}
