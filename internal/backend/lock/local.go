package lock

import (
	"context"
	"sync"
)

// LocalLocker is an in-process lock for a single server instance
type LocalLocker struct {
	mu sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

func (l *LocalLocker) TryLock(context.Context) (UnlockFunc, error) {
	if !l.mu.TryLock() {
		return nil, ErrLockHeld
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, nil
}

func (l *LocalLocker) Close() error {
	return nil
}
