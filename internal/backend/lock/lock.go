package lock

import (
	"context"
	"errors"
	"fmt"
)

// ErrLockHeld is returned by TryLock when another print job owns the lock
var ErrLockHeld = errors.New("print lock is held")

// UnlockFunc releases a lock obtained through TryLock
type UnlockFunc func(ctx context.Context) error

// Locker guards the print cycle so only one sheet is composed and printed at a time
type Locker interface {
	// TryLock never waits: it either acquires the lock or returns ErrLockHeld.
	TryLock(ctx context.Context) (UnlockFunc, error)
	Close() error
}

// NewLocker creates a locker of the given type ("local" or "redis")
func NewLocker(lockType string, redisConfig RedisConfig) (Locker, error) {
	switch lockType {
	case "", "local":
		return NewLocalLocker(), nil
	case "redis":
		return NewRedisLocker(redisConfig)
	default:
		return nil, fmt.Errorf("unsupported lock type: %s", lockType)
	}
}
