// Package keylock serializes work per string key.
package keylock

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when a lock is not acquired before the context ends.
var ErrLockTimeout = errors.New("keylock: timed out waiting for lock")

// Locker acquires an exclusive lock for key. The returned release func is
// safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Noop never blocks.
type Noop struct{}

func (Noop) Acquire(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}
