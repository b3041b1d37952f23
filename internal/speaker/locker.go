package speaker

import (
	"context"
	"sync"
)

// Locker serializes identity mutations. Lock blocks until the lock is held
// or ctx is done; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// LocalLocker is an in-process Locker.
type LocalLocker struct {
	mu sync.Mutex
}

// Lock acquires the mutex. It ignores ctx once waiting has started.
func (l *LocalLocker) Lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	return l.mu.Unlock, nil
}
