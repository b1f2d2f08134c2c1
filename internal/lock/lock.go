// Package lock provides the per-business bulk-batch guard: try-acquire
// semantics only, so a second batch is refused rather than queued.
package lock

import (
	"context"
	"sync"
)

// Locker guards one key for the duration of a batch.
type Locker interface {
	// TryAcquire returns ok=false without blocking when the key is held.
	// The release func must be called exactly once when ok is true.
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// LocalLocker is the process-local implementation.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) TryAcquire(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[key]; taken {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	release := func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}
	return release, true, nil
}
