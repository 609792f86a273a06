package lock

import (
	"context"
	"sync"
)

// MemoryLocker is a process-local Locker. It gives the same try/release
// semantics as the Postgres advisory lock but only within one process;
// use it for tests and single-node deployments.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[int64]struct{})}
}

// TryAcquire acquires the key if free, returning false if already held.
func (l *MemoryLocker) TryAcquire(ctx context.Context, key int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false, nil
	}
	l.held[key] = struct{}{}
	return true, nil
}

// Release frees the key. Releasing an unheld key is a no-op.
func (l *MemoryLocker) Release(ctx context.Context, key int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}
