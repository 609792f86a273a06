package lock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// PostgresLocker implements core.Locker on PostgreSQL advisory locks.
//
// Advisory locks are session-scoped, so each held key pins one
// dedicated connection from the pool until Release; acquiring and
// releasing through arbitrary pooled connections would silently break
// the exclusivity guarantee.
type PostgresLocker struct {
	db *sql.DB

	mu    sync.Mutex
	conns map[int64]*sql.Conn
}

// NewPostgresLocker creates an advisory-lock backed locker.
func NewPostgresLocker(db *sql.DB) *PostgresLocker {
	return &PostgresLocker{
		db:    db,
		conns: make(map[int64]*sql.Conn),
	}
}

// TryAcquire attempts pg_try_advisory_lock(key) without blocking.
// Returns false when another session holds the key. An error means the
// lock backend is unavailable; the caller must not proceed.
func (l *PostgresLocker) TryAcquire(ctx context.Context, key int64) (bool, error) {
	l.mu.Lock()
	if _, ok := l.conns[key]; ok {
		l.mu.Unlock()
		return false, nil
	}
	l.mu.Unlock()

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("hookq: failed to get lock connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("hookq: failed to acquire advisory lock %d: %w", key, err)
	}
	if !acquired {
		_ = conn.Close()
		return false, nil
	}

	l.mu.Lock()
	l.conns[key] = conn
	l.mu.Unlock()
	return true, nil
}

// Release unlocks the key on its pinned session and returns the
// connection to the pool.
func (l *PostgresLocker) Release(ctx context.Context, key int64) error {
	l.mu.Lock()
	conn, ok := l.conns[key]
	delete(l.conns, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", key); err != nil {
		return fmt.Errorf("hookq: failed to release advisory lock %d: %w", key, err)
	}
	return nil
}
