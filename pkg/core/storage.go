package core

import (
	"context"
	"time"
)

// JobStore defines the persistence layer for jobs.
//
// Implementations must back ClaimNext with a conditional update so
// that a job can only move queued -> processing once, even under
// concurrent claimers.
type JobStore interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Job lifecycle
	Create(ctx context.Context, job *Job) error
	ClaimNext(ctx context.Context, tenantID string) (*Job, error)
	MarkCompleted(ctx context.Context, jobID uint64) error
	MarkFailed(ctx context.Context, jobID uint64, errMsg string) error
	Requeue(ctx context.Context, jobID uint64, attempts int, nextRunAt time.Time, errMsg string) error

	// RecoverStuck resets processing jobs whose StartedAt is older than
	// timeout back to queued, returning how many were reset.
	RecoverStuck(ctx context.Context, tenantID string, timeout time.Duration) (int64, error)

	// Dedup lookups
	FindByExternalID(ctx context.Context, tenantID, topic, externalID string) (*Job, error)
	FindActiveByEntity(ctx context.Context, tenantID, topic, entityID string) (*Job, error)

	// Queries
	CountQueued(ctx context.Context, tenantID string) (int64, error)
	QueueSize(ctx context.Context) (int64, error)
	DeadLetters(ctx context.Context, limit int) ([]*Job, error)
	DueTenants(ctx context.Context) ([]string, error)
	GetJob(ctx context.Context, jobID uint64) (*Job, error)
}

// Locker is a cross-process advisory lock keyed by an integer.
//
// TryAcquire must be non-blocking: it returns false immediately when
// the key is held elsewhere. An error return means the lock backend
// itself is unavailable and the caller must not proceed as if it held
// the lock.
type Locker interface {
	TryAcquire(ctx context.Context, key int64) (bool, error)
	Release(ctx context.Context, key int64) error
}
