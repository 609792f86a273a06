// Package hookq provides a durable webhook job queue: at-least-once
// upstream deliveries in, exactly-effectively-once handler execution
// out.
//
// Incoming events are persisted as jobs, deduplicated by upstream
// delivery id and by in-flight domain entity, and drained per tenant
// under a two-tier mutual-exclusion scheme (in-process guard plus
// cross-process advisory lock). Failed handlers retry with exponential
// backoff until dead-lettered; stuck jobs are recovered by timeout.
//
// Basic usage:
//
//	db, _ := gorm.Open(sqlite.Open("hookq.db"), &gorm.Config{})
//	store := hookq.NewGormStore(db)
//	store.Migrate(context.Background())
//
//	svc := hookq.New(store, hookq.NewMemoryLocker())
//	svc.Register("orders/fulfill", func(ctx context.Context, payload []byte) error {
//	    return fulfillOrder(payload)
//	})
//
//	svc.Enqueue(ctx, hookq.Request{
//	    TenantID:   "shop-1.example.com",
//	    Topic:      "orders/create",
//	    Intent:     "orders/fulfill",
//	    Payload:    map[string]any{"order_id": 42},
//	    ExternalID: deliveryID,
//	})
package hookq

import (
	"database/sql"

	"gorm.io/gorm"

	"github.com/orderflow/hookq/pkg/core"
	"github.com/orderflow/hookq/pkg/lock"
	"github.com/orderflow/hookq/pkg/queue"
	"github.com/orderflow/hookq/pkg/security"
	"github.com/orderflow/hookq/pkg/storage"
)

// Type aliases for the public API surface.
type (
	// Job is one persisted unit of asynchronous work.
	Job = core.Job

	// JobStatus represents the current state of a job.
	JobStatus = core.JobStatus

	// JobStore defines the persistence layer for jobs.
	JobStore = core.JobStore

	// Locker is the cross-process advisory lock.
	Locker = core.Locker

	// Handler executes one job's payload.
	Handler = queue.Handler

	// Request describes one unit of work to ingest.
	Request = queue.Request

	// Service is the queue service.
	Service = queue.Service

	// Option configures the queue service.
	Option = queue.Option

	// Sweeper periodically wakes tenants with unattended due jobs.
	Sweeper = queue.Sweeper

	// GormStore implements JobStore using GORM.
	GormStore = storage.GormStore

	// MemoryLocker is the in-process Locker.
	MemoryLocker = lock.MemoryLocker

	// PostgresLocker is the advisory-lock backed Locker.
	PostgresLocker = lock.PostgresLocker
)

// Status constants
const (
	StatusQueued     = core.StatusQueued
	StatusProcessing = core.StatusProcessing
	StatusCompleted  = core.StatusCompleted
	StatusFailed     = core.StatusFailed
)

// Limits
const (
	MaxPayloadSize = security.MaxPayloadSize
)

// Error variables
var (
	ErrEmptyTenant     = core.ErrEmptyTenant
	ErrEmptyTopic      = core.ErrEmptyTopic
	ErrInvalidIntent   = core.ErrInvalidIntent
	ErrInvalidPayload  = core.ErrInvalidPayload
	ErrPayloadTooLarge = core.ErrPayloadTooLarge
	ErrNoHandler       = core.ErrNoHandler
)

// New creates a queue service with the given storage and lock backends.
func New(store JobStore, locker Locker, opts ...Option) *Service {
	return queue.New(store, locker, opts...)
}

// NewGormStore creates a GORM-backed job store.
func NewGormStore(db *gorm.DB) *GormStore {
	return storage.NewGormStore(db)
}

// NewMemoryLocker creates an in-process locker for tests and
// single-node deployments.
func NewMemoryLocker() *MemoryLocker {
	return lock.NewMemoryLocker()
}

// NewPostgresLocker creates a locker backed by PostgreSQL advisory
// locks.
func NewPostgresLocker(db *sql.DB) *PostgresLocker {
	return lock.NewPostgresLocker(db)
}

// NewSweeper creates a sweeper driving WakeDueJobs on a cron schedule.
func NewSweeper(svc *Service, spec string) *Sweeper {
	return queue.NewSweeper(svc, spec)
}

// LockKey hashes a tenant identifier to its advisory lock key.
func LockKey(tenantID string) int64 {
	return lock.Key(tenantID)
}

// Service option re-exports.
var (
	MaxBatch           = queue.MaxBatch
	MaxRetries         = queue.MaxRetries
	BaseDelay          = queue.BaseDelay
	MaxDelay           = queue.MaxDelay
	PendingCooldown    = queue.PendingCooldown
	PendingMaxCooldown = queue.PendingMaxCooldown
	StuckTimeout       = queue.StuckTimeout
	MaxDrainDepth      = queue.MaxDrainDepth
	WithLogger         = queue.WithLogger
)
