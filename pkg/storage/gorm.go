package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/orderflow/hookq/pkg/core"
)

// GormStore implements core.JobStore using GORM.
type GormStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, logger: slog.Default()}
}

// WithLogger sets the logger used for zero-row update warnings.
func (s *GormStore) WithLogger(logger *slog.Logger) *GormStore {
	s.logger = logger
	return s
}

// Migrate creates the necessary tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.Job{})
}

// Create inserts a new queued job. Dedup checks are the caller's
// responsibility; the store enforces nothing beyond normal constraints.
func (s *GormStore) Create(ctx context.Context, job *core.Job) error {
	if job.Status == "" {
		job.Status = core.StatusQueued
	}
	if job.NextRunAt == nil {
		now := time.Now()
		job.NextRunAt = &now
	}
	job.Attempts = 0
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("hookq: failed to create job: %w", err)
	}
	return nil
}

// ClaimNext selects the oldest eligible job for the tenant and moves it
// queued -> processing inside one transaction. The update is guarded by
// status = queued; losing that race to another claimer yields (nil, nil),
// never a retry loop. FIFO within due jobs, ties broken by insertion order.
func (s *GormStore) ClaimNext(ctx context.Context, tenantID string) (*core.Job, error) {
	var claimed *core.Job
	now := time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job core.Job
		result := tx.
			Where("tenant_id = ?", tenantID).
			Where("status = ?", core.StatusQueued).
			Where("(next_run_at IS NULL OR next_run_at <= ?)", now).
			Order("next_run_at ASC, id ASC").
			First(&job)

		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return nil
			}
			return result.Error
		}

		res := tx.Model(&core.Job{}).
			Where("id = ? AND status = ?", job.ID, core.StatusQueued).
			Updates(map[string]any{
				"status":     core.StatusProcessing,
				"started_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another claimer took ownership between select and update.
			return nil
		}

		job.Status = core.StatusProcessing
		job.StartedAt = &now
		claimed = &job
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("hookq: failed to claim job: %w", err)
	}
	return claimed, nil
}

// MarkCompleted sets the terminal completed status. A zero-row update
// means the job was deleted or reset externally; that is logged, not
// an error.
func (s *GormStore) MarkCompleted(ctx context.Context, jobID uint64) error {
	now := time.Now()
	res := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":      core.StatusCompleted,
			"finished_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("hookq: failed to mark job %d completed: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		s.logger.Warn("mark completed affected no rows", "job_id", jobID)
	}
	return nil
}

// MarkFailed sets the terminal failed status, recording the last error.
func (s *GormStore) MarkFailed(ctx context.Context, jobID uint64, errMsg string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":      core.StatusFailed,
			"finished_at": now,
			"last_error":  errMsg,
		})
	if res.Error != nil {
		return fmt.Errorf("hookq: failed to mark job %d failed: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		s.logger.Warn("mark failed affected no rows", "job_id", jobID)
	}
	return nil
}

// Requeue resets a job to queued for a later retry, bumping attempts
// and scheduling it at nextRunAt.
func (s *GormStore) Requeue(ctx context.Context, jobID uint64, attempts int, nextRunAt time.Time, errMsg string) error {
	res := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":      core.StatusQueued,
			"attempts":    attempts,
			"next_run_at": nextRunAt,
			"started_at":  nil,
			"finished_at": nil,
			"last_error":  errMsg,
		})
	if res.Error != nil {
		return fmt.Errorf("hookq: failed to requeue job %d: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		s.logger.Warn("requeue affected no rows", "job_id", jobID)
	}
	return nil
}

// RecoverStuck bulk-resets processing jobs whose StartedAt is older
// than timeout back to queued, presuming their handlers dead.
func (s *GormStore) RecoverStuck(ctx context.Context, tenantID string, timeout time.Duration) (int64, error) {
	cutoff := time.Now().Add(-timeout)
	res := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("tenant_id = ?", tenantID).
		Where("status = ?", core.StatusProcessing).
		Where("started_at < ?", cutoff).
		Updates(map[string]any{
			"status":     core.StatusQueued,
			"started_at": nil,
			"last_error": fmt.Sprintf("reset by stuck-job recovery after %s in processing", timeout),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("hookq: failed to recover stuck jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// FindByExternalID returns the job matching the upstream delivery id,
// regardless of status, or nil if none exists.
func (s *GormStore) FindByExternalID(ctx context.Context, tenantID, topic, externalID string) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND topic = ? AND external_id = ?", tenantID, topic, externalID).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindActiveByEntity returns a queued or processing job for the same
// domain entity, or nil if none is in flight.
func (s *GormStore) FindActiveByEntity(ctx context.Context, tenantID, topic, entityID string) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND topic = ? AND dedup_entity_id = ?", tenantID, topic, entityID).
		Where("status IN ?", []core.JobStatus{core.StatusQueued, core.StatusProcessing}).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CountQueued counts queued jobs for one tenant.
func (s *GormStore) CountQueued(ctx context.Context, tenantID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("tenant_id = ? AND status = ?", tenantID, core.StatusQueued).
		Count(&count).Error
	return count, err
}

// QueueSize counts jobs that are queued or processing, for monitoring.
func (s *GormStore) QueueSize(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("status IN ?", []core.JobStatus{core.StatusQueued, core.StatusProcessing}).
		Count(&count).Error
	return count, err
}

// DeadLetters returns the most recently failed jobs for operator
// inspection.
func (s *GormStore) DeadLetters(ctx context.Context, limit int) ([]*core.Job, error) {
	var jobList []*core.Job
	err := s.db.WithContext(ctx).
		Where("status = ?", core.StatusFailed).
		Order("finished_at DESC, id DESC").
		Limit(limit).
		Find(&jobList).Error
	return jobList, err
}

// DueTenants returns the distinct tenants that have due queued jobs.
func (s *GormStore) DueTenants(ctx context.Context) ([]string, error) {
	var tenants []string
	now := time.Now()
	err := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("status = ?", core.StatusQueued).
		Where("(next_run_at IS NULL OR next_run_at <= ?)", now).
		Distinct().
		Pluck("tenant_id", &tenants).Error
	return tenants, err
}

// GetJob retrieves a job by ID, or nil if it does not exist.
func (s *GormStore) GetJob(ctx context.Context, jobID uint64) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &job, err
}
