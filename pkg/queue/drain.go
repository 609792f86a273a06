package queue

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/orderflow/hookq/pkg/core"
	"github.com/orderflow/hookq/pkg/lock"
	"github.com/orderflow/hookq/pkg/security"
)

// drain runs one pass of the per-tenant loop: recover stuck jobs, take
// the cross-process lock, claim and execute up to MaxBatch jobs, then
// reschedule itself if backlog remains.
//
// Handler errors never escape a pass; store or lock errors during
// setup abort the pass without touching any job, and the next trigger
// or sweep retries the whole tenant.
func (s *Service) drain(ctx context.Context, tenantID string, depth int) {
	if !s.tryEnter(tenantID) {
		// Already draining in this process; the trigger was redundant.
		return
	}

	// The guard covers only the locked claim batch. It must drop before
	// the count-and-reschedule step: with a short cooldown the timer's
	// pass can fire immediately, and a guard still held by its own
	// scheduler would reject it, stranding the backlog until the sweep.
	if !s.runPass(ctx, tenantID) {
		return
	}

	remaining, err := s.store.CountQueued(ctx, tenantID)
	if err != nil {
		s.logger.Error("backlog count failed", "tenant", tenantID, "error", err)
		return
	}
	if remaining == 0 {
		return
	}

	if depth+1 >= s.cfg.MaxDrainDepth {
		s.logger.Warn("drain depth ceiling reached, not rescheduling",
			"tenant", tenantID,
			"depth", depth,
			"remaining", remaining)
		return
	}

	cooldown := s.rescheduleCooldown(remaining)
	s.scheduleDrain(tenantID, cooldown, depth+1)
	s.logger.Debug("drain rescheduled",
		"tenant", tenantID,
		"remaining", remaining,
		"cooldown", cooldown,
		"depth", depth+1)
}

// runPass holds the process-local guard for one recovery-lock-claim
// cycle. Returns false when the pass aborted before claiming (store or
// lock error, or the lock is held elsewhere); the caller skips
// rescheduling in that case.
func (s *Service) runPass(ctx context.Context, tenantID string) bool {
	defer s.exit(tenantID)

	// A fresh pass supersedes any pending reschedule timer.
	s.cancelTimer(tenantID)

	recovered, err := s.store.RecoverStuck(ctx, tenantID, s.cfg.StuckTimeout)
	if err != nil {
		s.logger.Error("stuck-job recovery failed, aborting pass", "tenant", tenantID, "error", err)
		return false
	}
	if recovered > 0 {
		s.logger.Warn("recovered stuck jobs", "tenant", tenantID, "count", recovered)
	}

	key := lock.Key(tenantID)
	acquired, err := s.locker.TryAcquire(ctx, key)
	if err != nil {
		s.logger.Error("lock acquisition failed, aborting pass", "tenant", tenantID, "error", err)
		return false
	}
	if !acquired {
		// Another process owns this tenant right now. Not an error.
		return false
	}

	defer func() {
		if err := s.locker.Release(ctx, key); err != nil {
			s.logger.Error("lock release failed", "tenant", tenantID, "error", err)
		}
	}()
	s.claimLoop(ctx, tenantID)
	return true
}

// claimLoop claims and executes jobs until the batch bound, an empty
// queue, or a store error ends the pass.
func (s *Service) claimLoop(ctx context.Context, tenantID string) {
	for i := 0; i < s.cfg.MaxBatch; i++ {
		job, err := s.store.ClaimNext(ctx, tenantID)
		if err != nil {
			s.logger.Error("claim failed", "tenant", tenantID, "error", err)
			return
		}
		if job == nil {
			return
		}
		s.processJob(ctx, job)
	}
}

func (s *Service) processJob(ctx context.Context, job *core.Job) {
	start := time.Now()

	handler, ok := s.handler(job.Intent)
	if !ok {
		// A registration bug, not a transient failure. Retrying cannot
		// fix a missing registration, so dead-letter immediately.
		msg := fmt.Sprintf("%v %q", core.ErrNoHandler, job.Intent)
		if err := s.store.MarkFailed(ctx, job.ID, msg); err != nil {
			s.logger.Error("mark failed errored", "job_id", job.ID, "error", err)
		}
		s.logger.Error("job dead-lettered",
			"tenant", job.TenantID,
			"intent", job.Intent,
			"job_id", job.ID,
			"attempt", job.Attempts,
			"reason", msg)
		return
	}

	err := s.invoke(ctx, handler, job.Payload)
	elapsed := time.Since(start)

	if err == nil {
		if err := s.store.MarkCompleted(ctx, job.ID); err != nil {
			s.logger.Error("mark completed errored", "job_id", job.ID, "error", err)
		}
		s.logger.Info("job completed",
			"tenant", job.TenantID,
			"intent", job.Intent,
			"job_id", job.ID,
			"attempt", job.Attempts,
			"elapsed", elapsed)
		return
	}

	errMsg := security.SanitizeErrorMessage(err.Error())

	if job.Attempts < s.cfg.MaxRetries {
		delay := s.backoffDelay(job.Attempts)
		nextRun := time.Now().Add(delay)
		if err := s.store.Requeue(ctx, job.ID, job.Attempts+1, nextRun, errMsg); err != nil {
			s.logger.Error("requeue errored", "job_id", job.ID, "error", err)
		}
		s.logger.Warn("job failed, requeued",
			"tenant", job.TenantID,
			"intent", job.Intent,
			"job_id", job.ID,
			"attempt", job.Attempts,
			"elapsed", elapsed,
			"retry_in", delay,
			"error", errMsg)
		return
	}

	if err := s.store.MarkFailed(ctx, job.ID, errMsg); err != nil {
		s.logger.Error("mark failed errored", "job_id", job.ID, "error", err)
	}
	s.logger.Error("job dead-lettered",
		"tenant", job.TenantID,
		"intent", job.Intent,
		"job_id", job.ID,
		"attempt", job.Attempts,
		"elapsed", elapsed,
		"error", errMsg)
}

// invoke runs the handler, converting a panic into an ordinary error
// so it only fails the current job, never the batch loop.
func (s *Service) invoke(ctx context.Context, h Handler, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, payload)
}

// backoffDelay computes the retry delay for a job that has already
// failed `attempts` times: full exponential backoff capped at MaxDelay,
// with jitter bounded by one BaseDelay unit. Successive delays are
// non-decreasing because the jitter never exceeds the next doubling.
func (s *Service) backoffDelay(attempts int) time.Duration {
	shift := attempts
	if shift > 32 {
		shift = 32
	}
	d := s.cfg.BaseDelay << uint(shift)
	if d <= 0 || d >= s.cfg.MaxDelay {
		return s.cfg.MaxDelay
	}
	d += time.Duration(rand.Int63n(int64(s.cfg.BaseDelay)))
	if d > s.cfg.MaxDelay {
		return s.cfg.MaxDelay
	}
	return d
}

// rescheduleCooldown grows the self-reschedule delay with backlog size
// so a deep backlog polls less aggressively.
func (s *Service) rescheduleCooldown(remaining int64) time.Duration {
	cooldown := s.cfg.PendingCooldown +
		time.Duration(remaining/int64(s.cfg.MaxBatch))*50*time.Millisecond
	if cooldown > s.cfg.PendingMaxCooldown {
		return s.cfg.PendingMaxCooldown
	}
	return cooldown
}

// tryEnter takes the process-local per-tenant guard.
func (s *Service) tryEnter(tenantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.draining[tenantID]; ok {
		return false
	}
	s.draining[tenantID] = struct{}{}
	return true
}

func (s *Service) exit(tenantID string) {
	s.mu.Lock()
	delete(s.draining, tenantID)
	s.mu.Unlock()
}

// cancelTimer stops a pending self-reschedule for the tenant, if any.
func (s *Service) cancelTimer(tenantID string) {
	s.mu.Lock()
	if t, ok := s.timers[tenantID]; ok {
		t.Stop()
		delete(s.timers, tenantID)
	}
	s.mu.Unlock()
}

// scheduleDrain replaces (never accumulates) the tenant's reschedule
// timer.
func (s *Service) scheduleDrain(tenantID string, cooldown time.Duration, depth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.timers[tenantID]; ok {
		t.Stop()
	}
	s.timers[tenantID] = time.AfterFunc(cooldown, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		delete(s.timers, tenantID)
		s.wg.Add(1)
		s.mu.Unlock()

		defer s.wg.Done()
		s.drain(context.Background(), tenantID, depth)
	})
}
