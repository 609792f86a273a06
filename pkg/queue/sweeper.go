package queue

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically wakes tenants whose due jobs have no running
// drain loop — the case after a process restart, where pending
// reschedule timers died with the old process.
type Sweeper struct {
	svc    *Service
	spec   string
	cron   *cron.Cron
	logger *slog.Logger
}

// NewSweeper creates a sweeper driving WakeDueJobs on a cron schedule.
// The spec accepts standard cron expressions and descriptors such as
// "@every 30s".
func NewSweeper(svc *Service, spec string) *Sweeper {
	return &Sweeper{
		svc:    svc,
		spec:   spec,
		cron:   cron.New(),
		logger: svc.logger,
	}
}

// Start begins sweeping. Returns an error for an invalid schedule.
func (sw *Sweeper) Start() error {
	if _, err := sw.cron.AddFunc(sw.spec, sw.sweep); err != nil {
		return err
	}
	sw.cron.Start()
	sw.logger.Info("sweeper started", "schedule", sw.spec)
	return nil
}

// Stop halts the schedule. An in-flight sweep is not interrupted; the
// drains it triggered are owned by the service and drained by Close.
func (sw *Sweeper) Stop() {
	sw.cron.Stop()
}

func (sw *Sweeper) sweep() {
	woken, err := sw.svc.WakeDueJobs(context.Background())
	if err != nil {
		sw.logger.Error("sweep failed", "error", err)
		return
	}
	if woken > 0 {
		sw.logger.Debug("sweep complete", "tenants_woken", woken)
	}
}
