package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// KPISyncJobName is the name of the warehouse KPI sync job
const KPISyncJobName = "kpi_sync"

// ActualsSyncer pulls warehouse actual quantities into KPI records for every
// active project
type ActualsSyncer interface {
	SyncActiveProjects(ctx context.Context) (synced int, failed int, err error)
}

// KPISyncJob runs the warehouse actuals sync under a timeout
type KPISyncJob struct {
	syncer  ActualsSyncer
	logger  *zap.Logger
	timeout time.Duration
}

// NewKPISyncJob creates a new KPI sync job. The timeout bounds one whole run.
func NewKPISyncJob(syncer ActualsSyncer, logger *zap.Logger, timeout time.Duration) *KPISyncJob {
	return &KPISyncJob{
		syncer:  syncer,
		logger:  logger,
		timeout: timeout,
	}
}

// Run executes one sync. Called by the scheduler.
func (j *KPISyncJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	synced, failed, err := j.syncer.SyncActiveProjects(ctx)
	if err != nil {
		j.logger.Error("kpi sync job failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("kpi sync job completed",
		zap.Int("projects_synced", synced),
		zap.Int("projects_failed", failed),
		zap.Duration("duration", time.Since(start)))
}

// RegisterKPISyncJob registers the sync with the scheduler. With runOnStartup a
// first sync runs in the background so startup is not blocked.
func RegisterKPISyncJob(scheduler *Scheduler, syncer ActualsSyncer, logger *zap.Logger, cronExpr string, timeout time.Duration, runOnStartup bool) error {
	job := NewKPISyncJob(syncer, logger, timeout)

	if err := scheduler.AddJob(KPISyncJobName, cronExpr, job.Run); err != nil {
		return err
	}

	if runOnStartup {
		go job.Run()
	}
	return nil
}
