package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AuditCleanupJobName is the name of the audit retention job
const AuditCleanupJobName = "audit_cleanup"

const auditCleanupTimeout = 10 * time.Minute

// AuditLogCleaner deletes audit entries older than the retention window
type AuditLogCleaner interface {
	CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error)
}

// RegisterAuditCleanupJob schedules the audit retention cleanup. A retention of zero
// or less keeps entries forever and registers nothing.
func RegisterAuditCleanupJob(scheduler *Scheduler, cleaner AuditLogCleaner, logger *zap.Logger, cronExpr string, retentionDays int) error {
	if retentionDays <= 0 {
		logger.Info("audit retention disabled, cleanup job not registered")
		return nil
	}

	return scheduler.AddJob(AuditCleanupJobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditCleanupTimeout)
		defer cancel()

		deleted, err := cleaner.CleanupOldLogs(ctx, retentionDays)
		if err != nil {
			logger.Error("audit cleanup failed", zap.Error(err))
			return
		}
		logger.Info("audit cleanup completed",
			zap.Int64("deleted", deleted),
			zap.Int("retention_days", retentionDays))
	})
}
