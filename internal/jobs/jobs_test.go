package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/jobs"
)

type fakeSyncer struct {
	calls    atomic.Int32
	err      error
	deadline bool
}

func (f *fakeSyncer) SyncActiveProjects(ctx context.Context) (int, int, error) {
	f.calls.Add(1)
	_, f.deadline = ctx.Deadline()
	return 2, 1, f.err
}

type fakeCleaner struct {
	retention int
	err       error
}

func (f *fakeCleaner) CleanupOldLogs(_ context.Context, retentionDays int) (int64, error) {
	f.retention = retentionDays
	return 5, f.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())

	require.NoError(t, s.AddJob("a", "0 */30 * * * *", func() {}))
	assert.ElementsMatch(t, []string{"a"}, s.GetJobNames())

	t.Run("duplicate name", func(t *testing.T) {
		err := s.AddJob("a", "@every 1h", func() {})
		assert.Error(t, err)
	})

	t.Run("five-field expression is rejected", func(t *testing.T) {
		err := s.AddJob("b", "*/5 * * * *", func() {})
		assert.Error(t, err)
		assert.NotContains(t, s.GetJobNames(), "b")
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, s.RemoveJob("a"))
		assert.Empty(t, s.GetJobNames())
		assert.Error(t, s.RemoveJob("a"))
	})
}

func TestKPISyncJob_Run(t *testing.T) {
	syncer := &fakeSyncer{}
	job := jobs.NewKPISyncJob(syncer, zap.NewNop(), time.Minute)

	job.Run()
	assert.Equal(t, int32(1), syncer.calls.Load())
	assert.True(t, syncer.deadline, "run must be bounded by the timeout")

	syncer.err = errors.New("warehouse down")
	assert.NotPanics(t, job.Run)
	assert.Equal(t, int32(2), syncer.calls.Load())
}

func TestRegisterKPISyncJob(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())
	syncer := &fakeSyncer{}

	err := jobs.RegisterKPISyncJob(s, syncer, zap.NewNop(), "0 */30 * * * *", time.Minute, false)
	require.NoError(t, err)
	assert.Contains(t, s.GetJobNames(), jobs.KPISyncJobName)
	assert.Equal(t, int32(0), syncer.calls.Load())

	err = jobs.RegisterKPISyncJob(s, syncer, zap.NewNop(), "bad cron", time.Minute, false)
	assert.Error(t, err)
}

func TestRegisterKPISyncJob_StartupRun(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())
	syncer := &fakeSyncer{}

	require.NoError(t, jobs.RegisterKPISyncJob(s, syncer, zap.NewNop(), "0 0 * * * *", time.Minute, true))
	assert.Eventually(t, func() bool { return syncer.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestRegisterAuditCleanupJob(t *testing.T) {
	t.Run("zero retention registers nothing", func(t *testing.T) {
		s := jobs.NewScheduler(zap.NewNop())
		require.NoError(t, jobs.RegisterAuditCleanupJob(s, &fakeCleaner{}, zap.NewNop(), "0 0 3 * * *", 0))
		assert.Empty(t, s.GetJobNames())
	})

	t.Run("registers with retention", func(t *testing.T) {
		s := jobs.NewScheduler(zap.NewNop())
		require.NoError(t, jobs.RegisterAuditCleanupJob(s, &fakeCleaner{}, zap.NewNop(), "0 0 3 * * *", 365))
		assert.Equal(t, []string{jobs.AuditCleanupJobName}, s.GetJobNames())
	})

	t.Run("scheduled run uses the retention", func(t *testing.T) {
		s := jobs.NewScheduler(zap.NewNop())
		cleaner := &fakeCleaner{}
		done := make(chan struct{})
		wrapped := &notifyingCleaner{inner: cleaner, done: done}

		require.NoError(t, jobs.RegisterAuditCleanupJob(s, wrapped, zap.NewNop(), "@every 1s", 90))
		s.Start()
		defer s.Stop()

		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("cleanup did not run")
		}
		assert.Equal(t, 90, cleaner.retention)
	})
}

type notifyingCleaner struct {
	inner *fakeCleaner
	done  chan struct{}
	fired atomic.Bool
}

func (n *notifyingCleaner) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	count, err := n.inner.CleanupOldLogs(ctx, retentionDays)
	if n.fired.CompareAndSwap(false, true) {
		close(n.done)
	}
	return count, err
}
