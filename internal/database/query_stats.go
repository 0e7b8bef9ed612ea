package database

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const startKey = "query_stats:start"

// QueryStats is a gorm plugin counting statements, errors and slow statements.
// One instance is created per process and injected where needed.
type QueryStats struct {
	threshold time.Duration
	logger    *zap.Logger

	queries     atomic.Int64
	slow        atomic.Int64
	errors      atomic.Int64
	totalMicros atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters
type StatsSnapshot struct {
	Queries       int64  `json:"total"`
	SlowQueries   int64  `json:"slow"`
	Errors        int64  `json:"errors"`
	AverageMicros int64  `json:"averageMicros"`
	SlowThreshold string `json:"slowThreshold"`
}

// NewQueryStats creates a counter; a non-positive threshold disables slow tracking
func NewQueryStats(slowThreshold time.Duration, logger *zap.Logger) *QueryStats {
	return &QueryStats{threshold: slowThreshold, logger: logger}
}

// Name implements gorm.Plugin
func (s *QueryStats) Name() string {
	return "sitebook:query_stats"
}

// Initialize implements gorm.Plugin
func (s *QueryStats) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	registrations := []struct {
		name string
		err  error
	}{
		{"before_create", cb.Create().Before("gorm:create").Register("query_stats:before_create", s.before)},
		{"after_create", cb.Create().After("gorm:create").Register("query_stats:after_create", s.after)},
		{"before_query", cb.Query().Before("gorm:query").Register("query_stats:before_query", s.before)},
		{"after_query", cb.Query().After("gorm:query").Register("query_stats:after_query", s.after)},
		{"before_update", cb.Update().Before("gorm:update").Register("query_stats:before_update", s.before)},
		{"after_update", cb.Update().After("gorm:update").Register("query_stats:after_update", s.after)},
		{"before_delete", cb.Delete().Before("gorm:delete").Register("query_stats:before_delete", s.before)},
		{"after_delete", cb.Delete().After("gorm:delete").Register("query_stats:after_delete", s.after)},
		{"before_row", cb.Row().Before("gorm:row").Register("query_stats:before_row", s.before)},
		{"after_row", cb.Row().After("gorm:row").Register("query_stats:after_row", s.after)},
		{"before_raw", cb.Raw().Before("gorm:raw").Register("query_stats:before_raw", s.before)},
		{"after_raw", cb.Raw().After("gorm:raw").Register("query_stats:after_raw", s.after)},
	}
	for _, r := range registrations {
		if r.err != nil {
			return fmt.Errorf("register %s callback: %w", r.name, r.err)
		}
	}
	return nil
}

func (s *QueryStats) before(db *gorm.DB) {
	db.InstanceSet(startKey, time.Now())
}

func (s *QueryStats) after(db *gorm.DB) {
	v, ok := db.InstanceGet(startKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	s.Observe(elapsed, db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound))

	if s.threshold > 0 && elapsed >= s.threshold && s.logger != nil {
		s.logger.Warn("slow query",
			zap.Duration("duration", elapsed),
			zap.String("table", db.Statement.Table),
			zap.Int64("rows", db.RowsAffected),
		)
	}
}

// Observe records one statement
func (s *QueryStats) Observe(elapsed time.Duration, failed bool) {
	s.queries.Add(1)
	s.totalMicros.Add(elapsed.Microseconds())
	if failed {
		s.errors.Add(1)
	}
	if s.threshold > 0 && elapsed >= s.threshold {
		s.slow.Add(1)
	}
}

// Snapshot returns the current counters
func (s *QueryStats) Snapshot() StatsSnapshot {
	q := s.queries.Load()
	snap := StatsSnapshot{
		Queries:       q,
		SlowQueries:   s.slow.Load(),
		Errors:        s.errors.Load(),
		SlowThreshold: s.threshold.String(),
	}
	if q > 0 {
		snap.AverageMicros = s.totalMicros.Load() / q
	}
	return snap
}

// Reset zeroes the counters
func (s *QueryStats) Reset() {
	s.queries.Store(0)
	s.slow.Store(0)
	s.errors.Store(0)
	s.totalMicros.Store(0)
}
