package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sitebook/sitebook-api/internal/config"
	"github.com/sitebook/sitebook-api/internal/domain"
)

// NewDatabase opens the configured database, applies pool settings and installs
// the query statistics plugin.
func NewDatabase(cfg *config.DatabaseConfig, stats *QueryStats) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "postgres":
		dialector = postgres.Open(cfg.ConnectionString())
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := Open(dialector)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if stats != nil {
		if err := db.Use(stats); err != nil {
			return nil, fmt.Errorf("failed to register query stats: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Open opens a gorm connection with the shared settings (silent logger, UTC clock)
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// AutoMigrate creates or updates tables from the models. Production schemas are
// managed by the goose migrations; this is for sqlite development and tests.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Project{},
		&domain.BOQActivity{},
		&domain.KPIRecord{},
		&domain.User{},
		&domain.AuditLog{},
		&domain.ReportExport{},
	)
}

// HealthCheck pings the database
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// HealthStats combines pool statistics with query counters
type HealthStats struct {
	OpenConnections int           `json:"openConnections"`
	InUse           int           `json:"inUse"`
	Idle            int           `json:"idle"`
	WaitCount       int64         `json:"waitCount"`
	WaitDuration    string        `json:"waitDuration"`
	Queries         StatsSnapshot `json:"queries"`
}

// HealthCheckWithStats pings the database and reports pool and query statistics
func HealthCheckWithStats(ctx context.Context, db *gorm.DB, stats *QueryStats) (*HealthStats, error) {
	if err := HealthCheck(ctx, db); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	pool := sqlDB.Stats()
	hs := &HealthStats{
		OpenConnections: pool.OpenConnections,
		InUse:           pool.InUse,
		Idle:            pool.Idle,
		WaitCount:       pool.WaitCount,
		WaitDuration:    pool.WaitDuration.String(),
	}
	if stats != nil {
		hs.Queries = stats.Snapshot()
	}
	return hs, nil
}

// NewQueryStatsFromConfig builds a QueryStats using the configured slow threshold
func NewQueryStatsFromConfig(cfg *config.DatabaseConfig, log *zap.Logger) *QueryStats {
	return NewQueryStats(cfg.SlowQueryThreshold(), log)
}
