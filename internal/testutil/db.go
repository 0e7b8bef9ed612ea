// Package testutil provides an in-memory database and fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sitebook/sitebook-api/internal/database"
	"github.com/sitebook/sitebook-api/internal/domain"
)

// SetupTestDB opens a private in-memory SQLite database with all tables migrated.
// Each call gets its own database, so tests may run in parallel.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn))
	require.NoError(t, err, "failed to open sqlite test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive and avoids SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db), "failed to migrate test database")
	return db
}

// Dec parses a decimal literal and fails the test on error
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// Date returns midnight UTC of the given day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateTestProject creates an active project with the given code
func CreateTestProject(t *testing.T, db *gorm.DB, code string) *domain.Project {
	t.Helper()
	project := &domain.Project{
		Code:   code,
		Name:   "Project " + code,
		Status: domain.ProjectStatusActive,
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

// CreateTestBOQActivity creates a BOQ activity; duration may be nil
func CreateTestBOQActivity(t *testing.T, db *gorm.DB, projectCode, name, planned string, duration *int) *domain.BOQActivity {
	t.Helper()
	activity := &domain.BOQActivity{
		ProjectCode:      projectCode,
		ActivityName:     name,
		Unit:             "m3",
		PlannedUnits:     Dec(t, planned),
		CalendarDuration: duration,
	}
	require.NoError(t, db.Create(activity).Error)
	return activity
}

// CreateTestKPIRecord creates a manual KPI record dated on day
func CreateTestKPIRecord(t *testing.T, db *gorm.DB, projectCode, activity string, inputType domain.KPIInputType, qty string, day time.Time) *domain.KPIRecord {
	t.Helper()
	record := &domain.KPIRecord{
		ProjectFullCode: projectCode,
		ActivityName:    activity,
		Quantity:        Dec(t, qty),
		InputType:       inputType,
		ActivityDate:    &day,
		Source:          domain.KPISourceManual,
	}
	require.NoError(t, db.Create(record).Error)
	return record
}

// CreateTestUser creates an active user with the given role
func CreateTestUser(t *testing.T, db *gorm.DB, id string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: "User " + id,
		Role:        role,
		IsActive:    true,
		Permissions: []string{},
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// IntPtr returns a pointer to i
func IntPtr(i int) *int {
	return &i
}
