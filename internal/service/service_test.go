package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitebook/sitebook-api/internal/auth"
	"github.com/sitebook/sitebook-api/internal/config"
	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/permission"
	"github.com/sitebook/sitebook-api/internal/repository"
	"github.com/sitebook/sitebook-api/internal/service"
	"github.com/sitebook/sitebook-api/internal/storage"
	"github.com/sitebook/sitebook-api/internal/testutil"
)

type testServices struct {
	db          *gorm.DB
	resolver    *permission.Resolver
	store       storage.Storage
	audit       *service.AuditLogService
	projects    *service.ProjectService
	boq         *service.BOQService
	kpi         *service.KPIService
	permissions *service.PermissionService
	users       *service.UserService
	reports     *service.ReportService
}

func testKPIConfig() config.KPIConfig {
	return config.KPIConfig{
		DefaultDurationDays: 10,
		EnforceBOQCeiling:   true,
		ScheduleScale:       2,
		SyncLookbackDays:    30,
	}
}

func newTestServices(t *testing.T, kpiCfg config.KPIConfig) *testServices {
	t.Helper()
	logger := zap.NewNop()
	db := testutil.SetupTestDB(t)

	projectRepo := repository.NewProjectRepository(db)
	boqRepo := repository.NewBOQActivityRepository(db)
	kpiRepo := repository.NewKPIRecordRepository(db)
	userRepo := repository.NewUserRepository(db)

	store, err := storage.NewLocalStorage(t.TempDir(), logger)
	require.NoError(t, err)

	resolver := permission.NewResolver(nil)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db), logger)
	kpi := service.NewKPIService(kpiRepo, boqRepo, projectRepo, kpiCfg, logger)

	return &testServices{
		db:          db,
		resolver:    resolver,
		store:       store,
		audit:       audit,
		projects:    service.NewProjectService(projectRepo, boqRepo, logger),
		boq:         service.NewBOQService(boqRepo, projectRepo, kpiRepo, kpiCfg, logger),
		kpi:         kpi,
		permissions: service.NewPermissionService(userRepo, resolver, audit, logger),
		users:       service.NewUserService(userRepo, resolver, audit, logger),
		reports:     service.NewReportService(kpi, repository.NewReportExportRepository(db), store, audit, logger),
	}
}

// asUser returns a context authenticated as id with role's resolved permissions
func (s *testServices) asUser(id string, role domain.Role) context.Context {
	subject := permission.Subject{Role: role}
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:      id,
		Email:       id + "@example.com",
		Role:        role,
		Mode:        s.resolver.Mode(subject),
		Permissions: s.resolver.Resolve(subject),
	})
}

func (s *testServices) auditEntries(t *testing.T, action domain.AuditAction) []domain.AuditLog {
	t.Helper()
	var logs []domain.AuditLog
	require.NoError(t, s.db.Where("action = ?", action).Order("performed_at").Find(&logs).Error)
	return logs
}
