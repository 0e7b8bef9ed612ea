package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitebook/sitebook-api/internal/auth"
	"github.com/sitebook/sitebook-api/internal/config"
	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/http/handler"
	"github.com/sitebook/sitebook-api/internal/permission"
	"github.com/sitebook/sitebook-api/internal/repository"
	"github.com/sitebook/sitebook-api/internal/service"
	"github.com/sitebook/sitebook-api/internal/storage"
	"github.com/sitebook/sitebook-api/internal/testutil"
)

// testEnv serves every handler on the production paths without the permission
// middleware; the caller is injected from user
type testEnv struct {
	db       *gorm.DB
	resolver *permission.Resolver
	router   chi.Router
	user     *auth.UserContext
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	db := testutil.SetupTestDB(t)
	kpiCfg := config.KPIConfig{
		DefaultDurationDays: 10,
		EnforceBOQCeiling:   true,
		ScheduleScale:       2,
		SyncLookbackDays:    30,
	}

	projectRepo := repository.NewProjectRepository(db)
	boqRepo := repository.NewBOQActivityRepository(db)
	kpiRepo := repository.NewKPIRecordRepository(db)
	userRepo := repository.NewUserRepository(db)

	store, err := storage.NewLocalStorage(t.TempDir(), logger)
	require.NoError(t, err)

	resolver := permission.NewResolver(nil)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db), logger)
	kpiService := service.NewKPIService(kpiRepo, boqRepo, projectRepo, kpiCfg, logger)
	permissionService := service.NewPermissionService(userRepo, resolver, audit, logger)
	userService := service.NewUserService(userRepo, resolver, audit, logger)
	reportService := service.NewReportService(kpiService, repository.NewReportExportRepository(db), store, audit, logger)
	// no warehouse source: sync requests report the warehouse as disabled
	syncService := service.NewKPISyncService(nil, projectRepo, boqRepo, kpiRepo, audit, kpiCfg, logger)

	authH := handler.NewAuthHandler(userService, permissionService, logger)
	userH := handler.NewUserHandler(userService, permissionService, logger)
	projectH := handler.NewProjectHandler(service.NewProjectService(projectRepo, boqRepo, logger), kpiService, reportService, syncService, logger)
	boqH := handler.NewBOQHandler(service.NewBOQService(boqRepo, projectRepo, kpiRepo, kpiCfg, logger), logger)
	kpiH := handler.NewKPIHandler(kpiService, logger)
	reportH := handler.NewReportHandler(reportService, logger)
	auditH := handler.NewAuditHandler(audit, logger)

	env := &testEnv{db: db, resolver: resolver}
	env.as("admin-1", domain.RoleAdmin)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if env.user != nil {
				req = req.WithContext(auth.WithUserContext(req.Context(), env.user))
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/auth/me", authH.Me)
	r.Get("/auth/permissions", authH.Permissions)
	r.Post("/auth/check", authH.Check)
	r.Get("/permissions/catalog", userH.Catalog)

	r.Get("/users", userH.List)
	r.Get("/users/{id}", userH.GetByID)
	r.Delete("/users/{id}", userH.Delete)
	r.Get("/users/{id}/permissions", userH.GetPermissions)
	r.Put("/users/{id}/permissions", userH.UpdatePermissions)
	r.Put("/users/{id}/role", userH.UpdateRole)

	r.Get("/projects", projectH.List)
	r.Post("/projects", projectH.Create)
	r.Get("/projects/{code}", projectH.GetByCode)
	r.Put("/projects/{code}", projectH.Update)
	r.Delete("/projects/{code}", projectH.Delete)
	r.Get("/projects/{code}/kpi-summary", projectH.KPISummary)
	r.Post("/projects/{code}/kpi-sync", projectH.SyncKPI)
	r.Get("/projects/{code}/reports", projectH.ListReports)
	r.Post("/projects/{code}/reports/kpi", projectH.ExportKPIReport)
	r.Get("/reports/{id}/download", reportH.Download)

	r.Get("/boq", boqH.List)
	r.Post("/boq", boqH.Create)
	r.Get("/boq/{id}", boqH.GetByID)
	r.Put("/boq/{id}", boqH.Update)
	r.Delete("/boq/{id}", boqH.Delete)
	r.Get("/boq/{id}/daily-target", boqH.DailyTarget)
	r.Post("/boq/{id}/kpi-drafts", boqH.KPIDrafts)
	r.Get("/boq/{id}/comparison", boqH.Comparison)

	r.Get("/kpi", kpiH.List)
	r.Post("/kpi", kpiH.Create)
	r.Post("/kpi/validate", kpiH.Validate)
	r.Get("/kpi/{id}", kpiH.GetByID)
	r.Delete("/kpi/{id}", kpiH.Delete)

	r.Get("/audit", auditH.List)
	r.Get("/audit/stats", auditH.GetStats)
	r.Get("/audit/entity/{entityType}/{entityId}", auditH.GetByEntity)
	r.Get("/audit/user/{userId}", auditH.GetByUser)
	r.Get("/audit/{id}", auditH.GetByID)

	env.router = r
	return env
}

// as switches the caller to id with role's default permissions
func (e *testEnv) as(id string, role domain.Role) {
	subject := permission.Subject{Role: role}
	e.user = &auth.UserContext{
		UserID:      id,
		Email:       id + "@example.com",
		DisplayName: "User " + id,
		Role:        role,
		Mode:        e.resolver.Mode(subject),
		Permissions: e.resolver.Resolve(subject),
	}
}

// do sends body as JSON; a string body is sent verbatim
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

func requireStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rr.Code, "body: %s", rr.Body.String())
}

// requireProblem asserts an RFC 7807 error body with the given status and type
func requireProblem(t *testing.T, rr *httptest.ResponseRecorder, status int, errorType string) domain.APIError {
	t.Helper()
	requireStatus(t, rr, status)
	apiErr := decode[domain.APIError](t, rr)
	require.Equal(t, errorType, apiErr.Type)
	require.Equal(t, status, apiErr.Status)
	return apiErr
}

type page[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}
