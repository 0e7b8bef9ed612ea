package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/sitebook/sitebook-api/docs" // swagger docs registration
	"github.com/sitebook/sitebook-api/internal/auth"
	"github.com/sitebook/sitebook-api/internal/config"
	"github.com/sitebook/sitebook-api/internal/database"
	"github.com/sitebook/sitebook-api/internal/datawarehouse"
	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/http/handler"
	"github.com/sitebook/sitebook-api/internal/http/middleware"
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Project *handler.ProjectHandler
	BOQ     *handler.BOQHandler
	KPI     *handler.KPIHandler
	Report  *handler.ReportHandler
	Audit   *handler.AuditHandler
}

type Router struct {
	cfg             *config.Config
	logger          *zap.Logger
	db              *gorm.DB
	queryStats      *database.QueryStats
	dwClient        *datawarehouse.Client
	authMiddleware  *auth.Middleware
	rateLimiter     *middleware.RateLimiter
	auditMiddleware *middleware.AuditMiddleware
	handlers        Handlers
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	queryStats *database.QueryStats,
	dwClient *datawarehouse.Client,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	auditMiddleware *middleware.AuditMiddleware,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		queryStats:      queryStats,
		dwClient:        dwClient,
		authMiddleware:  authMiddleware,
		rateLimiter:     rateLimiter,
		auditMiddleware: auditMiddleware,
		handlers:        handlers,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Liveness
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/health/db", rt.databaseHealth)
	r.Get("/health/dw", rt.warehouseHealth)
	r.Get("/health/ready", rt.readiness)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	h := rt.handlers
	perm := rt.authMiddleware.RequirePermission

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(middleware.CaptureUser)
		r.Use(rt.rateLimiter.Limit)
		r.Use(rt.auditMiddleware.Audit)

		// Auth
		r.Get("/auth/me", h.Auth.Me)
		r.Get("/auth/permissions", h.Auth.Permissions)
		r.Post("/auth/check", h.Auth.Check)

		r.With(perm(domain.PermissionUsersView)).Get("/permissions/catalog", h.User.Catalog)

		// Users
		r.Route("/users", func(r chi.Router) {
			r.With(perm(domain.PermissionUsersView)).Get("/", h.User.List)
			r.With(perm(domain.PermissionUsersView)).Get("/{id}", h.User.GetByID)
			r.With(perm(domain.PermissionUsersDelete)).Delete("/{id}", h.User.Delete)
			r.With(perm(domain.PermissionUsersView)).Get("/{id}/permissions", h.User.GetPermissions)
			r.With(perm(domain.PermissionUsersManage)).Put("/{id}/permissions", h.User.UpdatePermissions)
			r.With(perm(domain.PermissionUsersManage)).Put("/{id}/role", h.User.UpdateRole)
		})

		// Projects
		r.Route("/projects", func(r chi.Router) {
			r.With(perm(domain.PermissionProjectsView)).Get("/", h.Project.List)
			r.With(perm(domain.PermissionProjectsCreate)).Post("/", h.Project.Create)
			r.With(perm(domain.PermissionProjectsView)).Get("/{code}", h.Project.GetByCode)
			r.With(perm(domain.PermissionProjectsEdit)).Put("/{code}", h.Project.Update)
			r.With(perm(domain.PermissionProjectsDelete)).Delete("/{code}", h.Project.Delete)
			r.With(perm(domain.PermissionKPIView)).Get("/{code}/kpi-summary", h.Project.KPISummary)
			r.With(perm(domain.PermissionKPICreate)).Post("/{code}/kpi-sync", h.Project.SyncKPI)
			r.With(perm(domain.PermissionReportsView)).Get("/{code}/reports", h.Project.ListReports)
			r.With(perm(domain.PermissionReportsExport)).Post("/{code}/reports/kpi", h.Project.ExportKPIReport)
		})

		r.With(perm(domain.PermissionReportsView)).Get("/reports/{id}/download", h.Report.Download)

		// BOQ activities
		r.Route("/boq", func(r chi.Router) {
			r.With(perm(domain.PermissionBOQView)).Get("/", h.BOQ.List)
			r.With(perm(domain.PermissionBOQCreate)).Post("/", h.BOQ.Create)
			r.With(perm(domain.PermissionBOQView)).Get("/{id}", h.BOQ.GetByID)
			r.With(perm(domain.PermissionBOQEdit)).Put("/{id}", h.BOQ.Update)
			r.With(perm(domain.PermissionBOQDelete)).Delete("/{id}", h.BOQ.Delete)
			r.With(perm(domain.PermissionBOQView)).Get("/{id}/daily-target", h.BOQ.DailyTarget)
			r.With(perm(domain.PermissionKPICreate)).Post("/{id}/kpi-drafts", h.BOQ.KPIDrafts)
			r.With(perm(domain.PermissionKPIView)).Get("/{id}/comparison", h.BOQ.Comparison)
		})

		// KPI records
		r.Route("/kpi", func(r chi.Router) {
			r.With(perm(domain.PermissionKPIView)).Get("/", h.KPI.List)
			r.With(perm(domain.PermissionKPICreate)).Post("/", h.KPI.Create)
			r.With(perm(domain.PermissionKPIView)).Post("/validate", h.KPI.Validate)
			r.With(perm(domain.PermissionKPIView)).Get("/{id}", h.KPI.GetByID)
			r.With(perm(domain.PermissionKPIDelete)).Delete("/{id}", h.KPI.Delete)
		})

		// Audit logs
		r.Route("/audit", func(r chi.Router) {
			r.Use(perm(domain.PermissionSettingsView))
			r.Get("/", h.Audit.List)
			r.Get("/stats", h.Audit.GetStats)
			r.Get("/entity/{entityType}/{entityId}", h.Audit.GetByEntity)
			r.Get("/user/{userId}", h.Audit.GetByUser)
			r.Get("/{id}", h.Audit.GetByID)
		})
	})

	return r
}

func (rt *Router) databaseHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := database.HealthCheckWithStats(r.Context(), rt.db, rt.queryStats)
	if err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		writeHealth(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}
	writeHealth(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "database",
		"stats":   stats,
	})
}

func (rt *Router) warehouseHealth(w http.ResponseWriter, r *http.Request) {
	status := rt.dwClient.HealthCheck(r.Context())
	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

// readiness checks the database; a disabled warehouse does not make the service unready
func (rt *Router) readiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]any)
	allHealthy := true

	if err := database.HealthCheck(r.Context(), rt.db); err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		checks["database"] = map[string]any{"status": "unhealthy", "error": err.Error()}
		allHealthy = false
	} else {
		checks["database"] = map[string]any{"status": "healthy"}
	}

	dw := rt.dwClient.HealthCheck(r.Context())
	checks["datawarehouse"] = map[string]any{"status": dw.Status}
	if dw.Status == "unhealthy" {
		allHealthy = false
	}

	if allHealthy {
		writeHealth(w, http.StatusOK, map[string]any{"status": "healthy", "checks": checks})
		return
	}
	writeHealth(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "checks": checks})
}

func writeHealth(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
