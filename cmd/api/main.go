package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/docs"
	"github.com/sitebook/sitebook-api/internal/auth"
	"github.com/sitebook/sitebook-api/internal/config"
	"github.com/sitebook/sitebook-api/internal/database"
	"github.com/sitebook/sitebook-api/internal/datawarehouse"
	"github.com/sitebook/sitebook-api/internal/http/handler"
	"github.com/sitebook/sitebook-api/internal/http/middleware"
	"github.com/sitebook/sitebook-api/internal/http/router"
	"github.com/sitebook/sitebook-api/internal/jobs"
	"github.com/sitebook/sitebook-api/internal/logger"
	"github.com/sitebook/sitebook-api/internal/permission"
	"github.com/sitebook/sitebook-api/internal/repository"
	"github.com/sitebook/sitebook-api/internal/service"
	"github.com/sitebook/sitebook-api/internal/storage"
)

// @title Sitebook API
// @version 1.0
// @description Construction site API: BOQ activities, KPI records, reconciliation and permissions

// @contact.name API Support

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// deployed environments serve the docs from their own host
	docs.SwaggerInfo.Host = ""
	if basicCfg.App.Environment == "development" || basicCfg.App.Environment == "local" {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// In development secrets come from the environment; staging and production may
	// read them from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	queryStats := database.NewQueryStatsFromConfig(&cfg.Database, logger.Named(log, "db"))
	db, err := database.NewDatabase(&cfg.Database, queryStats)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		// sqlite is for local development; postgres schemas come from cmd/migrate
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
	}

	reportStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// The warehouse is optional; the API runs without actuals sync when it is missing
	var dwClient *datawarehouse.Client
	if cfg.DataWarehouse.Enabled {
		dwClient, err = datawarehouse.NewClient(&cfg.DataWarehouse, logger.Named(log, "datawarehouse"))
		if err != nil {
			log.Warn("Data warehouse connection failed, continuing without it", zap.Error(err))
			dwClient = nil
		} else {
			log.Info("Data warehouse connected successfully",
				zap.Int("max_open_conns", cfg.DataWarehouse.MaxOpenConns),
				zap.Int("query_timeout_seconds", cfg.DataWarehouse.QueryTimeout),
			)
		}
	} else {
		log.Info("Data warehouse not configured, skipping")
	}

	catalog, err := loadCatalog(&cfg.Permissions)
	if err != nil {
		return err
	}
	resolver := permission.NewResolver(catalog)

	// Repositories
	projectRepo := repository.NewProjectRepository(db)
	boqRepo := repository.NewBOQActivityRepository(db)
	kpiRepo := repository.NewKPIRecordRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)
	exportRepo := repository.NewReportExportRepository(db)

	// Services
	auditLogService := service.NewAuditLogService(auditLogRepo, log)
	projectService := service.NewProjectService(projectRepo, boqRepo, log)
	boqService := service.NewBOQService(boqRepo, projectRepo, kpiRepo, cfg.KPI, log)
	kpiService := service.NewKPIService(kpiRepo, boqRepo, projectRepo, cfg.KPI, log)
	permissionService := service.NewPermissionService(userRepo, resolver, auditLogService, log)
	userService := service.NewUserService(userRepo, resolver, auditLogService, log)
	reportService := service.NewReportService(kpiService, exportRepo, reportStorage, auditLogService, log)
	syncService := service.NewKPISyncService(dwClient, projectRepo, boqRepo, kpiRepo, auditLogService, cfg.KPI, logger.Named(log, "kpi_sync"))

	// Middleware
	authMiddleware := auth.NewMiddleware(&cfg.Auth, userRepo, resolver, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)
	auditMiddleware := middleware.NewAuditMiddleware(auditLogService, nil, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		queryStats,
		dwClient,
		authMiddleware,
		rateLimiter,
		auditMiddleware,
		router.Handlers{
			Auth:    handler.NewAuthHandler(userService, permissionService, log),
			User:    handler.NewUserHandler(userService, permissionService, log),
			Project: handler.NewProjectHandler(projectService, kpiService, reportService, syncService, log),
			BOQ:     handler.NewBOQHandler(boqService, log),
			KPI:     handler.NewKPIHandler(kpiService, log),
			Report:  handler.NewReportHandler(reportService, log),
			Audit:   handler.NewAuditHandler(auditLogService, log),
		},
	)

	scheduler := startScheduler(cfg, dwClient, syncService, auditLogService, logger.Named(log, "jobs"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}
		auditMiddleware.Wait()

		if dwClient != nil {
			if err := dwClient.Close(); err != nil {
				log.Warn("Error closing data warehouse connection", zap.Error(err))
			}
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}

func loadCatalog(cfg *config.PermissionsConfig) (*permission.Catalog, error) {
	if cfg.CatalogPath == "" {
		return permission.DefaultCatalog(), nil
	}
	catalog, err := permission.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load permission catalog: %w", err)
	}
	return catalog, nil
}

// startScheduler registers the background jobs that apply to this deployment and
// starts the scheduler, or returns nil when there is nothing to run
func startScheduler(
	cfg *config.Config,
	dwClient *datawarehouse.Client,
	syncService *service.KPISyncService,
	auditLogService *service.AuditLogService,
	log *zap.Logger,
) *jobs.Scheduler {
	scheduler := jobs.NewScheduler(log)

	if cfg.KPI.SyncEnabled && dwClient.IsEnabled() {
		if err := jobs.RegisterKPISyncJob(scheduler, syncService, log, cfg.KPI.SyncCron, cfg.KPI.SyncTimeoutDuration(), true); err != nil {
			log.Error("Failed to register KPI sync job", zap.Error(err))
		}
	} else {
		log.Info("KPI warehouse sync disabled",
			zap.Bool("sync_enabled", cfg.KPI.SyncEnabled),
			zap.Bool("dw_client_available", dwClient != nil),
		)
	}

	if err := jobs.RegisterAuditCleanupJob(scheduler, auditLogService, log, cfg.Audit.CleanupCron, cfg.Audit.RetentionDays); err != nil {
		log.Error("Failed to register audit cleanup job", zap.Error(err))
	}

	if len(scheduler.GetJobNames()) == 0 {
		return nil
	}
	scheduler.Start()
	log.Info("Scheduler started", zap.Strings("jobs", scheduler.GetJobNames()))
	return scheduler
}
