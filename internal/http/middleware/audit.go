package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/service"
)

// AuditConfig holds configuration for audit middleware
type AuditConfig struct {
	// SkipPaths contains path prefixes that should not be audited
	SkipPaths []string
	// SkipRoutes contains chi route patterns whose handlers audit themselves or do not mutate
	SkipRoutes []string
	// SkipMethods contains HTTP methods that should not be audited (e.g., GET, OPTIONS)
	SkipMethods []string
	// AuditReads enables auditing of GET requests (defaults to false)
	AuditReads bool
}

// DefaultAuditConfig returns default audit configuration
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		SkipPaths: []string{
			"/health",
			"/swagger",
			"/api/v1/auth",
		},
		SkipRoutes: []string{
			"/api/v1/kpi/validate",
			"/api/v1/projects/{code}/reports/kpi",
			"/api/v1/projects/{code}/kpi-sync",
			"/api/v1/users/{id}",
			"/api/v1/users/{id}/role",
			"/api/v1/users/{id}/permissions",
		},
		SkipMethods: []string{
			http.MethodOptions,
			http.MethodHead,
		},
		AuditReads: false,
	}
}

// entityTypes maps the first path segment after /api/v1 to the audited entity type
var entityTypes = map[string]string{
	"projects": "project",
	"boq":      "boq_activity",
	"kpi":      "kpi_record",
	"users":    "user",
	"reports":  "report_export",
}

// sensitiveFields are stripped from audited request bodies
var sensitiveFields = []string{"password", "secret", "token", "apiKey"}

// AuditMiddleware provides audit logging for HTTP requests
type AuditMiddleware struct {
	auditService *service.AuditLogService
	config       *AuditConfig
	logger       *zap.Logger
	pending      sync.WaitGroup
}

// NewAuditMiddleware creates a new audit middleware
func NewAuditMiddleware(auditService *service.AuditLogService, config *AuditConfig, logger *zap.Logger) *AuditMiddleware {
	if config == nil {
		config = DefaultAuditConfig()
	}
	return &AuditMiddleware{
		auditService: auditService,
		config:       config,
		logger:       logger,
	}
}

// Audit returns middleware that logs successful modifications to the audit log.
// Entries are written in the background; Wait blocks until they are stored.
func (m *AuditMiddleware) Audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.shouldAudit(r) {
			next.ServeHTTP(w, r)
			return
		}

		var requestBody []byte
		if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
			requestBody, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		rw := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if rw.statusCode < 200 || rw.statusCode >= 300 {
			return
		}

		// the chi route context is recycled once the request ends, so everything
		// route-derived is read here
		pattern, entityType, entityID := m.extractEntityInfo(r)
		if m.skipRoute(pattern) {
			return
		}
		entry := service.LogEntry{
			Action:     m.methodToAction(r.Method),
			EntityType: entityType,
			EntityID:   entityID,
			NewValues:  m.parseBody(requestBody),
			Metadata:   map[string]any{"route": pattern, "status": rw.statusCode},
		}
		if entry.Action == "" {
			return
		}

		ctx := context.WithoutCancel(r.Context())
		snapshot := r.Clone(ctx)
		m.pending.Add(1)
		go func() {
			defer m.pending.Done()
			m.logAudit(ctx, snapshot, entry)
		}()
	})
}

// Wait blocks until every background audit write has finished
func (m *AuditMiddleware) Wait() {
	m.pending.Wait()
}

// shouldAudit determines if a request should be audited
func (m *AuditMiddleware) shouldAudit(r *http.Request) bool {
	for _, method := range m.config.SkipMethods {
		if r.Method == method {
			return false
		}
	}

	if r.Method == http.MethodGet && !m.config.AuditReads {
		return false
	}

	path := r.URL.Path
	for _, skipPath := range m.config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return false
		}
	}

	return true
}

func (m *AuditMiddleware) skipRoute(pattern string) bool {
	for _, p := range m.config.SkipRoutes {
		if p == pattern {
			return true
		}
	}
	return false
}

func (m *AuditMiddleware) logAudit(ctx context.Context, r *http.Request, entry service.LogEntry) {
	if m.auditService == nil {
		return
	}
	if err := m.auditService.Log(ctx, r, entry); err != nil {
		m.logger.Warn("failed to create audit log entry",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Error(err))
	}
}

func (m *AuditMiddleware) parseBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var parsed map[string]any
	if json.Unmarshal(body, &parsed) != nil {
		return nil
	}
	for _, f := range sensitiveFields {
		delete(parsed, f)
	}
	return parsed
}

// methodToAction converts HTTP method to audit action
func (m *AuditMiddleware) methodToAction(method string) domain.AuditAction {
	switch method {
	case http.MethodPost:
		return domain.AuditActionCreate
	case http.MethodPut, http.MethodPatch:
		return domain.AuditActionUpdate
	case http.MethodDelete:
		return domain.AuditActionDelete
	case http.MethodGet:
		return domain.AuditActionAPICall
	default:
		return ""
	}
}

// extractEntityInfo returns the route pattern, the entity type and the entity id or
// code taken from the route parameters
func (m *AuditMiddleware) extractEntityInfo(r *http.Request) (string, string, string) {
	routeCtx := chi.RouteContext(r.Context())
	if routeCtx == nil {
		return r.URL.Path, parseEntityFromPath(r.URL.Path), ""
	}

	pattern := routeCtx.RoutePattern()
	entityID := routeCtx.URLParam("id")
	if entityID == "" {
		entityID = routeCtx.URLParam("code")
	}
	return pattern, parseEntityFromPath(pattern), entityID
}

// parseEntityFromPath extracts the entity type from a URL path or route pattern
func parseEntityFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for _, part := range parts {
		if entityType, ok := entityTypes[part]; ok {
			return entityType
		}
	}
	return "unknown"
}

// responseCapture wraps ResponseWriter to capture the status code
type responseCapture struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseCapture) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}
