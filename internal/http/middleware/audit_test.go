package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitebook/sitebook-api/internal/auth"
	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/http/middleware"
	"github.com/sitebook/sitebook-api/internal/repository"
	"github.com/sitebook/sitebook-api/internal/service"
	"github.com/sitebook/sitebook-api/internal/testutil"
)

func newAuditRouter(t *testing.T) (*gorm.DB, *middleware.AuditMiddleware, chi.Router) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	auditService := service.NewAuditLogService(repository.NewAuditLogRepository(db), zap.NewNop())
	mw := middleware.NewAuditMiddleware(auditService, nil, zap.NewNop())

	ok := func(status int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(status) }
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			user := &auth.UserContext{UserID: "admin-1", Email: "admin@example.com", Role: domain.RoleAdmin}
			next.ServeHTTP(w, req.WithContext(auth.WithUserContext(req.Context(), user)))
		})
	})
	r.Use(mw.Audit)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/projects", ok(http.StatusCreated))
		r.Put("/projects/{code}", ok(http.StatusOK))
		r.Delete("/boq/{id}", ok(http.StatusNoContent))
		r.Get("/boq/{id}", ok(http.StatusOK))
		r.Post("/kpi", ok(http.StatusUnprocessableEntity))
		r.Post("/kpi/validate", ok(http.StatusOK))
		r.Put("/users/{id}/role", ok(http.StatusOK))
		r.Get("/auth/me", ok(http.StatusOK))
	})
	return db, mw, r
}

func auditEntries(t *testing.T, db *gorm.DB) []domain.AuditLog {
	t.Helper()
	var logs []domain.AuditLog
	require.NoError(t, db.Order("performed_at").Find(&logs).Error)
	return logs
}

func TestAudit_RecordsSuccessfulWrites(t *testing.T) {
	db, mw, r := newAuditRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", strings.NewReader(`{"code":"PRJ-1","apiKey":"hidden"}`))
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/v1/projects/PRJ-1", strings.NewReader(`{"name":"Tower"}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/boq/8f14e45f-ceea-467f-a0e6-3b5b1a0c3b0e", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	mw.Wait()
	logs := auditEntries(t, db)
	require.Len(t, logs, 3)

	byAction := make(map[domain.AuditAction]domain.AuditLog, len(logs))
	for _, l := range logs {
		byAction[l.Action] = l
	}

	created := byAction[domain.AuditActionCreate]
	assert.Equal(t, "project", created.EntityType)
	assert.Equal(t, "admin-1", created.UserID)
	assert.Equal(t, "req-42", created.RequestID)
	assert.Contains(t, created.Details, "PRJ-1")
	assert.NotContains(t, created.Details, "hidden")

	updated := byAction[domain.AuditActionUpdate]
	assert.Equal(t, "project", updated.EntityType)
	assert.Equal(t, "PRJ-1", updated.EntityID)
	assert.Contains(t, updated.Details, "/api/v1/projects/{code}")

	deleted := byAction[domain.AuditActionDelete]
	assert.Equal(t, "boq_activity", deleted.EntityType)
	assert.Equal(t, "8f14e45f-ceea-467f-a0e6-3b5b1a0c3b0e", deleted.EntityID)
}

func TestAudit_Skips(t *testing.T) {
	db, mw, r := newAuditRouter(t)

	requests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"reads", http.MethodGet, "/api/v1/boq/8f14e45f-ceea-467f-a0e6-3b5b1a0c3b0e", http.StatusOK},
		{"failed writes", http.MethodPost, "/api/v1/kpi", http.StatusUnprocessableEntity},
		{"routes that audit themselves", http.MethodPut, "/api/v1/users/eng-1/role", http.StatusOK},
		{"side-effect free posts", http.MethodPost, "/api/v1/kpi/validate", http.StatusOK},
		{"auth paths", http.MethodGet, "/api/v1/auth/me", http.StatusOK},
		{"preflight", http.MethodOptions, "/api/v1/projects", http.StatusMethodNotAllowed},
	}
	for _, tt := range requests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`)))
			assert.Equal(t, tt.status, rr.Code)
		})
	}

	mw.Wait()
	assert.Empty(t, auditEntries(t, db))
}
