package handler_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/http/handler"
	"github.com/sitebook/sitebook-api/internal/testutil"
)

func TestAuditHandler(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateTestUser(t, env.db, "admin-1", domain.RoleAdmin)
	testutil.CreateTestUser(t, env.db, "eng-1", domain.RoleEngineer)

	rr := env.do(t, http.MethodPut, "/users/eng-1/role", domain.UpdateUserRoleRequest{Role: domain.RoleManager})
	requireStatus(t, rr, http.StatusOK)
	rr = env.do(t, http.MethodPut, "/users/eng-1/permissions", domain.UpdateUserPermissionsRequest{Permissions: []string{"reports.export"}})
	requireStatus(t, rr, http.StatusOK)

	old := &domain.AuditLog{
		UserID:      "someone",
		Action:      domain.AuditActionDelete,
		EntityType:  "project",
		EntityID:    "PRJ-OLD",
		PerformedAt: time.Now().UTC().AddDate(0, 0, -90),
	}
	require.NoError(t, env.db.Create(old).Error)

	t.Run("list all", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/audit", nil)
		requireStatus(t, rr, http.StatusOK)
		assert.Equal(t, int64(3), decode[page[domain.AuditLogDTO]](t, rr).Total)
	})

	t.Run("list by action", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/audit?action=role_change", nil)
		requireStatus(t, rr, http.StatusOK)
		result := decode[page[domain.AuditLogDTO]](t, rr)
		require.Len(t, result.Data, 1)
		assert.Equal(t, "eng-1", result.Data[0].EntityID)
		assert.Contains(t, result.Data[0].Details, "manager")
	})

	t.Run("list from a start time", func(t *testing.T) {
		since := url.QueryEscape(time.Now().UTC().AddDate(0, 0, -1).Format(time.RFC3339))
		rr := env.do(t, http.MethodGet, "/audit?startTime="+since, nil)
		requireStatus(t, rr, http.StatusOK)
		assert.Equal(t, int64(2), decode[page[domain.AuditLogDTO]](t, rr).Total)
	})

	t.Run("bad start time", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/audit?startTime=yesterday", nil)
		requireProblem(t, rr, http.StatusBadRequest, domain.ErrorTypeBadRequest)
	})

	t.Run("by entity", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/audit/entity/user/eng-1", nil)
		requireStatus(t, rr, http.StatusOK)
		logs := decode[[]domain.AuditLogDTO](t, rr)
		require.Len(t, logs, 2)
		actions := []domain.AuditAction{logs[0].Action, logs[1].Action}
		assert.ElementsMatch(t, []domain.AuditAction{domain.AuditActionRoleChange, domain.AuditActionPermissionChange}, actions)
	})

	t.Run("by user", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/audit/user/admin-1", nil)
		requireStatus(t, rr, http.StatusOK)
		assert.Len(t, decode[[]domain.AuditLogDTO](t, rr), 2)
	})

	t.Run("by id", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/audit/"+old.ID.String(), nil)
		requireStatus(t, rr, http.StatusOK)
		assert.Equal(t, "PRJ-OLD", decode[domain.AuditLogDTO](t, rr).EntityID)

		rr = env.do(t, http.MethodGet, "/audit/3a6f1c2e-8d0b-4f57-9a43-1f2e3d4c5b6a", nil)
		requireProblem(t, rr, http.StatusNotFound, domain.ErrorTypeNotFound)
	})

	t.Run("stats default to the last 30 days", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/audit/stats", nil)
		requireStatus(t, rr, http.StatusOK)
		stats := decode[handler.AuditStatsResponse](t, rr)
		assert.Equal(t, int64(1), stats.ActionCounts[domain.AuditActionRoleChange])
		assert.Equal(t, int64(1), stats.ActionCounts[domain.AuditActionPermissionChange])
		assert.Zero(t, stats.ActionCounts[domain.AuditActionDelete])
	})

	t.Run("stats over an explicit window", func(t *testing.T) {
		start := url.QueryEscape(time.Now().UTC().AddDate(0, 0, -120).Format(time.RFC3339))
		rr := env.do(t, http.MethodGet, "/audit/stats?startTime="+start, nil)
		requireStatus(t, rr, http.StatusOK)
		stats := decode[handler.AuditStatsResponse](t, rr)
		assert.Equal(t, int64(1), stats.ActionCounts[domain.AuditActionDelete])
	})
}
