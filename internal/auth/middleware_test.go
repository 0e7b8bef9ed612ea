package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/auth"
	"github.com/sitebook/sitebook-api/internal/config"
	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/permission"
)

type fakeUsers map[string]*domain.User

func (f fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:     "test-secret-with-enough-length",
		Issuer:        "https://auth.sitebook.test",
		Audience:      "authenticated",
		LeewaySeconds: 5,
		APIKey:        "system-key",
	}
}

func newMiddleware(users fakeUsers) *auth.Middleware {
	return auth.NewMiddleware(testAuthConfig(), users, permission.NewResolver(nil), zap.NewNop())
}

// captured runs the middleware chain and returns the user context seen by the handler
func captured(t *testing.T, h func(http.Handler) http.Handler, req *http.Request) (*httptest.ResponseRecorder, *auth.UserContext) {
	t.Helper()
	var got *auth.UserContext
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	rr := httptest.NewRecorder()
	h(final).ServeHTTP(rr, req)
	return rr, got
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	token, err := auth.SignToken(testAuthConfig(), subject, subject+"@example.com", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthenticate_ResolvesStoredUser(t *testing.T) {
	users := fakeUsers{
		"u-eng": {ID: "u-eng", Email: "eng@example.com", Role: domain.RoleEngineer, IsActive: true,
			Permissions: []string{"reports.export"}},
	}
	m := newMiddleware(users)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", bearer(t, "u-eng"))
	rr, userCtx := captured(t, m.Authenticate, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, userCtx)
	assert.Equal(t, "u-eng", userCtx.UserID)
	assert.Equal(t, "eng@example.com", userCtx.Email)
	assert.Equal(t, domain.RoleEngineer, userCtx.Role)
	assert.Equal(t, permission.ModeRolePlusExtra, userCtx.Mode)
	assert.True(t, userCtx.Has(domain.PermissionBOQEdit))
	assert.True(t, userCtx.Has(domain.PermissionReportsExport))
	assert.False(t, userCtx.Has(domain.PermissionUsersManage))
}

func TestAuthenticate_UnknownSubjectGetsFallbackRole(t *testing.T) {
	m := newMiddleware(fakeUsers{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", bearer(t, "stranger"))
	rr, userCtx := captured(t, m.Authenticate, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, domain.RoleViewer, userCtx.Role)
	assert.Equal(t, permission.ModeRoleDefault, userCtx.Mode)
	assert.True(t, userCtx.Has(domain.PermissionProjectsView))
	assert.False(t, userCtx.Has(domain.PermissionKPICreate))
}

func TestAuthenticate_DisabledUser(t *testing.T) {
	m := newMiddleware(fakeUsers{"u-off": {ID: "u-off", Role: domain.RoleAdmin, IsActive: false}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", bearer(t, "u-off"))
	rr, userCtx := captured(t, m.Authenticate, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Nil(t, userCtx)
}

func TestAuthenticate_APIKey(t *testing.T) {
	m := newMiddleware(fakeUsers{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-api-key", "system-key")
	rr, userCtx := captured(t, m.Authenticate, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, userCtx.IsAPIKey)
	assert.True(t, userCtx.IsAdmin())
	assert.True(t, userCtx.Has(domain.PermissionDatabaseManage))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-api-key", "wrong")
	rr, _ = captured(t, m.Authenticate, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	m := newMiddleware(fakeUsers{})
	cfg := testAuthConfig()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u-1",
		Issuer:    cfg.Issuer,
		Audience:  jwt.ClaimStrings{cfg.Audience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}})
	expiredToken, err := expired.SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	otherIssuer := *cfg
	otherIssuer.Issuer = "https://evil.test"
	wrongIssuer, err := auth.SignToken(&otherIssuer, "u-1", "", time.Hour)
	require.NoError(t, err)

	otherSecret := *cfg
	otherSecret.JWTSecret = "another-secret-entirely"
	wrongSecret, err := auth.SignToken(&otherSecret, "u-1", "", time.Hour)
	require.NoError(t, err)

	noSubject, err := auth.SignToken(cfg, "", "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"basic scheme", "Basic abc"},
		{"empty bearer", "Bearer "},
		{"garbage", "Bearer not-a-jwt"},
		{"expired", "Bearer " + expiredToken},
		{"wrong issuer", "Bearer " + wrongIssuer},
		{"wrong secret", "Bearer " + wrongSecret},
		{"no subject", "Bearer " + noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr, userCtx := captured(t, m.Authenticate, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Nil(t, userCtx)
			assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestRequirePermissionAndAccess(t *testing.T) {
	m := newMiddleware(fakeUsers{})
	resolver := permission.NewResolver(nil)
	engineer := &auth.UserContext{
		UserID:      "u-eng",
		Role:        domain.RoleEngineer,
		Permissions: resolver.Resolve(permission.Subject{Role: domain.RoleEngineer}),
	}

	tests := []struct {
		name   string
		mw     func(http.Handler) http.Handler
		user   *auth.UserContext
		status int
	}{
		{"granted", m.RequirePermission(domain.PermissionKPICreate), engineer, http.StatusNoContent},
		{"denied", m.RequirePermission(domain.PermissionUsersManage), engineer, http.StatusForbidden},
		{"no user", m.RequirePermission(domain.PermissionKPIView), nil, http.StatusUnauthorized},
		{"any of", m.RequireAccess(permission.Expression{Permissions: []domain.Permission{domain.PermissionUsersManage, domain.PermissionBOQView}}), engineer, http.StatusNoContent},
		{"empty expression", m.RequireAccess(permission.Expression{}), engineer, http.StatusForbidden},
		{"role match", m.RequireAccess(permission.Expression{Role: domain.RoleEngineer}), engineer, http.StatusNoContent},
		{"role mismatch", m.RequireAccess(permission.Expression{Role: domain.RoleAdmin}), engineer, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				req = req.WithContext(auth.WithUserContext(req.Context(), tt.user))
			}
			rr, _ := captured(t, tt.mw, req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}
