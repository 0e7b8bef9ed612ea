package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/auth"
	"github.com/sitebook/sitebook-api/internal/config"
	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/http/middleware"
)

func hit(handler http.Handler, path, ip string, user *auth.UserContext) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":40000"
	if user != nil {
		req = req.WithContext(auth.WithUserContext(req.Context(), user))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestRateLimiter_LimitByIP(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{
		Enabled:               true,
		RequestsPerMinute:     2,
		RequestsPerMinuteAuth: 100,
		WhitelistIPs:          []string{"10.0.0.9"},
		WhitelistPaths:        []string{"/health", "/swagger/*"},
	}, zap.NewNop())
	handler := rl.LimitByIP(okHandler)

	assert.Equal(t, http.StatusOK, hit(handler, "/api/v1/projects", "192.0.2.1", nil).Code)
	assert.Equal(t, http.StatusOK, hit(handler, "/api/v1/projects", "192.0.2.1", nil).Code)

	rr := hit(handler, "/api/v1/projects", "192.0.2.1", nil)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "rate_limited")

	t.Run("other clients have their own budget", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, hit(handler, "/api/v1/projects", "192.0.2.2", nil).Code)
	})

	t.Run("whitelisted paths and addresses", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, hit(handler, "/health", "192.0.2.1", nil).Code)
		assert.Equal(t, http.StatusOK, hit(handler, "/swagger/index.html", "192.0.2.1", nil).Code)
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, hit(handler, "/api/v1/projects", "10.0.0.9", nil).Code)
		}
	})
}

func TestRateLimiter_LimitPerUser(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{
		Enabled:               true,
		RequestsPerMinute:     100,
		RequestsPerMinuteAuth: 1,
	}, zap.NewNop())
	handler := rl.Limit(okHandler)

	alice := &auth.UserContext{UserID: "alice", Role: domain.RoleEngineer}
	bob := &auth.UserContext{UserID: "bob", Role: domain.RoleEngineer}

	assert.Equal(t, http.StatusOK, hit(handler, "/api/v1/kpi", "192.0.2.1", alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "/api/v1/kpi", "192.0.2.1", alice).Code)
	// same address, different user
	assert.Equal(t, http.StatusOK, hit(handler, "/api/v1/kpi", "192.0.2.1", bob).Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{RequestsPerMinute: 1, RequestsPerMinuteAuth: 1}, zap.NewNop())
	handler := rl.LimitByIP(okHandler)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(handler, "/api/v1/projects", "192.0.2.1", nil).Code)
	}
}
