package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/config"
	"github.com/sitebook/sitebook-api/internal/http/middleware"
)

func corsRequest(handler http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	req.Header.Set("Origin", origin)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestCORS(t *testing.T) {
	base := config.CORSConfig{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}

	tests := []struct {
		name        string
		origins     []string
		environment string
		origin      string
		allowed     bool
	}{
		{"explicit origin allowed", []string{"https://app.sitebook.io"}, "production", "https://app.sitebook.io", true},
		{"explicit origin rejects others", []string{"https://app.sitebook.io"}, "production", "https://evil.example", false},
		{"wildcard echoes the origin", []string{"*"}, "production", "https://any.example", true},
		{"development allows all", nil, "development", "http://localhost:5173", true},
		{"production without origins denies", nil, "production", "https://app.sitebook.io", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.AllowedOrigins = tt.origins
			handler := middleware.CORS(&cfg, tt.environment, zap.NewNop())(okHandler)

			rr := corsRequest(handler, tt.origin)
			assert.Equal(t, http.StatusOK, rr.Code)
			if tt.allowed {
				assert.Equal(t, tt.origin, rr.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}
