package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sitebook/sitebook-api/internal/auth"
	"github.com/sitebook/sitebook-api/internal/domain"
)

type contextKey string

const userHolderKey contextKey = "user_holder"

// userHolder lets middleware mounted before authentication see the caller afterwards
type userHolder struct {
	user *auth.UserContext
}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, userHolderKey, h)
}

func userHolderFrom(ctx context.Context) *userHolder {
	h, _ := ctx.Value(userHolderKey).(*userHolder)
	return h
}

// writeError writes a problem body like the handlers do
func writeError(w http.ResponseWriter, status int, detail string) {
	errType := domain.ErrorTypeInternal
	if status == http.StatusTooManyRequests {
		errType = "rate_limited"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   errType,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}
