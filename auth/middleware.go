package auth

import (
	"context"
	"net/http"
	"strings"

	"pairchat/domain"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Middleware validates the bearer token of every request and injects the
// caller's user id into the request context for the handlers downstream.
func Middleware(tokens *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "authorization token is missing", http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimPrefix(header, "Bearer ")

			claims, err := tokens.Validate(tokenStr)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, domain.UserID(claims.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFrom extracts the authenticated caller set by Middleware.
func UserIDFrom(ctx context.Context) (domain.UserID, bool) {
	id, ok := ctx.Value(userIDKey).(domain.UserID)
	return id, ok
}
