package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type authUserKey struct{}

// UserFromContext returns the authenticated user from the request context,
// or nil for unauthenticated requests.
func UserFromContext(ctx context.Context) *User {
	if u, ok := ctx.Value(authUserKey{}).(*User); ok {
		return u
	}
	return nil
}

// WithUser returns a context carrying the given user. Exposed for tests.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, authUserKey{}, user)
}

// Public paths that don't require authentication.
var publicPaths = map[string]bool{
	"/api/v1/auth/login": true,
}

// Middleware authenticates API requests with bearer tokens. Non-API paths
// (healthz, readyz, metrics) and public auth paths pass through.
func Middleware(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}

			user, err := service.Authenticate(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired access token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireRole wraps a handler, rejecting users whose role fails the check.
func RequireRole(check func(Role) bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			writeAuthError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if !check(user.Role) {
			writeAuthError(w, http.StatusForbidden, "insufficient role")
			return
		}
		next(w, r)
	}
}

func writeAuthError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://ipocket.dev/problems/unauthorized",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
