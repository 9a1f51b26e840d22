package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKeySubject struct{}

// ContextKeySubject is exported for use in handlers.
var ContextKeySubject = contextKeySubject{}

// GetSubject retrieves the authenticated subject from the context.
func GetSubject(ctx context.Context) string {
	sub, ok := ctx.Value(ContextKeySubject).(string)
	if !ok {
		return ""
	}
	return sub
}

// RequireAuth validates a bearer JWT (HS256) and stores its subject in the
// request context. When signingKey is empty the middleware is a no-op so
// local development works without tokens.
func RequireAuth(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if signingKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" || raw == r.Header.Get("Authorization") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
				return []byte(signingKey), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				logger.WarnContext(r.Context(), "rejected token", "error", err)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			sub := ""
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if s, err := claims.GetSubject(); err == nil {
					sub = s
				}
			}
			ctx := context.WithValue(r.Context(), ContextKeySubject, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
