package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fiambond/attachments/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// CallerIDKey is the context key for the authenticated caller's subject.
const CallerIDKey contextKey = "callerID"

// CallerID returns the subject set by RequireAuth, or "" for anonymous calls.
func CallerID(ctx context.Context) string {
	id, _ := ctx.Value(CallerIDKey).(string)
	return id
}

// RequireAuth returns middleware that validates an HS256 Bearer JWT and
// injects its subject into the request context. An empty secret disables the
// check so the endpoint stays open, matching the unauthenticated callable.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if jwtSecret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthenticated(w, "authorization header required")
				return
			}

			scheme, raw, ok := strings.Cut(authHeader, " ")
			if !ok || scheme != "Bearer" || raw == "" {
				response.Unauthenticated(w, "invalid authorization header format")
				return
			}

			token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
				return []byte(jwtSecret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				response.Unauthenticated(w, "invalid or expired token")
				return
			}

			sub, err := token.Claims.GetSubject()
			if err != nil || sub == "" {
				response.Unauthenticated(w, "invalid token claims")
				return
			}

			ctx := context.WithValue(r.Context(), CallerIDKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
