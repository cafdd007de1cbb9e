package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const principalKey contextKey = "principal"

// ErrorWriter renders an auth failure; the api package supplies its JSON writer.
type ErrorWriter func(w http.ResponseWriter, status int, code, details string)

// Middleware requires a valid bearer token and stores the Principal in the
// request context.
func Middleware(v *Verifier, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeErr(w, http.StatusUnauthorized, "missing_token", ErrMissingToken.Error())
				return
			}

			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				writeErr(w, http.StatusUnauthorized, "invalid_token", "expected a Bearer token")
				return
			}

			p, err := v.Verify(tokenStr)
			if err != nil {
				writeErr(w, http.StatusUnauthorized, "invalid_token", ErrInvalidToken.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects principals without one of roles. It must run after Middleware.
func RequireRole(writeErr ErrorWriter, roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				writeErr(w, http.StatusUnauthorized, "missing_token", ErrMissingToken.Error())
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeErr(w, http.StatusForbidden, "forbidden", "role "+string(p.Role)+" cannot perform this action")
		})
	}
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
