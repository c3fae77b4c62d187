package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey int

const principalContextKey contextKey = iota

// Principal is the authenticated identity attached to a request after the
// token has been verified and the referenced record loaded.
type Principal struct {
	ID       string
	Username string
	Kind     string
}

// UserLookup resolves a user principal by id, returning nil for unknown or
// deactivated accounts.
type UserLookup interface {
	LookupUser(ctx context.Context, id string) (*Principal, error)
}

// AdminLookup resolves an administrator principal by id.
type AdminLookup interface {
	LookupAdmin(ctx context.Context, id string) (*Principal, error)
}

// ContextWithPrincipal returns a new context carrying the given principal.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext extracts the principal from the context, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}

// RequireUser returns middleware that authenticates requests with a user
// token. The bearer token is parsed, the user record loaded, and the
// principal injected into the request context.
func RequireUser(m *Manager, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := parseBearer(m, r)
			if !ok || claims.Kind != KindUser {
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			p, err := users.LookupUser(r.Context(), claims.Subject)
			if err != nil || p == nil {
				writeUnauthorized(w, "user not found")
				return
			}

			ctx := ContextWithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns middleware that authenticates requests with an
// administrator token.
func RequireAdmin(m *Manager, admins AdminLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := parseBearer(m, r)
			if !ok || claims.Kind != KindAdmin {
				writeUnauthorized(w, "administrator token required")
				return
			}

			p, err := admins.LookupAdmin(r.Context(), claims.Subject)
			if err != nil || p == nil {
				writeUnauthorized(w, "administrator not found")
				return
			}

			ctx := ContextWithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseBearer(m *Manager, r *http.Request) (*Claims, bool) {
	token := extractBearerToken(r)
	if token == "" {
		return nil, false
	}
	claims, err := m.Parse(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
