// Package middleware provides HTTP middleware for authentication and authorization.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const principalKey ContextKey = "principal"

// AccessTokenParam is the query parameter accepted in place of the Authorization header on GET requests.
const AccessTokenParam = "access_token"

// Principal is the caller identified by a bearer token.
type Principal struct {
	UserID int64
	Admin  bool
}

// CanAccess reports whether the principal may act on the participant's reports.
func (p Principal) CanAccess(userID int64) bool {
	return p.Admin || p.UserID == userID
}

// TokenValidator validates bearer tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (PrincipalGetter, error)
}

// PrincipalGetter extracts the caller from token claims.
type PrincipalGetter interface {
	GetPrincipal() Principal
}

// AuthMiddleware validates the bearer token and adds the principal to the request context.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok && r.Method == http.MethodGet {
				// opened final reports and EventSource streams cannot set headers
				tokenString = r.URL.Query().Get(AccessTokenParam)
				ok = tokenString != ""
			}
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := validator.ValidateToken(tokenString)
			if err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), claims.GetPrincipal())))
		})
	}
}

// bearerToken parses "Bearer <token>", case-insensitive on the scheme.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "Unauthorized"})
}

// WithPrincipal stores the principal in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal extracts the authenticated caller from the request context.
func GetPrincipal(r *http.Request) (Principal, error) {
	p, ok := r.Context().Value(principalKey).(Principal)
	if !ok {
		return Principal{}, fmt.Errorf("principal not found in request context")
	}
	return p, nil
}
