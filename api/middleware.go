/*
middleware.go - Bearer token authentication and role gates

PURPOSE:
  Authenticate parses the Authorization header on every /api route
  except /auth/login and /health, and stores the decoded claims in the
  request context. RequireRole wraps route groups that need a minimum
  privilege.

ROLES:
  admin       full access including user management and deletes
  leader      approvals, alert handling, most writes
  department  day-to-day data entry (expenditures, progress)
  viewer      read only
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/taneng/budget-control/auth"
	"github.com/taneng/budget-control/budget"
)

type contextKey string

const claimsKey contextKey = "claims"

// Authenticate validates the Bearer token and attaches claims.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		claims, err := h.Tokens.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", err)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only the listed roles through.
func RequireRole(roles ...budget.Role) func(http.Handler) http.Handler {
	allowed := make(map[budget.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
				return
			}
			if !allowed[claims.Role] {
				writeError(w, http.StatusForbidden, "Insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// claimsFrom returns the authenticated claims, nil outside the auth
// middleware.
func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// currentUserID returns the authenticated user id, 0 when absent.
func currentUserID(ctx context.Context) int64 {
	if claims := claimsFrom(ctx); claims != nil {
		return claims.UserID
	}
	return 0
}
