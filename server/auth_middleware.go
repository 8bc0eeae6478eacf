package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-finadmin-client/token/jwt"
	"github.com/jrsteele09/go-finadmin-client/users"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUserID stores the authenticated user ID
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeyClaims stores parsed token claims
	ContextKeyClaims ContextKey = "claims"
)

// RequireAuth is middleware that validates a Bearer access token. Any failure is a 401,
// which is what tells the client to refresh.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			// Extract Bearer token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid Authorization header format")
				return
			}

			claims, err := s.issuer.Validate(parts[1])
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected access token")
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired access token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, claims.Subject)
			ctx = context.WithValue(ctx, ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireAdmin is middleware that rejects read-only roles.
// Should be chained after RequireAuth to ensure claims are present
func (s *Server) RequireAdmin() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := claimsFromContext(r.Context())
			if !ok || (claims.Role != users.RoleAdmin && claims.Role != users.RoleSuperAdmin) {
				writeJSONError(w, http.StatusForbidden, "forbidden", "Admin access required")
				return
			}
			next(w, r)
		}
	}
}

func claimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*jwt.Claims)
	return claims, ok && claims != nil
}
