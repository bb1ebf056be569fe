package devauth

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-session/token/jwt"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyClaims stores the introspected bearer token
const ContextKeyClaims ContextKey = "claims"

// RequireAuth is middleware that validates a Bearer access token
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, "Missing Authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeJSONError(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			info, err := s.inspect.Introspect(parts[1])
			if err != nil || !info.Active {
				s.logger.Debug().Err(err).Msg("bearer token rejected")
				writeJSONError(w, "Invalid or expired access token", http.StatusUnauthorized)
				return
			}

			next(w, r.WithContext(context.WithValue(r.Context(), ContextKeyClaims, info)))
		}
	}
}

func claimsFromContext(ctx context.Context) *jwt.TokenIntrospection {
	info, _ := ctx.Value(ContextKeyClaims).(*jwt.TokenIntrospection)
	return info
}
