package devauth

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-auth-session/authclient"
	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
)

const contentTypeJSON = "application/json; charset=utf-8"

// LoginHandler checks the credentials and issues an access token and a refresh token
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authclient.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		user, err := s.users.GetByEmail(req.Email)
		if err != nil || !user.CheckPassword(req.Password) {
			s.logger.Info().Str("email", req.Email).Msg("login rejected")
			writeJSONError(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		if user.Blocked {
			writeJSONError(w, "Account is blocked", http.StatusForbidden)
			return
		}

		refreshToken, err := s.refresh.Create(user.ID, req.RememberMe)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to create refresh token")
			writeJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if err := s.users.SetLastLogin(user.Email); err != nil {
			s.logger.Warn().Err(err).Str("email", user.Email).Msg("failed to record last login")
		}

		s.writeTokenResponse(w, user, refreshToken)
	}
}

// RefreshHandler rotates the refresh token and issues a new access token
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authclient.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeJSONError(w, "Refresh token is required", http.StatusBadRequest)
			return
		}

		stored, next, err := s.refresh.Rotate(req.RefreshToken)
		switch {
		case errors.Is(err, errors.ErrRefreshTokenExpired):
			writeJSONError(w, "Refresh token expired", http.StatusUnauthorized)
			return
		case err != nil:
			writeJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
			return
		}

		user, err := s.users.GetByID(stored.UserID)
		if err != nil || user.Blocked {
			s.refresh.Revoke(next)
			writeJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
			return
		}

		s.writeTokenResponse(w, user, next)
	}
}

// LogoutHandler revokes the presented refresh token. Unknown tokens still succeed.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authclient.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.RefreshToken != "" {
			s.refresh.Revoke(req.RefreshToken)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// LogoutAllHandler revokes every refresh token of the bearer's user and the bearer token itself
func (s *Server) LogoutAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := claimsFromContext(r.Context())
		if info == nil {
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		revoked, err := s.refresh.RevokeAll(info.Sub)
		if err != nil {
			s.logger.Error().Err(err).Str("sub", info.Sub).Msg("failed to revoke refresh tokens")
			writeJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		s.revoked.Revoke(info.ID, info.ExpiresAt)

		s.logger.Info().Str("sub", info.Sub).Int("refreshTokens", revoked).Msg("logged out of all sessions")
		writeJSON(w, map[string]int{"revoked": revoked}, http.StatusOK)
	}
}

// MeHandler echoes the bearer's claims, a stand-in for the protected REST backend
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := claimsFromContext(r.Context())
		if info == nil {
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		writeJSON(w, info, http.StatusOK)
	}
}

func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=300")
		writeJSON(w, s.signer.JWKS(), http.StatusOK)
	}
}

// PreflightHandler answers CORS preflight requests; the headers come from CorsMiddleware
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	}
}

func (s *Server) writeTokenResponse(w http.ResponseWriter, user *users.User, refreshToken string) {
	access, err := s.creator.CreateAccessToken(user)
	if err != nil {
		s.logger.Error().Err(err).Str("sub", user.ID).Msg("failed to create access token")
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := authclient.TokenResponse{
		AccessToken:  access.Raw,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.config.GetAccessTokenExpiry().Seconds()),
		UserID:       user.ID,
		Email:        user.Email,
		Roles:        user.RoleNames(),
		CompanyID:    user.CompanyID,
	}
	if user.ShopID != "" {
		resp.ShopID = &user.ShopID
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, resp, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, body any, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]string{"message": message}, statusCode)
}
