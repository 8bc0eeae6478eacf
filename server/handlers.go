package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-finadmin-client/authmodel"
	"github.com/jrsteele09/go-finadmin-client/server/refreshstore"
	"github.com/jrsteele09/go-finadmin-client/token"
	"github.com/jrsteele09/go-finadmin-client/users"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	maxBodyBytes    = 1 << 20
)

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// SignInHandler exchanges admin credentials for a token pair.
func (s *Server) SignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds authmodel.Credentials
		if err := decodeJSON(w, r, &creds); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body must be JSON")
			return
		}
		creds.Email = strings.TrimSpace(creds.Email)
		if creds.Email == "" || creds.Password == "" {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Email and password are required")
			return
		}

		user, err := s.users.GetByEmail(creds.Email)
		if err != nil || !users.CheckPasswordHash(creds.Password, user.PasswordHash) {
			log.Info().Str("email", creds.Email).Msg("failed sign-in")
			writeJSONError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
			return
		}
		if !user.CanSignIn() {
			writeJSONError(w, http.StatusForbidden, "forbidden", "Account is not allowed to access the dashboard")
			return
		}

		pair, err := s.issueTokens(user)
		if err != nil {
			log.Err(err).Str("user_id", user.ID).Msg("[Server SignInHandler] failed to issue tokens")
			writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to issue tokens")
			return
		}

		signedIn := *user
		signedIn.LastLogin = time.Now()
		if err := s.users.Upsert(&signedIn); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
		}

		writeJSON(w, http.StatusOK, authmodel.SignInResponse{
			User:   user.Sanitize(),
			Tokens: pair,
		})
	}
}

// RefreshHandler rotates a refresh token. The presented token is consumed, so replaying
// it afterwards is rejected.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authmodel.RefreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body must be JSON")
			return
		}
		if req.RefreshToken == "" {
			writeJSONError(w, http.StatusUnauthorized, "invalid_grant", "Refresh token is required")
			return
		}

		userID, next, err := s.refresh.Rotate(req.RefreshToken)
		if err != nil {
			message := "Invalid refresh token"
			if errors.Is(err, refreshstore.ErrTokenExpired) {
				message = "Refresh token expired"
			}
			writeJSONError(w, http.StatusUnauthorized, "invalid_grant", message)
			return
		}

		user, err := s.users.GetByID(userID)
		if err != nil || user.Blocked {
			writeJSONError(w, http.StatusUnauthorized, "invalid_grant", "Account is no longer active")
			return
		}

		access, err := s.issuer.CreateAccessToken(user)
		if err != nil {
			log.Err(err).Str("user_id", userID).Msg("[Server RefreshHandler] failed to create access token")
			writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to issue tokens")
			return
		}

		writeJSON(w, http.StatusOK, authmodel.RefreshResponse{
			Tokens: token.Pair{AccessToken: access, RefreshToken: next},
		})
	}
}

// MeHandler returns the profile of the token's subject.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := r.Context().Value(ContextKeyUserID).(string)
		user, err := s.users.GetByID(userID)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "not_found", "User not found")
			return
		}
		writeJSON(w, http.StatusOK, user.Sanitize())
	}
}

// UsersCountResponse is the body of GET /admin/users/count.
type UsersCountResponse struct {
	Count int `json:"count"`
}

func (s *Server) UsersCountHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, UsersCountResponse{Count: s.users.Count()})
	}
}

func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=300")
		writeJSON(w, http.StatusOK, s.rsaSigner.JWKS())
	}
}

func (s *Server) issueTokens(user *users.User) (token.Pair, error) {
	access, err := s.issuer.CreateAccessToken(user)
	if err != nil {
		return token.Pair{}, err
	}
	refreshToken, err := s.refresh.Create(user.ID)
	if err != nil {
		return token.Pair{}, err
	}
	return token.Pair{AccessToken: access, RefreshToken: refreshToken}, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes the error body the client reads its message from
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, authmodel.ErrorResponse{Message: message, Error: code})
}
