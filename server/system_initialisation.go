package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-finadmin-client/users"
	"github.com/rs/zerolog/log"
)

// InitialiseSystem seeds the super admin account used to sign in to the dashboard.
func (s *Server) InitialiseSystem(ctx context.Context) error {
	email := s.config.GetAdminEmail()
	generatedPassword, err := s.createSuperAdmin(ctx, email, s.config.GetAdminPassword())
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to bootstrap super admin: %w", err)
	}

	if generatedPassword != "" {
		log.Info().Msg("👤 Super Admin Credentials:")
		log.Info().Msgf("   Email:       %s", email)
		if s.env == "DEV" {
			log.Info().Msgf("   Password:    %s", generatedPassword)
		}
		if s.rsaSigner != nil {
			log.Info().Msgf("🔐 Access tokens are RS256, keys at %s", RouteWellKnownJWKS)
		} else {
			log.Info().Msg("🔐 Access tokens are HS256 with SIGNING_SECRET")
		}
	}
	return nil
}

// createSuperAdmin creates the super admin user if it does not exist yet. A random
// password is generated when none is configured.
func (s *Server) createSuperAdmin(_ context.Context, email, defaultPassword string) (generatedPassword string, err error) {
	existingUser, err := s.users.GetByEmail(email)
	if err == nil && existingUser != nil && existingUser.Role == users.RoleSuperAdmin {
		return "", nil
	}
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return "", fmt.Errorf("[server createSuperAdmin] failed to look up admin: %w", err)
	}

	generatedPassword = defaultPassword
	if generatedPassword == "" {
		passwordBytes := make([]byte, 16)
		if _, err := rand.Read(passwordBytes); err != nil {
			return "", fmt.Errorf("[server createSuperAdmin] failed to generate password: %w", err)
		}
		generatedPassword = base64.URLEncoding.EncodeToString(passwordBytes)
	}

	passwordHash, err := users.HashPassword(generatedPassword)
	if err != nil {
		return "", fmt.Errorf("[server createSuperAdmin] failed to hash password: %w", err)
	}

	admin := &users.User{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         users.RoleSuperAdmin,
		DateJoined:   time.Now(),
	}
	if existingUser != nil {
		admin.ID = existingUser.ID
	}
	if err := s.users.Upsert(admin); err != nil {
		return "", fmt.Errorf("[server createSuperAdmin] failed to create super admin: %w", err)
	}
	return generatedPassword, nil
}
