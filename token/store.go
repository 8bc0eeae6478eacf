package token

import (
	"fmt"
	"time"
)

// Store is durable storage of the token pair. Access and refresh tokens have independent
// expirations. Setters overwrite unconditionally, getters never fail (a missing, expired
// or unreadable entry is reported as absent) and Clear is idempotent.
type Store interface {
	SetAccessToken(token string, maxAge time.Duration) error
	SetRefreshToken(token string, maxAge time.Duration) error
	AccessToken() (string, bool)
	RefreshToken() (string, bool)
	Clear() error
}

// SetPair writes both tokens of p with the given lifetimes.
func SetPair(s Store, p Pair, accessMaxAge, refreshMaxAge time.Duration) error {
	if err := s.SetAccessToken(p.AccessToken, accessMaxAge); err != nil {
		return fmt.Errorf("[SetPair] access token: %w", err)
	}
	if err := s.SetRefreshToken(p.RefreshToken, refreshMaxAge); err != nil {
		return fmt.Errorf("[SetPair] refresh token: %w", err)
	}
	return nil
}

// CurrentPair returns whatever tokens are present; ok is false when neither is.
func CurrentPair(s Store) (Pair, bool) {
	access, hasAccess := s.AccessToken()
	refresh, hasRefresh := s.RefreshToken()
	return Pair{AccessToken: access, RefreshToken: refresh}, hasAccess || hasRefresh
}

func accessMaxAge(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultAccessTokenMaxAge
	}
	return d
}

func refreshMaxAge(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultRefreshTokenMaxAge
	}
	return d
}
