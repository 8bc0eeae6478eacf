package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiresAt reads the exp claim of a JWT without verifying its signature. The client
// cannot verify backend signatures; the result is only a hint for deciding whether to
// refresh ahead of a 401.
func ExpiresAt(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether raw is a JWT whose exp claim is within skew of now.
// Opaque tokens are never considered expired.
func Expired(raw string, now time.Time, skew time.Duration) bool {
	exp, ok := ExpiresAt(raw)
	if !ok {
		return false
	}
	return !now.Add(skew).Before(exp)
}
