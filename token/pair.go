package token

import (
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultAccessTokenMaxAge is how long an access token is kept client-side.
	DefaultAccessTokenMaxAge = 15 * time.Minute
	// DefaultRefreshTokenMaxAge is how long a refresh token is kept client-side (7 days).
	DefaultRefreshTokenMaxAge = 7 * 24 * time.Hour

	AccessTokenName  = "accessToken"
	RefreshTokenName = "refreshToken"
)

// Pair is the access/refresh token pair issued by sign-in and by every refresh exchange.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// OAuth2 converts the pair into an oauth2.Token, taking the expiry from the access
// token's exp claim when it is a JWT.
func (p Pair) OAuth2() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "Bearer",
	}
	if exp, ok := ExpiresAt(p.AccessToken); ok {
		t.Expiry = exp
	}
	return t
}
