package token

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

var _ Store = (*CookieStore)(nil)

// CookieStore keeps the tokens as cookies of the application origin, the way the browser
// dashboard does: Path=/, SameSite=Lax, Secure only when the origin is https, and an
// explicit max-age per token. Expiry is enforced by the jar.
type CookieStore struct {
	jar    http.CookieJar
	origin *url.URL
}

// NewCookieStore creates a store scoped to origin (scheme://host[:port]). A nil jar gets a
// fresh in-memory cookie jar; pass a shared jar to share tokens with an http.Client.
func NewCookieStore(origin string, jar http.CookieJar) (*CookieStore, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("[NewCookieStore] invalid origin %q: %w", origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[NewCookieStore] origin %q must include scheme and host", origin)
	}
	if jar == nil {
		if jar, err = cookiejar.New(nil); err != nil {
			return nil, fmt.Errorf("[NewCookieStore] cookiejar.New: %w", err)
		}
	}
	return &CookieStore{
		jar:    jar,
		origin: &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"},
	}, nil
}

// Jar returns the cookie jar backing the store.
func (s *CookieStore) Jar() http.CookieJar {
	return s.jar
}

func (s *CookieStore) SetAccessToken(token string, maxAge time.Duration) error {
	s.setCookie(AccessTokenName, token, accessMaxAge(maxAge))
	return nil
}

func (s *CookieStore) SetRefreshToken(token string, maxAge time.Duration) error {
	s.setCookie(RefreshTokenName, token, refreshMaxAge(maxAge))
	return nil
}

func (s *CookieStore) AccessToken() (string, bool) {
	return s.cookie(AccessTokenName)
}

func (s *CookieStore) RefreshToken() (string, bool) {
	return s.cookie(RefreshTokenName)
}

// Clear expires both cookies. Clearing cookies that are already gone is a no-op.
func (s *CookieStore) Clear() error {
	s.jar.SetCookies(s.origin, []*http.Cookie{
		s.newCookie(AccessTokenName, "", -1),
		s.newCookie(RefreshTokenName, "", -1),
	})
	return nil
}

func (s *CookieStore) setCookie(name, value string, maxAge time.Duration) {
	if value == "" {
		s.jar.SetCookies(s.origin, []*http.Cookie{s.newCookie(name, "", -1)})
		return
	}
	seconds := int(maxAge / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	s.jar.SetCookies(s.origin, []*http.Cookie{s.newCookie(name, value, seconds)})
}

func (s *CookieStore) newCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   s.origin.Scheme == "https",
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *CookieStore) cookie(name string) (string, bool) {
	for _, c := range s.jar.Cookies(s.origin) {
		if c.Name == name && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}
