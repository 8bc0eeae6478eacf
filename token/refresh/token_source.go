package refresh

import (
	"context"
	"time"

	"github.com/jrsteele09/go-finadmin-client/token"
	"golang.org/x/oauth2"
)

// expirySkew refreshes a little ahead of the exp claim to absorb clock drift.
const expirySkew = 30 * time.Second

type tokenSource struct {
	ctx context.Context
	c   *Coordinator
	now func() time.Time
}

// TokenSource exposes the coordinator as an oauth2.TokenSource, for consumers that build
// their own transport with oauth2.NewClient. A token missing from the store, or one whose
// exp claim has passed, triggers a coordinated refresh.
func (c *Coordinator) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, c: c, now: time.Now}
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	access, ok := ts.c.store.AccessToken()
	if !ok || token.Expired(access, ts.now(), expirySkew) {
		refreshed, err := ts.c.Refresh(ts.ctx, access)
		if err != nil {
			return nil, err
		}
		access = refreshed
	}
	refreshToken, _ := ts.c.store.RefreshToken()
	return token.Pair{AccessToken: access, RefreshToken: refreshToken}.OAuth2(), nil
}
