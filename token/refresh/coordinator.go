package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-finadmin-client/internal/errors"
	"github.com/jrsteele09/go-finadmin-client/internal/obs"
	"github.com/jrsteele09/go-finadmin-client/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const flightKey = "refresh"

// Exchanger trades a refresh token for a new (rotated) token pair at the backend.
type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (token.Pair, error)
}

// ExchangeFunc adapts a function to the Exchanger interface.
type ExchangeFunc func(ctx context.Context, refreshToken string) (token.Pair, error)

func (f ExchangeFunc) Exchange(ctx context.Context, refreshToken string) (token.Pair, error) {
	return f(ctx, refreshToken)
}

// Coordinator turns an expired access token into a valid one, performing at most one
// exchange at a time no matter how many requests failed together. It is the only writer
// of the token store while a refresh is in flight.
type Coordinator struct {
	store         token.Store
	exchanger     Exchanger
	group         singleflight.Group
	accessMaxAge  time.Duration
	refreshMaxAge time.Duration
	metrics       *obs.Metrics

	listenerLock sync.Mutex
	listeners    []func(error)
}

type Option func(*Coordinator)

// WithMaxAges sets the lifetimes written to the store for refreshed tokens.
func WithMaxAges(access, refresh time.Duration) Option {
	return func(c *Coordinator) {
		c.accessMaxAge = access
		c.refreshMaxAge = refresh
	}
}

func WithMetrics(m *obs.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func New(store token.Store, exchanger Exchanger, options ...Option) *Coordinator {
	c := &Coordinator{
		store:         store,
		exchanger:     exchanger,
		accessMaxAge:  token.DefaultAccessTokenMaxAge,
		refreshMaxAge: token.DefaultRefreshTokenMaxAge,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// OnTerminal registers fn to be called after a refresh failure cleared the token store.
func (c *Coordinator) OnTerminal(fn func(error)) {
	c.listenerLock.Lock()
	defer c.listenerLock.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Refresh returns an access token newer than stale. Callers pass the access token their
// failed request carried ("" if none); when the store already holds a different one, the
// wave's refresh has completed and it is returned without another exchange. Concurrent
// callers share a single exchange and all receive its result.
func (c *Coordinator) Refresh(ctx context.Context, stale string) (string, error) {
	if current, ok := c.freshAccess(stale); ok {
		c.metrics.RefreshOutcome(obs.RefreshSkipped)
		return current, nil
	}

	result, err, shared := c.group.Do(flightKey, func() (any, error) {
		// A flight that finished between the check above and joining the group has
		// already rotated the tokens.
		if current, ok := c.freshAccess(stale); ok {
			c.metrics.RefreshOutcome(obs.RefreshSkipped)
			return current, nil
		}
		// The exchange outlives any single caller: others may be waiting on it.
		return c.exchange(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	log.Debug().Bool("shared", shared).Msg("Access token refreshed")
	return result.(string), nil
}

func (c *Coordinator) freshAccess(stale string) (string, bool) {
	current, ok := c.store.AccessToken()
	if !ok || current == stale {
		return "", false
	}
	return current, true
}

func (c *Coordinator) exchange(ctx context.Context) (string, error) {
	refreshToken, ok := c.store.RefreshToken()
	if !ok {
		c.metrics.RefreshOutcome(obs.RefreshNoToken)
		return "", c.terminate(apperrors.NewAuthError(apperrors.ErrNoRefreshToken, nil))
	}

	pair, err := c.exchanger.Exchange(ctx, refreshToken)
	if err != nil {
		return "", c.classifyFailure(err)
	}
	if pair.AccessToken == "" {
		c.metrics.RefreshOutcome(obs.RefreshFailed)
		return "", c.terminate(apperrors.NewAuthError(apperrors.ErrSessionExpired,
			apperrors.New("refresh response carried no access token")))
	}
	if pair.RefreshToken == "" {
		log.Warn().Msg("Refresh response did not rotate the refresh token, keeping the current one")
		pair.RefreshToken = refreshToken
	}

	// Both tokens are written before any waiter resumes, so every replay and every later
	// request reads the rotated pair.
	if err := token.SetPair(c.store, pair, c.accessMaxAge, c.refreshMaxAge); err != nil {
		c.metrics.RefreshOutcome(obs.RefreshFailed)
		return "", fmt.Errorf("[Coordinator exchange] persist tokens: %w", err)
	}
	c.metrics.RefreshOutcome(obs.RefreshExchanged)
	return pair.AccessToken, nil
}

// classifyFailure keeps the session for transient failures and clears it otherwise.
func (c *Coordinator) classifyFailure(err error) error {
	var rateLimited *apperrors.RateLimitError
	switch {
	case apperrors.As(err, &rateLimited):
		c.metrics.RefreshOutcome(obs.RefreshRateLimited)
		log.Warn().Dur("retry_after", rateLimited.RetryAfter).Msg("Refresh rate limited, keeping session")
		return &apperrors.RateLimitError{RetryAfter: rateLimited.RetryAfter, Refresh: true, Message: rateLimited.Message}
	case apperrors.Is(err, apperrors.ErrNetwork):
		c.metrics.RefreshOutcome(obs.RefreshFailed)
		log.Warn().Err(err).Msg("Refresh failed to reach the server, keeping session")
		return err
	}
	c.metrics.RefreshOutcome(obs.RefreshFailed)
	return c.terminate(apperrors.NewAuthError(apperrors.ErrSessionExpired, err))
}

func (c *Coordinator) terminate(authErr *apperrors.AuthError) error {
	if err := c.store.Clear(); err != nil {
		log.Err(err).Msg("Failed to clear token store after refresh failure")
	}
	log.Info().Err(authErr).Msg("Session ended by refresh failure")

	c.listenerLock.Lock()
	listeners := append([]func(error){}, c.listeners...)
	c.listenerLock.Unlock()
	for _, fn := range listeners {
		fn(authErr)
	}
	return authErr
}
