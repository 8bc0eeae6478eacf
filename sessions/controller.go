package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-finadmin-client/authmodel"
	apperrors "github.com/jrsteele09/go-finadmin-client/internal/errors"
	"github.com/jrsteele09/go-finadmin-client/token"
	"github.com/jrsteele09/go-finadmin-client/users"
	"github.com/rs/zerolog/log"
)

// Authenticator calls the sign-in endpoint.
type Authenticator interface {
	SignIn(ctx context.Context, creds authmodel.Credentials) (*authmodel.SignInResponse, error)
}

// Refresher is the part of the refresh coordinator the controller depends on.
type Refresher interface {
	Refresh(ctx context.Context, stale string) (string, error)
	OnTerminal(fn func(error))
}

// Controller owns the session lifecycle. It is the only writer of session state and,
// outside of a refresh, of the token store.
type Controller struct {
	tokens    token.Store
	users     UserStore
	bus       Bus
	auth      Authenticator
	refresher Refresher

	accessMaxAge  time.Duration
	refreshMaxAge time.Duration
	nowFunc       func() time.Time
	tabID         string

	// opLock serializes writers (login, clear, cross-tab sync) to the token and user stores.
	opLock  sync.Mutex
	mu      sync.RWMutex
	state   State
	user    *users.SanitizedUser
	loading bool

	hydrateOnce sync.Once
	clearing    atomic.Bool
	syncing     atomic.Bool
	background  sync.WaitGroup

	subsMu  sync.Mutex
	nextSub int
	subs    map[int]func(Session)

	unsubscribeBus func()
	closeOnce      sync.Once
}

type Option func(*Controller)

// WithMaxAges sets the lifetimes written to the token store at login.
func WithMaxAges(access, refresh time.Duration) Option {
	return func(c *Controller) {
		c.accessMaxAge = access
		c.refreshMaxAge = refresh
	}
}

// WithNowFunc sets the clock used to judge access token expiry during hydration.
func WithNowFunc(now func() time.Time) Option {
	return func(c *Controller) {
		c.nowFunc = now
	}
}

// WithTabID names this controller on the bus. Defaults to a random id.
func WithTabID(id string) Option {
	return func(c *Controller) {
		c.tabID = id
	}
}

// NewController wires the controller to its stores and collaborators and starts listening
// for cross-tab changes and terminal refresh failures.
func NewController(tokens token.Store, userStore UserStore, bus Bus, auth Authenticator, refresher Refresher, opts ...Option) *Controller {
	if bus == nil {
		bus = NopBus{}
	}
	c := &Controller{
		tokens:        tokens,
		users:         userStore,
		bus:           bus,
		auth:          auth,
		refresher:     refresher,
		accessMaxAge:  token.DefaultAccessTokenMaxAge,
		refreshMaxAge: token.DefaultRefreshTokenMaxAge,
		nowFunc:       time.Now,
		tabID:         uuid.NewString(),
		state:         Uninitialized,
		subs:          make(map[int]func(Session)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.unsubscribeBus = bus.Subscribe(c.handleStorageEvent)
	if refresher != nil {
		refresher.OnTerminal(c.handleTerminal)
	}
	return c
}

// TabID identifies this controller in bus events.
func (c *Controller) TabID() string {
	return c.tabID
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() Session {
	c.mu.RLock()
	s := Session{State: c.state, IsLoading: c.loading}
	if c.user != nil {
		u := *c.user
		s.User = &u
	}
	c.mu.RUnlock()

	if s.State == Authenticated {
		if pair, ok := token.CurrentPair(c.tokens); ok {
			s.Tokens = &pair
		}
	}
	return s
}

// Subscribe registers fn to receive a snapshot after every state change.
func (c *Controller) Subscribe(fn func(Session)) (unsubscribe func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		delete(c.subs, id)
	}
}

// Hydrate restores the persisted session. Only the first call does anything.
func (c *Controller) Hydrate(ctx context.Context) {
	c.hydrateOnce.Do(func() {
		c.hydrate(ctx)
	})
}

func (c *Controller) hydrate(ctx context.Context) {
	if c.setState(Hydrating, nil, true) {
		c.notify()
	}

	c.opLock.Lock()
	user, err := c.loadUser()
	if err != nil {
		log.Warn().Err(err).Msg("Persisted session unreadable, clearing")
		c.clearStores()
		c.setState(Anonymous, nil, false)
		c.opLock.Unlock()
		c.notify()
		return
	}

	access, hasAccess := c.tokens.AccessToken()
	if hasAccess && token.Expired(access, c.nowFunc(), 0) {
		hasAccess = false
	}
	_, hasRefresh := c.tokens.RefreshToken()

	switch {
	case user != nil && hasAccess:
		c.setState(Authenticated, user, false)
		c.opLock.Unlock()
		log.Debug().Str("user", user.Email).Msg("Session restored")

	case user != nil && hasRefresh:
		// Optimistic: the user is shown as signed in while the refresh runs.
		c.setState(Authenticated, user, false)
		c.opLock.Unlock()
		log.Debug().Str("user", user.Email).Msg("Session restored, refreshing access token")
		c.background.Add(1)
		go func() {
			defer c.background.Done()
			c.refreshAfterHydrate(context.WithoutCancel(ctx))
		}()

	default:
		if user != nil || hasAccess || hasRefresh {
			log.Debug().Bool("user", user != nil).Msg("Incomplete persisted session, clearing")
			c.clearStores()
		}
		c.setState(Anonymous, nil, false)
		c.opLock.Unlock()
	}
	c.notify()
}

// refreshAfterHydrate exchanges the refresh token of an optimistically restored session.
// A terminal failure ends the session through the coordinator's listener; transient
// failures leave it in place for the next request to retry.
func (c *Controller) refreshAfterHydrate(ctx context.Context) {
	if c.refresher == nil {
		return
	}
	if _, err := c.refresher.Refresh(ctx, ""); err != nil {
		if apperrors.Is(err, apperrors.ErrAuth) {
			return
		}
		log.Warn().Err(err).Msg("Refresh after restoring session failed, will retry on next request")
	}
}

// Login signs in and stores the user and tokens. On failure any partial session is
// cleared and the error returned.
func (c *Controller) Login(ctx context.Context, creds authmodel.Credentials) (*users.SanitizedUser, error) {
	c.Hydrate(ctx)

	if c.setLoading(true) {
		c.notify()
	}
	c.opLock.Lock()
	resp, err := c.auth.SignIn(ctx, creds)
	if err == nil {
		err = c.persist(resp)
	}
	if err != nil {
		c.clearStores()
		c.setState(Anonymous, nil, false)
		c.opLock.Unlock()
		c.notify()
		c.publish()
		return nil, err
	}
	user := resp.User
	c.setState(Authenticated, &user, false)
	c.opLock.Unlock()

	c.notify()
	c.publish()
	log.Info().Str("user", user.Email).Msg("Signed in")
	return &user, nil
}

func (c *Controller) persist(resp *authmodel.SignInResponse) error {
	if !resp.User.Valid() {
		return fmt.Errorf("[Controller Login] sign-in response has no user")
	}
	data, err := json.Marshal(resp.User)
	if err != nil {
		return fmt.Errorf("[Controller Login] encode user: %w", err)
	}
	if err := token.SetPair(c.tokens, resp.Tokens, c.accessMaxAge, c.refreshMaxAge); err != nil {
		return fmt.Errorf("[Controller Login] store tokens: %w", err)
	}
	if err := c.users.Save(data); err != nil {
		return fmt.Errorf("[Controller Login] store user: %w", err)
	}
	return nil
}

// Logout clears tokens and the persisted user. Calls made while a logout is in progress
// return immediately, and logging out a session that is already anonymous with empty
// stores does nothing.
func (c *Controller) Logout() {
	if !c.clearing.CompareAndSwap(false, true) {
		return
	}
	defer c.clearing.Store(false)

	c.opLock.Lock()
	if c.State() == Anonymous && c.storesEmpty() {
		c.opLock.Unlock()
		return
	}
	c.clearStores()
	changed := c.setState(Anonymous, nil, false)
	c.opLock.Unlock()

	if changed {
		c.notify()
		c.publish()
		log.Info().Msg("Signed out")
	}
}

// handleTerminal runs after the coordinator cleared the token store because a refresh
// failed for good.
func (c *Controller) handleTerminal(err error) {
	c.opLock.Lock()
	c.clearStores()
	changed := c.setState(Anonymous, nil, false)
	c.opLock.Unlock()

	if changed {
		c.notify()
		c.publish()
		log.Info().Err(err).Msg("Session ended, sign in again")
	}
}

// handleStorageEvent re-derives the session from the shared stores after another tab
// changed them. It never publishes, so it cannot trigger itself through other tabs.
func (c *Controller) handleStorageEvent(ev Event) {
	if ev.Key != UserKey || (ev.Origin != "" && ev.Origin == c.tabID) {
		return
	}
	if c.clearing.Load() || !c.syncing.CompareAndSwap(false, true) {
		return
	}
	defer c.syncing.Store(false)

	if c.syncFromStores(ev.Origin) {
		c.notify()
	}
}

func (c *Controller) syncFromStores(origin string) bool {
	c.opLock.Lock()
	defer c.opLock.Unlock()
	if s := c.State(); s == Uninitialized || s == Hydrating {
		return false
	}

	user, err := c.loadUser()
	_, hasAccess := c.tokens.AccessToken()
	_, hasRefresh := c.tokens.RefreshToken()
	if err != nil || user == nil || (!hasAccess && !hasRefresh) {
		if err != nil {
			log.Warn().Err(err).Msg("Shared session unreadable, clearing")
		}
		c.clearStores()
		changed := c.setState(Anonymous, nil, false)
		if changed {
			log.Info().Str("origin", origin).Msg("Signed out in another window")
		}
		return changed
	}
	changed := c.setState(Authenticated, user, false)
	if changed {
		log.Info().Str("user", user.Email).Msg("Signed in from another window")
	}
	return changed
}

// Close stops listening for cross-tab changes and waits for background work.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.unsubscribeBus()
		c.background.Wait()
	})
}

func (c *Controller) loadUser() (*users.SanitizedUser, error) {
	data, ok, err := c.users.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var user users.SanitizedUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptSession, err)
	}
	if !user.Valid() {
		return nil, fmt.Errorf("%w: user record incomplete", apperrors.ErrCorruptSession)
	}
	return &user, nil
}

func (c *Controller) storesEmpty() bool {
	if _, ok := c.tokens.AccessToken(); ok {
		return false
	}
	if _, ok := c.tokens.RefreshToken(); ok {
		return false
	}
	_, ok, err := c.users.Load()
	return err == nil && !ok
}

func (c *Controller) clearStores() {
	if err := c.tokens.Clear(); err != nil {
		log.Err(err).Msg("Failed to clear tokens")
	}
	if err := c.users.Clear(); err != nil {
		log.Err(err).Msg("Failed to clear persisted user")
	}
}

func (c *Controller) publish() {
	c.bus.Publish(Event{Key: UserKey, Origin: c.tabID})
}

// setState applies a transition and reports whether anything visible changed. Callers
// notify subscribers once they hold no locks.
func (c *Controller) setState(state State, user *users.SanitizedUser, loading bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := c.state != state || c.loading != loading || !sameUser(c.user, user)
	c.state = state
	c.user = user
	c.loading = loading
	return changed
}

func (c *Controller) setLoading(loading bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := c.loading != loading
	c.loading = loading
	return changed
}

func (c *Controller) notify() {
	snapshot := c.Session()
	c.subsMu.Lock()
	fns := make([]func(Session), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()
	for _, fn := range fns {
		fn(snapshot)
	}
}

func sameUser(a, b *users.SanitizedUser) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
