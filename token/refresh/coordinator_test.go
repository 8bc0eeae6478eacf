package refresh_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-finadmin-client/internal/errors"
	"github.com/jrsteele09/go-finadmin-client/internal/obs"
	"github.com/jrsteele09/go-finadmin-client/token"
	"github.com/jrsteele09/go-finadmin-client/token/refresh"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// fakeExchanger rotates tokens like the backend: each exchange consumes the presented
// refresh token and issues generation n+1.
type fakeExchanger struct {
	calls   atomic.Int32
	delay   time.Duration
	err     error
	lock    sync.Mutex
	current string
}

func newFakeExchanger(current string) *fakeExchanger {
	return &fakeExchanger{current: current}
}

func (f *fakeExchanger) Exchange(ctx context.Context, refreshToken string) (token.Pair, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return token.Pair{}, f.err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	if refreshToken != f.current {
		return token.Pair{}, &apperrors.HTTPError{StatusCode: 401, Message: "refresh token reused"}
	}
	f.current = fmt.Sprintf("refresh-%d", n)
	return token.Pair{AccessToken: fmt.Sprintf("access-%d", n), RefreshToken: f.current}, nil
}

func setupCoordinator(t *testing.T, ex refresh.Exchanger) (*refresh.Coordinator, *token.MemoryStore, *obs.Metrics) {
	t.Helper()
	store := token.NewMemoryStore()
	require.NoError(t, token.SetPair(store, token.Pair{AccessToken: "access-0", RefreshToken: "refresh-0"}, 0, 0))
	metrics := obs.NewMetrics(nil)
	return refresh.New(store, ex, refresh.WithMetrics(metrics)), store, metrics
}

func TestRefresh_SingleExchangePerWave(t *testing.T) {
	ex := newFakeExchanger("refresh-0")
	ex.delay = 50 * time.Millisecond
	c, store, _ := setupCoordinator(t, ex)

	const waiters = 20
	results := make([]string, waiters)
	errs := make([]error, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Refresh(context.Background(), "access-0")
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), ex.calls.Load(), "exactly one exchange for the wave")
	for i := 0; i < waiters; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "access-1", results[i])
	}

	refreshToken, _ := store.RefreshToken()
	require.Equal(t, "refresh-1", refreshToken, "rotated refresh token persisted")
}

func TestRefresh_LateFailureReusesCompletedRefresh(t *testing.T) {
	ex := newFakeExchanger("refresh-0")
	c, _, metrics := setupCoordinator(t, ex)

	access, err := c.Refresh(context.Background(), "access-0")
	require.NoError(t, err)
	require.Equal(t, "access-1", access)

	// A request sent with access-0 whose 401 arrives after the exchange finished.
	access, err = c.Refresh(context.Background(), "access-0")
	require.NoError(t, err)
	require.Equal(t, "access-1", access)
	require.Equal(t, int32(1), ex.calls.Load())
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Refresh.WithLabelValues(obs.RefreshSkipped)))
}

func TestRefresh_WriteBeforeRead(t *testing.T) {
	ex := newFakeExchanger("refresh-0")
	c, store, _ := setupCoordinator(t, ex)

	_, err := c.Refresh(context.Background(), "access-0")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		access, _ := store.AccessToken()
		refreshToken, _ := store.RefreshToken()
		require.Equal(t, "access-1", access)
		require.Equal(t, "refresh-1", refreshToken)
	}
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	ex := newFakeExchanger("")
	store := token.NewMemoryStore()
	require.NoError(t, store.SetAccessToken("access-0", 0))
	c := refresh.New(store, ex)

	var terminal error
	c.OnTerminal(func(err error) { terminal = err })

	_, err := c.Refresh(context.Background(), "access-0")
	require.ErrorIs(t, err, apperrors.ErrAuth)
	require.ErrorIs(t, err, apperrors.ErrNoRefreshToken)
	require.ErrorIs(t, terminal, apperrors.ErrNoRefreshToken)
	require.Zero(t, ex.calls.Load())

	_, ok := store.AccessToken()
	require.False(t, ok, "session cleared")
}

func TestRefresh_RejectedClearsStore(t *testing.T) {
	ex := newFakeExchanger("some-other-token")
	c, store, _ := setupCoordinator(t, ex)

	terminalCalls := 0
	c.OnTerminal(func(error) { terminalCalls++ })

	_, err := c.Refresh(context.Background(), "access-0")
	require.ErrorIs(t, err, apperrors.ErrAuth)
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)
	require.Equal(t, 1, terminalCalls)

	_, ok := token.CurrentPair(store)
	require.False(t, ok)
}

func TestRefresh_RateLimitedKeepsTokens(t *testing.T) {
	ex := newFakeExchanger("refresh-0")
	ex.err = &apperrors.RateLimitError{RetryAfter: 3 * time.Second}
	c, store, _ := setupCoordinator(t, ex)

	terminalCalls := 0
	c.OnTerminal(func(error) { terminalCalls++ })

	_, err := c.Refresh(context.Background(), "access-0")
	require.ErrorIs(t, err, apperrors.ErrRefreshRateLimited)
	require.NotErrorIs(t, err, apperrors.ErrAuth)
	require.Zero(t, terminalCalls)

	pair, ok := token.CurrentPair(store)
	require.True(t, ok)
	require.Equal(t, token.Pair{AccessToken: "access-0", RefreshToken: "refresh-0"}, pair)
}

func TestRefresh_NetworkErrorKeepsTokens(t *testing.T) {
	ex := newFakeExchanger("refresh-0")
	ex.err = &apperrors.NetworkError{BaseURL: "http://api", Err: fmt.Errorf("connection refused")}
	c, store, _ := setupCoordinator(t, ex)

	_, err := c.Refresh(context.Background(), "access-0")
	require.ErrorIs(t, err, apperrors.ErrNetwork)

	refreshToken, ok := store.RefreshToken()
	require.True(t, ok)
	require.Equal(t, "refresh-0", refreshToken)
}

func TestRefresh_FailureResetsFlight(t *testing.T) {
	ex := newFakeExchanger("refresh-0")
	ex.err = &apperrors.RateLimitError{}
	c, _, _ := setupCoordinator(t, ex)

	_, err := c.Refresh(context.Background(), "access-0")
	require.Error(t, err)

	ex.err = nil
	access, err := c.Refresh(context.Background(), "access-0")
	require.NoError(t, err)
	require.Equal(t, "access-2", access)
	require.Equal(t, int32(2), ex.calls.Load())
}

func TestRefresh_CancelledCallerDoesNotAbortSharedExchange(t *testing.T) {
	ex := newFakeExchanger("refresh-0")
	ex.delay = 50 * time.Millisecond
	c, store, _ := setupCoordinator(t, ex)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	access, err := c.Refresh(ctx, "access-0")
	require.NoError(t, err)
	require.Equal(t, "access-1", access)

	stored, _ := store.AccessToken()
	require.Equal(t, "access-1", stored)
}

func TestTokenSource(t *testing.T) {
	ex := newFakeExchanger("refresh-0")
	store := token.NewMemoryStore()
	require.NoError(t, store.SetRefreshToken("refresh-0", 0))
	c := refresh.New(store, ex)

	tok, err := c.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.Equal(t, "access-1", tok.AccessToken)
	require.Equal(t, "refresh-1", tok.RefreshToken)

	// Opaque, unexpired token in the store is returned as is.
	tok, err = c.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.Equal(t, "access-1", tok.AccessToken)
	require.Equal(t, int32(1), ex.calls.Load())
}
