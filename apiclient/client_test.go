package apiclient_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-finadmin-client/apiclient"
	"github.com/jrsteele09/go-finadmin-client/authmodel"
	apperrors "github.com/jrsteele09/go-finadmin-client/internal/errors"
	"github.com/jrsteele09/go-finadmin-client/internal/obs"
	"github.com/jrsteele09/go-finadmin-client/token"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend accepts one access token at a time and rotates refresh tokens on exchange.
type fakeBackend struct {
	lock          sync.Mutex
	access        string
	refresh       string
	generation    int
	refreshDelay  time.Duration
	refreshStatus int

	refreshCalls  atomic.Int32
	resourceCalls atomic.Int32
	seenBearers   []string
	lastHeaders   http.Header
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{access: "access-0", refresh: "refresh-0"}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case apiclient.RefreshPath:
		b.handleRefresh(w, r)
	case apiclient.SignInPath:
		var creds authmodel.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "Password123" {
			writeJSON(w, http.StatusUnauthorized, authmodel.ErrorResponse{Message: "invalid credentials"})
			return
		}
		b.lock.Lock()
		defer b.lock.Unlock()
		writeJSON(w, http.StatusOK, authmodel.SignInResponse{Tokens: token.Pair{AccessToken: b.access, RefreshToken: b.refresh}})
	default:
		b.resourceCalls.Add(1)
		bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.lock.Lock()
		b.seenBearers = append(b.seenBearers, bearer)
		b.lastHeaders = r.Header.Clone()
		valid := bearer == b.access
		b.lock.Unlock()
		if !valid {
			writeJSON(w, http.StatusUnauthorized, authmodel.ErrorResponse{Message: "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"path": r.URL.Path})
	}
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	if b.refreshDelay > 0 {
		time.Sleep(b.refreshDelay)
	}
	if b.refreshStatus != 0 {
		w.Header().Set("Retry-After", "7")
		writeJSON(w, b.refreshStatus, authmodel.ErrorResponse{Message: "refresh refused"})
		return
	}
	var req authmodel.RefreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.lock.Lock()
	defer b.lock.Unlock()
	if req.RefreshToken != b.refresh {
		writeJSON(w, http.StatusUnauthorized, authmodel.ErrorResponse{Message: "refresh token reused"})
		return
	}
	b.generation++
	b.access = fmt.Sprintf("access-%d", b.generation)
	b.refresh = fmt.Sprintf("refresh-%d", b.generation)
	writeJSON(w, http.StatusOK, authmodel.RefreshResponse{Tokens: token.Pair{AccessToken: b.access, RefreshToken: b.refresh}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setupClient(t *testing.T, handler http.Handler, pair token.Pair, opts ...apiclient.Option) (*apiclient.Client, *token.MemoryStore, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := token.NewMemoryStore()
	require.NoError(t, token.SetPair(store, pair, 0, 0))
	client, err := apiclient.New(srv.URL, store, opts...)
	require.NoError(t, err)
	return client, store, srv
}

func TestDo_AttachesCredentialAndServiceHeaders(t *testing.T) {
	backend := newFakeBackend()
	client, _, _ := setupClient(t, backend, token.Pair{AccessToken: "access-0", RefreshToken: "refresh-0"},
		apiclient.WithServiceIdentity("finadmin-dashboard", "svc-secret", ""))

	var out map[string]string
	require.NoError(t, client.GetJSON(context.Background(), "/admin/users/count", nil, &out))
	require.Equal(t, "/admin/users/count", out["path"])

	require.Equal(t, "Bearer access-0", backend.lastHeaders.Get("Authorization"))
	require.Equal(t, "finadmin-dashboard", backend.lastHeaders.Get(apiclient.HeaderServiceName))
	require.Equal(t, "svc-secret", backend.lastHeaders.Get(apiclient.HeaderServiceToken))
	require.NotEmpty(t, backend.lastHeaders.Get(apiclient.HeaderRequestID))
}

func TestDo_ServiceTokenWithheldCrossOrigin(t *testing.T) {
	backend := newFakeBackend()
	client, _, _ := setupClient(t, backend, token.Pair{AccessToken: "access-0", RefreshToken: "refresh-0"},
		apiclient.WithServiceIdentity("finadmin-dashboard", "svc-secret", "https://dashboard.example.com"))

	require.NoError(t, client.GetJSON(context.Background(), "/admin/me", nil, nil))
	require.Empty(t, backend.lastHeaders.Get(apiclient.HeaderServiceToken))
	require.Equal(t, "finadmin-dashboard", backend.lastHeaders.Get(apiclient.HeaderServiceName))
}

func TestDo_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	backend := newFakeBackend()
	backend.refreshDelay = 50 * time.Millisecond
	metrics := obs.NewMetrics(nil)
	client, store, _ := setupClient(t, backend, token.Pair{AccessToken: "expired", RefreshToken: "refresh-0"},
		apiclient.WithMetrics(metrics))

	const requests = 10
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := client.GetJSON(context.Background(), fmt.Sprintf("/admin/resources/%d", i), nil, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), backend.refreshCalls.Load())
	access, _ := store.AccessToken()
	refreshToken, _ := store.RefreshToken()
	require.Equal(t, "access-1", access)
	require.Equal(t, "refresh-1", refreshToken)

	replays := 0
	for _, bearer := range backend.seenBearers {
		if bearer != "expired" {
			require.Equal(t, "access-1", bearer)
			replays++
		}
	}
	require.Equal(t, requests, replays)
	require.Equal(t, float64(requests), testutil.ToFloat64(metrics.Requests.WithLabelValues(obs.ClassSuccess)))
}

func TestDo_ExpiredAccessTokenRefreshedTransparently(t *testing.T) {
	backend := newFakeBackend()
	client, store, _ := setupClient(t, backend, token.Pair{AccessToken: "expired", RefreshToken: "refresh-0"})

	resp, err := client.Do(context.Background(), &apiclient.Request{Method: http.MethodGet, Path: "/admin/me"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(2), backend.resourceCalls.Load())

	refreshToken, _ := store.RefreshToken()
	require.Equal(t, "refresh-1", refreshToken)
}

func TestDo_RefreshRejectedEndsSession(t *testing.T) {
	backend := newFakeBackend()
	client, store, _ := setupClient(t, backend, token.Pair{AccessToken: "expired", RefreshToken: "stale-refresh"})

	var terminal error
	client.Coordinator().OnTerminal(func(err error) { terminal = err })

	err := client.GetJSON(context.Background(), "/admin/me", nil, nil)
	require.ErrorIs(t, err, apperrors.ErrAuth)
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)
	require.ErrorIs(t, terminal, apperrors.ErrAuth)

	_, hasAccess := store.AccessToken()
	_, hasRefresh := store.RefreshToken()
	require.False(t, hasAccess)
	require.False(t, hasRefresh)
}

func TestDo_RefreshRateLimitedKeepsTokens(t *testing.T) {
	backend := newFakeBackend()
	backend.refreshStatus = http.StatusTooManyRequests
	client, store, _ := setupClient(t, backend, token.Pair{AccessToken: "expired", RefreshToken: "refresh-0"})

	err := client.GetJSON(context.Background(), "/admin/me", nil, nil)
	require.ErrorIs(t, err, apperrors.ErrRefreshRateLimited)
	require.NotErrorIs(t, err, apperrors.ErrAuth)

	var rateLimited *apperrors.RateLimitError
	require.ErrorAs(t, err, &rateLimited)
	require.Equal(t, 7*time.Second, rateLimited.RetryAfter)

	refreshToken, ok := store.RefreshToken()
	require.True(t, ok)
	require.Equal(t, "refresh-0", refreshToken)
}

func TestDo_ReplayRejectedIsNotRefreshedAgain(t *testing.T) {
	var refreshCalls, resourceCalls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == apiclient.RefreshPath {
			n := refreshCalls.Add(1)
			writeJSON(w, http.StatusOK, authmodel.RefreshResponse{Tokens: token.Pair{
				AccessToken:  fmt.Sprintf("access-%d", n),
				RefreshToken: fmt.Sprintf("refresh-%d", n),
			}})
			return
		}
		resourceCalls.Add(1)
		writeJSON(w, http.StatusUnauthorized, authmodel.ErrorResponse{Message: "nope"})
	})
	client, _, _ := setupClient(t, handler, token.Pair{AccessToken: "access-0", RefreshToken: "refresh-0"})

	err := client.GetJSON(context.Background(), "/admin/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, apperrors.StatusCode(err))
	require.Equal(t, int32(1), refreshCalls.Load())
	require.Equal(t, int32(2), resourceCalls.Load())
}

func TestDo_RateLimitRetriedOnce(t *testing.T) {
	tests := []struct {
		name        string
		limitedHits int32
		wantErr     bool
	}{
		{name: "retry succeeds", limitedHits: 1},
		{name: "retry rate limited", limitedHits: 5, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if hits.Add(1) <= tt.limitedHits {
					w.Header().Set("Retry-After", "0")
					writeJSON(w, http.StatusTooManyRequests, authmodel.ErrorResponse{Message: "slow down"})
					return
				}
				writeJSON(w, http.StatusOK, map[string]int{"count": 3})
			})
			client, _, _ := setupClient(t, handler, token.Pair{AccessToken: "a", RefreshToken: "r"})

			var out map[string]int
			err := client.GetJSON(context.Background(), "/admin/users/count", nil, &out)
			require.Equal(t, int32(2), hits.Load())
			if tt.wantErr {
				require.ErrorIs(t, err, apperrors.ErrRateLimited)
				require.NotErrorIs(t, err, apperrors.ErrRefreshRateLimited)
				require.Contains(t, err.Error(), "slow down")
				return
			}
			require.NoError(t, err)
			require.Equal(t, 3, out["count"])
		})
	}
}

func TestDo_DefaultBackoffWithoutRetryAfter(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	client, _, _ := setupClient(t, handler, token.Pair{AccessToken: "a", RefreshToken: "r"},
		apiclient.WithRateLimitBackoff(20*time.Millisecond))

	start := time.Now()
	err := client.GetJSON(context.Background(), "/admin/me", nil, nil)
	require.ErrorIs(t, err, apperrors.ErrRateLimited)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	require.Equal(t, int32(2), hits.Load())
}

func TestDo_NetworkErrorNamesBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	metrics := obs.NewMetrics(nil)
	client, err := apiclient.New(baseURL, token.NewMemoryStore(), apiclient.WithMetrics(metrics))
	require.NoError(t, err)

	err = client.GetJSON(context.Background(), "/admin/me", nil, nil)
	require.ErrorIs(t, err, apperrors.ErrNetwork)
	require.Contains(t, err.Error(), baseURL)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(obs.ClassNetwork)))
}

func TestDo_OtherStatusesPassThrough(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, authmodel.ErrorResponse{Message: "email is invalid"})
	})
	client, _, _ := setupClient(t, handler, token.Pair{AccessToken: "a", RefreshToken: "r"})

	err := client.PostJSON(context.Background(), "/admin/resources/users", map[string]string{"email": "x"}, nil)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	var httpErr *apperrors.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, "email is invalid", httpErr.Message)
	require.Equal(t, http.MethodPost, httpErr.Method)
}

func TestSignIn(t *testing.T) {
	backend := newFakeBackend()
	client, _, _ := setupClient(t, backend, token.Pair{})

	resp, err := client.SignIn(context.Background(), authmodel.Credentials{Email: "admin@example.com", Password: "Password123"})
	require.NoError(t, err)
	require.Equal(t, "access-0", resp.Tokens.AccessToken)

	_, err = client.SignIn(context.Background(), authmodel.Credentials{Email: "admin@example.com", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, apperrors.StatusCode(err))
	require.NotErrorIs(t, err, apperrors.ErrAuth)
	require.Equal(t, int32(0), backend.refreshCalls.Load())
}

func TestNewAIClient_SharesCoordinator(t *testing.T) {
	backend := newFakeBackend()
	primary, _, srv := setupClient(t, backend, token.Pair{AccessToken: "expired", RefreshToken: "refresh-0"})

	cfg := aiConfig{base: srv.URL + "/ai"}
	ai, err := apiclient.NewAIClient(cfg, primary)
	require.NoError(t, err)
	require.Same(t, primary.Coordinator(), ai.Coordinator())

	var wg sync.WaitGroup
	for _, c := range []*apiclient.Client{primary, ai} {
		wg.Add(1)
		go func(c *apiclient.Client) {
			defer wg.Done()
			assert.NoError(t, c.GetJSON(context.Background(), "/admin/me", nil, nil))
		}(c)
	}
	wg.Wait()
	require.Equal(t, int32(1), backend.refreshCalls.Load())
}

type aiConfig struct {
	base string
}

func (c aiConfig) GetBaseURL() string                 { return "" }
func (c aiConfig) GetAIBaseURL() string               { return c.base }
func (c aiConfig) GetServiceToken() string            { return "" }
func (c aiConfig) GetServiceName() string             { return "finadmin-ai" }
func (c aiConfig) GetAppOrigin() string               { return "" }
func (c aiConfig) GetRequestTimeout() time.Duration   { return 5 * time.Second }
func (c aiConfig) GetRateLimitBackoff() time.Duration { return time.Second }
func (c aiConfig) GetRequestsPerSecond() float64      { return 0 }
func (c aiConfig) GetRequestBurst() int               { return 1 }
